package starcos

import (
	"crypto/md5"
	"crypto/sha1"
	"fmt"

	"golang.org/x/crypto/ripemd160"

	"github.com/cardwerk/starcos/pkg/iso7816"
)

// INTERNAL AUTHENTICATE encrypts whatever block the host sends, so
// the DigestInfo wrapper the verifier expects has to be built here.
// With the digest length and OID fixed per hash, the ASN.1 structure
// reduces to a constant prefix in front of the digest. The TLS-style
// MD5+SHA-1 flavor carries no wrapper at all.

var digestInfoPrefix = map[AlgorithmFlags][]byte{
	HashSHA1: {0x30, 0x21, 0x30, 0x09, 0x06, 0x05, 0x2B, 0x0E, 0x03,
		0x02, 0x1A, 0x05, 0x00, 0x04, 0x14},

	HashMD5: {0x30, 0x20, 0x30, 0x0C, 0x06, 0x08, 0x2A, 0x86, 0x48,
		0x86, 0xF7, 0x0D, 0x02, 0x05, 0x05, 0x00, 0x04, 0x10},

	HashRIPEMD160: {0x30, 0x21, 0x30, 0x09, 0x06, 0x05, 0x2B, 0x24,
		0x03, 0x02, 0x01, 0x05, 0x00, 0x04, 0x14},
}

var digestSize = map[AlgorithmFlags]int{
	HashSHA1:      sha1.Size,
	HashMD5:       md5.Size,
	HashRIPEMD160: ripemd160.Size,
}

// EncodeDigestInfo wraps digest in the DigestInfo structure for the
// hash selected in flags. HashNone and HashMD5SHA1 pass the digest
// through unchanged.
func EncodeDigestInfo(flags AlgorithmFlags, digest []byte) ([]byte, error) {
	if flags&(HashNone|HashMD5SHA1) != 0 {
		return append([]byte(nil), digest...), nil
	}

	for _, hash := range []AlgorithmFlags{HashSHA1, HashMD5, HashRIPEMD160} {
		if flags&hash == 0 {
			continue
		}
		if len(digest) != digestSize[hash] {
			return nil, fmt.Errorf("digest length %d does not match the selected hash: %w",
				len(digest), iso7816.ErrInvalidArguments)
		}
		return append(append([]byte(nil), digestInfoPrefix[hash]...), digest...), nil
	}

	return nil, fmt.Errorf("no supported hash selected: %w", iso7816.ErrInvalidArguments)
}

// HashData digests msg with the hash selected in flags, for callers
// holding the raw message rather than a precomputed digest.
func HashData(flags AlgorithmFlags, msg []byte) ([]byte, error) {
	switch {
	case flags&HashNone != 0:
		return append([]byte(nil), msg...), nil
	case flags&HashSHA1 != 0:
		sum := sha1.Sum(msg)
		return sum[:], nil
	case flags&HashMD5 != 0:
		sum := md5.Sum(msg)
		return sum[:], nil
	case flags&HashRIPEMD160 != 0:
		h := ripemd160.New()
		h.Write(msg)
		return h.Sum(nil), nil
	case flags&HashMD5SHA1 != 0:
		// TLS-style concatenation: MD5 digest followed by SHA-1 digest.
		m := md5.Sum(msg)
		s := sha1.Sum(msg)
		return append(m[:], s[:]...), nil
	default:
		return nil, fmt.Errorf("no hash selected: %w", iso7816.ErrInvalidArguments)
	}
}
