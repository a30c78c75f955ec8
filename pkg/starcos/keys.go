package starcos

import (
	"fmt"

	"github.com/cardwerk/starcos/pkg/iso7816"
	"github.com/cardwerk/starcos/pkg/tlv"
)

// Vendor instructions of the SPK 2.3 administrative command set.
const (
	insRegisterDF    iso7816.InsCode = 0x52
	insReadPublicKey iso7816.InsCode = 0xF0
	insWriteKey      iso7816.InsCode = 0xF4
	insGetCardData   iso7816.InsCode = 0xF6
)

// writeKeyChunkSize is the largest key segment one WRITE KEY APDU
// carries.
const writeKeyChunkSize = 124

// WriteKeyModeInstall installs a new key header before the key
// material is written; other modes update an existing key.
const WriteKeyModeInstall byte = 0x00

// WriteKeyData describes one key installation or update in the
// Internal Secret File.
type WriteKeyData struct {
	// Header is the 12-byte key header describing format, algorithm
	// and usage of the key.
	Header [12]byte

	// KeyID names the ISF slot receiving the key material.
	KeyID byte

	// Mode selects install (0) or update.
	Mode byte

	// Key is the key material; it may be empty when only the header
	// is installed.
	Key []byte
}

// WriteKey installs a key header in the ISF and streams the key
// material in segments the card accepts. Any rejected segment aborts
// the transfer; nothing already written is rolled back.
func (c *Card) WriteKey(data *WriteKeyData) error {
	if data == nil {
		return fmt.Errorf("nil key data: %w", iso7816.ErrInvalidArguments)
	}
	if len(data.Key) > 0xFFFF {
		return fmt.Errorf("key length %d exceeds the offset field: %w",
			len(data.Key), iso7816.ErrInvalidArguments)
	}

	if data.Mode == WriteKeyModeInstall {
		buf := append([]byte{0xC1, 0x0C}, data.Header[:]...)
		cmd := c.vendorCommand(insWriteKey, data.Mode, 0x00, buf, 0)
		trace, err := c.transmit(cmd)
		if err != nil {
			return err
		}
		if err := c.checkSW(trace.Status()); err != nil {
			return fmt.Errorf("key header install failed: %w", err)
		}
		if len(data.Key) == 0 {
			return nil
		}
	}

	for offset := 0; offset < len(data.Key); {
		chunk := data.Key[offset:]
		if len(chunk) > writeKeyChunkSize {
			chunk = chunk[:writeKeyChunkSize]
		}

		buf := make([]byte, 0, 5+len(chunk))
		buf = append(buf, 0xC2, byte(3+len(chunk)), data.KeyID,
			byte(offset>>8), byte(offset))
		buf = append(buf, chunk...)

		cmd := c.vendorCommand(insWriteKey, data.Mode, 0x00, buf, 0)
		trace, err := c.transmit(cmd)
		if err != nil {
			return err
		}
		if err := c.checkSW(trace.Status()); err != nil {
			return fmt.Errorf("key segment at offset %d failed: %w", offset, err)
		}

		offset += len(chunk)
	}
	return nil
}

// pubKeyModulusOffset is where the modulus starts in the READ PUBLIC
// KEY record; the bytes before it carry key metadata this driver does
// not interpret.
const pubKeyModulusOffset = 18

// GenerateKey runs on-card RSA key generation for the ISF slot keyID
// and returns the public modulus, most significant byte first.
func (c *Card) GenerateKey(keyID byte, keyBits int) ([]byte, error) {
	if keyBits <= 0 || keyBits%8 != 0 || keyBits > 0xFFFF {
		return nil, fmt.Errorf("key length %d bits: %w", keyBits, iso7816.ErrInvalidArguments)
	}

	genData := []byte{byte(keyBits >> 8), byte(keyBits)}
	cmd := c.command(iso7816.INS_GENERATE_ASYMMETRIC_KEY_PAIR, 0x00, keyID, genData, 0)
	trace, err := c.transmit(cmd)
	if err != nil {
		return nil, err
	}
	if err := c.checkSW(trace.Status()); err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}

	cmd = c.vendorCommand(insReadPublicKey, 0x9C, 0x00, []byte{keyID}, 256)
	trace, err = c.transmit(cmd)
	if err != nil {
		return nil, err
	}
	if err := c.checkSW(trace.Status()); err != nil {
		return nil, fmt.Errorf("public key read failed: %w", err)
	}

	return modulusFromResponse(trace.Data(), keyBits/8)
}

// modulusFromResponse extracts the little-endian modulus from the
// READ PUBLIC KEY record and reverses it to big-endian. A BER-TLV
// modulus object is honoured when the record parses as one; otherwise
// the modulus starts at the documented fixed offset.
func modulusFromResponse(resp []byte, n int) ([]byte, error) {
	raw, ok := tlv.Find(resp, "81")
	if !ok || len(raw) != n {
		if len(resp) < pubKeyModulusOffset+n {
			return nil, fmt.Errorf("public key record of %d bytes too short for a %d-byte modulus: %w",
				len(resp), n, iso7816.ErrInvalidData)
		}
		raw = resp[pubKeyModulusOffset : pubKeyModulusOffset+n]
	}

	out := make([]byte, n)
	for i, b := range raw {
		out[n-1-i] = b
	}
	return out, nil
}
