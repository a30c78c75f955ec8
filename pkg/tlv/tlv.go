// Package tlv provides small helpers over BER-TLV data: building hex
// byte sequences and locating tags inside decoded templates.
package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// Hex constructs a byte slice from a series of hex strings.
func Hex(parts ...string) []byte {
	fullHex := strings.Join(parts, "")
	// Clean up spaces to allow format like "00 A4 04 00"
	cleanHex := strings.ReplaceAll(fullHex, " ", "")

	data, err := hex.DecodeString(cleanHex)
	if err != nil {
		panic(fmt.Sprintf("invalid input '%s': %v", cleanHex, err))
	}
	return data
}

// Find decodes data as BER-TLV and returns the payload of the first
// object carrying the given tag (hex, case-insensitive), searching
// nested templates depth-first.
func Find(data []byte, tag string) ([]byte, bool) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, false
	}
	return FindIn(packets, tag)
}

// FindIn searches a decoded packet list for tag. For constructed
// objects the re-encoded children are returned as the payload.
func FindIn(packets []bertlv.TLV, tag string) ([]byte, bool) {
	for _, p := range packets {
		if strings.EqualFold(p.Tag, tag) {
			if len(p.TLVs) > 0 {
				if enc, err := bertlv.Encode(p.TLVs); err == nil {
					return enc, true
				}
			}
			return p.Value, true
		}
		if len(p.TLVs) > 0 {
			if v, ok := FindIn(p.TLVs, tag); ok {
				return v, true
			}
		}
	}
	return nil, false
}
