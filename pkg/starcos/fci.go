package starcos

import (
	"fmt"

	"github.com/moov-io/bertlv"

	"github.com/cardwerk/starcos/pkg/iso7816"
	"github.com/cardwerk/starcos/pkg/tlv"
)

// SPK 2.3 wraps its file control information in a proprietary 6F
// template. A SELECT DF may even return arbitrary object-file content
// under that tag, which is why DF detection happens before FCI
// parsing (see navigator.go).
//
// Inside the template:
//
//	80  body size, 2 bytes big-endian
//	82  file descriptor:
//	      len 1, 01        transparent EF
//	      len 1, 11        object EF (exposed as transparent)
//	      len 3, x 21 rl   record EF; x = 02 linear fixed, 07 cyclic,
//	                       17 compute service; rl = record length
//
// A missing 82 leaves the EF with unknown structure.

// processFCI decodes the 6F template into the structural fields of
// file. The identity fields (ID, Path) are left untouched.
func processFCI(file *File, buf []byte) error {
	if len(buf) < 2 {
		return fmt.Errorf("FCI too short (%d bytes): %w", len(buf), iso7816.ErrInvalidData)
	}
	if buf[0] != 0x6F {
		return fmt.Errorf("FCI does not start with tag 6F: %w", iso7816.ErrInvalidData)
	}

	packets, err := bertlv.Decode(buf)
	if err != nil {
		return fmt.Errorf("FCI decode failed: %w", iso7816.ErrInvalidData)
	}

	file.Type = FileTypeWorkingEF
	file.Structure = EFUnknown
	file.Object = false
	file.Size = 0
	file.RecordLength = 0

	if size, ok := tlv.FindIn(packets, "80"); ok && len(size) >= 2 {
		file.Size = int(size[0])<<8 | int(size[1])
	}

	desc, ok := tlv.FindIn(packets, "82")
	if !ok {
		return nil
	}

	switch {
	case len(desc) == 1 && desc[0] == 0x01:
		file.Structure = EFTransparent
	case len(desc) == 1 && desc[0] == 0x11:
		file.Structure = EFTransparent
		file.Object = true
	case len(desc) == 3 && desc[1] == 0x21:
		file.RecordLength = int(desc[2])
		switch desc[0] {
		case 0x02:
			file.Structure = EFLinearFixed
		case 0x07:
			file.Structure = EFCyclic
		case 0x17:
			file.Structure = EFComputeService
		default:
			file.Structure = EFUnknown
			file.RecordLength = 0
		}
	}

	return nil
}
