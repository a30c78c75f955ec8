package starcos

import (
	"fmt"

	"github.com/cardwerk/starcos/pkg/bits"
	"github.com/cardwerk/starcos/pkg/iso7816"
)

// Vendor status words of the SPK 2.3 operating system. Anything not in
// this table falls through to the base ISO mapping.
var vendorErrors = []struct {
	sw   iso7816.StatusWord
	kind error
	text string
}{
	{0x6600, iso7816.ErrIncorrectParameters, "error setting the security env"},
	{0x66F0, iso7816.ErrIncorrectParameters, "no space left for padding"},
	{0x69F0, iso7816.ErrNotAllowed, "command not allowed"},
	{0x6A89, iso7816.ErrFileAlreadyExists, "file exists"},
	{0x6A8A, iso7816.ErrFileAlreadyExists, "application exists"},
	{0x6F01, iso7816.ErrCardCmdFailed, "public key not complete"},
	{0x6F02, iso7816.ErrCardCmdFailed, "data overflow"},
	{0x6F03, iso7816.ErrCardCmdFailed, "invalid command sequence"},
	{0x6F05, iso7816.ErrCardCmdFailed, "security environment invalid"},
	{0x6F07, iso7816.ErrFileNotFound, "key part not found"},
	{0x6F08, iso7816.ErrCardCmdFailed, "signature failed"},
	{0x6F0A, iso7816.ErrIncorrectParameters, "key format does not match key length"},
	{0x6F0B, iso7816.ErrIncorrectParameters, "length of key component inconsistent with algorithm"},
	{0x6F81, iso7816.ErrCardCmdFailed, "system error"},
}

// checkSW classifies a status word: success, PIN failure with a retry
// counter, a vendor error, or the base ISO mapping.
func (c *Card) checkSW(sw iso7816.StatusWord) error {
	if sw.SW1() == 0x90 {
		return nil
	}

	if sw.SW1() == 0x63 && bits.HighNibble(sw.SW2()) == 0x0C {
		tries := int(bits.LowNibble(sw.SW2()))
		if c.suppressed == 0 {
			c.log.Error("verification failed", "remaining_tries", tries)
		}
		return &iso7816.PINError{Remaining: tries}
	}

	for _, e := range vendorErrors {
		if e.sw == sw {
			if c.suppressed == 0 {
				c.log.Error(e.text, "sw", fmt.Sprintf("%04X", uint16(sw)))
			}
			return fmt.Errorf("%s: %w", e.text, e.kind)
		}
	}

	return iso7816.CheckSW(sw)
}
