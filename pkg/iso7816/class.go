package iso7816

import (
	"fmt"

	"github.com/cardwerk/starcos/pkg/bits"
)

// Class Byte (CLA) handling according to ISO/IEC 7816-4.
//
// Bit 8 separates proprietary classes (1) from interindustry ones (0).
// For the first interindustry range (00xx xxxx):
//   Bit 5:      command chaining
//   Bits 4-3:   secure messaging indicator
//   Bits 2-1:   logical channel (0-3)
// Cards driven by this module run entirely on channel 0; the further
// interindustry range (01xx xxxx, channels 4-19) is not supported.

// SecureMessaging defines the security level applied to the APDU.
type SecureMessaging int

const (
	// SMNone indicates no secure messaging or no indication given.
	SMNone SecureMessaging = 0
	// SMProprietary indicates a proprietary secure messaging format.
	SMProprietary SecureMessaging = 1
	// SMHeaderNoProc indicates ISO secure messaging, header not processed.
	SMHeaderNoProc SecureMessaging = 2
	// SMHeaderAuth indicates ISO secure messaging, header authenticated.
	SMHeaderAuth SecureMessaging = 3
)

// Class represents the parsed ISO 7816-4 Class byte (CLA).
type Class struct {
	Raw             byte
	IsProprietary   bool
	IsChained       bool
	SecureMessaging SecureMessaging
	Channel         uint8
}

// NewClass creates a Class object by decoding a raw CLA byte.
func NewClass(cla byte) (Class, error) {
	if cla == 0xFF {
		return Class{}, fmt.Errorf("invalid CLA value: 0xFF is reserved")
	}

	c := Class{Raw: cla}

	if bits.IsSet(cla, 8) {
		c.IsProprietary = true
		return c, nil
	}

	if bits.IsSet(cla, 7) {
		return Class{}, fmt.Errorf("CLA 0x%02X: further interindustry range not supported", cla)
	}

	c.IsChained = bits.IsSet(cla, 5)
	c.SecureMessaging = SecureMessaging(bits.GetRange(cla, 4, 3))
	c.Channel = bits.GetRange(cla, 2, 1)

	return c, nil
}

// WithProprietary returns a proprietary-class copy with bit 8 raised,
// as vendor commands require.
func (c Class) WithProprietary() Class {
	raw, err := c.Encode()
	if err != nil {
		raw = c.Raw
	}
	return Class{Raw: raw | 0x80, IsProprietary: true}
}

// Encode converts the Class object back to its byte representation.
func (c *Class) Encode() (byte, error) {
	if c.IsProprietary {
		return c.Raw, nil
	}
	if c.Channel > 3 {
		return 0, fmt.Errorf("channel %d out of range (max 3)", c.Channel)
	}

	var res byte
	if c.IsChained {
		res = bits.Set(res, 5)
	}
	res |= byte(c.SecureMessaging) << 2
	res |= c.Channel

	return res, nil
}

// Verbose returns a human-readable description of the CLA configuration.
func (c Class) Verbose() string {
	if c.IsProprietary {
		return fmt.Sprintf("Class: Proprietary (0x%02X)", c.Raw)
	}

	smDesc := "None"
	switch c.SecureMessaging {
	case SMProprietary:
		smDesc = "Proprietary"
	case SMHeaderNoProc:
		smDesc = "ISO (Header not processed)"
	case SMHeaderAuth:
		smDesc = "ISO (Header authenticated)"
	}

	chaining := "Last or only command"
	if c.IsChained {
		chaining = "More commands follow (Chaining)"
	}

	return fmt.Sprintf("Chaining: %s | Secure Messaging: %s | Logical Channel: %d",
		chaining, smDesc, c.Channel)
}
