package iso7816

import (
	"fmt"

	"github.com/cardwerk/starcos/pkg/bits"
)

// Instruction Byte (INS) handling according to ISO/IEC 7816-4.
//
// INS values whose upper nibble is '6' or '9' are invalid; those
// ranges are reserved for status words and transport-layer procedure
// bytes (ISO/IEC 7816-3). For interindustry commands the least
// significant bit often selects BER-TLV formatted data fields
// (e.g. READ BINARY 0xB0 vs 0xB1).

// InsCode is a typed representation of the instruction byte.
type InsCode byte

// Instruction (INS) codes as defined in ISO/IEC 7816-4.
const (
	INS_DEACTIVATE_FILE              InsCode = 0x04
	INS_ERASE_BINARY                 InsCode = 0x0E
	INS_VERIFY                       InsCode = 0x20
	INS_MANAGE_SECURITY_ENVIRONMENT  InsCode = 0x22
	INS_CHANGE_REFERENCE_DATA        InsCode = 0x24
	INS_PERFORM_SECURITY_OPERATION   InsCode = 0x2A
	INS_RESET_RETRY_COUNTER          InsCode = 0x2C
	INS_ACTIVATE_FILE                InsCode = 0x44
	INS_GENERATE_ASYMMETRIC_KEY_PAIR InsCode = 0x46
	INS_MANAGE_CHANNEL               InsCode = 0x70
	INS_EXTERNAL_AUTHENTICATE        InsCode = 0x82
	INS_GET_CHALLENGE                InsCode = 0x84
	INS_INTERNAL_AUTHENTICATE        InsCode = 0x88
	INS_SELECT                       InsCode = 0xA4
	INS_READ_BINARY                  InsCode = 0xB0
	INS_READ_RECORD                  InsCode = 0xB2
	INS_GET_RESPONSE                 InsCode = 0xC0
	INS_ENVELOPE                     InsCode = 0xC2
	INS_GET_DATA                     InsCode = 0xCA
	INS_WRITE_BINARY                 InsCode = 0xD0
	INS_UPDATE_BINARY                InsCode = 0xD6
	INS_PUT_DATA                     InsCode = 0xDA
	INS_UPDATE_RECORD                InsCode = 0xDC
	INS_CREATE_FILE                  InsCode = 0xE0
	INS_APPEND_RECORD                InsCode = 0xE2
	INS_DELETE_FILE                  InsCode = 0xE4
	INS_TERMINATE_DF                 InsCode = 0xE6
	INS_TERMINATE_EF                 InsCode = 0xE8
	INS_TERMINATE_CARD_USAGE         InsCode = 0xFE
)

var insNames = map[InsCode]string{
	INS_DEACTIVATE_FILE:              "DEACTIVATE FILE",
	INS_ERASE_BINARY:                 "ERASE BINARY",
	INS_VERIFY:                       "VERIFY",
	INS_MANAGE_SECURITY_ENVIRONMENT:  "MANAGE SECURITY ENVIRONMENT",
	INS_CHANGE_REFERENCE_DATA:        "CHANGE REFERENCE DATA",
	INS_PERFORM_SECURITY_OPERATION:   "PERFORM SECURITY OPERATION",
	INS_RESET_RETRY_COUNTER:          "RESET RETRY COUNTER",
	INS_ACTIVATE_FILE:                "ACTIVATE FILE",
	INS_GENERATE_ASYMMETRIC_KEY_PAIR: "GENERATE ASYMMETRIC KEY PAIR",
	INS_MANAGE_CHANNEL:               "MANAGE CHANNEL",
	INS_EXTERNAL_AUTHENTICATE:        "EXTERNAL AUTHENTICATE",
	INS_GET_CHALLENGE:                "GET CHALLENGE",
	INS_INTERNAL_AUTHENTICATE:        "INTERNAL AUTHENTICATE",
	INS_SELECT:                       "SELECT",
	INS_READ_BINARY:                  "READ BINARY",
	INS_READ_RECORD:                  "READ RECORD",
	INS_GET_RESPONSE:                 "GET RESPONSE",
	INS_ENVELOPE:                     "ENVELOPE",
	INS_GET_DATA:                     "GET DATA",
	INS_WRITE_BINARY:                 "WRITE BINARY",
	INS_UPDATE_BINARY:                "UPDATE BINARY",
	INS_PUT_DATA:                     "PUT DATA",
	INS_UPDATE_RECORD:                "UPDATE RECORD",
	INS_CREATE_FILE:                  "CREATE FILE",
	INS_APPEND_RECORD:                "APPEND RECORD",
	INS_DELETE_FILE:                  "DELETE FILE",
	INS_TERMINATE_DF:                 "TERMINATE DF",
	INS_TERMINATE_EF:                 "TERMINATE EF",
	INS_TERMINATE_CARD_USAGE:         "TERMINATE CARD USAGE",
}

func (i InsCode) String() string {
	if name, ok := insNames[i]; ok {
		return name
	}
	return fmt.Sprintf("INS(%02X)", byte(i))
}

// Instruction represents the parsed ISO 7816-4 Instruction byte (INS).
type Instruction struct {
	Raw      InsCode
	IsBERTLV bool
}

// NewInstruction creates an Instruction object with validation. It
// rejects '6X' and '9X' values as invalid per ISO 7816-3.
func NewInstruction(ins InsCode) (Instruction, error) {
	highNibble := byte(ins) & 0xF0
	if highNibble == 0x60 || highNibble == 0x90 {
		return Instruction{}, fmt.Errorf("invalid INS 0x%02X: 6X and 9X are reserved", ins)
	}

	return Instruction{
		Raw:      ins,
		IsBERTLV: bits.IsSet(byte(ins), 1),
	}, nil
}

// Verbose returns a human-readable description of the instruction.
func (i Instruction) Verbose() string {
	format := "Standard"
	if i.IsBERTLV {
		format = "BER-TLV"
	}
	return fmt.Sprintf("INS: 0x%02X | Command: %s | Format: %s", byte(i.Raw), i.Raw.String(), format)
}
