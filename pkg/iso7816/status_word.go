package iso7816

import (
	"fmt"

	"github.com/cardwerk/starcos/pkg/bits"
)

// Most status words are static two-byte values, but ISO 7816-4
// reserves ranges that carry context:
//
//   61XX  process completed, XX more bytes available (GET RESPONSE)
//   6CXX  wrong length, correct Le is XX
//   62XX / 64XX with XX in [0x02,0x80]  triggering by the card
//   63CX  warning with a counter in the low nibble (e.g. PIN retries)

// StatusWord represents the two-byte status (SW1-SW2) terminating
// every response.
type StatusWord uint16

// NewStatusWord creates a StatusWord instance from two separate bytes.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

// SW1 returns the first (high) byte of the status word.
func (sw StatusWord) SW1() byte {
	return byte(sw >> 8)
}

// SW2 returns the second (low) byte of the status word.
func (sw StatusWord) SW2() byte {
	return byte(sw)
}

// IsTriggeringByCard checks if the status indicates a "triggering by
// the card" event.
func (sw StatusWord) IsTriggeringByCard() bool {
	sw2 := sw.SW2()
	if sw2 < 0x02 || sw2 > 0x80 {
		return false
	}
	sw1 := sw.SW1()
	return sw1 == 0x62 || sw1 == 0x64
}

// IsCounter checks if the status carries a counter in the low nibble.
func (sw StatusWord) IsCounter() bool {
	if sw.SW1() != 0x63 {
		return false
	}
	return bits.HighNibble(sw.SW2()) == 0x0C
}

// Counter returns the counter value of a 63CX status word.
func (sw StatusWord) Counter() int {
	return int(bits.LowNibble(sw.SW2()))
}

// IsSuccess returns true for 9000 and for 61XX (data available).
func (sw StatusWord) IsSuccess() bool {
	return sw == SW_NO_ERROR || sw.SW1() == 0x61
}

// IsWarning returns true for the 62XX and 63XX ranges.
func (sw StatusWord) IsWarning() bool {
	sw1 := sw.SW1()
	return sw1 == 0x62 || sw1 == 0x63
}

// IsError returns true for the execution and checking error ranges
// (64XX to 6FXX).
func (sw StatusWord) IsError() bool {
	sw1 := sw.SW1()
	return sw1 >= 0x64 && sw1 <= 0x6F
}

// Verbose returns a human-readable description of the status word,
// prioritizing the dynamic ISO ranges over the static table.
func (sw StatusWord) Verbose() string {
	sw1 := sw.SW1()
	sw2 := sw.SW2()

	if sw.IsTriggeringByCard() {
		action := "Warning (Triggering)"
		if sw1 == 0x64 {
			action = "Error/Abort (Triggering)"
		}
		return fmt.Sprintf("%s: Card expects query of %d bytes", action, sw2)
	}

	if sw.IsCounter() {
		return fmt.Sprintf("Warning: State changed, counter = %d", sw.Counter())
	}

	if sw1 == 0x61 {
		return fmt.Sprintf("Process completed, %d bytes available", sw2)
	}

	if sw1 == 0x6C {
		return fmt.Sprintf("Wrong length, correct Le is %d", sw2)
	}

	if desc, ok := swDescriptions[sw]; ok {
		return fmt.Sprintf("[%04X] %s", uint16(sw), desc)
	}

	return fmt.Sprintf("[%04X] %s", uint16(sw), sw.categoryDescription())
}

// categoryDescription provides a fallback description based on SW1.
func (sw StatusWord) categoryDescription() string {
	switch sw.SW1() {
	case 0x62:
		return "Warning: NV memory unchanged"
	case 0x63:
		return "Warning: NV memory changed"
	case 0x64:
		return "Execution Error: NV memory unchanged"
	case 0x65:
		return "Execution Error: NV memory changed"
	case 0x66:
		return "Execution Error: Security issue"
	case 0x68:
		return "Checking Error: Function not supported"
	case 0x69:
		return "Checking Error: Command not allowed"
	case 0x6A:
		return "Checking Error: Wrong parameters"
	default:
		return "Unknown Status"
	}
}

// Standard status word codes defined in ISO/IEC 7816-4.
const (
	SW_NO_ERROR StatusWord = 0x9000

	SW_WARN_NO_INFO           StatusWord = 0x6200
	SW_WARN_DATA_CORRUPTED    StatusWord = 0x6281
	SW_WARN_EOF_REACHED       StatusWord = 0x6282
	SW_WARN_FILE_DEACTIVATED  StatusWord = 0x6283
	SW_WARN_NO_FCI            StatusWord = 0x6284
	SW_WARN_TERMINATION_STATE StatusWord = 0x6285

	SW_WARN_NV_CHANGED_NO_INFO StatusWord = 0x6300
	SW_WARN_FILE_FILLED        StatusWord = 0x6381
	SW_WARN_COUNTER_0          StatusWord = 0x63C0

	SW_ERR_EXEC_NO_INFO StatusWord = 0x6400

	SW_ERR_NV_CHANGED_NO_INFO StatusWord = 0x6500
	SW_ERR_MEMORY_FAILURE     StatusWord = 0x6581
	SW_ERR_SECURITY_ISSUE     StatusWord = 0x6600

	SW_ERR_WRONG_LENGTH             StatusWord = 0x6700
	SW_ERR_CHECKING_NO_INFO         StatusWord = 0x6800
	SW_ERR_LOGICAL_CHANNEL_NOT_SUPP StatusWord = 0x6881
	SW_ERR_SM_NOT_SUPP              StatusWord = 0x6882

	SW_ERR_CMD_NOT_ALLOWED_NO_INFO StatusWord = 0x6900
	SW_ERR_CMD_INCOMPATIBLE_FILE   StatusWord = 0x6981
	SW_ERR_SECURITY_STATUS_NOT_SAT StatusWord = 0x6982
	SW_ERR_AUTH_METHOD_BLOCKED     StatusWord = 0x6983
	SW_ERR_REF_DATA_NOT_USABLE     StatusWord = 0x6984
	SW_ERR_COND_OF_USE_NOT_SAT     StatusWord = 0x6985
	SW_ERR_CMD_NOT_ALLOWED_NO_EF   StatusWord = 0x6986
	SW_ERR_SM_OBJ_MISSING          StatusWord = 0x6987
	SW_ERR_SM_OBJ_INCORRECT        StatusWord = 0x6988

	SW_ERR_WRONG_PARAMS_NO_INFO   StatusWord = 0x6A00
	SW_ERR_INCORRECT_PARAMS_DATA  StatusWord = 0x6A80
	SW_ERR_FUNC_NOT_SUPPORTED     StatusWord = 0x6A81
	SW_ERR_FILE_NOT_FOUND         StatusWord = 0x6A82
	SW_ERR_RECORD_NOT_FOUND       StatusWord = 0x6A83
	SW_ERR_NOT_ENOUGH_MEMORY      StatusWord = 0x6A84
	SW_ERR_NC_INCONSISTENT_TLV    StatusWord = 0x6A85
	SW_ERR_INCORRECT_PARAMS_P1P2  StatusWord = 0x6A86
	SW_ERR_NC_INCONSISTENT_P1P2   StatusWord = 0x6A87
	SW_ERR_REF_DATA_NOT_FOUND     StatusWord = 0x6A88
	SW_ERR_FILE_ALREADY_EXISTS    StatusWord = 0x6A89
	SW_ERR_DF_NAME_ALREADY_EXISTS StatusWord = 0x6A8A

	SW_ERR_WRONG_P1P2        StatusWord = 0x6B00
	SW_ERR_INS_INVALID       StatusWord = 0x6D00
	SW_ERR_CLA_NOT_SUPPORTED StatusWord = 0x6E00
	SW_ERR_UNKNOWN           StatusWord = 0x6F00
)

var swDescriptions = map[StatusWord]string{
	SW_NO_ERROR:                     "No error",
	SW_WARN_NO_INFO:                 "Warning, no information given",
	SW_WARN_DATA_CORRUPTED:          "Returned data may be corrupted",
	SW_WARN_EOF_REACHED:             "End of file reached before reading Ne bytes",
	SW_WARN_FILE_DEACTIVATED:        "Selected file deactivated",
	SW_WARN_NO_FCI:                  "FCI not formatted according to ISO 7816-4",
	SW_WARN_TERMINATION_STATE:       "Selected file in termination state",
	SW_WARN_NV_CHANGED_NO_INFO:      "NV memory changed, no information given",
	SW_WARN_FILE_FILLED:             "File filled up by the last write",
	SW_ERR_EXEC_NO_INFO:             "Execution error, no information given",
	SW_ERR_NV_CHANGED_NO_INFO:       "NV memory changed, execution error",
	SW_ERR_MEMORY_FAILURE:           "Memory failure",
	SW_ERR_SECURITY_ISSUE:           "Security-related issue",
	SW_ERR_WRONG_LENGTH:             "Wrong length",
	SW_ERR_CHECKING_NO_INFO:         "Checking error, no information given",
	SW_ERR_LOGICAL_CHANNEL_NOT_SUPP: "Logical channel not supported",
	SW_ERR_SM_NOT_SUPP:              "Secure messaging not supported",
	SW_ERR_CMD_NOT_ALLOWED_NO_INFO:  "Command not allowed",
	SW_ERR_CMD_INCOMPATIBLE_FILE:    "Command incompatible with file structure",
	SW_ERR_SECURITY_STATUS_NOT_SAT:  "Security status not satisfied",
	SW_ERR_AUTH_METHOD_BLOCKED:      "Authentication method blocked",
	SW_ERR_REF_DATA_NOT_USABLE:      "Reference data not usable",
	SW_ERR_COND_OF_USE_NOT_SAT:      "Conditions of use not satisfied",
	SW_ERR_CMD_NOT_ALLOWED_NO_EF:    "Command not allowed, no current EF",
	SW_ERR_SM_OBJ_MISSING:           "Expected secure messaging object missing",
	SW_ERR_SM_OBJ_INCORRECT:         "Incorrect secure messaging object",
	SW_ERR_WRONG_PARAMS_NO_INFO:     "Wrong parameters, no information given",
	SW_ERR_INCORRECT_PARAMS_DATA:    "Incorrect parameters in the data field",
	SW_ERR_FUNC_NOT_SUPPORTED:       "Function not supported",
	SW_ERR_FILE_NOT_FOUND:           "File or application not found",
	SW_ERR_RECORD_NOT_FOUND:         "Record not found",
	SW_ERR_NOT_ENOUGH_MEMORY:        "Not enough memory space in the file",
	SW_ERR_NC_INCONSISTENT_TLV:      "Nc inconsistent with TLV structure",
	SW_ERR_INCORRECT_PARAMS_P1P2:    "Incorrect parameters P1-P2",
	SW_ERR_NC_INCONSISTENT_P1P2:     "Nc inconsistent with P1-P2",
	SW_ERR_REF_DATA_NOT_FOUND:       "Referenced data not found",
	SW_ERR_FILE_ALREADY_EXISTS:      "File already exists",
	SW_ERR_DF_NAME_ALREADY_EXISTS:   "DF name already exists",
	SW_ERR_WRONG_P1P2:               "Wrong parameters P1-P2",
	SW_ERR_INS_INVALID:              "Instruction code not supported or invalid",
	SW_ERR_CLA_NOT_SUPPORTED:        "Class not supported",
	SW_ERR_UNKNOWN:                  "No precise diagnosis",
}
