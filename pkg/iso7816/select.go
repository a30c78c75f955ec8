package iso7816

import (
	"fmt"
)

// SELECT command construction (INS 'A4'). P1 carries the selection
// method (by file-id, by DF name, by path), P2 combines the requested
// response content (bits 4-3) with the file occurrence (bits 2-1).

// SelectionMethod defines how the file is targeted (P1).
type SelectionMethod byte

const (
	SelectByFileID          SelectionMethod = 0x00
	SelectChildDF           SelectionMethod = 0x01
	SelectEFUnderCurrentDF  SelectionMethod = 0x02
	SelectParentDF          SelectionMethod = 0x03
	SelectByDFName          SelectionMethod = 0x04 // select by AID
	SelectPathFromMF        SelectionMethod = 0x08
	SelectPathFromCurrentDF SelectionMethod = 0x09
)

func (s SelectionMethod) String() string {
	switch s {
	case SelectByFileID:
		return "Select by File ID"
	case SelectChildDF:
		return "Select Child DF"
	case SelectEFUnderCurrentDF:
		return "Select EF under current DF"
	case SelectParentDF:
		return "Select Parent DF"
	case SelectByDFName:
		return "Select by DF Name (AID)"
	case SelectPathFromMF:
		return "Select Path from MF"
	case SelectPathFromCurrentDF:
		return "Select Path from Current DF"
	default:
		return fmt.Sprintf("Unknown Method (0x%02X)", byte(s))
	}
}

// FileOccurrence defines which instance of the file to select (bits 1-2 of P2).
type FileOccurrence byte

const (
	FirstOrOnlyOccurrence FileOccurrence = 0b0000_00_00
	LastOccurrence        FileOccurrence = 0b0000_00_01
	NextOccurrence        FileOccurrence = 0b0000_00_10
	PreviousOccurrence    FileOccurrence = 0b0000_00_11
)

// SelectionControl defines what data to return (bits 3-4 of P2).
type SelectionControl byte

const (
	ReturnFCI    SelectionControl = 0b0000_00_00
	ReturnFCP    SelectionControl = 0b0000_01_00
	ReturnFMD    SelectionControl = 0b0000_10_00
	ReturnNoData SelectionControl = 0b0000_11_00
)

// NewSelectCommand creates a SELECT command. Ne must be chosen by the
// caller; cards that hold response data answer 61XX and the Client
// retrieves it regardless of the requested length.
func NewSelectCommand(
	cla Class,
	method SelectionMethod,
	occurrence FileOccurrence,
	ctrl SelectionControl,
	data []byte,
	ne int,
) *CommandAPDU {
	p2 := byte(ctrl) | byte(occurrence)
	ins, _ := NewInstruction(INS_SELECT)
	return NewCommandAPDU(cla, ins, byte(method), p2, data, ne)
}

// SelectByAID creates a SELECT for an application by its DF name,
// requesting no response data.
func SelectByAID(cla Class, aid []byte) *CommandAPDU {
	return NewSelectCommand(
		cla,
		SelectByDFName,
		FirstOrOnlyOccurrence,
		ReturnNoData,
		aid,
		0,
	)
}

// SelectMF creates a SELECT for the Master File by its well-known
// file identifier 3F00, requesting no response data.
func SelectMF(cla Class) *CommandAPDU {
	return NewSelectCommand(
		cla,
		SelectByFileID,
		FirstOrOnlyOccurrence,
		ReturnNoData,
		[]byte{0x3F, 0x00},
		0,
	)
}
