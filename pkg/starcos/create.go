package starcos

import (
	"fmt"

	"github.com/cardwerk/starcos/pkg/iso7816"
)

// File creation speaks the vendor protocol: fixed-layout headers sent
// with proprietary-class CREATE commands. MF and DF creation leave the
// new directory inactive until CREATE END arrives with its file id.

// CreateKind discriminates the creation data variants.
type CreateKind int

const (
	CreateMFData CreateKind = iota + 1
	CreateDFData
	CreateEFData
)

const (
	mfHeaderLen = 19
	dfHeaderLen = 25
	efHeaderLen = 16
)

// CreateData carries the assembled creation headers for one object.
type CreateData struct {
	Kind CreateKind
	MF   MFCreate
	DF   DFCreate
	EF   EFCreate
}

// MFCreate is the CREATE MF payload: an 8-byte factory key
// placeholder, the MF size, the estimated ISF size, four access
// conditions (create EF, create key, create DF, register DF) and
// three secure-messaging mode bytes.
type MFCreate struct {
	Header [mfHeaderLen]byte
}

// DFCreate is the REGISTER DF / CREATE DF payload: file id, AID
// length, 16-byte AID field, estimated ISF size, two access
// conditions (create EF, create key) and two secure-messaging mode
// bytes. Size carries the DF size for the REGISTER DF parameters.
type DFCreate struct {
	Header [dfHeaderLen]byte
	Size   [2]byte
}

// EFCreate is the CREATE EF payload: file id, access conditions for
// read/write/erase plus four forced-ALWAYS slots, two reserved bytes,
// the secure-messaging mode, the short identifier and the structural
// descriptor.
type EFCreate struct {
	Header [efHeaderLen]byte
}

// defaultKey is the factory transport key placeholder of test cards.
var defaultKey = [8]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

// checkUint16 narrows v into a 16-bit wire field.
func checkUint16(v int, what string) (uint16, error) {
	if v < 0 || v > 0xFFFF {
		return 0, fmt.Errorf("%s %d exceeds 16-bit field: %w", what, v, iso7816.ErrInvalidArguments)
	}
	return uint16(v), nil
}

// checkUint8 narrows v into an 8-bit wire field.
func checkUint8(v int, what string) (byte, error) {
	if v < 0 || v > 0xFF {
		return 0, fmt.Errorf("%s %d exceeds 8-bit field: %w", what, v, iso7816.ErrInvalidArguments)
	}
	return byte(v), nil
}

// ProcessACL derives the vendor creation data for file, translating
// its abstract access-control list into STARCOS access-condition
// octets. Operations without an entry default to ALWAYS, the usual
// choice while personalizing development cards.
func ProcessACL(file *File) (*CreateData, error) {
	if file == nil {
		return nil, fmt.Errorf("nil file: %w", iso7816.ErrInvalidArguments)
	}

	switch {
	case file.IsMF():
		return processMF(file)
	case file.Type == FileTypeDF:
		return processDF(file)
	case file.Type == FileTypeWorkingEF:
		return processEF(file)
	default:
		return nil, fmt.Errorf("file type %d not creatable: %w", file.Type, iso7816.ErrInvalidArguments)
	}
}

func processMF(file *File) (*CreateData, error) {
	size, err := checkUint16(file.Size, "MF size")
	if err != nil {
		return nil, err
	}

	data := &CreateData{Kind: CreateMFData}
	h := data.MF.Header[:0]

	h = append(h, defaultKey[:]...)
	h = append(h, byte(size>>8), byte(size))
	// ISF size estimate: a quarter of the MF size.
	h = append(h, byte(size>>10), byte(size>>2))
	h = append(h, aclByte(file, OpCreate, acAlways)) // AC create EF
	h = append(h, aclByte(file, OpCreate, acAlways)) // AC create key
	acCreateDF := aclByte(file, OpCreate, acAlways)
	h = append(h, acCreateDF)
	h = append(h, acCreateDF) // register DF shares the create DF condition

	sm := smMode(file, OpCreate)
	h = append(h, sm, sm, sm)

	copy(data.MF.Header[:], h)
	return data, nil
}

func processDF(file *File) (*CreateData, error) {
	size, err := checkUint16(file.Size, "DF size")
	if err != nil {
		return nil, err
	}
	if len(file.Name) > 16 {
		return nil, fmt.Errorf("AID length %d exceeds 16 bytes: %w", len(file.Name), iso7816.ErrInvalidArguments)
	}

	data := &CreateData{Kind: CreateDFData}
	h := data.DF.Header[:0]

	h = append(h, byte(file.ID>>8), byte(file.ID))
	if len(file.Name) > 0 {
		h = append(h, byte(len(file.Name)))
		var aid [16]byte
		copy(aid[:], file.Name)
		h = append(h, aid[:]...)
	} else {
		// No AID given: reuse the file id as a 2-byte name.
		h = append(h, 2)
		var aid [16]byte
		aid[0] = byte(file.ID >> 8)
		aid[1] = byte(file.ID)
		h = append(h, aid[:]...)
	}
	// ISF size estimate, as for the MF.
	h = append(h, byte(size>>10), byte(size>>2))
	h = append(h, aclByte(file, OpCreate, acAlways)) // AC create EF
	h = append(h, aclByte(file, OpCreate, acAlways)) // AC create key

	sm := smMode(file, OpCreate)
	h = append(h, sm, sm)

	copy(data.DF.Header[:], h)
	data.DF.Size[0] = byte(size >> 8)
	data.DF.Size[1] = byte(size)
	return data, nil
}

func processEF(file *File) (*CreateData, error) {
	data := &CreateData{Kind: CreateEFData}
	h := data.EF.Header[:0]

	h = append(h, byte(file.ID>>8), byte(file.ID))
	h = append(h, aclByte(file, OpRead, acAlways))
	h = append(h, aclByte(file, OpWrite, acAlways))
	h = append(h, aclByte(file, OpErase, acAlways))
	h = append(h, acAlways, acAlways, acAlways, acAlways) // LOCK, UNLOCK, INCREASE, DECREASE
	h = append(h, 0x00, 0x00)                             // rfu
	h = append(h, smMode(file, OpRead, OpWrite, OpErase))
	h = append(h, 0x00) // SID 0: use the low 5 bits of the FID

	switch file.Structure {
	case EFTransparent:
		size, err := checkUint16(file.Size, "EF size")
		if err != nil {
			return nil, err
		}
		h = append(h, 0x81, byte(size>>8), byte(size))
	case EFLinearFixed, EFCyclic:
		count, err := checkUint8(file.RecordCount, "record count")
		if err != nil {
			return nil, err
		}
		length, err := checkUint8(file.RecordLength, "record length")
		if err != nil {
			return nil, err
		}
		tag := byte(0x82)
		if file.Structure == EFCyclic {
			tag = 0x84
		}
		h = append(h, tag, count, length)
	default:
		return nil, fmt.Errorf("EF structure %d not creatable: %w", file.Structure, iso7816.ErrInvalidArguments)
	}

	copy(data.EF.Header[:], h)
	return data, nil
}

// CreateFile derives the creation data from file and runs the
// matching vendor sequence. CREATE END must follow for MF and DF
// creation before children are placed inside.
func (c *Card) CreateFile(file *File) error {
	data, err := ProcessACL(file)
	if err != nil {
		return err
	}

	switch data.Kind {
	case CreateMFData:
		return c.CreateMF(data)
	case CreateDFData:
		return c.CreateDF(data)
	default:
		return c.CreateEF(data)
	}
}

// CreateMF creates the master file. The access conditions only take
// effect after CreateEnd.
func (c *Card) CreateMF(data *CreateData) error {
	if data == nil || data.Kind != CreateMFData {
		return fmt.Errorf("MF creation data required: %w", iso7816.ErrInvalidArguments)
	}
	c.log.Debug("creating MF")

	cmd := c.vendorCommand(iso7816.INS_CREATE_FILE, 0x00, 0x00, data.MF.Header[:], 0)
	trace, err := c.transmit(cmd)
	if err != nil {
		return err
	}
	return c.checkSW(trace.Status())
}

// CreateDF registers and creates a dedicated file. REGISTER DF
// announces the DF size and name; CREATE DF sends the full header.
// The access conditions only take effect after CreateEnd.
func (c *Card) CreateDF(data *CreateData) error {
	if data == nil || data.Kind != CreateDFData {
		return fmt.Errorf("DF creation data required: %w", iso7816.ErrInvalidArguments)
	}

	c.log.Debug("creating DF", "step", "REGISTER DF")
	registerLen := 3 + int(data.DF.Header[2])
	cmd := c.vendorCommand(insRegisterDF, data.DF.Size[0], data.DF.Size[1],
		data.DF.Header[:registerLen], 0)
	trace, err := c.transmit(cmd)
	if err != nil {
		return err
	}
	if err := c.checkSW(trace.Status()); err != nil {
		return fmt.Errorf("REGISTER DF failed: %w", err)
	}

	c.log.Debug("creating DF", "step", "CREATE DF")
	cmd = c.vendorCommand(iso7816.INS_CREATE_FILE, 0x01, 0x00, data.DF.Header[:], 0)
	trace, err = c.transmit(cmd)
	if err != nil {
		return err
	}
	return c.checkSW(trace.Status())
}

// CreateEF creates an elementary file.
func (c *Card) CreateEF(data *CreateData) error {
	if data == nil || data.Kind != CreateEFData {
		return fmt.Errorf("EF creation data required: %w", iso7816.ErrInvalidArguments)
	}
	c.log.Debug("creating EF")

	cmd := c.vendorCommand(iso7816.INS_CREATE_FILE, 0x03, 0x00, data.EF.Header[:], 0)
	trace, err := c.transmit(cmd)
	if err != nil {
		return err
	}
	return c.checkSW(trace.Status())
}

// CreateEnd finishes the creation of a DF (or the MF) and activates
// its access conditions. Skipping it leaves the directory inactive.
func (c *Card) CreateEnd(file *File) error {
	if file == nil || file.Type != FileTypeDF {
		return fmt.Errorf("CREATE END applies to DFs only: %w", iso7816.ErrInvalidArguments)
	}

	fid := []byte{byte(file.ID >> 8), byte(file.ID)}
	cmd := c.vendorCommand(iso7816.INS_CREATE_FILE, 0x02, 0x00, fid, 0)
	trace, err := c.transmit(cmd)
	if err != nil {
		return err
	}
	return c.checkSW(trace.Status())
}
