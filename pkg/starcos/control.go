package starcos

import (
	"fmt"

	"github.com/cardwerk/starcos/pkg/iso7816"
)

// Control is the generic card-control multiplexer: administrative
// operations arrive as tagged requests, mirroring how the host
// dispatches driver-specific controls. Requests carrying results
// (generate-key, get-serial) have their output fields filled in
// place.

// Request is a control operation dispatched through Control.
type Request interface {
	isRequest()
}

// CreateFileRequest runs one vendor creation sequence from prepared
// creation data.
type CreateFileRequest struct {
	Data *CreateData
}

// CreateEndRequest activates the access conditions of a created DF.
type CreateEndRequest struct {
	File *File
}

// WriteKeyRequest installs or updates a key in the ISF.
type WriteKeyRequest struct {
	Data *WriteKeyData
}

// GenerateKeyRequest generates a key pair on the card; Modulus
// receives the public modulus.
type GenerateKeyRequest struct {
	KeyID   byte
	KeyBits int

	Modulus []byte
}

// EraseCardRequest restores the delivery state by deleting the MF.
type EraseCardRequest struct{}

// SerialNumberRequest reads the card serial; Serial receives it.
type SerialNumberRequest struct {
	Serial []byte
}

func (*CreateFileRequest) isRequest()   {}
func (*CreateEndRequest) isRequest()    {}
func (*WriteKeyRequest) isRequest()     {}
func (*GenerateKeyRequest) isRequest()  {}
func (*EraseCardRequest) isRequest()    {}
func (*SerialNumberRequest) isRequest() {}

// Control dispatches a tagged control request.
func (c *Card) Control(req Request) error {
	switch r := req.(type) {
	case *CreateFileRequest:
		if r.Data == nil {
			return fmt.Errorf("nil creation data: %w", iso7816.ErrInvalidArguments)
		}
		switch r.Data.Kind {
		case CreateMFData:
			return c.CreateMF(r.Data)
		case CreateDFData:
			return c.CreateDF(r.Data)
		case CreateEFData:
			return c.CreateEF(r.Data)
		default:
			return fmt.Errorf("creation kind %d: %w", r.Data.Kind, iso7816.ErrInternal)
		}

	case *CreateEndRequest:
		return c.CreateEnd(r.File)

	case *WriteKeyRequest:
		return c.WriteKey(r.Data)

	case *GenerateKeyRequest:
		modulus, err := c.GenerateKey(r.KeyID, r.KeyBits)
		if err != nil {
			return err
		}
		r.Modulus = modulus
		return nil

	case *EraseCardRequest:
		return c.EraseCard()

	case *SerialNumberRequest:
		serial, err := c.SerialNumber()
		if err != nil {
			return err
		}
		r.Serial = serial
		return nil

	default:
		return fmt.Errorf("control request %T: %w", req, iso7816.ErrNotSupported)
	}
}

// EraseCard restores the delivery state of a test card by deleting
// the MF. A card without an MF answers 6985, which counts as success.
// The location cache is stale either way and is dropped.
func (c *Card) EraseCard() error {
	cmd := c.vendorCommand(iso7816.INS_DELETE_FILE, 0x00, 0x00, []byte{0x3F, 0x00}, 0)
	trace, err := c.transmit(cmd)
	c.invalidateCache()
	if err != nil {
		return err
	}
	if trace.Status() == iso7816.SW_ERR_COND_OF_USE_NOT_SAT {
		return nil
	}
	return c.checkSW(trace.Status())
}

// SerialNumber returns the card serial read via GET CARD DATA. The
// value is cached on the handle after the first successful read.
func (c *Card) SerialNumber() ([]byte, error) {
	if c.serial != nil {
		return append([]byte(nil), c.serial...), nil
	}

	cmd := c.vendorCommand(insGetCardData, 0x00, 0x00, nil, 256)
	trace, err := c.transmit(cmd)
	if err != nil {
		return nil, err
	}
	if trace.Status() != iso7816.SW_NO_ERROR {
		return nil, fmt.Errorf("GET CARD DATA answered %04X: %w",
			uint16(trace.Status()), iso7816.ErrInternal)
	}

	c.serial = append([]byte(nil), trace.Data()...)
	return append([]byte(nil), c.serial...), nil
}
