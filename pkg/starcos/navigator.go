package starcos

import (
	"bytes"
	"fmt"

	"github.com/cardwerk/starcos/pkg/iso7816"
)

// The navigator resolves abstract paths to selected card objects. It
// keeps a one-entry location cache: either the absolute file-id path
// of the currently selected DF, or the AID of the currently selected
// application. Whenever the cache is valid, the selected object on the
// card equals the cached entry; destructive operations invalidate it.

type cacheMode int

const (
	cacheInvalid cacheMode = iota
	cachePath
	cacheAID
)

type locationCache struct {
	mode  cacheMode
	value []byte
}

func (c *Card) invalidateCache() {
	c.cache = locationCache{}
}

// SelectFile resolves p and returns a descriptor of the selected
// object. File-id and DF-name inputs translate to a single SELECT;
// path inputs are traversed pair by pair against the location cache.
func (c *Card) SelectFile(p Path) (*File, error) {
	switch p.Kind {
	case PathKindFileID:
		if len(p.Value) != 2 {
			return nil, fmt.Errorf("file id must be 2 bytes: %w", iso7816.ErrInvalidArguments)
		}
		return c.selectFID(p.Value[0], p.Value[1], true)

	case PathKindDFName:
		if len(p.Value) < 1 || len(p.Value) > 16 {
			return nil, fmt.Errorf("application id must be 1-16 bytes: %w", iso7816.ErrInvalidArguments)
		}
		if c.cache.mode == cacheAID && bytes.Equal(c.cache.value, p.Value) {
			c.log.Debug("select cache hit", "aid", fmt.Sprintf("%X", p.Value))
			return &File{
				Type: FileTypeDF,
				Name: append([]byte(nil), p.Value...),
			}, nil
		}
		return c.selectAID(p.Value)

	case PathKindPath:
		return c.selectPath(p.Value)

	default:
		return nil, fmt.Errorf("unknown path kind %d: %w", p.Kind, iso7816.ErrInvalidArguments)
	}
}

// selectPath walks a normalized file-id sequence, reusing the cached
// position where it is a prefix of the target.
func (c *Card) selectPath(raw []byte) (*File, error) {
	target, err := normalizePath(raw)
	if err != nil {
		return nil, err
	}

	matched := 0
	if c.cache.mode == cachePath {
		matched = prefixPairs(c.cache.value, target)
	}

	if matched == len(target) {
		// Already positioned on the terminal DF.
		c.log.Debug("select cache hit", "path", fmt.Sprintf("%X", target))
		return &File{
			ID:   uint16(target[matched-2])<<8 | uint16(target[matched-1]),
			Type: FileTypeDF,
			Path: append([]byte(nil), target...),
		}, nil
	}

	// Descend through the intermediate DFs, discarding their FCI.
	for i := matched; i < len(target)-2; i += 2 {
		if _, err := c.selectFID(target[i], target[i+1], false); err != nil {
			return nil, fmt.Errorf("SELECT FILE (DF %02X%02X) failed: %w", target[i], target[i+1], err)
		}
	}

	return c.selectFID(target[len(target)-2], target[len(target)-1], true)
}

// selectFID selects one file by its identifier and classifies the
// result as DF or EF.
//
// The card does not reliably return an FCI for DFs: a SELECT asking
// for one may answer 6284, which identifies a DF and requires a
// second SELECT without FCI to complete. When the SELECT succeeds
// with data, a one-byte READ BINARY disambiguates — 6986 ("no current
// EF") means a DF is selected after all.
func (c *Card) selectFID(idHi, idLo byte, wantFCI bool) (*File, error) {
	ctrl := iso7816.ReturnNoData
	ne := 0
	if wantFCI {
		ctrl = iso7816.ReturnFCI
		ne = 1
	}

	cmd := iso7816.NewSelectCommand(c.cla, iso7816.SelectByFileID,
		iso7816.FirstOrOnlyOccurrence, ctrl, []byte{idHi, idLo}, ne)

	trace, err := c.transmit(cmd)
	if err != nil {
		return nil, err
	}

	sw := trace.Status()
	isDF := false
	var fciData []byte

	switch {
	case wantFCI && sw == iso7816.SW_WARN_NO_FCI:
		// No FCI: the object is a DF. Complete the select without
		// requesting one.
		isDF = true
		retry := iso7816.NewSelectCommand(c.cla, iso7816.SelectByFileID,
			iso7816.FirstOrOnlyOccurrence, iso7816.ReturnNoData, []byte{idHi, idLo}, 0)
		trace, err = c.transmit(retry)
		if err != nil {
			return nil, err
		}
		sw = trace.Status()

	case sw.IsSuccess():
		// Possibly an EF: probe with a one-byte READ BINARY.
		probe := c.command(iso7816.INS_READ_BINARY, 0x00, 0x00, nil, 1)
		probeTrace, err := c.transmit(probe)
		if err != nil {
			return nil, err
		}
		if probeTrace.Status() == iso7816.SW_ERR_CMD_NOT_ALLOWED_NO_EF {
			isDF = true
		}
		fciData = trace.Data()
	}

	if !sw.IsSuccess() {
		return nil, c.checkSW(sw)
	}

	if isDF {
		if idHi == 0x3F && idLo == 0x00 {
			c.cache = locationCache{mode: cachePath, value: []byte{0x3F, 0x00}}
		} else {
			c.cache = locationCache{mode: cachePath, value: []byte{0x3F, 0x00, idHi, idLo}}
		}
	}

	if !wantFCI {
		return nil, nil
	}

	file := &File{ID: uint16(idHi)<<8 | uint16(idLo)}
	if c.cache.mode == cachePath {
		file.Path = append([]byte(nil), c.cache.value...)
	}

	if isDF {
		file.Type = FileTypeDF
		file.Structure = EFUnknown
		return file, nil
	}

	if err := processFCI(file, fciData); err != nil {
		return nil, err
	}
	return file, nil
}

// selectAID selects an application by name. The card keeps no FCI for
// this form, so the descriptor is synthesized.
func (c *Card) selectAID(aid []byte) (*File, error) {
	trace, err := c.transmit(iso7816.SelectByAID(c.cla, aid))
	if err != nil {
		return nil, err
	}

	if sw := trace.Status(); !sw.IsSuccess() {
		return nil, c.checkSW(sw)
	}

	c.cache = locationCache{mode: cacheAID, value: append([]byte(nil), aid...)}

	return &File{
		Type: FileTypeDF,
		Name: append([]byte(nil), aid...),
	}, nil
}
