package starcos

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cardwerk/starcos/pkg/iso7816"
)

// PathKind selects how a Path addresses a card object.
type PathKind int

const (
	// PathKindFileID addresses a file in the current DF by its 2-byte
	// identifier.
	PathKindFileID PathKind = iota + 1
	// PathKindDFName addresses an application by its 1-16 byte AID.
	PathKindDFName
	// PathKindPath addresses a file by a sequence of file identifiers.
	PathKindPath
)

// Path is the abstract input of SelectFile.
type Path struct {
	Kind  PathKind
	Value []byte
}

// FileIDPath builds a file-id path.
func FileIDPath(id uint16) Path {
	v := make([]byte, 2)
	binary.BigEndian.PutUint16(v, id)
	return Path{Kind: PathKindFileID, Value: v}
}

// DFNamePath builds an application-id path.
func DFNamePath(aid []byte) Path {
	return Path{Kind: PathKindDFName, Value: append([]byte(nil), aid...)}
}

// AbsolutePath builds a path from a sequence of file identifiers.
func AbsolutePath(ids ...uint16) Path {
	v := make([]byte, 0, 2*len(ids))
	for _, id := range ids {
		v = binary.BigEndian.AppendUint16(v, id)
	}
	return Path{Kind: PathKindPath, Value: v}
}

// String renders the path the way card documentation writes it.
func (p Path) String() string {
	if p.Kind == PathKindDFName {
		return fmt.Sprintf("AID:%X", p.Value)
	}
	var parts []string
	for i := 0; i+1 < len(p.Value); i += 2 {
		parts = append(parts, fmt.Sprintf("%02X%02X", p.Value[i], p.Value[i+1]))
	}
	return strings.Join(parts, "/")
}

// maxPathLen bounds a normalized path: the card supports one level of
// subdirectories, so MF / DF / EF is the deepest possible chain.
const maxPathLen = 6

// normalizePath validates a raw file-id sequence and anchors it at
// the MF. The result always starts with 3F00; normalization of an
// already normalized path is the identity.
func normalizePath(v []byte) ([]byte, error) {
	if len(v) == 0 || len(v)%2 != 0 || len(v) > maxPathLen {
		return nil, fmt.Errorf("path length %d: %w", len(v), iso7816.ErrInvalidArguments)
	}
	if v[0] == 0x3F && v[1] == 0x00 {
		return append([]byte(nil), v...), nil
	}
	if len(v) == maxPathLen {
		return nil, fmt.Errorf("6-byte path must start at the MF: %w", iso7816.ErrInvalidArguments)
	}
	return append([]byte{0x3F, 0x00}, v...), nil
}

// prefixPairs returns the number of bytes in the longest common
// prefix of cache and target, counted in whole file-id pairs. A cache
// deeper than the target cannot be used as a starting point.
func prefixPairs(cache, target []byte) int {
	if len(cache) > len(target) {
		return 0
	}
	n := 0
	for n+1 < len(cache) {
		if cache[n] != target[n] || cache[n+1] != target[n+1] {
			break
		}
		n += 2
	}
	return n
}
