package apdu

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxPathDepth is the deepest BIP 32 derivation the device firmware
// accepts.
const MaxPathDepth = 10

// Hardened is the index offset marking hardened derivation.
const Hardened uint32 = 0x80000000

// Path is an ordered BIP 32 derivation path of unsigned 32-bit indices.
type Path []uint32

// Validate checks the path against the firmware's depth bound.
func (p Path) Validate() error {
	if len(p) > MaxPathDepth {
		return fmt.Errorf("derivation path depth %d exceeds %d", len(p), MaxPathDepth)
	}
	return nil
}

// Encode flattens the path for the device: a depth byte followed by each
// index as u32be.
func (p Path) Encode() []byte {
	out := make([]byte, 1, 1+4*len(p))
	out[0] = byte(len(p))
	for _, idx := range p {
		out = append(out, byte(idx>>24), byte(idx>>16), byte(idx>>8), byte(idx))
	}
	return out
}

// String renders the path in the conventional m/44'/5353'/0'/0/0 form.
func (p Path) String() string {
	var sb strings.Builder
	sb.WriteByte('m')
	for _, idx := range p {
		sb.WriteByte('/')
		if idx >= Hardened {
			sb.WriteString(strconv.FormatUint(uint64(idx-Hardened), 10))
			sb.WriteByte('\'')
		} else {
			sb.WriteString(strconv.FormatUint(uint64(idx), 10))
		}
	}
	return sb.String()
}

// ParsePath parses a path of the form m/44'/5353'/0'/0/0. Both ' and h
// mark hardened indices. The depth bound is enforced here as well so an
// oversized path is rejected before it can reach a command builder.
func ParsePath(s string) (Path, error) {
	trimmed := strings.TrimPrefix(s, "m")
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return Path{}, nil
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) > MaxPathDepth {
		return nil, fmt.Errorf("derivation path depth %d exceeds %d", len(parts), MaxPathDepth)
	}

	path := make(Path, 0, len(parts))
	for _, part := range parts {
		hardened := false
		if strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h") || strings.HasSuffix(part, "H") {
			hardened = true
			part = part[:len(part)-1]
		}
		idx, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid path component %q: %w", part, err)
		}
		if idx >= uint64(Hardened) {
			return nil, fmt.Errorf("path component %d out of range", idx)
		}
		if hardened {
			idx += uint64(Hardened)
		}
		path = append(path, uint32(idx))
	}
	return path, nil
}
