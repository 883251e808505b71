package identity

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/devicepilot/agent/internal/element"
)

// Fingerprint hashes the stable attributes of a node: type, text, description,
// bounds, and capability flags. Backend-assigned transient identifiers and the
// Extras map are deliberately excluded so the hash survives re-layouts.
func Fingerprint(n *element.Node) uint64 {
	d := xxhash.New()
	writeField(d, n.Type)
	writeField(d, n.Text)
	writeField(d, n.Desc)

	var buf [18]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(n.Bounds.Left))
	binary.LittleEndian.PutUint32(buf[4:], uint32(n.Bounds.Top))
	binary.LittleEndian.PutUint32(buf[8:], uint32(n.Bounds.Right))
	binary.LittleEndian.PutUint32(buf[12:], uint32(n.Bounds.Bottom))
	buf[16] = flagByte(n.Flags)
	buf[17] = 0
	d.Write(buf[:])

	return d.Sum64()
}

// writeField writes a length-prefixed string so adjacent fields cannot alias
// ("ab"+"c" vs "a"+"bc").
func writeField(d *xxhash.Digest, s string) {
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(s)))
	d.Write(l[:])
	d.WriteString(s)
}

func flagByte(f element.Flags) byte {
	var b byte
	if f.Clickable {
		b |= 1 << 0
	}
	if f.Enabled {
		b |= 1 << 1
	}
	if f.Checked {
		b |= 1 << 2
	}
	if f.Checkable {
		b |= 1 << 3
	}
	if f.Scrollable {
		b |= 1 << 4
	}
	if f.LongClickable {
		b |= 1 << 5
	}
	if f.Selected {
		b |= 1 << 6
	}
	if f.Important {
		b |= 1 << 7
	}
	return b
}

// disambiguate folds a per-pass occurrence ordinal into a base fingerprint so
// that visually identical siblings still receive distinct identities.
func disambiguate(base uint64, occurrence int) uint64 {
	if occurrence == 0 {
		return base
	}
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:], base)
	binary.LittleEndian.PutUint64(buf[8:], uint64(occurrence))
	return xxhash.Sum64(buf[:])
}
