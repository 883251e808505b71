// Package pagechange decides when the foreground surface has meaningfully
// changed: it schedules snapshot captures off mutation signals and verifies
// that executed actions actually moved the screen.
package pagechange

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/devicepilot/agent/internal/element"
	"github.com/devicepilot/agent/internal/platform"
)

// TreeSignature computes the structural signature of an extracted tree:
// a recursive hash over type, enabled state, and leaf text. Bounds and other
// volatile per-instance attributes are stripped so scroll jitter and blinking
// cursors do not register as page changes.
func TreeSignature(t *element.Tree) uint64 {
	if t == nil || t.Root == nil {
		return 0
	}
	d := xxhash.New()
	hashNode(d, t.Root)
	return d.Sum64()
}

func hashNode(d *xxhash.Digest, n *element.Node) {
	writeString(d, n.Type)
	b := byte(0)
	if n.Flags.Enabled {
		b = 1
	}
	d.Write([]byte{b})
	if len(n.Children) == 0 {
		writeString(d, n.Text)
	}
	var cnt [4]byte
	binary.LittleEndian.PutUint32(cnt[:], uint32(len(n.Children)))
	d.Write(cnt[:])
	for _, c := range n.Children {
		hashNode(d, c)
	}
}

// WidgetSignature computes the same structural signature directly from the
// live widget hierarchy, cheap enough to poll during effect verification
// without a full extraction pass. Must run on the UI loop.
func WidgetSignature(root platform.Widget) uint64 {
	if root == nil {
		return 0
	}
	d := xxhash.New()
	hashWidget(d, root)
	return d.Sum64()
}

func hashWidget(d *xxhash.Digest, w platform.Widget) {
	if !w.Visible() || w.Alpha() <= 0 {
		return
	}
	writeString(d, w.ClassName())
	b := byte(0)
	if w.Enabled() {
		b = 1
	}
	d.Write([]byte{b})
	children := w.Children()
	if len(children) == 0 {
		writeString(d, w.Text())
	}
	var cnt [4]byte
	binary.LittleEndian.PutUint32(cnt[:], uint32(len(children)))
	d.Write(cnt[:])
	for _, c := range children {
		hashWidget(d, c)
	}
}

func writeString(d *xxhash.Digest, s string) {
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(s)))
	d.Write(l[:])
	d.WriteString(s)
}
