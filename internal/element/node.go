package element

import (
	"fmt"
)

// Rect is a rectangle in device-independent units.
// Invariant: Left <= Right and Top <= Bottom.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width returns the rectangle width.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns the rectangle height.
func (r Rect) Height() int { return r.Bottom - r.Top }

// Empty reports whether the rectangle has zero area.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// CenterX returns the horizontal center.
func (r Rect) CenterX() int { return (r.Left + r.Right) / 2 }

// CenterY returns the vertical center.
func (r Rect) CenterY() int { return (r.Top + r.Bottom) / 2 }

// Valid reports whether the rectangle is well-ordered.
func (r Rect) Valid() bool { return r.Left <= r.Right && r.Top <= r.Bottom }

// Normalize returns a well-ordered copy of the rectangle.
func (r Rect) Normalize() Rect {
	if r.Left > r.Right {
		r.Left, r.Right = r.Right, r.Left
	}
	if r.Top > r.Bottom {
		r.Top, r.Bottom = r.Bottom, r.Top
	}
	return r
}

// Offset returns the rectangle translated by (dx, dy).
func (r Rect) Offset(dx, dy int) Rect {
	return Rect{Left: r.Left + dx, Top: r.Top + dy, Right: r.Right + dx, Bottom: r.Bottom + dy}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d][%d,%d]", r.Left, r.Top, r.Right, r.Bottom)
}

// Flags holds the boolean capability flags of an element.
type Flags struct {
	Clickable     bool `json:"clickable"`
	Enabled       bool `json:"enabled"`
	Checked       bool `json:"checked"`
	Checkable     bool `json:"checkable"`
	Scrollable    bool `json:"scrollable"`
	LongClickable bool `json:"long_clickable"`
	Selected      bool `json:"selected"`
	Important     bool `json:"important"`
}

// Node is one entry in the unified element tree. All three backends populate
// the same shape; backend-specific detail goes into Extras.
type Node struct {
	// Type is the backend-specific class or tag name.
	Type string `json:"type"`
	// Text is the visible text content, if any.
	Text string `json:"text,omitempty"`
	// Desc is the accessible description, if any.
	Desc string `json:"desc,omitempty"`
	// Bounds is the on-screen rectangle in device-independent units.
	Bounds Rect `json:"bounds"`
	// Flags are the capability flags.
	Flags Flags `json:"flags"`
	// Index is assigned by the identity layer; zero until assignment.
	Index int `json:"index"`
	// Children in document/traversal order. Order is authoritative.
	Children []*Node `json:"children,omitempty"`
	// Extras carries opaque backend-specific attributes.
	Extras map[string]string `json:"extras,omitempty"`

	// ref is an opaque key into the snapshot's action table. It is only
	// meaningful for the lifetime of the snapshot that produced the node and
	// is never serialized.
	ref RefID
}

// RefID is an opaque key into a snapshot-scoped action table. Zero means the
// node holds no live back-reference.
type RefID uint64

// Ref returns the node's back-reference key, or zero if it has none.
func (n *Node) Ref() RefID { return n.ref }

// SetRef attaches a back-reference key to the node.
func (n *Node) SetRef(id RefID) { n.ref = id }

// Interactive reports whether the node advertises any user-actionable
// capability.
func (n *Node) Interactive() bool {
	return n.Flags.Clickable || n.Flags.LongClickable || n.Flags.Scrollable || n.Flags.Checkable
}

// Label returns the best human-readable identifier for the node: text first,
// then description, then type.
func (n *Node) Label() string {
	if n.Text != "" {
		return n.Text
	}
	if n.Desc != "" {
		return n.Desc
	}
	return n.Type
}

// Editable reports whether the node looks like a text-input target. None of
// the backends expose an explicit editability bit, so this is a type check.
func (n *Node) Editable() bool {
	switch n.Type {
	case "EditText", "AutoCompleteTextView", "MultiAutoCompleteTextView",
		"SearchView", "input", "textarea":
		return true
	}
	if v, ok := n.Extras["editable"]; ok && v == "true" {
		return true
	}
	return false
}
