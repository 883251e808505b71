package platform

import (
	"context"
	"image"
	"time"
)

// Widget is a live node in the host toolkit's widget hierarchy. Implemented by
// the platform bridge; the core never sees concrete toolkit types.
type Widget interface {
	ClassName() string
	Text() string
	Description() string
	// BoundsPx returns the on-screen rectangle in raw pixels.
	BoundsPx() (left, top, right, bottom int)
	Visible() bool
	Alpha() float64
	Clickable() bool
	LongClickable() bool
	Enabled() bool
	Checked() bool
	Checkable() bool
	Scrollable() bool
	Selected() bool
	Focused() bool
	ImportantForAutomation() bool
	Children() []Widget

	// ClickHandler reports whether the widget actually owns an input-handling
	// registration. known is false when the toolkit does not allow probing,
	// in which case callers fall back to per-type heuristics.
	ClickHandler() (present, known bool)
	// ItemClickOwner reports whether a list/grid container owns an item-click
	// handler of its own, as opposed to merely containing clickable items.
	ItemClickOwner() bool

	// Perform drives the widget directly through its live backend object.
	Perform(action string, arg string) error

	// WebContent returns the embedded web surface hosted by this widget, if
	// it hosts one.
	WebContent() (WebSurface, bool)
}

// WebSurface is an embedded web-content view capable of evaluating script
// against its document.
type WebSurface interface {
	// Evaluate runs script in the page and returns its JSON-serialized result.
	Evaluate(ctx context.Context, script string) (string, error)
	// ScrollOffset returns the current viewport scroll position in page units.
	ScrollOffset() (x, y int)
	URL() string
	Visible() bool
}

// A11yNode is one entry from the platform-wide accessibility tree, used by the
// fallback extractor for surfaces neither walker understands.
type A11yNode struct {
	ClassName   string
	Text        string
	Description string
	Bounds      [4]int // left, top, right, bottom in px
	Clickable   bool
	Enabled     bool
	Editable    bool
	Scrollable  bool
}

// Signal is a mutation signal observed on the foreground surface.
type Signal int

const (
	// SignalLayout fires on a native layout-tree mutation.
	SignalLayout Signal = iota
	// SignalForeground fires when the foreground context switches.
	SignalForeground
	// SignalWebPaint fires on paint/scroll inside an embedded web surface,
	// which does not otherwise surface through the native layout tree.
	SignalWebPaint
)

func (s Signal) String() string {
	switch s {
	case SignalLayout:
		return "layout"
	case SignalForeground:
		return "foreground"
	case SignalWebPaint:
		return "web_paint"
	default:
		return "unknown"
	}
}

// Gesture is a synthesized pointer gesture.
type Gesture struct {
	Kind     GestureKind
	X, Y     int
	EndX     int
	EndY     int
	Duration time.Duration
}

// GestureKind enumerates pointer gesture shapes.
type GestureKind int

const (
	GestureTap GestureKind = iota
	GestureLongPress
	GestureSwipe
)

// Bridge is the process-lifecycle collaborator that owns the live toolkit.
// Everything here is out of scope for the core and supplied by the host
// application.
type Bridge interface {
	// RootWidget returns the root of the current widget hierarchy.
	RootWidget() (Widget, error)
	// AccessibilityNodes returns the flattened platform accessibility tree.
	AccessibilityNodes() ([]A11yNode, error)
	// ForegroundContext identifies the currently visible screen.
	ForegroundContext() string
	// Density is the pixel-per-device-independent-unit scale factor.
	Density() float64

	// Signals delivers mutation signals. The channel is owned by the bridge
	// and closed on shutdown.
	Signals() <-chan Signal

	// InjectPointer synthesizes a pointer gesture at screen coordinates.
	InjectPointer(ctx context.Context, g Gesture) error
	// InjectKey synthesizes a key press.
	InjectKey(ctx context.Context, keycode int) error
	// InjectChar synthesizes one character of text input.
	InjectChar(ctx context.Context, ch rune) error
	// NavigateBack issues the global back navigation.
	NavigateBack(ctx context.Context) error
	// StartApp launches a package, optionally at a specific activity.
	StartApp(ctx context.Context, pkg, activity string) error
	// CaptureScreen grabs the current frame.
	CaptureScreen(ctx context.Context) (image.Image, error)
}

// Prompter relays an opaque question to the human operator and returns their
// free-text answer.
type Prompter interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Narrator announces agent status to the user (text-to-speech or banner,
// host's choice).
type Narrator interface {
	Narrate(status string)
}
