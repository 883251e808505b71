// Package platformtest provides scriptable fakes for the platform bridge,
// used across executor, extraction, and agent tests.
package platformtest

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/devicepilot/agent/internal/platform"
)

// Widget is a scriptable in-memory widget node.
type Widget struct {
	Class        string
	Txt          string
	Desc         string
	Bounds       [4]int
	Vis          bool
	AlphaV       float64
	IsClickable  bool
	IsLongClick  bool
	IsEnabled    bool
	IsChecked    bool
	IsCheckable  bool
	IsScrollable bool
	IsSelected   bool
	IsFocused    bool
	Important    bool
	Kids         []*Widget

	// HandlerPresent/HandlerKnown script the click-handler probe.
	HandlerPresent bool
	HandlerKnown   bool
	ItemClick      bool

	Web platform.WebSurface

	// PerformErr makes Perform fail; Performed records calls.
	PerformErr error
	mu         sync.Mutex
	Performed  []string
}

// NewWidget creates a visible, enabled widget with sane defaults.
func NewWidget(class string) *Widget {
	return &Widget{
		Class:        class,
		Vis:          true,
		AlphaV:       1.0,
		IsEnabled:    true,
		HandlerKnown: true,
	}
}

func (w *Widget) ClassName() string                 { return w.Class }
func (w *Widget) Text() string                      { return w.Txt }
func (w *Widget) Description() string               { return w.Desc }
func (w *Widget) BoundsPx() (int, int, int, int)    { return w.Bounds[0], w.Bounds[1], w.Bounds[2], w.Bounds[3] }
func (w *Widget) Visible() bool                     { return w.Vis }
func (w *Widget) Alpha() float64                    { return w.AlphaV }
func (w *Widget) Clickable() bool                   { return w.IsClickable }
func (w *Widget) LongClickable() bool               { return w.IsLongClick }
func (w *Widget) Enabled() bool                     { return w.IsEnabled }
func (w *Widget) Checked() bool                     { return w.IsChecked }
func (w *Widget) Checkable() bool                   { return w.IsCheckable }
func (w *Widget) Scrollable() bool                  { return w.IsScrollable }
func (w *Widget) Selected() bool                    { return w.IsSelected }
func (w *Widget) Focused() bool                     { return w.IsFocused }
func (w *Widget) ImportantForAutomation() bool      { return w.Important }
func (w *Widget) ClickHandler() (bool, bool)        { return w.HandlerPresent, w.HandlerKnown }
func (w *Widget) ItemClickOwner() bool              { return w.ItemClick }
func (w *Widget) WebContent() (platform.WebSurface, bool) {
	return w.Web, w.Web != nil
}

func (w *Widget) Children() []platform.Widget {
	out := make([]platform.Widget, len(w.Kids))
	for i, k := range w.Kids {
		out[i] = k
	}
	return out
}

func (w *Widget) Perform(action, arg string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.PerformErr != nil {
		return w.PerformErr
	}
	w.Performed = append(w.Performed, action+":"+arg)
	return nil
}

// PerformedActions returns a copy of recorded Perform calls.
func (w *Widget) PerformedActions() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.Performed...)
}

// Add appends children and returns the receiver for chaining.
func (w *Widget) Add(kids ...*Widget) *Widget {
	w.Kids = append(w.Kids, kids...)
	return w
}

// WebSurface is a canned web surface returning a fixed evaluation result.
type WebSurface struct {
	Result  string
	Err     error
	OffX    int
	OffY    int
	PageURL string
	Vis     bool
}

func (s *WebSurface) Evaluate(_ context.Context, _ string) (string, error) {
	return s.Result, s.Err
}
func (s *WebSurface) ScrollOffset() (int, int) { return s.OffX, s.OffY }
func (s *WebSurface) URL() string              { return s.PageURL }
func (s *WebSurface) Visible() bool            { return s.Vis }

// Bridge is a scriptable platform bridge recording all injected input.
type Bridge struct {
	mu sync.Mutex

	Root       *Widget
	A11y       []platform.A11yNode
	Foreground string
	Scale      float64

	signals chan platform.Signal

	Gestures []platform.Gesture
	Keys     []int
	Chars    []rune
	Backs    int
	Launches []string

	PointerErr error
	RootErr    error

	// OnInject runs after each successful pointer injection, letting tests
	// mutate the fake surface the way a real action would.
	OnInject func(platform.Gesture)
}

// NewBridge creates a fake bridge with a buffered signal channel.
func NewBridge(root *Widget) *Bridge {
	return &Bridge{
		Root:       root,
		Foreground: "com.example.app/Main",
		Scale:      1.0,
		signals:    make(chan platform.Signal, 32),
	}
}

func (b *Bridge) RootWidget() (platform.Widget, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.RootErr != nil {
		return nil, b.RootErr
	}
	if b.Root == nil {
		return nil, errors.New("platformtest: no root widget")
	}
	return b.Root, nil
}

func (b *Bridge) AccessibilityNodes() ([]platform.A11yNode, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]platform.A11yNode(nil), b.A11y...), nil
}

func (b *Bridge) ForegroundContext() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Foreground
}

// SetForeground switches the fake foreground context and emits the signal.
func (b *Bridge) SetForeground(ctx string) {
	b.mu.Lock()
	b.Foreground = ctx
	b.mu.Unlock()
	b.Emit(platform.SignalForeground)
}

// SetRoot swaps the widget tree, simulating a re-layout.
func (b *Bridge) SetRoot(root *Widget) {
	b.mu.Lock()
	b.Root = root
	b.mu.Unlock()
	b.Emit(platform.SignalLayout)
}

func (b *Bridge) Density() float64 {
	if b.Scale == 0 {
		return 1.0
	}
	return b.Scale
}

func (b *Bridge) Signals() <-chan platform.Signal { return b.signals }

// Emit pushes a mutation signal, dropping it if nobody is listening.
func (b *Bridge) Emit(s platform.Signal) {
	select {
	case b.signals <- s:
	default:
	}
}

func (b *Bridge) InjectPointer(_ context.Context, g platform.Gesture) error {
	b.mu.Lock()
	if b.PointerErr != nil {
		err := b.PointerErr
		b.mu.Unlock()
		return err
	}
	b.Gestures = append(b.Gestures, g)
	hook := b.OnInject
	b.mu.Unlock()
	if hook != nil {
		hook(g)
	}
	return nil
}

func (b *Bridge) InjectKey(_ context.Context, keycode int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Keys = append(b.Keys, keycode)
	return nil
}

func (b *Bridge) InjectChar(_ context.Context, ch rune) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Chars = append(b.Chars, ch)
	return nil
}

func (b *Bridge) NavigateBack(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Backs++
	return nil
}

func (b *Bridge) StartApp(_ context.Context, pkg, activity string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Launches = append(b.Launches, pkg+"/"+activity)
	return nil
}

func (b *Bridge) CaptureScreen(_ context.Context) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 64, 128)), nil
}

// InjectedGestures returns a copy of recorded pointer gestures.
func (b *Bridge) InjectedGestures() []platform.Gesture {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]platform.Gesture(nil), b.Gestures...)
}

// InjectedChars returns the recorded per-character text input.
func (b *Bridge) InjectedChars() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.Chars)
}
