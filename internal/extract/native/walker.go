// Package native extracts the element tree from the host toolkit's live
// widget hierarchy.
package native

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/devicepilot/agent/internal/element"
	"github.com/devicepilot/agent/internal/platform"
)

// Extractor walks the native widget hierarchy.
type Extractor struct {
	bridge  platform.Bridge
	caps    *CapabilityTable
	actions *element.ActionTable
}

// New creates a native extractor. actions receives a live back-reference for
// every interactive widget; nil disables back-references.
func New(bridge platform.Bridge, caps *CapabilityTable, actions *element.ActionTable) *Extractor {
	if caps == nil {
		caps = DefaultCapabilities()
	}
	return &Extractor{bridge: bridge, caps: caps, actions: actions}
}

// Backend identifies the strategy.
func (e *Extractor) Backend() element.Backend { return element.BackendNative }

// Extract performs one recursive walk over the current hierarchy. Screen
// pixel bounds convert to device-independent units; each node gets a per-pass
// DFS index.
func (e *Extractor) Extract(ctx context.Context) (tree *element.Tree) {
	defer func() {
		if r := recover(); r != nil {
			tree = element.ErrorTree(element.BackendNative, fmt.Errorf("native walk panicked: %v", r))
		}
	}()

	root, err := e.bridge.RootWidget()
	if err != nil {
		return element.ErrorTree(element.BackendNative, err)
	}
	if root == nil {
		return element.ErrorTree(element.BackendNative, errors.New("no root widget"))
	}

	density := e.bridge.Density()
	if density <= 0 {
		density = 1.0
	}

	index := 0
	node := e.convert(ctx, root, density, &index)
	if node == nil {
		return element.ErrorTree(element.BackendNative, errors.New("root widget not renderable"))
	}
	return &element.Tree{
		Root:    node,
		Backend: element.BackendNative,
		Context: e.bridge.ForegroundContext(),
	}
}

func (e *Extractor) convert(ctx context.Context, w platform.Widget, density float64, index *int) *element.Node {
	if ctx.Err() != nil {
		return nil
	}
	if !w.Visible() || w.Alpha() <= 0 {
		return nil
	}

	*index++
	n := &element.Node{
		Type:   simpleName(w.ClassName()),
		Text:   w.Text(),
		Desc:   w.Description(),
		Bounds: toDp(w, density),
		Index:  *index,
		Flags: element.Flags{
			Clickable:     e.clickable(w),
			Enabled:       w.Enabled(),
			Checked:       w.Checked(),
			Checkable:     w.Checkable(),
			Scrollable:    w.Scrollable(),
			LongClickable: w.LongClickable(),
			Selected:      w.Selected(),
			Important:     w.ImportantForAutomation(),
		},
	}
	if w.Focused() {
		n.Extras = map[string]string{"focused": "true"}
	}

	if e.actions != nil && (n.Interactive() || n.Editable()) {
		n.SetRef(e.actions.Register(&widgetInvoker{w: w}))
	}

	for _, child := range w.Children() {
		if c := e.convert(ctx, child, density, index); c != nil {
			n.Children = append(n.Children, c)
		}
	}
	return n
}

// clickable determines true interactivity beyond the raw flag. Item
// containers are interactive only when they own an item-click handler; for
// everything else the handler probe is authoritative, with the per-type
// heuristic table as the fallback when probing is unavailable.
func (e *Extractor) clickable(w platform.Widget) bool {
	if e.caps.IsItemContainer(w.ClassName()) {
		return w.ItemClickOwner()
	}
	if !w.Clickable() {
		return false
	}
	if present, known := w.ClickHandler(); known {
		return present
	}
	switch e.caps.Heuristic(w.ClassName()) {
	case alwaysInteractive:
		return true
	case neverSelfInteractive:
		return false
	default:
		return true // raw flag stands
	}
}

// toDp converts the widget's pixel bounds to device-independent units.
func toDp(w platform.Widget, density float64) element.Rect {
	l, t, r, b := w.BoundsPx()
	return element.Rect{
		Left:   int(math.Round(float64(l) / density)),
		Top:    int(math.Round(float64(t) / density)),
		Right:  int(math.Round(float64(r) / density)),
		Bottom: int(math.Round(float64(b) / density)),
	}.Normalize()
}

// widgetInvoker adapts a live widget to the snapshot action table.
type widgetInvoker struct {
	w platform.Widget
}

func (i *widgetInvoker) Invoke(action element.Action, arg string) error {
	return i.w.Perform(string(action), arg)
}

func (i *widgetInvoker) Can(action element.Action) bool {
	switch action {
	case element.ActionClick:
		return i.w.Clickable()
	case element.ActionLongClick:
		return i.w.LongClickable()
	case element.ActionScroll:
		return i.w.Scrollable()
	case element.ActionFocus, element.ActionSetText:
		return i.w.Enabled()
	default:
		return false
	}
}
