// Package web extracts the element tree from embedded web content by running
// an injected script against the document.
package web

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/bytedance/sonic"

	"github.com/devicepilot/agent/internal/element"
	"github.com/devicepilot/agent/internal/platform"
)

// wireNode is the shape the injected script serializes.
type wireNode struct {
	Tag       string     `json:"tag"`
	Text      string     `json:"text"`
	Desc      string     `json:"desc"`
	Rect      wireRect   `json:"rect"`
	Clickable bool       `json:"clickable"`
	Editable  bool       `json:"editable"`
	Children  []wireNode `json:"children"`
}

type wireRect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Extractor queries an embedded web surface.
type Extractor struct {
	surface platform.WebSurface
}

// New creates a web extractor for the given surface.
func New(surface platform.WebSurface) *Extractor {
	return &Extractor{surface: surface}
}

// Backend identifies the strategy.
func (e *Extractor) Backend() element.Backend { return element.BackendWeb }

// Extract evaluates the injected script and converts its serialized tree.
// Viewport coordinates correct to page coordinates using the surface's
// current scroll offset. Indices are fresh per query and not persisted;
// cross-snapshot identity for this backend flows through the shared identity
// layer.
func (e *Extractor) Extract(ctx context.Context) *element.Tree {
	if e.surface == nil {
		return element.ErrorTree(element.BackendWeb, errors.New("no web surface"))
	}

	raw, err := e.surface.Evaluate(ctx, ExtractionScript)
	if err != nil {
		return element.ErrorTree(element.BackendWeb, fmt.Errorf("script evaluation: %w", err))
	}
	if raw == "" || raw == "null" {
		return element.ErrorTree(element.BackendWeb, errors.New("document has no rendered body"))
	}

	var root wireNode
	if err := sonic.UnmarshalString(raw, &root); err != nil {
		return element.ErrorTree(element.BackendWeb, fmt.Errorf("decode script result: %w", err))
	}

	scrollX, scrollY := e.surface.ScrollOffset()
	index := 0
	node := convert(&root, scrollX, scrollY, &index)
	if node == nil {
		return element.ErrorTree(element.BackendWeb, errors.New("document body not renderable"))
	}
	return &element.Tree{
		Root:    node,
		Backend: element.BackendWeb,
		Context: e.surface.URL(),
	}
}

func convert(w *wireNode, scrollX, scrollY int, index *int) *element.Node {
	// The script already skips zero-size nodes; guard anyway since the shape
	// crosses a serialization boundary.
	if w.Rect.W <= 0 || w.Rect.H <= 0 {
		return nil
	}

	*index++
	n := &element.Node{
		Type:   w.Tag,
		Desc:   w.Desc,
		Index:  *index,
		Bounds: toPage(w.Rect, scrollX, scrollY),
		Flags: element.Flags{
			Clickable: w.Clickable,
			Enabled:   true,
			Important: w.Clickable || w.Editable,
		},
	}
	if w.Editable {
		n.Extras = map[string]string{"editable": "true"}
	}

	for i := range w.Children {
		if c := convert(&w.Children[i], scrollX, scrollY, index); c != nil {
			n.Children = append(n.Children, c)
		}
	}
	// Text lives on leaves only; a node that kept children drops any text the
	// script may have attached.
	if len(n.Children) == 0 {
		n.Text = w.Text
	}
	return n
}

// toPage converts a viewport-relative rectangle to page coordinates.
func toPage(r wireRect, scrollX, scrollY int) element.Rect {
	return element.Rect{
		Left:   scrollX + int(math.Round(r.X)),
		Top:    scrollY + int(math.Round(r.Y)),
		Right:  scrollX + int(math.Round(r.X+r.W)),
		Bottom: scrollY + int(math.Round(r.Y+r.H)),
	}.Normalize()
}
