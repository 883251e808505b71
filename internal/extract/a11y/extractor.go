// Package a11y is the fallback extractor for surfaces neither the native
// walker nor the web extractor understands: cross-technology screens,
// game-engine views, and other non-native rendering. It returns a flatter
// tree built from whatever the platform-wide accessibility tree exposes.
package a11y

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/devicepilot/agent/internal/element"
	"github.com/devicepilot/agent/internal/platform"
)

// Extractor flattens the platform accessibility tree.
type Extractor struct {
	bridge platform.Bridge
}

// New creates an accessibility-fallback extractor.
func New(bridge platform.Bridge) *Extractor {
	return &Extractor{bridge: bridge}
}

// Backend identifies the strategy.
func (e *Extractor) Backend() element.Backend { return element.BackendA11y }

// Extract converts the flat accessibility node list into a two-level tree.
// Each node gets a synthetic identifier derived from its descriptive label,
// since this backend has nothing better to offer.
func (e *Extractor) Extract(ctx context.Context) *element.Tree {
	if ctx.Err() != nil {
		return element.ErrorTree(element.BackendA11y, ctx.Err())
	}
	nodes, err := e.bridge.AccessibilityNodes()
	if err != nil {
		return element.ErrorTree(element.BackendA11y, err)
	}
	if len(nodes) == 0 {
		return element.ErrorTree(element.BackendA11y, errors.New("accessibility tree is empty"))
	}

	density := e.bridge.Density()
	if density <= 0 {
		density = 1.0
	}

	root := &element.Node{
		Type:  "AccessibilityRoot",
		Index: 1,
		Flags: element.Flags{Enabled: true},
	}

	labelCounts := make(map[string]int)
	for i, src := range nodes {
		n := &element.Node{
			Type:  src.ClassName,
			Text:  src.Text,
			Desc:  src.Description,
			Index: i + 2,
			Bounds: element.Rect{
				Left:   int(float64(src.Bounds[0]) / density),
				Top:    int(float64(src.Bounds[1]) / density),
				Right:  int(float64(src.Bounds[2]) / density),
				Bottom: int(float64(src.Bounds[3]) / density),
			}.Normalize(),
			Flags: element.Flags{
				Clickable:  src.Clickable,
				Enabled:    src.Enabled,
				Scrollable: src.Scrollable,
				Important:  src.Clickable || src.Editable,
			},
			Extras: map[string]string{
				"synthetic_id": syntheticID(src, labelCounts),
			},
		}
		if src.Editable {
			n.Extras["editable"] = "true"
		}
		root.Children = append(root.Children, n)
		// Grow the root to cover its children.
		if n.Bounds.Right > root.Bounds.Right {
			root.Bounds.Right = n.Bounds.Right
		}
		if n.Bounds.Bottom > root.Bounds.Bottom {
			root.Bounds.Bottom = n.Bounds.Bottom
		}
	}

	return &element.Tree{
		Root:    root,
		Backend: element.BackendA11y,
		Context: e.bridge.ForegroundContext(),
	}
}

// syntheticID derives a stable-looking identifier from the node's label,
// disambiguating repeats with an ordinal.
func syntheticID(n platform.A11yNode, counts map[string]int) string {
	label := n.Text
	if label == "" {
		label = n.Description
	}
	if label == "" {
		label = n.ClassName
	}
	slug := slugify(label)
	counts[slug]++
	if counts[slug] > 1 {
		return fmt.Sprintf("%s-%d", slug, counts[slug])
	}
	return slug
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "node"
	}
	if len(out) > 40 {
		out = out[:40]
	}
	return out
}
