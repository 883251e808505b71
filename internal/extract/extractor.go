// Package extract turns whatever is currently on screen into the unified
// element tree. Three backends cover the three rendering technologies a
// foreground surface can use; the classifier picks exactly one per snapshot.
//
// Extraction is idempotent, side-effect-free, and never returns an error:
// failures map to a single explicit error leaf so a broken surface still
// produces a reportable tree.
package extract

import (
	"context"

	"github.com/devicepilot/agent/internal/element"
)

// Extractor converts one backend's native structure into an element tree.
type Extractor interface {
	// Extract performs one full pass. It never returns nil and never panics;
	// failures come back as element.ErrorTree.
	Extract(ctx context.Context) *element.Tree
	// Backend identifies the strategy.
	Backend() element.Backend
}
