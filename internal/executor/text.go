package executor

import (
	"context"
	"time"

	"github.com/devicepilot/agent/internal/element"
	"github.com/devicepilot/agent/internal/platform"
)

// inputText implements the text-entry branching: a focused editable target
// takes its content directly; otherwise the first editable descendant is
// focused, allowed to settle, and fed per-character input events. Explicit
// coordinates force a focusing click first.
func (e *Executor) inputText(ctx context.Context, cmd Command) *Failure {
	text, _ := cmd.Str("text")

	// Coordinate path: click to establish focus, settle, then type.
	if cmd.Has("x") {
		x, _ := cmd.Int("x")
		y, _ := cmd.Int("y")
		if err := e.inject(ctx, platform.Gesture{Kind: platform.GestureTap, X: x, Y: y}); err != nil {
			return ExecutionFailed("focus click", err)
		}
		if f := e.settle(ctx); f != nil {
			return f
		}
		return e.typeChars(ctx, text)
	}

	target, f := e.textTarget(ctx, cmd)
	if f != nil {
		return f
	}

	// Already focused and editable: set content directly through the live
	// back-reference.
	if target != nil && target.Extras["focused"] == "true" && target.Editable() {
		if ref := target.Ref(); ref != 0 {
			if err := e.onLoop(ctx, func() error {
				return e.actions.Invoke(ref, element.ActionSetText, text)
			}); err == nil {
				return nil
			}
		}
	}

	editable := firstEditable(target)
	if editable == nil {
		if tree := e.currentTree(ctx); tree != nil {
			editable = firstEditable(tree.Root)
		}
	}
	if editable == nil {
		return ExecutionFailed("no editable target discoverable", nil)
	}

	if f := e.focus(ctx, editable); f != nil {
		return f
	}
	if f := e.settle(ctx); f != nil {
		return f
	}
	return e.typeChars(ctx, text)
}

// textTarget resolves the optional index parameter.
func (e *Executor) textTarget(ctx context.Context, cmd Command) (*element.Node, *Failure) {
	if !cmd.Has("index") {
		return nil, nil
	}
	index, _ := cmd.Int("index")
	node, err := e.resolver.Resolve(index)
	if err != nil {
		return nil, staleTarget(index, err)
	}
	return node, nil
}

// focus brings an editable to the foreground input connection: the live
// back-reference first, a centering tap as the universal fallback.
func (e *Executor) focus(ctx context.Context, n *element.Node) *Failure {
	if ref := n.Ref(); ref != 0 {
		if err := e.onLoop(ctx, func() error {
			return e.actions.Invoke(ref, element.ActionFocus, "")
		}); err == nil {
			return nil
		}
	}
	g := platform.Gesture{Kind: platform.GestureTap, X: n.Bounds.CenterX(), Y: n.Bounds.CenterY()}
	if err := e.inject(ctx, g); err != nil {
		return ExecutionFailed("focus tap", err)
	}
	return nil
}

// settle waits the configured delay for the input connection to attach.
func (e *Executor) settle(ctx context.Context) *Failure {
	select {
	case <-ctx.Done():
		return Timeoutf("settle wait: %v", ctx.Err())
	case <-time.After(e.cfg.SettleDelay):
		return nil
	}
}

// typeChars injects the text one character at a time on the UI loop.
func (e *Executor) typeChars(ctx context.Context, text string) *Failure {
	for _, ch := range text {
		ch := ch
		if err := e.onLoop(ctx, func() error { return e.bridge.InjectChar(ctx, ch) }); err != nil {
			return ExecutionFailed("character injection", err)
		}
	}
	return nil
}

// currentTree fetches a fresh tree for whole-surface editable discovery.
func (e *Executor) currentTree(ctx context.Context) *element.Tree {
	if e.refresh == nil {
		return nil
	}
	tree, err := e.refresh.Refresh(ctx)
	if err != nil {
		return nil
	}
	return tree
}

// firstEditable returns the first editable node in document order, starting
// at root. A nil root yields nil.
func firstEditable(root *element.Node) *element.Node {
	if root == nil {
		return nil
	}
	if root.Editable() {
		return root
	}
	for _, c := range root.Children {
		if n := firstEditable(c); n != nil {
			return n
		}
	}
	return nil
}
