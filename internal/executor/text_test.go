package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicepilot/agent/internal/element"
	"github.com/devicepilot/agent/internal/extract/native"
)

func TestInputTextFocusedEditableUsesSetText(t *testing.T) {
	root, _, field := phoneScreen()
	field.IsFocused = true
	h := newHarness(t, root, nil)

	target := h.tree.Find(func(n *element.Node) bool { return n.Type == "EditText" })
	require.NotNil(t, target)
	require.Equal(t, "true", target.Extras["focused"])

	out := h.exec.Run(context.Background(), Command{
		Name:   CmdInputText,
		Params: map[string]interface{}{"text": "hello", "index": float64(target.Index)},
	})

	assert.NotEqual(t, StatusFailed, out.Status)
	assert.Contains(t, field.PerformedActions(), "set_text:hello")
	assert.Empty(t, h.bridge.InjectedChars(), "direct set_text must not fall back to key events")
}

func TestInputTextDiscoversEditableAndTypes(t *testing.T) {
	root, _, field := phoneScreen()
	var h *harness
	h = newHarness(t, root, refreshFn(func(ctx context.Context) (*element.Tree, error) {
		return native.New(h.bridge, nil, h.actions).Extract(ctx), nil
	}))

	// No index, no coordinates, nothing focused: the executor must find the
	// field on its own, focus it, and type character by character.
	out := h.exec.Run(context.Background(), Command{
		Name:   CmdInputText,
		Params: map[string]interface{}{"text": "héllo"},
	})

	assert.NotEqual(t, StatusFailed, out.Status)
	assert.Contains(t, field.PerformedActions(), "focus:")
	assert.Equal(t, "héllo", h.bridge.InjectedChars())
}

func TestInputTextFocusFallsBackToTap(t *testing.T) {
	root, _, field := phoneScreen()
	field.PerformErr = assert.AnError
	h := newHarness(t, root, nil)

	target := h.tree.Find(func(n *element.Node) bool { return n.Type == "EditText" })
	require.NotNil(t, target)

	out := h.exec.Run(context.Background(), Command{
		Name:   CmdInputText,
		Params: map[string]interface{}{"text": "hi", "index": float64(target.Index)},
	})

	assert.NotEqual(t, StatusFailed, out.Status)
	gestures := h.bridge.InjectedGestures()
	require.Len(t, gestures, 1, "broken focus handle falls back to a centering tap")
	assert.Equal(t, target.Bounds.CenterX(), gestures[0].X)
	assert.Equal(t, target.Bounds.CenterY(), gestures[0].Y)
	assert.Equal(t, "hi", h.bridge.InjectedChars())
}

func TestInputTextCoordinatesTapThenType(t *testing.T) {
	root, _, _ := phoneScreen()
	h := newHarness(t, root, nil)

	out := h.exec.Run(context.Background(), Command{
		Name:   CmdInputText,
		Params: map[string]interface{}{"text": "42", "x": float64(180), "y": float64(120)},
	})

	assert.NotEqual(t, StatusFailed, out.Status)
	gestures := h.bridge.InjectedGestures()
	require.Len(t, gestures, 1)
	assert.Equal(t, 180, gestures[0].X)
	assert.Equal(t, 120, gestures[0].Y)
	assert.Equal(t, "42", h.bridge.InjectedChars())
}

func TestInputTextNoEditableAnywhere(t *testing.T) {
	root, _, _ := phoneScreen()
	root.Kids = root.Kids[:1] // drop the field, keep the button
	h := newHarness(t, root, nil)

	out := h.exec.Run(context.Background(), Command{
		Name:   CmdInputText,
		Params: map[string]interface{}{"text": "lost"},
	})

	require.Equal(t, StatusFailed, out.Status)
	require.NotNil(t, out.Failure)
	assert.Equal(t, KindExecution, out.Failure.Kind)
	assert.Empty(t, h.bridge.InjectedChars())
}
