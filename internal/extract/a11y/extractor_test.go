package a11y

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicepilot/agent/internal/element"
	"github.com/devicepilot/agent/internal/platform"
	"github.com/devicepilot/agent/internal/platform/platformtest"
)

func TestExtractFlattensAccessibilityTree(t *testing.T) {
	bridge := platformtest.NewBridge(nil)
	bridge.A11y = []platform.A11yNode{
		{ClassName: "Button", Text: "Play", Bounds: [4]int{0, 0, 100, 40}, Clickable: true, Enabled: true},
		{ClassName: "TextField", Description: "Search", Bounds: [4]int{0, 50, 200, 90}, Enabled: true, Editable: true},
	}

	tree := New(bridge).Extract(context.Background())

	require.False(t, element.IsErrorTree(tree))
	require.NoError(t, tree.Validate())
	assert.Equal(t, element.BackendA11y, tree.Backend)
	require.Len(t, tree.Root.Children, 2)

	play := tree.Root.Children[0]
	assert.Equal(t, "play", play.Extras["synthetic_id"])
	assert.True(t, play.Flags.Clickable)

	search := tree.Root.Children[1]
	assert.Equal(t, "search", search.Extras["synthetic_id"])
	assert.True(t, search.Editable())
}

func TestSyntheticIDsDisambiguateRepeats(t *testing.T) {
	bridge := platformtest.NewBridge(nil)
	bridge.A11y = []platform.A11yNode{
		{ClassName: "Cell", Text: "Item", Bounds: [4]int{0, 0, 10, 10}},
		{ClassName: "Cell", Text: "Item", Bounds: [4]int{0, 10, 10, 20}},
		{ClassName: "Cell", Text: "Item!", Bounds: [4]int{0, 20, 10, 30}},
	}

	tree := New(bridge).Extract(context.Background())

	require.Len(t, tree.Root.Children, 3)
	assert.Equal(t, "item", tree.Root.Children[0].Extras["synthetic_id"])
	assert.Equal(t, "item-2", tree.Root.Children[1].Extras["synthetic_id"])
	assert.Equal(t, "item-3", tree.Root.Children[2].Extras["synthetic_id"])
}

func TestExtractEmptyTreeIsErrorLeaf(t *testing.T) {
	bridge := platformtest.NewBridge(nil)

	tree := New(bridge).Extract(context.Background())

	assert.True(t, element.IsErrorTree(tree))
}
