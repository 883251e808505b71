package web

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicepilot/agent/internal/element"
)

func sampleDocument() *Element {
	return NewElement("body").At(0, 0, 360, 1200).Add(
		NewElement("div").At(0, 0, 360, 200).Add(
			NewElement("h1").At(10, 10, 340, 40).WithText("Checkout"),
			NewElement("button").At(10, 60, 120, 40).WithText("Pay now").Attr("aria-label", "Pay"),
		),
		NewElement("input").At(10, 260, 340, 40).Attr("type", "text"),
		NewElement("span").At(0, 0, 0, 0).WithText("invisible"),
	)
}

func TestExtractViaLocalEvaluator(t *testing.T) {
	surface := NewLocalSurface(sampleDocument(), "https://shop.example/checkout")

	tree := New(surface).Extract(context.Background())

	require.False(t, element.IsErrorTree(tree))
	require.NoError(t, tree.Validate())
	assert.Equal(t, element.BackendWeb, tree.Backend)
	assert.Equal(t, "https://shop.example/checkout", tree.Context)

	// body > div > (h1, button), input. Zero-size span skipped.
	assert.Equal(t, 5, tree.Size())
	assert.Nil(t, tree.Find(func(n *element.Node) bool { return n.Text == "invisible" }))
}

func TestExtractTextOnLeavesOnly(t *testing.T) {
	surface := NewLocalSurface(sampleDocument(), "")

	tree := New(surface).Extract(context.Background())

	div := tree.Find(func(n *element.Node) bool { return n.Type == "div" })
	require.NotNil(t, div)
	assert.Empty(t, div.Text, "container duplicated descendant text")

	h1 := tree.Find(func(n *element.Node) bool { return n.Type == "h1" })
	require.NotNil(t, h1)
	assert.Equal(t, "Checkout", h1.Text)
}

func TestExtractCapabilities(t *testing.T) {
	surface := NewLocalSurface(sampleDocument(), "")

	tree := New(surface).Extract(context.Background())

	button := tree.Find(func(n *element.Node) bool { return n.Type == "button" })
	require.NotNil(t, button)
	assert.True(t, button.Flags.Clickable)
	assert.Equal(t, "Pay", button.Desc)

	input := tree.Find(func(n *element.Node) bool { return n.Type == "input" })
	require.NotNil(t, input)
	assert.True(t, input.Editable())
}

func TestExtractCorrectsForScrollOffset(t *testing.T) {
	surface := NewLocalSurface(sampleDocument(), "")
	surface.SetScroll(0, 500)

	tree := New(surface).Extract(context.Background())

	h1 := tree.Find(func(n *element.Node) bool { return n.Type == "h1" })
	require.NotNil(t, h1)
	assert.Equal(t, 510, h1.Bounds.Top, "viewport coordinates must convert to page coordinates")
}

func TestExtractFreshIndicesPerQuery(t *testing.T) {
	surface := NewLocalSurface(sampleDocument(), "")
	ex := New(surface)

	first := ex.Extract(context.Background())
	second := ex.Extract(context.Background())

	var a, b []int
	first.Walk(func(n *element.Node, _ int) bool { a = append(a, n.Index); return true })
	second.Walk(func(n *element.Node, _ int) bool { b = append(b, n.Index); return true })
	assert.Equal(t, a, b)
	assert.Equal(t, 1, a[0])
}

type failingSurface struct{ err error }

func (f *failingSurface) Evaluate(context.Context, string) (string, error) { return "", f.err }
func (f *failingSurface) ScrollOffset() (int, int)                         { return 0, 0 }
func (f *failingSurface) URL() string                                      { return "" }
func (f *failingSurface) Visible() bool                                    { return true }

func TestExtractEvaluationFailureYieldsErrorLeaf(t *testing.T) {
	tree := New(&failingSurface{err: errors.New("renderer gone")}).Extract(context.Background())

	require.True(t, element.IsErrorTree(tree))
	assert.Contains(t, tree.Root.Text, "renderer gone")
}

func TestExtractEmptyDocument(t *testing.T) {
	surface := NewLocalSurface(nil, "")

	tree := New(surface).Extract(context.Background())

	assert.True(t, element.IsErrorTree(tree))
}
