package element

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *Tree {
	return &Tree{
		Backend: BackendNative,
		Root: &Node{
			Type:   "FrameLayout",
			Bounds: Rect{0, 0, 360, 640},
			Flags:  Flags{Enabled: true},
			Children: []*Node{
				{
					Type:   "Button",
					Text:   "OK",
					Bounds: Rect{10, 600, 110, 640},
					Flags:  Flags{Clickable: true, Enabled: true},
				},
				{
					Type:   "TextView",
					Text:   "hello",
					Bounds: Rect{10, 10, 350, 40},
					Flags:  Flags{Enabled: true},
				},
			},
		},
	}
}

func TestWalkOrder(t *testing.T) {
	tree := sampleTree()

	var order []string
	tree.Walk(func(n *Node, depth int) bool {
		order = append(order, n.Type)
		return true
	})

	assert.Equal(t, []string{"FrameLayout", "Button", "TextView"}, order)
}

func TestWalkEarlyStop(t *testing.T) {
	tree := sampleTree()

	visited := 0
	tree.Walk(func(n *Node, _ int) bool {
		visited++
		return n.Type != "Button"
	})

	assert.Equal(t, 2, visited)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Tree)
		wantErr error
	}{
		{
			name:   "valid tree passes",
			mutate: func(*Tree) {},
		},
		{
			name: "nil root",
			mutate: func(tr *Tree) {
				tr.Root = nil
			},
			wantErr: ErrNilRoot,
		},
		{
			name: "cycle detected",
			mutate: func(tr *Tree) {
				tr.Root.Children[0].Children = []*Node{tr.Root}
			},
			wantErr: ErrCycle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := sampleTree()
			tt.mutate(tree)
			err := tree.Validate()
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRejectsInvertedBounds(t *testing.T) {
	tree := sampleTree()
	tree.Root.Children[1].Bounds = Rect{Left: 100, Top: 0, Right: 50, Bottom: 10}

	assert.Error(t, tree.Validate())
}

func TestRectNormalize(t *testing.T) {
	r := Rect{Left: 100, Top: 80, Right: 50, Bottom: 10}.Normalize()

	assert.True(t, r.Valid())
	assert.Equal(t, Rect{Left: 50, Top: 10, Right: 100, Bottom: 80}, r)
}

func TestErrorTree(t *testing.T) {
	tree := ErrorTree(BackendWeb, errors.New("document detached"))

	require.NoError(t, tree.Validate())
	assert.True(t, IsErrorTree(tree))
	assert.Equal(t, 1, tree.Size())
	assert.Equal(t, "document detached", tree.Root.Text)
}

func TestByIndex(t *testing.T) {
	tree := sampleTree()
	tree.Root.Index = 1
	tree.Root.Children[0].Index = 2
	tree.Root.Children[1].Index = 3

	require.NotNil(t, tree.ByIndex(3))
	assert.Equal(t, "TextView", tree.ByIndex(3).Type)
	assert.Nil(t, tree.ByIndex(99))
}
