package element

import (
	"errors"
	"fmt"
)

// Backend identifies which introspection strategy produced a tree.
type Backend string

const (
	BackendNative Backend = "native"
	BackendWeb    Backend = "web"
	BackendA11y   Backend = "accessibility"
)

// Tree is one full extraction pass over the foreground surface.
type Tree struct {
	Root    *Node   `json:"root"`
	Backend Backend `json:"backend"`
	// Context identifies the foreground surface (package/activity, page URL,
	// or window label depending on the backend).
	Context string `json:"context,omitempty"`
}

var (
	// ErrCycle indicates a node was reachable through two different paths.
	ErrCycle = errors.New("element: tree contains a cycle")
	// ErrNilRoot indicates a tree without a root node.
	ErrNilRoot = errors.New("element: tree has no root")
)

// Walk visits every node in depth-first document order. Traversal order is
// deterministic for a given tree. Returning false from fn stops the walk.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	if t == nil || t.Root == nil {
		return
	}
	walk(t.Root, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int) bool) bool {
	if !fn(n, depth) {
		return false
	}
	for _, c := range n.Children {
		if !walk(c, depth+1, fn) {
			return false
		}
	}
	return true
}

// Find returns the first node in document order matching pred, or nil.
func (t *Tree) Find(pred func(*Node) bool) *Node {
	var found *Node
	t.Walk(func(n *Node, _ int) bool {
		if pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// ByIndex returns the node carrying the given assigned index, or nil.
func (t *Tree) ByIndex(index int) *Node {
	return t.Find(func(n *Node) bool { return n.Index == index })
}

// Size returns the number of nodes in the tree.
func (t *Tree) Size() int {
	count := 0
	t.Walk(func(*Node, int) bool {
		count++
		return true
	})
	return count
}

// Validate checks the structural invariants: a root exists, the tree is
// acyclic, and every bounds rectangle is well-ordered.
func (t *Tree) Validate() error {
	if t == nil || t.Root == nil {
		return ErrNilRoot
	}
	seen := make(map[*Node]struct{})
	return validate(t.Root, seen)
}

func validate(n *Node, seen map[*Node]struct{}) error {
	if _, dup := seen[n]; dup {
		return ErrCycle
	}
	seen[n] = struct{}{}
	if !n.Bounds.Valid() {
		return fmt.Errorf("element: invalid bounds %s on %q", n.Bounds, n.Label())
	}
	for _, c := range n.Children {
		if err := validate(c, seen); err != nil {
			return err
		}
	}
	return nil
}

// ErrorTree wraps an extraction failure as a single explicit error leaf so
// extractors never propagate errors to callers.
func ErrorTree(backend Backend, err error) *Tree {
	return &Tree{
		Backend: backend,
		Root: &Node{
			Type: "ExtractionError",
			Text: err.Error(),
			Flags: Flags{
				Enabled: true,
			},
		},
	}
}

// IsErrorTree reports whether the tree is an extraction-failure placeholder.
func IsErrorTree(t *Tree) bool {
	return t != nil && t.Root != nil && t.Root.Type == "ExtractionError"
}
