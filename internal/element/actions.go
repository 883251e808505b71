package element

import (
	"errors"
	"sync"
)

// Action is an input primitive an element can perform on itself through its
// live backend object.
type Action string

const (
	ActionClick     Action = "click"
	ActionLongClick Action = "long_click"
	ActionFocus     Action = "focus"
	ActionSetText   Action = "set_text"
	ActionScroll    Action = "scroll"
)

// Invoker wraps a live backend object behind an action interface so backend
// handle types never leak into the core model.
type Invoker interface {
	// Invoke performs the action. arg carries action-specific data (text for
	// ActionSetText, direction for ActionScroll).
	Invoke(action Action, arg string) error
	// Can reports whether the underlying object supports the action.
	Can(action Action) bool
}

// ErrRefInvalid is returned when a back-reference does not resolve, either
// because it never existed or because a newer snapshot invalidated it.
var ErrRefInvalid = errors.New("element: back-reference is no longer valid")

// ActionTable maps opaque ref ids to live invokers. Entries are valid only for
// the snapshot that registered them; a new extraction pass invalidates the
// whole table via Reset.
type ActionTable struct {
	mu   sync.Mutex
	next RefID
	refs map[RefID]Invoker
	gen  uint64
}

// NewActionTable creates an empty action table.
func NewActionTable() *ActionTable {
	return &ActionTable{refs: make(map[RefID]Invoker)}
}

// Register adds an invoker and returns its opaque ref id.
func (t *ActionTable) Register(inv Invoker) RefID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.refs[t.next] = inv
	return t.next
}

// Invoke resolves a ref and performs the action on it.
func (t *ActionTable) Invoke(id RefID, action Action, arg string) error {
	t.mu.Lock()
	inv, ok := t.refs[id]
	t.mu.Unlock()
	if !ok {
		return ErrRefInvalid
	}
	return inv.Invoke(action, arg)
}

// Can reports whether the ref resolves and supports the action.
func (t *ActionTable) Can(id RefID, action Action) bool {
	t.mu.Lock()
	inv, ok := t.refs[id]
	t.mu.Unlock()
	return ok && inv.Can(action)
}

// Reset invalidates every registered ref. Called at the start of each
// extraction pass; ids are not recycled across resets.
func (t *ActionTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refs = make(map[RefID]Invoker)
	t.gen++
}

// Len returns the number of live refs.
func (t *ActionTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.refs)
}

// Generation returns the number of resets performed, for diagnostics.
func (t *ActionTable) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}
