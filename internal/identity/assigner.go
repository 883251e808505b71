package identity

import (
	"errors"
	"sync"
	"time"

	"github.com/devicepilot/agent/internal/element"
)

var (
	// ErrUnknownIndex means the index was never allocated.
	ErrUnknownIndex = errors.New("identity: unknown index")
	// ErrStaleIndex means the index belongs to a fingerprint that vanished
	// from a later pass; the caller should request a fresh snapshot.
	ErrStaleIndex = errors.New("identity: index refers to an element no longer on screen")
)

// DefaultReservedCapacity bounds the reserved set before oldest-first purge.
const DefaultReservedCapacity = 512

// AssignDFS applies the per-pass policy: index equals position in the current
// traversal, starting at 1. Use when a snapshot is consumed once and never
// cross-referenced later.
func AssignDFS(tree *element.Tree) {
	i := 0
	tree.Walk(func(n *element.Node, _ int) bool {
		i++
		n.Index = i
		return true
	})
}

type reservedEntry struct {
	fp    uint64
	index int
	at    time.Time
}

// Assigner implements the fingerprint policy: stable integer indices bound to
// element fingerprints, surviving tree regeneration. Indices whose fingerprint
// disappears are parked in a bounded reserved set instead of being freed, so a
// stale remote reference can never silently resolve to an unrelated element.
//
// The assigner is the only state shared across snapshot cycles; a single mutex
// is enough at UI cadence.
type Assigner struct {
	mu sync.Mutex

	byFP    map[uint64]int // fingerprint -> index, active or reserved
	byIndex map[int]uint64 // inverse of byFP
	active  map[uint64]struct{}
	nodes   map[int]*element.Node // current-pass resolution table
	next    int

	reserved []reservedEntry
	capacity int

	now func() time.Time
}

// NewAssigner creates an assigner with the given reserved-set capacity.
// Capacity <= 0 uses DefaultReservedCapacity.
func NewAssigner(capacity int) *Assigner {
	if capacity <= 0 {
		capacity = DefaultReservedCapacity
	}
	return &Assigner{
		byFP:     make(map[uint64]int),
		byIndex:  make(map[int]uint64),
		active:   make(map[uint64]struct{}),
		nodes:    make(map[int]*element.Node),
		capacity: capacity,
		now:      time.Now,
	}
}

// Assign runs one full pass: every node gets a persistent index. Fingerprints
// seen before reuse their index (and leave the reserved set); new fingerprints
// allocate the next free index, skipping anything in use or reserved. Known
// fingerprints absent from this pass move to the reserved set.
func (a *Assigner) Assign(tree *element.Tree) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seen := make(map[uint64]struct{})
	occurrences := make(map[uint64]int)
	a.nodes = make(map[int]*element.Node)

	tree.Walk(func(n *element.Node, _ int) bool {
		base := Fingerprint(n)
		fp := disambiguate(base, occurrences[base])
		occurrences[base]++
		seen[fp] = struct{}{}

		idx, known := a.byFP[fp]
		if known {
			a.unreserve(fp)
		} else {
			idx = a.allocate()
			a.byFP[fp] = idx
			a.byIndex[idx] = fp
		}
		a.active[fp] = struct{}{}
		n.Index = idx
		a.nodes[idx] = n
		return true
	})

	// Park everything that used to be active but did not show up this pass.
	for fp := range a.active {
		if _, ok := seen[fp]; !ok {
			delete(a.active, fp)
			a.reserve(fp)
		}
	}
	a.purge()
}

// Resolve maps a persisted index back to the node from the most recent pass.
func (a *Assigner) Resolve(index int) (*element.Node, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n, ok := a.nodes[index]; ok {
		return n, nil
	}
	if _, allocated := a.byIndex[index]; !allocated {
		return nil, ErrUnknownIndex
	}
	// Allocated but absent from the current pass: parked in the reserved set.
	return nil, ErrStaleIndex
}

// Reset drops all tables. Tied to session end.
func (a *Assigner) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byFP = make(map[uint64]int)
	a.byIndex = make(map[int]uint64)
	a.active = make(map[uint64]struct{})
	a.nodes = make(map[int]*element.Node)
	a.reserved = nil
	a.next = 0
}

// Stats returns active and reserved counts for diagnostics.
func (a *Assigner) Stats() (active, reserved int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active), len(a.reserved)
}

// allocate returns the next free index, skipping anything still bound to a
// fingerprint (active or reserved). Caller holds the lock.
func (a *Assigner) allocate() int {
	for {
		a.next++
		if _, taken := a.byIndex[a.next]; !taken {
			return a.next
		}
	}
}

func (a *Assigner) reserve(fp uint64) {
	idx, ok := a.byFP[fp]
	if !ok {
		return
	}
	a.reserved = append(a.reserved, reservedEntry{fp: fp, index: idx, at: a.now()})
}

func (a *Assigner) unreserve(fp uint64) {
	for i, e := range a.reserved {
		if e.fp == fp {
			a.reserved = append(a.reserved[:i], a.reserved[i+1:]...)
			return
		}
	}
}

// purge drops reserved entries oldest-first once capacity is exceeded. Purged
// fingerprints release their index for reallocation.
func (a *Assigner) purge() {
	for len(a.reserved) > a.capacity {
		oldest := a.reserved[0]
		a.reserved = a.reserved[1:]
		delete(a.byFP, oldest.fp)
		delete(a.byIndex, oldest.index)
	}
}
