// Package session owns the per-connection state: the identity assigner, the
// live back-reference table, and the snapshot cache. One session spans one
// remote-control connection; a reset invalidates everything at once.
package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devicepilot/agent/internal/element"
	"github.com/devicepilot/agent/internal/extract"
	"github.com/devicepilot/agent/internal/extract/a11y"
	"github.com/devicepilot/agent/internal/extract/native"
	"github.com/devicepilot/agent/internal/extract/web"
	"github.com/devicepilot/agent/internal/identity"
	"github.com/devicepilot/agent/internal/infrastructure/monitoring"
	"github.com/devicepilot/agent/internal/pagechange"
	"github.com/devicepilot/agent/internal/platform"
	"github.com/devicepilot/agent/internal/shared/id"
	"github.com/devicepilot/agent/internal/snapshot"
)

// Settings configures a session. Zero values take defaults.
type Settings struct {
	// CacheTTL is the snapshot validity window.
	CacheTTL time.Duration
	// ReservedCapacity bounds the identity assigner's reserved set.
	ReservedCapacity int
	// Metrics, when set, observes extraction durations.
	Metrics *monitoring.Metrics
}

// Context is the per-connection state bundle. It satisfies the executor's
// Resolver and Refresher.
type Context struct {
	ID id.SessionID

	bridge   platform.Bridge
	loop     *platform.Loop
	caps     *native.CapabilityTable
	assigner *identity.Assigner
	actions  *element.ActionTable
	cache    *snapshot.Cache
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// New creates a session bound to the given bridge and UI loop.
func New(bridge platform.Bridge, loop *platform.Loop, settings Settings, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{
		ID:       id.NewSessionID(),
		bridge:   bridge,
		loop:     loop,
		caps:     native.DefaultCapabilities(),
		assigner: identity.NewAssigner(settings.ReservedCapacity),
		actions:  element.NewActionTable(),
		cache:    snapshot.NewCache(settings.CacheTTL),
		metrics:  settings.Metrics,
		logger:   logger,
	}
}

// Actions exposes the back-reference table for the executor.
func (s *Context) Actions() *element.ActionTable { return s.actions }

// Cache exposes the snapshot cache.
func (s *Context) Cache() *snapshot.Cache { return s.cache }

// Resolve maps a persisted index to the node from the most recent pass.
func (s *Context) Resolve(index int) (*element.Node, error) {
	return s.assigner.Resolve(index)
}

// Refresh runs a full extraction pass and returns the assigned tree. Satisfies
// the executor's second fallback step.
func (s *Context) Refresh(ctx context.Context) (*element.Tree, error) {
	return s.Extract(ctx)
}

// Extract classifies the foreground surface, runs the matching extractor on
// the UI loop, and assigns persistent indices. Back-references from the prior
// pass are invalidated wholesale before the new ones register.
func (s *Context) Extract(ctx context.Context) (*element.Tree, error) {
	timer := monitoring.NewTimer(s.metrics)
	var tree *element.Tree
	err := s.loop.Do(ctx, func() error {
		root, rootErr := s.bridge.RootWidget()
		if rootErr != nil {
			root = nil
		}

		s.actions.Reset()
		backend := extract.Classify(root)
		var ex extract.Extractor
		switch backend {
		case element.BackendWeb:
			ex = web.New(extract.FindWebSurface(root))
		case element.BackendNative:
			ex = native.New(s.bridge, s.caps, s.actions)
		default:
			ex = a11y.New(s.bridge)
		}
		tree = ex.Extract(ctx)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("session: extraction pass: %w", err)
	}

	s.assigner.Assign(tree)
	timer.Stop(string(tree.Backend))
	if element.IsErrorTree(tree) {
		s.logger.Warn("extraction produced an error tree", zap.String("backend", string(tree.Backend)))
	}
	return tree, nil
}

// Signature computes the structural fingerprint of the live surface without a
// full extraction, on the UI loop.
func (s *Context) Signature(ctx context.Context) (uint64, error) {
	var sig uint64
	err := s.loop.Do(ctx, func() error {
		root, err := s.bridge.RootWidget()
		if err != nil {
			return err
		}
		sig = pagechange.WidgetSignature(root)
		return nil
	})
	return sig, err
}

// Reset clears everything the session accumulated. Tied to connection end.
func (s *Context) Reset() {
	s.assigner.Reset()
	s.actions.Reset()
	s.cache.Invalidate()
	s.logger.Info("session reset", zap.String("session_id", s.ID.String()))
}

// Stats reports assigner and cache counters for diagnostics.
func (s *Context) Stats() map[string]interface{} {
	active, reserved := s.assigner.Stats()
	hits, misses := s.cache.Stats()
	return map[string]interface{}{
		"session_id":       s.ID.String(),
		"active_indices":   active,
		"reserved_indices": reserved,
		"cache_hits":       hits,
		"cache_misses":     misses,
	}
}
