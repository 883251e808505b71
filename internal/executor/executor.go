// Package executor runs synthesized-input commands against the foreground
// surface: Validate → Resolve → Execute → Verify → Report, with a graduated
// fallback chain from live back-references down to raw pointer injection.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devicepilot/agent/internal/element"
	"github.com/devicepilot/agent/internal/identity"
	"github.com/devicepilot/agent/internal/pagechange"
	"github.com/devicepilot/agent/internal/platform"
)

// Status is the single reported outcome class of a command.
type Status string

const (
	// StatusVerified: the action ran and an effect was observed.
	StatusVerified Status = "verified"
	// StatusUnverified: the action ran but nothing changed inside the
	// verification window. Not a failure.
	StatusUnverified Status = "unverified"
	// StatusFailed: a typed failure, see Outcome.Failure.
	StatusFailed Status = "failed"
)

// Outcome is the exactly-once report for one command.
type Outcome struct {
	Status  Status
	Verdict pagechange.Verdict
	Failure *Failure
}

// Resolver maps persisted indices to nodes from the most recent pass.
type Resolver interface {
	Resolve(index int) (*element.Node, error)
}

// Refresher re-extracts the current surface, used by the id-based second
// fallback step for elements whose back-reference did not survive.
type Refresher interface {
	Refresh(ctx context.Context) (*element.Tree, error)
}

// Config holds executor timing. Empirical values stay configurable.
type Config struct {
	// SettleDelay is the wait after focusing an editable before injecting
	// characters.
	SettleDelay time.Duration
	// SwipeDuration is the default when the caller omits duration_ms.
	SwipeDuration time.Duration
}

// DefaultConfig returns the stock timing.
func DefaultConfig() Config {
	return Config{
		SettleDelay:   300 * time.Millisecond,
		SwipeDuration: 300 * time.Millisecond,
	}
}

// Executor drives the per-command state machine.
type Executor struct {
	bridge   platform.Bridge
	loop     *platform.Loop
	resolver Resolver
	actions  *element.ActionTable
	refresh  Refresher
	verifier *pagechange.Verifier
	cfg      Config
	logger   *zap.Logger
}

// New creates an executor.
func New(
	bridge platform.Bridge,
	loop *platform.Loop,
	resolver Resolver,
	actions *element.ActionTable,
	refresh Refresher,
	verifier *pagechange.Verifier,
	cfg Config,
	logger *zap.Logger,
) *Executor {
	def := DefaultConfig()
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = def.SettleDelay
	}
	if cfg.SwipeDuration <= 0 {
		cfg.SwipeDuration = def.SwipeDuration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		bridge:   bridge,
		loop:     loop,
		resolver: resolver,
		actions:  actions,
		refresh:  refresh,
		verifier: verifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run executes one command end to end and reports exactly one outcome.
func (e *Executor) Run(ctx context.Context, cmd Command) Outcome {
	if f := cmd.Validate(); f != nil {
		e.logger.Warn("command rejected", zap.String("command", string(cmd.Name)), zap.Error(f))
		return Outcome{Status: StatusFailed, Failure: f}
	}

	base, err := e.verifier.Baseline(ctx)
	if err != nil {
		return Outcome{Status: StatusFailed, Failure: Timeoutf("baseline capture: %v", err)}
	}

	if f := e.execute(ctx, cmd); f != nil {
		e.logger.Error("command failed",
			zap.String("command", string(cmd.Name)),
			zap.String("kind", string(f.Kind)),
			zap.Error(f),
		)
		return Outcome{Status: StatusFailed, Failure: f}
	}

	verdict := e.verifier.AwaitChange(ctx, base)
	if !verdict.Verified() {
		e.logger.Info("action executed but unverified", zap.String("command", string(cmd.Name)))
		return Outcome{Status: StatusUnverified, Verdict: verdict}
	}
	return Outcome{Status: StatusVerified, Verdict: verdict}
}

// execute dispatches to the command-specific synthesis path. Validation has
// already passed, so parameter reads cannot fail here.
func (e *Executor) execute(ctx context.Context, cmd Command) *Failure {
	switch cmd.Name {
	case CmdTap:
		return e.elementAction(ctx, cmd, element.ActionClick, GesturePress(cmd))
	case CmdLongPress:
		return e.elementAction(ctx, cmd, element.ActionLongClick, GesturePress(cmd))
	case CmdSwipe:
		return e.swipe(ctx, cmd)
	case CmdInputText:
		return e.inputText(ctx, cmd)
	case CmdBack:
		if err := e.onLoop(ctx, func() error { return e.bridge.NavigateBack(ctx) }); err != nil {
			return ExecutionFailed("back navigation", err)
		}
		return nil
	case CmdPressKey:
		keycode, _ := cmd.Int("keycode")
		if err := e.onLoop(ctx, func() error { return e.bridge.InjectKey(ctx, keycode) }); err != nil {
			return ExecutionFailed(fmt.Sprintf("key press %d", keycode), err)
		}
		return nil
	case CmdStartApp:
		pkg, _ := cmd.Str("package")
		activity, _ := cmd.Str("activity")
		if err := e.bridge.StartApp(ctx, pkg, activity); err != nil {
			return ExecutionFailed(fmt.Sprintf("start %s", pkg), err)
		}
		return nil
	default:
		return Validationf("unknown command %q", cmd.Name)
	}
}

// GesturePress builds the pointer gesture for tap/long-press commands whose
// coordinates came straight from the caller.
func GesturePress(cmd Command) func(x, y int) platform.Gesture {
	kind := platform.GestureTap
	if cmd.Name == CmdLongPress {
		kind = platform.GestureLongPress
	}
	return func(x, y int) platform.Gesture {
		return platform.Gesture{Kind: kind, X: x, Y: y}
	}
}

// elementAction runs the graduated fallback chain for a targeted action:
//  1. direct invocation through the element's live back-reference
//  2. id-based lookup-and-invoke against a freshly extracted tree
//  3. synthesized pointer injection at the element's coordinates
//
// Coordinate-native invocations skip straight to injection.
func (e *Executor) elementAction(ctx context.Context, cmd Command, action element.Action, gesture func(x, y int) platform.Gesture) *Failure {
	if !cmd.Has("index") {
		x, _ := cmd.Int("x")
		y, _ := cmd.Int("y")
		if err := e.inject(ctx, gesture(x, y)); err != nil {
			return ExecutionFailed("pointer injection", err)
		}
		return nil
	}

	index, _ := cmd.Int("index")
	node, err := e.resolver.Resolve(index)
	if err != nil {
		return staleTarget(index, err)
	}

	var lastErr error

	// Step 1: live back-reference, native path only.
	if ref := node.Ref(); ref != 0 {
		if err := e.onLoop(ctx, func() error { return e.actions.Invoke(ref, action, "") }); err == nil {
			return nil
		} else if !errors.Is(err, element.ErrRefInvalid) {
			lastErr = err
		}
	}

	// Step 2: generic id-based lookup against the current tree, for elements
	// whose handle was not retained or no longer resolves.
	if refreshed := e.lookupRef(ctx, index); refreshed != 0 {
		if err := e.onLoop(ctx, func() error { return e.actions.Invoke(refreshed, action, "") }); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	// Step 3: pointer injection at the element's center, the universal last
	// resort and the only path for web content.
	if err := e.inject(ctx, gesture(node.Bounds.CenterX(), node.Bounds.CenterY())); err != nil {
		if lastErr != nil {
			err = fmt.Errorf("%v (after %v)", err, lastErr)
		}
		return ExecutionFailed(fmt.Sprintf("all fallbacks exhausted for index %d", index), err)
	}
	return nil
}

// lookupRef re-extracts the surface and returns the target's fresh
// back-reference, or zero.
func (e *Executor) lookupRef(ctx context.Context, index int) element.RefID {
	if e.refresh == nil {
		return 0
	}
	tree, err := e.refresh.Refresh(ctx)
	if err != nil || tree == nil {
		return 0
	}
	if n := tree.ByIndex(index); n != nil {
		return n.Ref()
	}
	return 0
}

func (e *Executor) swipe(ctx context.Context, cmd Command) *Failure {
	sx, _ := cmd.Int("start_x")
	sy, _ := cmd.Int("start_y")
	ex, _ := cmd.Int("end_x")
	ey, _ := cmd.Int("end_y")
	duration := e.cfg.SwipeDuration
	if ms, ok := cmd.Int("duration_ms"); ok {
		duration = time.Duration(ms) * time.Millisecond
	}
	g := platform.Gesture{
		Kind: platform.GestureSwipe,
		X:    sx, Y: sy,
		EndX: ex, EndY: ey,
		Duration: duration,
	}
	if err := e.inject(ctx, g); err != nil {
		return ExecutionFailed("swipe injection", err)
	}
	return nil
}

// inject synthesizes a pointer gesture on the UI loop.
func (e *Executor) inject(ctx context.Context, g platform.Gesture) error {
	return e.onLoop(ctx, func() error { return e.bridge.InjectPointer(ctx, g) })
}

func (e *Executor) onLoop(ctx context.Context, fn func() error) error {
	return e.loop.Do(ctx, fn)
}

// staleTarget maps identity errors onto the failure taxonomy.
func staleTarget(index int, err error) *Failure {
	if errors.Is(err, identity.ErrStaleIndex) || errors.Is(err, identity.ErrUnknownIndex) {
		return TargetNotFound(index, err)
	}
	return ExecutionFailed(fmt.Sprintf("resolve index %d", index), err)
}
