package pagechange

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devicepilot/agent/internal/platform"
)

// State is the scheduler's position in its capture cycle.
type State int

const (
	StateIdle State = iota
	StatePendingFirstCapture
	StatePendingDebouncedCapture
	StateSnapshotReady
)

func (s State) String() string {
	switch s {
	case StatePendingFirstCapture:
		return "pending_first_capture"
	case StatePendingDebouncedCapture:
		return "pending_debounced_capture"
	case StateSnapshotReady:
		return "snapshot_ready"
	default:
		return "idle"
	}
}

// Trigger explains why a capture fired.
type Trigger int

const (
	// TriggerFirstCapture is the forced capture after the initial bound,
	// taken even absent any mutation signal. Tolerates slow cold starts.
	TriggerFirstCapture Trigger = iota
	// TriggerDebounce fires when mutation signals quiet down.
	TriggerDebounce
	// TriggerAbsolute is the safety-net timer, independent of mutation
	// frequency.
	TriggerAbsolute
)

func (t Trigger) String() string {
	switch t {
	case TriggerDebounce:
		return "debounce"
	case TriggerAbsolute:
		return "absolute"
	default:
		return "first_capture"
	}
}

// SchedulerConfig holds the empirically chosen capture timing, kept
// configurable per the open characterization question.
type SchedulerConfig struct {
	// FirstCaptureDelay bounds the wait for the initial capture after an
	// instruction arrives.
	FirstCaptureDelay time.Duration
	// Debounce coalesces rapid successive mutation signals.
	Debounce time.Duration
	// AbsoluteBound forces a capture regardless of mutation frequency.
	AbsoluteBound time.Duration
}

// DefaultSchedulerConfig returns the stock timing.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		FirstCaptureDelay: 600 * time.Millisecond,
		Debounce:          150 * time.Millisecond,
		AbsoluteBound:     3 * time.Second,
	}
}

// CaptureFunc runs one snapshot capture. It returns the captured tree's
// structural signature so the scheduler can flag no-change captures.
type CaptureFunc func(trigger Trigger) (signature uint64)

// Scheduler drives the Idle → PendingFirstCapture → PendingDebouncedCapture →
// SnapshotReady → Idle cycle off mutation signals.
type Scheduler struct {
	cfg     SchedulerConfig
	capture CaptureFunc
	logger  *zap.Logger

	mu        sync.Mutex
	state     State
	lastSig   uint64
	unchanged bool

	instructions chan struct{}
}

// NewScheduler creates a scheduler. capture is invoked from the scheduler's
// own goroutine; implementations marshal onto the UI loop themselves.
func NewScheduler(cfg SchedulerConfig, capture CaptureFunc, logger *zap.Logger) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.FirstCaptureDelay <= 0 {
		cfg.FirstCaptureDelay = def.FirstCaptureDelay
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.AbsoluteBound <= 0 {
		cfg.AbsoluteBound = def.AbsoluteBound
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:          cfg,
		capture:      capture,
		logger:       logger,
		instructions: make(chan struct{}, 1),
	}
}

// OnInstruction notes that a new instruction arrived: the next capture cycle
// starts even if no mutation signal ever fires.
func (s *Scheduler) OnInstruction() {
	select {
	case s.instructions <- struct{}{}:
	default:
	}
}

// State returns the current cycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastUnchanged reports whether the most recent capture produced a signature
// identical to the one before it: "action executed, nothing changed".
func (s *Scheduler) LastUnchanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unchanged
}

// Run consumes instructions and mutation signals until ctx is done.
func (s *Scheduler) Run(ctx context.Context, signals <-chan platform.Signal) {
	var firstTimer, debounceTimer, absoluteTimer *time.Timer
	stopTimer := func(t **time.Timer) {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
	var firstC, debounceC, absoluteC <-chan time.Time

	arm := func(t **time.Timer, c *<-chan time.Time, d time.Duration) {
		stopTimer(t)
		*t = time.NewTimer(d)
		*c = (*t).C
	}
	disarmAll := func() {
		stopTimer(&firstTimer)
		stopTimer(&debounceTimer)
		stopTimer(&absoluteTimer)
		firstC, debounceC, absoluteC = nil, nil, nil
	}
	defer disarmAll()

	fire := func(trigger Trigger) {
		disarmAll()
		s.setState(StateSnapshotReady)
		sig := s.capture(trigger)
		s.recordSignature(sig, trigger)
		s.setState(StateIdle)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.instructions:
			s.setState(StatePendingFirstCapture)
			arm(&firstTimer, &firstC, s.cfg.FirstCaptureDelay)
			arm(&absoluteTimer, &absoluteC, s.cfg.AbsoluteBound)

		case sig, ok := <-signals:
			if !ok {
				return
			}
			s.mu.Lock()
			st := s.state
			s.mu.Unlock()
			if st == StateIdle || st == StateSnapshotReady {
				continue
			}
			s.logger.Debug("mutation signal", zap.Stringer("signal", sig))
			s.setState(StatePendingDebouncedCapture)
			stopTimer(&firstTimer)
			firstC = nil
			arm(&debounceTimer, &debounceC, s.cfg.Debounce)

		case <-firstC:
			fire(TriggerFirstCapture)

		case <-debounceC:
			fire(TriggerDebounce)

		case <-absoluteC:
			fire(TriggerAbsolute)
		}
	}
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Scheduler) recordSignature(sig uint64, trigger Trigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unchanged = sig != 0 && sig == s.lastSig
	if s.unchanged {
		s.logger.Info("capture produced identical signature",
			zap.Uint64("signature", sig),
			zap.Stringer("trigger", trigger),
		)
	}
	s.lastSig = sig
}
