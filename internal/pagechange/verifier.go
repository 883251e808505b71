package pagechange

import (
	"context"
	"time"

	"github.com/devicepilot/agent/internal/platform"
)

// Baseline captures the foreground state right before an action is issued.
type Baseline struct {
	Signature  uint64
	Foreground string
}

// Verdict is the outcome of effect verification.
type Verdict int

const (
	// VerdictUnverified means the window elapsed with no observed change.
	// This is distinct from both success and hard failure; the remote caller
	// decides how to interpret it.
	VerdictUnverified Verdict = iota
	// VerdictSurfaceChanged means the structural signature moved.
	VerdictSurfaceChanged
	// VerdictForegroundChanged means a different screen came to front.
	VerdictForegroundChanged
)

func (v Verdict) String() string {
	switch v {
	case VerdictSurfaceChanged:
		return "surface_changed"
	case VerdictForegroundChanged:
		return "foreground_changed"
	default:
		return "unverified"
	}
}

// Verified reports whether any change was observed.
func (v Verdict) Verified() bool { return v != VerdictUnverified }

// VerifierConfig holds the empirically chosen verification timing. The window
// and poll interval have no documented derivation; they stay configurable
// rather than hard-coded.
type VerifierConfig struct {
	Window   time.Duration // total wait for an observed effect
	Interval time.Duration // poll spacing
}

// DefaultVerifierConfig returns the stock ~1s window at ~100ms polls.
func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{Window: time.Second, Interval: 100 * time.Millisecond}
}

// Verifier checks whether an executed action changed the screen.
type Verifier struct {
	bridge platform.Bridge
	loop   *platform.Loop
	cfg    VerifierConfig
}

// NewVerifier creates a verifier. All hierarchy reads go through the UI loop.
func NewVerifier(bridge platform.Bridge, loop *platform.Loop, cfg VerifierConfig) *Verifier {
	if cfg.Window <= 0 {
		cfg.Window = DefaultVerifierConfig().Window
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultVerifierConfig().Interval
	}
	return &Verifier{bridge: bridge, loop: loop, cfg: cfg}
}

// Baseline snapshots the current structural signature and foreground context.
// Call before issuing the action.
func (v *Verifier) Baseline(ctx context.Context) (Baseline, error) {
	var base Baseline
	err := v.loop.Do(ctx, func() error {
		base.Foreground = v.bridge.ForegroundContext()
		root, err := v.bridge.RootWidget()
		if err != nil {
			// A missing hierarchy still baselines: signature zero.
			return nil
		}
		base.Signature = WidgetSignature(root)
		return nil
	})
	return base, err
}

// AwaitChange polls until the surface diverges from the baseline or the
// window closes. The first observed change wins.
func (v *Verifier) AwaitChange(ctx context.Context, base Baseline) Verdict {
	deadline := time.Now().Add(v.cfg.Window)
	ticker := time.NewTicker(v.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return VerdictUnverified
		case <-ticker.C:
		}
		if verdict := v.probe(ctx, base); verdict.Verified() {
			return verdict
		}
		if time.Now().After(deadline) {
			return VerdictUnverified
		}
	}
}

func (v *Verifier) probe(ctx context.Context, base Baseline) Verdict {
	verdict := VerdictUnverified
	_ = v.loop.Do(ctx, func() error {
		if fg := v.bridge.ForegroundContext(); fg != base.Foreground {
			verdict = VerdictForegroundChanged
			return nil
		}
		root, err := v.bridge.RootWidget()
		if err != nil {
			return nil
		}
		if WidgetSignature(root) != base.Signature {
			verdict = VerdictSurfaceChanged
		}
		return nil
	})
	return verdict
}
