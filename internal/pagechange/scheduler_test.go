package pagechange

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicepilot/agent/internal/platform"
)

type captureRecorder struct {
	mu       sync.Mutex
	triggers []Trigger
	sig      uint64
}

func (c *captureRecorder) capture(tr Trigger) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggers = append(c.triggers, tr)
	return c.sig
}

func (c *captureRecorder) recorded() []Trigger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Trigger(nil), c.triggers...)
}

func fastConfig() SchedulerConfig {
	return SchedulerConfig{
		FirstCaptureDelay: 40 * time.Millisecond,
		Debounce:          20 * time.Millisecond,
		AbsoluteBound:     200 * time.Millisecond,
	}
}

func runScheduler(t *testing.T, rec *captureRecorder) (*Scheduler, chan platform.Signal, func()) {
	t.Helper()
	s := NewScheduler(fastConfig(), rec.capture, nil)
	signals := make(chan platform.Signal, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, signals)
		close(done)
	}()
	return s, signals, func() {
		cancel()
		<-done
	}
}

func TestFirstCaptureForcedWithoutSignals(t *testing.T) {
	rec := &captureRecorder{sig: 1}
	s, _, stop := runScheduler(t, rec)
	defer stop()

	s.OnInstruction()

	require.Eventually(t, func() bool {
		return len(rec.recorded()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, TriggerFirstCapture, rec.recorded()[0])
	assert.Equal(t, StateIdle, s.State())
}

func TestMutationSignalsDebounceIntoOneCapture(t *testing.T) {
	rec := &captureRecorder{sig: 1}
	s, signals, stop := runScheduler(t, rec)
	defer stop()

	s.OnInstruction()
	// A burst of rapid signals coalesces into a single debounced capture.
	for i := 0; i < 5; i++ {
		signals <- platform.SignalLayout
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return len(rec.recorded()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, TriggerDebounce, rec.recorded()[0])
}

func TestAbsoluteBoundFiresUnderSustainedMutation(t *testing.T) {
	rec := &captureRecorder{sig: 1}
	s, signals, stop := runScheduler(t, rec)
	defer stop()

	s.OnInstruction()
	// Keep resetting the debounce faster than it can expire; only the
	// absolute safety net should fire.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case signals <- platform.SignalWebPaint:
				default:
				}
			}
		}
	}()

	require.Eventually(t, func() bool {
		return len(rec.recorded()) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, TriggerAbsolute, rec.recorded()[0])
}

func TestSignalsIgnoredWhileIdle(t *testing.T) {
	rec := &captureRecorder{sig: 1}
	_, signals, stop := runScheduler(t, rec)
	defer stop()

	signals <- platform.SignalLayout
	time.Sleep(80 * time.Millisecond)

	assert.Empty(t, rec.recorded())
}

func TestUnchangedSignatureFlagged(t *testing.T) {
	rec := &captureRecorder{sig: 7}
	s, _, stop := runScheduler(t, rec)
	defer stop()

	s.OnInstruction()
	require.Eventually(t, func() bool { return len(rec.recorded()) == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, s.LastUnchanged())

	// Second cycle captures an identical signature: the diagnostic case.
	s.OnInstruction()
	require.Eventually(t, func() bool { return len(rec.recorded()) == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, s.LastUnchanged())
}
