package pagechange

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicepilot/agent/internal/platform"
	"github.com/devicepilot/agent/internal/platform/platformtest"
)

func verifierFixture(t *testing.T) (*Verifier, *platformtest.Bridge, func()) {
	t.Helper()
	root := platformtest.NewWidget("FrameLayout")
	root.Bounds = [4]int{0, 0, 360, 640}
	label := platformtest.NewWidget("TextView")
	label.Txt = "before"
	root.Add(label)

	bridge := platformtest.NewBridge(root)
	loop := platform.NewLoop(16)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	v := NewVerifier(bridge, loop, VerifierConfig{
		Window:   300 * time.Millisecond,
		Interval: 20 * time.Millisecond,
	})
	return v, bridge, cancel
}

func TestAwaitChangeSeesStructuralMutation(t *testing.T) {
	v, bridge, stop := verifierFixture(t)
	defer stop()

	base, err := v.Baseline(context.Background())
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		newRoot := platformtest.NewWidget("FrameLayout")
		newRoot.Bounds = [4]int{0, 0, 360, 640}
		changed := platformtest.NewWidget("TextView")
		changed.Txt = "after"
		newRoot.Add(changed)
		bridge.SetRoot(newRoot)
	}()

	verdict := v.AwaitChange(context.Background(), base)
	assert.Equal(t, VerdictSurfaceChanged, verdict)
	assert.True(t, verdict.Verified())
}

func TestAwaitChangeSeesForegroundSwitch(t *testing.T) {
	v, bridge, stop := verifierFixture(t)
	defer stop()

	base, err := v.Baseline(context.Background())
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		bridge.SetForeground("com.example.other/Detail")
	}()

	assert.Equal(t, VerdictForegroundChanged, v.AwaitChange(context.Background(), base))
}

func TestAwaitChangeTimesOutUnverified(t *testing.T) {
	v, _, stop := verifierFixture(t)
	defer stop()

	base, err := v.Baseline(context.Background())
	require.NoError(t, err)

	start := time.Now()
	verdict := v.AwaitChange(context.Background(), base)

	assert.Equal(t, VerdictUnverified, verdict)
	assert.False(t, verdict.Verified())
	assert.GreaterOrEqual(t, time.Since(start), 280*time.Millisecond)
}
