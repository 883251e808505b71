package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicepilot/agent/internal/executor"
	"github.com/devicepilot/agent/internal/pagechange"
	"github.com/devicepilot/agent/internal/platform"
	"github.com/devicepilot/agent/internal/platform/platformtest"
	"github.com/devicepilot/agent/internal/session"
	"github.com/devicepilot/agent/internal/transport"
)

type fakePrompter struct{ answer string }

func (p fakePrompter) Ask(context.Context, string) (string, error) { return p.answer, nil }

type fakeUploader struct {
	ref  transport.UploadRef
	err  error
	hits int
}

func (u *fakeUploader) Upload(_ context.Context, _, kind string, data []byte) (transport.UploadRef, error) {
	u.hits++
	if u.err != nil {
		return transport.UploadRef{}, u.err
	}
	ref := u.ref
	ref.PayloadKind = kind
	ref.Size = len(data)
	return ref, nil
}

// recorder captures everything a responder sends.
type recorder struct {
	envelopes []*transport.Envelope
	frames    []transport.Frame
	frameErr  error
}

func (r *recorder) responder(corr string) *transport.Responder {
	return transport.NewResponder(corr, time.Minute,
		func(e *transport.Envelope) error { r.envelopes = append(r.envelopes, e); return nil },
		func(f transport.Frame) error {
			if r.frameErr != nil {
				return r.frameErr
			}
			r.frames = append(r.frames, f)
			return nil
		},
	)
}

type serviceFixture struct {
	bridge  *platformtest.Bridge
	service *Service
	session *session.Context
	rec     *recorder
}

func newFixture(t *testing.T, opts Options) *serviceFixture {
	t.Helper()

	root := platformtest.NewWidget("android.widget.FrameLayout")
	root.Bounds = [4]int{0, 0, 360, 640}
	button := platformtest.NewWidget("android.widget.Button")
	button.Bounds = [4]int{100, 180, 300, 220}
	button.Txt = "Submit"
	button.IsClickable = true
	button.HandlerPresent = true
	root.Add(button)

	bridge := platformtest.NewBridge(root)
	loop := platform.NewLoop(32)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(cancel)

	sess := session.New(bridge, loop, session.Settings{CacheTTL: time.Minute}, nil)
	verifier := pagechange.NewVerifier(bridge, loop, pagechange.VerifierConfig{
		Window:   100 * time.Millisecond,
		Interval: 15 * time.Millisecond,
	})
	exec := executor.New(bridge, loop, sess, sess.Actions(), sess, verifier,
		executor.Config{SettleDelay: 5 * time.Millisecond}, nil)

	return &serviceFixture{
		bridge:  bridge,
		service: NewService(bridge, loop, sess, exec, opts, nil),
		session: sess,
		rec:     &recorder{},
	}
}

func commandEnvelope(corr, name string, params map[string]interface{}) *transport.Envelope {
	return &transport.Envelope{
		Version:       transport.SchemaVersion,
		Type:          transport.KindCommand,
		CorrelationID: corr,
		Data:          map[string]interface{}{"name": name, "params": params},
	}
}

func TestGetStateShipsTreeFrame(t *testing.T) {
	f := newFixture(t, Options{})

	f.service.Dispatch(context.Background(), commandEnvelope("g1", "get_state", nil), f.rec.responder("g1"))

	require.Len(t, f.rec.frames, 1)
	frame := f.rec.frames[0]
	assert.Equal(t, "g1", frame.CorrelationID)
	assert.Equal(t, transport.PayloadTreeCompressed, frame.PayloadKind)

	body, err := transport.Decompress(frame.Payload)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Submit")

	require.Len(t, f.rec.envelopes, 1)
	resp := f.rec.envelopes[0]
	assert.Equal(t, transport.StatusSuccess, resp.Status)
	assert.Equal(t, "native", resp.Data["backend"])
	assert.Equal(t, false, resp.Data["cached"])
}

func TestGetStateCacheHitIsByteIdentical(t *testing.T) {
	f := newFixture(t, Options{})

	f.service.Dispatch(context.Background(), commandEnvelope("g1", "get_state", nil), f.rec.responder("g1"))
	f.service.Dispatch(context.Background(), commandEnvelope("g2", "get_state", nil), f.rec.responder("g2"))

	require.Len(t, f.rec.frames, 2)
	assert.Equal(t, f.rec.frames[0].Payload, f.rec.frames[1].Payload,
		"unchanged surface inside the window returns byte-identical payloads")

	require.Len(t, f.rec.envelopes, 2)
	assert.Equal(t, false, f.rec.envelopes[0].Data["cached"])
	assert.Equal(t, true, f.rec.envelopes[1].Data["cached"])

	hits, _ := f.session.Cache().Stats()
	assert.Equal(t, uint64(1), hits)
}

func TestGetStateMutationBustsCache(t *testing.T) {
	f := newFixture(t, Options{})

	f.service.Dispatch(context.Background(), commandEnvelope("g1", "get_state", nil), f.rec.responder("g1"))

	changed := platformtest.NewWidget("android.widget.FrameLayout")
	changed.Bounds = [4]int{0, 0, 360, 640}
	label := platformtest.NewWidget("android.widget.TextView")
	label.Txt = "done"
	changed.Add(label)
	f.bridge.SetRoot(changed)

	f.service.Dispatch(context.Background(), commandEnvelope("g2", "get_state", nil), f.rec.responder("g2"))

	require.Len(t, f.rec.envelopes, 2)
	assert.Equal(t, false, f.rec.envelopes[1].Data["cached"])
	assert.NotEqual(t, f.rec.frames[0].Payload, f.rec.frames[1].Payload)
}

func TestInputCommandRespondsAndInvalidates(t *testing.T) {
	f := newFixture(t, Options{})

	f.service.Dispatch(context.Background(), commandEnvelope("g1", "get_state", nil), f.rec.responder("g1"))
	f.service.Dispatch(context.Background(),
		commandEnvelope("t1", "tap", map[string]interface{}{"x": float64(200), "y": float64(200)}),
		f.rec.responder("t1"))

	require.Len(t, f.rec.envelopes, 2)
	resp := f.rec.envelopes[1]
	assert.Equal(t, transport.StatusSuccess, resp.Status)
	assert.Contains(t, []interface{}{"verified", "unverified"}, resp.Data["status"])

	_, ok := f.session.Cache().Get()
	assert.False(t, ok, "input commands invalidate the memoized snapshot")
}

func TestInputCommandFailureKindSurfaces(t *testing.T) {
	f := newFixture(t, Options{})

	f.service.Dispatch(context.Background(),
		commandEnvelope("t2", "tap", map[string]interface{}{"x": float64(1)}), // missing y
		f.rec.responder("t2"))

	require.Len(t, f.rec.envelopes, 1)
	resp := f.rec.envelopes[0]
	assert.Equal(t, transport.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "validation_error")
}

func TestTakeScreenshotShipsFrame(t *testing.T) {
	f := newFixture(t, Options{})

	f.service.Dispatch(context.Background(), commandEnvelope("s1", "take_screenshot", nil), f.rec.responder("s1"))

	require.Len(t, f.rec.frames, 1)
	assert.Equal(t, transport.PayloadScreenshot, f.rec.frames[0].PayloadKind)
	// PNG magic
	require.Greater(t, len(f.rec.frames[0].Payload), 8)
	assert.Equal(t, byte(0x89), f.rec.frames[0].Payload[0])

	require.Len(t, f.rec.envelopes, 1)
	assert.Equal(t, transport.StatusSuccess, f.rec.envelopes[0].Status)
}

func TestTakeScreenshotFallsBackToUpload(t *testing.T) {
	up := &fakeUploader{ref: transport.UploadRef{URL: "https://store.example/blob/1", Digest: "d"}}
	f := newFixture(t, Options{Uploader: up})
	f.rec.frameErr = errors.New("binary channel closed")

	f.service.Dispatch(context.Background(), commandEnvelope("s2", "take_screenshot", nil), f.rec.responder("s2"))

	assert.Equal(t, 1, up.hits)
	require.Len(t, f.rec.envelopes, 1)
	resp := f.rec.envelopes[0]
	require.Equal(t, transport.StatusSuccess, resp.Status)
	ref, ok := resp.Data["upload"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "https://store.example/blob/1", ref["url"])
	assert.Equal(t, transport.PayloadScreenshot, ref["payload_kind"])
}

func TestTaskRequestRelaysPrompt(t *testing.T) {
	f := newFixture(t, Options{Prompter: fakePrompter{answer: "the blue one"}})

	env := &transport.Envelope{
		Version:       transport.SchemaVersion,
		Type:          transport.KindTaskRequest,
		CorrelationID: "q1",
		Data: map[string]interface{}{
			"goal":     "pick a theme",
			"question": "which color?",
		},
	}
	f.service.Dispatch(context.Background(), env, f.rec.responder("q1"))

	require.Len(t, f.rec.envelopes, 1)
	resp := f.rec.envelopes[0]
	assert.Equal(t, transport.KindTaskResponse, resp.Type)
	assert.Equal(t, "the blue one", resp.Data["answer"])
}
