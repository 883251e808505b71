// Package agent wires the whole pipeline together: it receives envelopes from
// the transport client, routes them through the session, executor, and
// snapshot layers, and answers with structured responses plus bulk frames.
package agent

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/devicepilot/agent/internal/element"
	"github.com/devicepilot/agent/internal/executor"
	"github.com/devicepilot/agent/internal/infrastructure/monitoring"
	"github.com/devicepilot/agent/internal/pagechange"
	"github.com/devicepilot/agent/internal/platform"
	"github.com/devicepilot/agent/internal/session"
	"github.com/devicepilot/agent/internal/shared/id"
	"github.com/devicepilot/agent/internal/snapshot"
	"github.com/devicepilot/agent/internal/transport"
)

// Uploader is the out-of-band fallback for bulk payloads.
type Uploader interface {
	Upload(ctx context.Context, correlationID, payloadKind string, data []byte) (transport.UploadRef, error)
}

// Service routes inbound envelopes. It satisfies transport.Dispatcher.
type Service struct {
	bridge    platform.Bridge
	loop      *platform.Loop
	session   *session.Context
	exec      *executor.Executor
	prompter  platform.Prompter
	narrator  platform.Narrator
	uploader  Uploader
	metrics   *monitoring.Metrics
	scheduler *pagechange.Scheduler
	logger    *zap.Logger

	maxImageWidth int
}

// Options carries the optional collaborators.
type Options struct {
	Prompter      platform.Prompter
	Narrator      platform.Narrator
	Uploader      Uploader
	Metrics       *monitoring.Metrics
	Scheduler     *pagechange.Scheduler
	MaxImageWidth int
}

// NewService assembles the orchestration service.
func NewService(
	bridge platform.Bridge,
	loop *platform.Loop,
	sess *session.Context,
	exec *executor.Executor,
	opts Options,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxImageWidth <= 0 {
		opts.MaxImageWidth = snapshot.DefaultMaxWidth
	}
	return &Service{
		bridge:        bridge,
		loop:          loop,
		session:       sess,
		exec:          exec,
		prompter:      opts.Prompter,
		narrator:      opts.Narrator,
		uploader:      opts.Uploader,
		metrics:       opts.Metrics,
		scheduler:     opts.Scheduler,
		logger:        logger,
		maxImageWidth: opts.MaxImageWidth,
	}
}

// Dispatch handles one envelope. The transport client calls it sequentially,
// so command execution is serialized per connection.
func (s *Service) Dispatch(ctx context.Context, env *transport.Envelope, r *transport.Responder) {
	switch env.Type {
	case transport.KindTaskRequest:
		s.handleTask(ctx, env, r)
	case transport.KindCommand:
		s.handleCommand(ctx, env, r)
	default:
		r.Resolve(transport.Failure(env.CorrelationID, "validation_error", "unroutable message type"))
	}
}

func (s *Service) handleCommand(ctx context.Context, env *transport.Envelope, r *transport.Responder) {
	name := env.Command()
	started := time.Now()

	switch name {
	case "get_state":
		s.getState(ctx, env, r)
	case "take_screenshot":
		s.takeScreenshot(ctx, env, r)
	default:
		s.runInput(ctx, env, r)
	}

	if s.metrics != nil {
		s.metrics.ObserveCommand(name, time.Since(started))
	}
}

// getState serves the unified element tree, from the cache when the surface
// has not changed inside the validity window.
func (s *Service) getState(ctx context.Context, env *transport.Envelope, r *transport.Responder) {
	sig, sigErr := s.session.Signature(ctx)

	if entry, ok := s.session.Cache().Get(); ok && sigErr == nil && entry.Signature == sig {
		if s.metrics != nil {
			s.metrics.CacheHit()
		}
		_ = r.SendFrame(transport.TreeFrame(env.CorrelationID, entry.Body))
		r.Resolve(transport.Success(env.CorrelationID, s.stateData(entry.Tree, entry.Signature, true)))
		return
	}
	if s.metrics != nil {
		s.metrics.CacheMiss()
	}

	tree, err := s.session.Extract(ctx)
	if err != nil {
		r.Resolve(transport.Failure(env.CorrelationID, "execution_failure", err.Error()))
		return
	}
	// The cache is keyed by the live-surface fingerprint so the next call can
	// compare without extracting.
	signature, _ := s.session.Signature(ctx)

	// Serialization runs off the UI loop.
	body, err := sonic.Marshal(tree)
	if err != nil {
		r.Resolve(transport.Failure(env.CorrelationID, "execution_failure", err.Error()))
		return
	}

	s.session.Cache().Put(&snapshot.Entry{
		Tree:      tree,
		Body:      body,
		Signature: signature,
	})

	if err := r.SendFrame(transport.TreeFrame(env.CorrelationID, body)); err != nil {
		// Binary channel unavailable: fall back to the upload path.
		if ref, upErr := s.upload(ctx, env.CorrelationID, transport.PayloadTree, body); upErr == nil {
			data := s.stateData(tree, signature, false)
			data["upload"] = ref.Map()
			r.Resolve(transport.Success(env.CorrelationID, data))
			return
		}
		r.Resolve(transport.Failure(env.CorrelationID, "transport_error", err.Error()))
		return
	}
	r.Resolve(transport.Success(env.CorrelationID, s.stateData(tree, signature, false)))
}

func (s *Service) stateData(tree *element.Tree, signature uint64, cached bool) map[string]interface{} {
	data := map[string]interface{}{
		"backend":   string(tree.Backend),
		"context":   tree.Context,
		"elements":  tree.Size(),
		"signature": signature,
		"cached":    cached,
		"payload":   transport.PayloadTreeCompressed,
	}
	// "Action executed, nothing changed" is a diagnostic the caller reacts
	// to, distinct from a normal snapshot.
	if s.scheduler != nil && s.scheduler.LastUnchanged() {
		data["unchanged"] = true
	}
	return data
}

// takeScreenshot captures on the UI loop, encodes off it, and ships the image
// as a binary frame, falling back to content upload.
func (s *Service) takeScreenshot(ctx context.Context, env *transport.Envelope, r *transport.Responder) {
	img, err := snapshot.Capture(ctx, s.bridge, s.loop)
	if err != nil {
		r.Resolve(transport.Failure(env.CorrelationID, "execution_failure", err.Error()))
		return
	}

	encoded, err := snapshot.EncodeScreenshot(img, s.maxImageWidth)
	if err != nil {
		r.Resolve(transport.Failure(env.CorrelationID, "execution_failure", err.Error()))
		return
	}

	if entry := s.session.Cache().Peek(); entry != nil {
		entry.Image = encoded
	}

	if err := r.SendFrame(transport.ScreenshotFrame(env.CorrelationID, encoded)); err != nil {
		if ref, upErr := s.upload(ctx, env.CorrelationID, transport.PayloadScreenshot, encoded); upErr == nil {
			r.Resolve(transport.Success(env.CorrelationID, map[string]interface{}{"upload": ref.Map()}))
			return
		}
		r.Resolve(transport.Failure(env.CorrelationID, "transport_error", err.Error()))
		return
	}
	r.Resolve(transport.Success(env.CorrelationID, map[string]interface{}{
		"payload": transport.PayloadScreenshot,
		"size":    len(encoded),
	}))
}

// runInput executes one synthesized-input command through the executor.
func (s *Service) runInput(ctx context.Context, env *transport.Envelope, r *transport.Responder) {
	cmd := executor.Command{
		Name:   executor.Name(env.Command()),
		Params: env.Params(),
	}

	outcome := s.exec.Run(ctx, cmd)
	if s.metrics != nil {
		s.metrics.CommandResult(string(cmd.Name), string(outcome.Status))
	}
	if outcome.Failure != nil {
		s.logger.Warn("command failed",
			zap.String("command", string(cmd.Name)),
			zap.String("kind", string(outcome.Failure.Kind)),
		)
		r.Resolve(transport.Failure(env.CorrelationID, string(outcome.Failure.Kind), outcome.Failure.Message))
		return
	}

	// A mutation just happened (or was at least attempted): the memoized
	// snapshot no longer describes the surface, and the capture cycle
	// starts for the next state request.
	s.session.Cache().Invalidate()
	if s.scheduler != nil {
		s.scheduler.OnInstruction()
	}

	r.Resolve(transport.Success(env.CorrelationID, map[string]interface{}{
		"status":  string(outcome.Status),
		"verdict": outcome.Verdict.String(),
	}))
}

// handleTask accepts a long-running goal, relays operator questions, and
// narrates status. The reasoning itself lives on the remote side; the agent
// only acknowledges and relays.
func (s *Service) handleTask(ctx context.Context, env *transport.Envelope, r *transport.Responder) {
	goal, _ := env.Data["goal"].(string)
	taskID := id.NewTaskID()

	if s.narrator != nil {
		s.narrator.Narrate("Starting: " + goal)
	}

	if question, ok := env.Data["question"].(string); ok && question != "" {
		if s.prompter == nil {
			r.Resolve(transport.Failure(env.CorrelationID, "execution_failure", "no prompt surface available"))
			return
		}
		answer, err := s.prompter.Ask(ctx, question)
		if err != nil {
			r.Resolve(transport.Failure(env.CorrelationID, "execution_failure", err.Error()))
			return
		}
		resp := transport.NewEnvelope(transport.KindTaskResponse)
		resp.CorrelationID = env.CorrelationID
		resp.Status = transport.StatusSuccess
		resp.Data = map[string]interface{}{"task_id": taskID.String(), "answer": answer}
		r.Resolve(resp)
		return
	}

	resp := transport.NewEnvelope(transport.KindTaskResponse)
	resp.CorrelationID = env.CorrelationID
	resp.Status = transport.StatusSuccess
	resp.Data = map[string]interface{}{"task_id": taskID.String(), "accepted": true}
	r.Resolve(resp)
}

func (s *Service) upload(ctx context.Context, correlationID, kind string, data []byte) (transport.UploadRef, error) {
	if s.uploader == nil {
		return transport.UploadRef{}, errors.New("no upload fallback configured")
	}
	if s.metrics != nil {
		s.metrics.UploadFallback()
	}
	return s.uploader.Upload(ctx, correlationID, kind, data)
}
