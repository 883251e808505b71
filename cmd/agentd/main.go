// Command agentd is the on-device automation agent. The embedding application
// registers its platform bindings through platform.RegisterHost before this
// entrypoint runs; agentd then assembles the pipeline and holds the channel to
// the remote controller open until the process is told to stop.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/devicepilot/agent/internal/agent"
	"github.com/devicepilot/agent/internal/executor"
	"github.com/devicepilot/agent/internal/infrastructure/config"
	"github.com/devicepilot/agent/internal/infrastructure/monitoring"
	"github.com/devicepilot/agent/internal/infrastructure/server"
	"github.com/devicepilot/agent/internal/infrastructure/tracing"
	"github.com/devicepilot/agent/internal/logging"
	"github.com/devicepilot/agent/internal/pagechange"
	"github.com/devicepilot/agent/internal/platform"
	"github.com/devicepilot/agent/internal/session"
	"github.com/devicepilot/agent/internal/transport"
)

func main() {
	cfg := config.LoadOrDefault()

	logger := logging.MustNew(logging.Options{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	defer logger.Sync()

	host, ok := platform.RegisteredHost()
	if !ok {
		logger.Fatal("no platform host registered; the embedding application must call platform.RegisterHost")
	}
	bridge := host.Bridge

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.TickUptime()
			}
		}
	}()

	loop := platform.NewLoop(0)
	go loop.Run(ctx)

	sess := session.New(bridge, loop, session.Settings{
		CacheTTL:         cfg.Snapshot.CacheTTL,
		ReservedCapacity: cfg.Snapshot.ReservedCapacity,
		Metrics:          metrics,
	}, logger)

	verifier := pagechange.NewVerifier(bridge, loop, pagechange.VerifierConfig{
		Window:   cfg.Command.VerifyWindow,
		Interval: cfg.Command.VerifyPoll,
	})

	exec := executor.New(bridge, loop, sess, sess.Actions(), sess, verifier, executor.Config{
		SettleDelay:   cfg.Command.SettleDelay,
		SwipeDuration: cfg.Command.SwipeDuration,
	}, logger)

	// The scheduler's capture compares the live surface against the memoized
	// snapshot and drops the snapshot once the surface has moved on.
	capture := func(pagechange.Trigger) uint64 {
		sig, err := sess.Signature(ctx)
		if err != nil {
			return 0
		}
		if cached := sess.Cache().Signature(); cached != 0 && cached != sig {
			sess.Cache().Invalidate()
		}
		return sig
	}
	scheduler := pagechange.NewScheduler(pagechange.SchedulerConfig{
		FirstCaptureDelay: cfg.Snapshot.FirstCaptureDelay,
		Debounce:          cfg.Snapshot.Debounce,
		AbsoluteBound:     cfg.Snapshot.AbsoluteBound,
	}, capture, logger)
	go scheduler.Run(ctx, bridge.Signals())

	opts := agent.Options{
		Prompter:      host.Prompter,
		Narrator:      host.Narrator,
		Metrics:       metrics,
		Scheduler:     scheduler,
		MaxImageWidth: cfg.Snapshot.MaxImageWidth,
	}
	if cfg.Channel.UploadEndpoint != "" {
		opts.Uploader = transport.NewUploader(cfg.Channel.UploadEndpoint)
	}
	svc := agent.NewService(bridge, loop, sess, exec, opts, logger)

	tracer := tracing.New("agent", logger)
	dispatcher := tracing.WrapDispatcher(tracer, svc)

	deviceID := cfg.Channel.DeviceID
	if deviceID == "" {
		deviceID = sess.ID.String()
	}
	client := transport.NewClient(transport.ClientConfig{
		URL:            cfg.Channel.URL,
		DeviceID:       deviceID,
		PingInterval:   cfg.Channel.PingInterval,
		CommandTimeout: cfg.Command.Timeout,
		MaxRetries:     cfg.Channel.MaxRetries,
		RetryBackoff:   cfg.Channel.RetryBackoff,
	}, dispatcher, logger)
	client.OnReconnect = func(attempt int) {
		metrics.Reconnect()
		logger.Info("channel reconnected", zap.Int("attempt", attempt))
	}

	var diag *server.Server
	if cfg.Diagnostics.Enabled {
		diag = server.New(cfg, sess, scheduler, metrics, logger)
		go func() {
			if err := diag.Run(); err != nil {
				logger.Error("diagnostics server failed", zap.Error(err))
			}
		}()
	}

	logger.Info("agent starting",
		zap.String("device_id", deviceID),
		zap.String("controller", cfg.Channel.URL),
		zap.String("session_id", sess.ID.String()),
	)

	err := client.Run(ctx)
	if err != nil && ctx.Err() == nil {
		logger.Error("channel closed", zap.Error(err))
	}

	if diag != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := diag.Shutdown(shutdownCtx); err != nil {
			logger.Warn("diagnostics shutdown", zap.Error(err))
		}
	}
	sess.Reset()
	logger.Info("agent stopped")
}
