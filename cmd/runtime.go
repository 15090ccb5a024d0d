package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/dentai/internal/agent"
	"github.com/abhisek/dentai/internal/assess"
	"github.com/abhisek/dentai/internal/config"
	"github.com/abhisek/dentai/internal/evaluator"
	"github.com/abhisek/dentai/internal/interpret"
	"github.com/abhisek/dentai/internal/llm"
	"github.com/abhisek/dentai/internal/roleplay"
	"github.com/abhisek/dentai/internal/scenario"
	"github.com/abhisek/dentai/internal/store"
	"github.com/abhisek/dentai/internal/telemetry"
)

// runtime holds everything a command needs to process turns.
type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *store.Store
	agent   *agent.Agent
	metrics *telemetry.Metrics
	closers []func() error
}

// buildRuntime loads configuration and wires the pipeline. Missing model
// credentials degrade the affected steps instead of failing.
func buildRuntime(cmd *cobra.Command) (*runtime, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cmd, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	rt := &runtime{cfg: cfg, logger: logger}

	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	rt.db, err = store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.closers = append(rt.closers, rt.db.Close)

	backend, err := rt.stateBackend(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	catalog := scenario.LoadCatalog(cfg.CasesPath, logger)
	states := scenario.NewStore(catalog, backend, logger.Named("scenario"))

	rules, err := assess.LoadRules(cfg.RulesPath)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("load rules: %w", err)
	}

	events := rt.db.EventRepo()
	provider, err := llm.NewProvider(ctx, cfg.LLM, events, logger.Named("llm"))
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			logger.Warn("language model not configured, using keyword interpretation")
		} else {
			logger.Warn("language model unavailable, using keyword interpretation", zap.Error(err))
		}
		provider = nil
	}

	var validator evaluator.Validator
	if v, err := evaluator.New(ctx, cfg.Evaluator, events, logger.Named("evaluator")); err != nil {
		logger.Debug("second evaluator not built", zap.Error(err))
	} else {
		validator = v
	}

	rt.metrics, err = telemetry.InitMetrics("dentai", version, true)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, func() error {
		return rt.metrics.Shutdown(context.Background())
	})

	rt.agent, err = agent.New(agent.Config{
		Store:         states,
		Interpreter:   interpret.New(provider, logger.Named("interpret")),
		Evaluator:     rules,
		Responder:     roleplay.New(provider, states, logger.Named("roleplay")),
		Rules:         rules,
		Validator:     validator,
		Recorder:      events,
		MeterProvider: rt.metrics.Provider,
		Logger:        logger.Named("agent"),
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) stateBackend(ctx context.Context) (scenario.Backend, error) {
	switch rt.cfg.State.Backend {
	case config.BackendMemory:
		return scenario.NewMemoryBackend(), nil
	case config.BackendRedis:
		rb, err := scenario.NewRedisBackend(rt.cfg.State.RedisURL, rt.cfg.State.RedisPrefix, rt.cfg.State.TTL)
		if err != nil {
			return nil, err
		}
		if err := rb.Ping(ctx); err != nil {
			_ = rb.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		rt.closers = append(rt.closers, rb.Close)
		return rb, nil
	}
	snaps := rt.db.SnapshotRepo()
	if ttl := rt.cfg.State.TTL; ttl > 0 {
		n, err := snaps.Prune(ctx, time.Now().Add(-ttl))
		if err != nil {
			return nil, fmt.Errorf("prune state snapshots: %w", err)
		}
		if n > 0 {
			rt.logger.Info("pruned stale learner states", zap.Int64("count", n))
		}
	}
	return scenario.NewSnapshotBackend(snaps), nil
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("close failed", zap.Error(err))
		}
	}
	rt.closers = nil
	_ = rt.logger.Sync()
}
