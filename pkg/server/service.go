package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mikeboe/research-agent/pkg/clients"
	"github.com/mikeboe/research-agent/pkg/config"
	"github.com/mikeboe/research-agent/pkg/metrics"
	"github.com/mikeboe/research-agent/pkg/research"
)

const quotaMessage = "API quota exceeded or rate limited. Please try again later."

// storeTimeout bounds audit writes, which run on a background context so a
// cancelled request still gets its final status recorded.
const storeTimeout = 5 * time.Second

// Researcher runs one research session.
type Researcher interface {
	Run(ctx context.Context, topic string, maxDepth int, progress research.ProgressReporter) (*research.Result, error)
}

// EngineFactory builds a Researcher from validated configuration.
type EngineFactory func(ctx context.Context, cfg *config.Config) (Researcher, error)

// RunStore persists the audit trail of research runs.
type RunStore interface {
	LogStore
	CreateRun(ctx context.Context, id uuid.UUID, topic string, maxDepth int) error
	CompleteRun(ctx context.Context, id uuid.UUID, totalFindings, totalSources int) error
	FailRun(ctx context.Context, id uuid.UUID, reason string) error
}

// Service runs research sessions. The engine is built on the first request
// that passes validation and shared by every later one.
type Service struct {
	Cfg       *config.Config
	Runs      RunStore
	Metrics   *metrics.Metrics
	NewEngine EngineFactory
	Logger    *slog.Logger

	// LogFlushTimeout bounds how long a finished run waits for its audit log
	// to drain.
	LogFlushTimeout time.Duration

	mu     sync.Mutex
	engine Researcher
}

func NewService(cfg *config.Config, m *metrics.Metrics) *Service {
	return &Service{
		Cfg:       cfg,
		Metrics:   m,
		NewEngine: defaultEngine,
		Logger:    slog.Default(),

		LogFlushTimeout: storeTimeout,
	}
}

func defaultEngine(ctx context.Context, cfg *config.Config) (Researcher, error) {
	return research.NewEngineFromConfig(ctx, cfg)
}

// DefaultDepth is the depth used when a request does not name one.
func (s *Service) DefaultDepth() int {
	if s.Cfg == nil || s.Cfg.DefaultDepth == 0 {
		return research.DefaultDepth
	}
	return research.ClampDepth(s.Cfg.DefaultDepth)
}

// Research validates configuration, then runs a complete research session
// under the configured request deadline.
func (s *Service) Research(ctx context.Context, topic string, maxDepth int) (*research.Result, error) {
	if err := s.Cfg.Validate(); err != nil {
		return nil, err
	}

	engine, err := s.researcher(ctx)
	if err != nil {
		return nil, err
	}

	if s.Cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Cfg.RequestTimeout)
		defer cancel()
	}

	runID := uuid.New()
	logger := s.logger().With("run_id", runID.String())
	reporters := research.MultiReporter{research.LogReporter{Logger: logger}}
	if s.Metrics != nil {
		reporters = append(reporters, s.Metrics)
	}

	recorded := false
	var auditLog *DBLogHandler
	if s.Runs != nil {
		storeCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		err := s.Runs.CreateRun(storeCtx, runID, topic, research.ClampDepth(maxDepth))
		cancel()
		if err != nil {
			logger.Warn("Failed to record research run", "error", err)
		} else {
			recorded = true
			auditLog = NewDBLogHandler(s.Runs, runID)
			reporters = append(reporters, research.LogReporter{Logger: slog.New(auditLog)})
		}
	}

	start := time.Now()
	result, err := engine.Run(ctx, topic, maxDepth, reporters)
	elapsed := time.Since(start)
	if auditLog != nil {
		if dropped := auditLog.Close(s.LogFlushTimeout); dropped > 0 {
			logger.Warn("Audit log records dropped", "dropped", dropped)
		}
	}
	s.finish(logger, runID, recorded, result, err, elapsed)
	return result, err
}

// researcher returns the shared engine, building it on first use. A failed
// build is not cached.
func (s *Service) researcher(ctx context.Context) (Researcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine != nil {
		return s.engine, nil
	}
	// The engine's clients outlive this request
	engine, err := s.NewEngine(context.WithoutCancel(ctx), s.Cfg)
	if err != nil {
		return nil, err
	}
	s.engine = engine
	return engine, nil
}

func (s *Service) finish(logger *slog.Logger, runID uuid.UUID, recorded bool, result *research.Result, runErr error, elapsed time.Duration) {
	outcome := "success"
	if runErr != nil {
		outcome = "error"
		logger.Error("Research run failed", "error", runErr, "elapsed", elapsed)
	} else {
		logger.Info("Research run completed", "findings", result.TotalFindings, "sources", len(result.Sources), "elapsed", elapsed)
	}
	if s.Metrics != nil {
		s.Metrics.ObserveRun(outcome, elapsed)
	}
	if !recorded {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	var err error
	if runErr != nil {
		err = s.Runs.FailRun(ctx, runID, runErr.Error())
	} else {
		err = s.Runs.CompleteRun(ctx, runID, result.TotalFindings, len(result.Sources))
	}
	if err != nil {
		logger.Warn("Failed to update research run", "error", err)
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// NormalizeError turns a failure into the message shown to API callers.
// Credential problems name the provider; quota problems get a generic retry
// hint; everything else passes through.
func NormalizeError(err error) string {
	var missing *config.MissingEnvError
	if errors.As(err, &missing) {
		return missing.Error()
	}

	kind, provider := clients.Classify(err)
	switch kind {
	case clients.KindCredentials:
		if provider == "" {
			return "Invalid or missing API key"
		}
		return fmt.Sprintf("Invalid or missing API key for %s", provider)
	case clients.KindQuota:
		return quotaMessage
	}
	return err.Error()
}
