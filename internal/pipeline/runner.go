package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"ritualsync/internal/audit"
	"ritualsync/internal/config"
	"ritualsync/internal/enrichment"
	"ritualsync/internal/logging"
	"ritualsync/internal/notifications"
	"ritualsync/internal/services"
	"ritualsync/internal/services/llm"
)

// ErrBusy is returned when another invocation holds the run lock.
var ErrBusy = errors.New("another ritualsync invocation is already running")

// Runner executes sync and enrichment runs.
type Runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
	invoker  enrichment.Invoker
	now      func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithInvoker replaces the LLM-backed invoker.
func WithInvoker(invoker enrichment.Invoker) Option {
	return func(r *Runner) {
		if invoker != nil {
			r.invoker = invoker
		}
	}
}

// WithNotifier replaces the config-derived notification service.
func WithNotifier(n notifications.Service) Option {
	return func(r *Runner) {
		if n != nil {
			r.notifier = n
		}
	}
}

// New builds a runner for cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		notifier: notifications.NewService(cfg),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// begin takes the run lock and stamps a run id. The returned release must be
// called when the run ends.
func (r *Runner) begin(ctx context.Context) (context.Context, func(), error) {
	if err := r.cfg.EnsureDirectories(); err != nil {
		return ctx, nil, services.Wrap(services.ErrConfiguration, "pipeline", "prepare", "", err)
	}
	lock := flock.New(r.cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return ctx, nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ctx, nil, fmt.Errorf("%w (lock %s)", ErrBusy, r.cfg.LockPath())
	}
	release := func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release run lock", logging.Error(err), logging.String("lock", r.cfg.LockPath()))
		}
	}
	return services.WithRunID(ctx, uuid.NewString()), release, nil
}

func (r *Runner) enrichmentInvoker() (enrichment.Invoker, error) {
	if r.invoker != nil {
		return r.invoker, nil
	}
	if err := r.cfg.RequireLLM(); err != nil {
		return nil, err
	}
	settings := r.cfg.GetLLM()
	client := llm.NewClient(llm.Config{
		APIKey:         settings.APIKey,
		BaseURL:        settings.BaseURL,
		Model:          settings.Model,
		Referer:        settings.Referer,
		Title:          settings.Title,
		TimeoutSeconds: settings.TimeoutSeconds,
	})
	return enrichment.NewLLMInvoker(client, r.logger), nil
}

func (r *Runner) auditLog() *audit.Log {
	return audit.New(r.cfg.Paths.AuditLog)
}

func (r *Runner) notifyFailure(ctx context.Context, label string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	if nerr := r.notifier.NotifyError(ctx, err, label); nerr != nil {
		r.notificationFailed(ctx, nerr)
	}
}

func (r *Runner) notificationFailed(ctx context.Context, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, r.logger), "notification not delivered", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		logging.String(logging.FieldImpact, "run result not pushed"),
	)
}
