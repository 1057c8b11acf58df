package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ritualsync/internal/config"
	"ritualsync/internal/textutil"
)

const userAgent = "ritualsync/0.1.0"

// SyncSummary is the notification view of a sync pass.
type SyncSummary struct {
	Direction     string
	Created       int
	Updated       int
	Skipped       int
	FailedBatches int
	Duration      time.Duration
}

// EnrichmentSummary is the notification view of an enrichment run.
type EnrichmentSummary struct {
	Source        string
	Enriched      int
	Failed        int
	Excluded      int
	FailedBatches int
	TotalTokens   int
	CostUSD       float64
	Duration      time.Duration
}

// Service defines the notification surface used by the pipeline.
type Service interface {
	NotifySyncCompleted(ctx context.Context, summary SyncSummary) error
	NotifyEnrichmentCompleted(ctx context.Context, summary EnrichmentSummary) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		sync:       cfg.Notifications.Sync,
		enrichment: cfg.Notifications.Enrichment,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client

	sync       bool
	enrichment bool
	errors     bool
}

func (n *ntfyService) NotifySyncCompleted(ctx context.Context, s SyncSummary) error {
	if !n.sync {
		return nil
	}
	direction := textutil.Label(s.Direction)
	message := fmt.Sprintf("🔄 Sync %s: %d updated, %d created", direction, s.Updated, s.Created)
	if s.Skipped > 0 {
		message += fmt.Sprintf(", %d skipped", s.Skipped)
	}
	if d := roundDuration(s.Duration); d != "" {
		message += " in " + d
	}
	data := payload{
		title:   "Ritualsync - Sync Complete",
		message: message,
		tags:    []string{"ritualsync", "sync", "completed"},
	}
	if s.FailedBatches > 0 {
		data.title = "Ritualsync - Sync Complete (with errors)"
		data.message += fmt.Sprintf("\n%d %s failed", s.FailedBatches, textutil.Plural(s.FailedBatches, "batch", "batches"))
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyEnrichmentCompleted(ctx context.Context, s EnrichmentSummary) error {
	if !n.enrichment {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "✨ Enriched %d %s", s.Enriched, textutil.Plural(s.Enriched, "ritual", "rituals"))
	if source := strings.TrimSpace(s.Source); source != "" {
		fmt.Fprintf(&b, " (%s)", source)
	}
	if s.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", s.Failed)
	}
	if s.Excluded > 0 {
		fmt.Fprintf(&b, ", %d excluded", s.Excluded)
	}
	if d := roundDuration(s.Duration); d != "" {
		b.WriteString(" in " + d)
	}
	if s.TotalTokens > 0 {
		fmt.Fprintf(&b, "\nTokens: %d", s.TotalTokens)
		if s.CostUSD > 0 {
			fmt.Fprintf(&b, " ($%.4f)", s.CostUSD)
		}
	}
	data := payload{
		title:   "Ritualsync - Enrichment Complete",
		message: b.String(),
		tags:    []string{"ritualsync", "enrich", "completed"},
	}
	if s.FailedBatches > 0 {
		data.title = "Ritualsync - Enrichment Complete (with errors)"
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" during ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Ritualsync - Error",
		message:  builder.String(),
		tags:     []string{"ritualsync", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Ritualsync - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"ritualsync", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func roundDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return d.Round(time.Second).String()
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifySyncCompleted(context.Context, SyncSummary) error             { return nil }
func (noopService) NotifyEnrichmentCompleted(context.Context, EnrichmentSummary) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                   { return nil }
func (noopService) TestNotification(context.Context) error                             { return nil }
