package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMinInterval = time.Second
	defaultMaxRetries  = 3
	defaultRetryBase   = 2 * time.Second
	defaultMaxTokens   = 1024
)

var (
	aiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "opvera",
		Subsystem: "ai",
		Name:      "request_duration_seconds",
		Help:      "Duration of language-model completion requests",
	}, []string{"model"})

	aiRequestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opvera",
		Subsystem: "ai",
		Name:      "request_failures_total",
		Help:      "Number of failed language-model completion attempts",
	}, []string{"model"})
)

// GatewayConfig defines configuration for the AI gateway.
type GatewayConfig struct {
	APIKey      string
	Model       string
	MinInterval time.Duration
	MaxRetries  int
	RetryBase   time.Duration
	Logger      zerolog.Logger
}

// Gateway mediates completion requests through a shared cooldown clock and
// bounded exponential-backoff retry. All callers in the process serialize
// through one instance; constructing more than one defeats the throttle.
type Gateway struct {
	client      *openai.Client
	model       string
	minInterval time.Duration
	maxRetries  int
	retryBase   time.Duration
	logger      zerolog.Logger
	tracer      trace.Tracer

	mu       sync.Mutex
	lastCall time.Time

	// Injected for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGateway builds the gateway from configuration.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = defaultMinInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}

	return &Gateway{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		minInterval: cfg.MinInterval,
		maxRetries:  cfg.MaxRetries,
		retryBase:   cfg.RetryBase,
		logger:      cfg.Logger.With().Str("component", "ai_gateway").Logger(),
		tracer:      otel.Tracer("github.com/opvera/opvera-api/pkg/ai"),
		now:         time.Now,
		sleep:       sleepContext,
	}, nil
}

// Complete sends one prompt and returns the raw completion text. The call is
// delayed until the minimum interval since the previous dispatch has elapsed,
// then retried with doubling backoff on failure. Exhausting retries surfaces
// a terminal error; no partial result is returned.
func (g *Gateway) Complete(parent context.Context, prompt string, opts CompleteOptions) (string, error) {
	ctx, span := g.tracer.Start(parent, "ai.complete", trace.WithAttributes(
		attribute.String("model", g.model),
	))
	defer span.End()

	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = defaultMaxTokens
	}

	if err := g.waitForSlot(ctx); err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		text, err := g.dispatch(ctx, prompt, opts)
		if err == nil {
			return text, nil
		}

		lastErr = err
		aiRequestFailures.WithLabelValues(g.model).Inc()
		g.logger.Warn().Err(err).Int("attempt", attempt).Int("max", g.maxRetries).Msg("completion attempt failed")

		if attempt == g.maxRetries {
			break
		}
		if err := g.sleep(ctx, g.retryBase<<(attempt-1)); err != nil {
			return "", err
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return "", fmt.Errorf("completion failed after %d attempts: %w", g.maxRetries, lastErr)
}

// waitForSlot enforces the process-wide minimum spacing between dispatches.
// The lock is held across the delay so concurrent callers queue behind the
// same cooldown clock.
func (g *Gateway) waitForSlot(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if wait := g.minInterval - g.now().Sub(g.lastCall); wait > 0 {
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
	g.lastCall = g.now()
	return nil
}

func (g *Gateway) dispatch(ctx context.Context, prompt string, opts CompleteOptions) (string, error) {
	start := g.now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   opts.MaxOutputTokens,
		Temperature: opts.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	aiRequestDuration.WithLabelValues(g.model).Observe(g.now().Sub(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty completion text")
	}
	return text, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
