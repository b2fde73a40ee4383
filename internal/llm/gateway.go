package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// FailureRecorder counts degraded completions.
type FailureRecorder interface {
	RecordGatewayFailure(provider string)
}

// Gateway wraps a Completer and never fails: transport errors, timeouts and
// non-success responses come back as a descriptive reply so a multi-turn
// conversation survives a single transient failure.
type Gateway struct {
	completer Completer
	timeout   time.Duration
	logger    *slog.Logger
	failures  FailureRecorder
}

// GatewayOption configures the Gateway.
type GatewayOption func(*Gateway)

// WithTimeout bounds each completion call. Zero disables the bound.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = logger }
}

// WithFailureRecorder reports every degraded completion.
func WithFailureRecorder(r FailureRecorder) GatewayOption {
	return func(g *Gateway) { g.failures = r }
}

// NewGateway creates a fail-soft gateway around c.
func NewGateway(c Completer, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		completer: c,
		timeout:   DefaultOptions().Timeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Complete returns the model reply, or a synthetic reply describing the failure.
func (g *Gateway) Complete(ctx context.Context, messages []Message) string {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := g.completer.Complete(ctx, messages)
	if err != nil {
		g.logger.Error("model call failed",
			"provider", g.completer.Provider(),
			"duration", time.Since(start),
			"error", err,
		)
		if g.failures != nil {
			g.failures.RecordGatewayFailure(g.completer.Provider())
		}
		return FailureReply(err)
	}

	g.logger.Debug("model call completed",
		"provider", g.completer.Provider(),
		"duration", time.Since(start),
		"reply_len", len(reply),
	)
	return reply
}

// FailureReply is the text returned in place of a reply when the model call fails.
func FailureReply(err error) string {
	return fmt.Sprintf("Model call failed: %v", err)
}
