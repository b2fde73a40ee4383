// Package loop implements the orchestration loop that alternates between the
// language model and the tool registry until the model gives a final answer.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/szaher/infraagent/internal/action"
	"github.com/szaher/infraagent/internal/llm"
	"github.com/szaher/infraagent/internal/telemetry"
	"github.com/szaher/infraagent/internal/tools"
)

// DefaultMaxIterations bounds model calls per request.
const DefaultMaxIterations = 3

// ExhaustedMessage is returned when the iteration budget runs out.
const ExhaustedMessage = "Maximum iterations reached; the request could not be completed."

// Completer is the fail-soft model boundary. *llm.Gateway satisfies it.
type Completer interface {
	Complete(ctx context.Context, msgs []llm.Message) string
}

// Recorder receives loop metrics. *telemetry.Metrics satisfies it.
type Recorder interface {
	RecordRequest(outcome string)
	RecordIterations(n int)
	RecordToolCall(tool, status string)
}

// ToolCallRecord is an audit record of a single tool dispatch.
type ToolCallRecord struct {
	Tool        string             `json:"tool"`
	Params      tools.Params       `json:"params"`
	Observation *tools.Observation `json:"observation,omitempty"`
	Duration    time.Duration      `json:"duration"`
	Error       string             `json:"error,omitempty"`
}

// Result is the outcome of one request.
type Result struct {
	Output     string           `json:"output"`
	Iterations int              `json:"iterations"`
	ToolCalls  []ToolCallRecord `json:"tool_calls,omitempty"`
	Exhausted  bool             `json:"exhausted"`
	Duration   time.Duration    `json:"duration"`
}

// Agent runs requests against a model and a tool registry. It holds no
// per-request state and is safe for concurrent use.
type Agent struct {
	model         Completer
	registry      *tools.Registry
	parser        *action.Parser
	logger        *slog.Logger
	metrics       Recorder
	maxIterations int
	instructions  string
}

// Option configures an Agent.
type Option func(*Agent)

// WithParser replaces the default action parser.
func WithParser(p *action.Parser) Option {
	return func(a *Agent) { a.parser = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r Recorder) Option {
	return func(a *Agent) { a.metrics = r }
}

// WithMaxIterations sets the budget used when a request passes zero.
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// New creates an Agent.
func New(model Completer, registry *tools.Registry, opts ...Option) *Agent {
	a := &Agent{
		model:         model,
		registry:      registry,
		parser:        action.NewParser(),
		logger:        slog.Default(),
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.instructions = BuildInstructions(registry)
	return a
}

// Instructions returns the system message sent at the start of every request.
func (a *Agent) Instructions() string { return a.instructions }

// MaxIterations returns the default iteration budget.
func (a *Agent) MaxIterations() int { return a.maxIterations }

// ProcessRequest answers text within maxIterations model calls (zero selects
// the agent default). It always returns user-facing text.
func (a *Agent) ProcessRequest(ctx context.Context, text string, maxIterations int) string {
	return a.Run(ctx, text, maxIterations).Output
}

// Run is ProcessRequest with the full audit result.
func (a *Agent) Run(ctx context.Context, text string, maxIterations int) *Result {
	start := time.Now()
	if maxIterations <= 0 {
		maxIterations = a.maxIterations
	}
	if telemetry.CorrelationID(ctx) == "" {
		ctx = telemetry.WithCorrelationID(ctx, "")
	}
	logger := telemetry.RequestLogger(a.logger, ctx, "loop")
	logger.Info("processing request", "max_iterations", maxIterations)

	conv := NewConversation(a.instructions, text)
	res := &Result{}

	for res.Iterations < maxIterations {
		res.Iterations++
		iter := slog.Int("iteration", res.Iterations)

		// AWAITING_MODEL
		reply := a.model.Complete(ctx, conv.Messages())
		logger.Debug("model reply", iter, "reply", reply)

		// DECIDING
		decision := a.parser.Extract(reply)
		logger.Debug("parsed decision", iter, "kind", decision.Kind.String(), "tool", decision.Name)
		if decision.IsFinal() {
			logger.Info("returning final answer", iter)
			res.Output = decision.Content
			a.finish(res, start, telemetry.OutcomeFinal)
			return res
		}

		// INVOKING
		logger.Info("dispatching tool", iter, "tool", decision.Name)
		record, turn := a.invoke(ctx, logger, reply, decision)
		res.ToolCalls = append(res.ToolCalls, record)
		conv.Append(turn...)
	}

	logger.Warn("iteration budget exhausted", "iterations", res.Iterations)
	res.Output = ExhaustedMessage
	res.Exhausted = true
	a.finish(res, start, telemetry.OutcomeExhausted)
	return res
}

// invoke dispatches one action and returns the audit record plus the
// messages to append. Failures become error turns; nothing propagates.
func (a *Agent) invoke(ctx context.Context, logger *slog.Logger, reply string, d action.Decision) (ToolCallRecord, []llm.Message) {
	record := ToolCallRecord{Tool: d.Name, Params: d.Params}
	start := time.Now()
	obs, err := a.registry.Invoke(ctx, d.Name, d.Params)
	record.Duration = time.Since(start)

	if err != nil {
		record.Error = err.Error()
		var unknown *tools.UnknownToolError
		if errors.As(err, &unknown) {
			logger.Warn("unknown tool", "tool", d.Name)
			a.recordToolCall(telemetry.UnknownToolLabel, telemetry.ToolStatusUnknown)
		} else {
			logger.Warn("tool failed", "tool", d.Name, "error", err)
			a.recordToolCall(d.Name, telemetry.ToolStatusError)
		}
		return record, []llm.Message{{Role: llm.RoleUser, Content: "Error: " + err.Error()}}
	}

	record.Observation = obs
	logger.Info("tool finished", "tool", d.Name, "status", string(obs.Status), "request_id", obs.RequestID)
	a.recordToolCall(d.Name, string(obs.Status))
	return record, []llm.Message{
		{Role: llm.RoleAssistant, Content: reply},
		{Role: llm.RoleUser, Content: "Observation: " + obs.Encode()},
	}
}

func (a *Agent) recordToolCall(tool, status string) {
	if a.metrics != nil {
		a.metrics.RecordToolCall(tool, status)
	}
}

func (a *Agent) finish(res *Result, start time.Time, outcome string) {
	res.Duration = time.Since(start)
	if a.metrics != nil {
		a.metrics.RecordRequest(outcome)
		a.metrics.RecordIterations(res.Iterations)
	}
}
