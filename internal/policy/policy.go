// Package policy guards tool invocations with expression rules evaluated
// against the parameters the model supplied.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/szaher/infraagent/internal/expr"
	"github.com/szaher/infraagent/internal/tools"
)

// EvalMode determines how violations are handled.
type EvalMode string

const (
	// ModeEnforce blocks the invocation (default).
	ModeEnforce EvalMode = "enforce"
	// ModeWarn logs the violation and lets the invocation proceed.
	ModeWarn EvalMode = "warn"
)

// Rule is a guard on one tool. Allow is an expression over `tool`, `params`
// (the object parameters, or {"input": text} for opaque payloads) and `text`
// that must evaluate to true for the call to proceed.
type Rule struct {
	Tool    string   `yaml:"tool" json:"tool"`
	Allow   string   `yaml:"allow" json:"allow"`
	Message string   `yaml:"message,omitempty" json:"message,omitempty"`
	Mode    EvalMode `yaml:"mode,omitempty" json:"mode,omitempty"`
}

// Violation is a rule that rejected an invocation.
type Violation struct {
	Rule    Rule
	Message string
	Details string
}

func (v *Violation) Error() string {
	if v.Details != "" {
		return fmt.Sprintf("policy: %s (%s)", v.Message, v.Details)
	}
	return "policy: " + v.Message
}

type compiledRule struct {
	rule     Rule
	compiled *expr.CompiledExpr
}

// Env returns the expression environment for one invocation.
func Env(tool string, params tools.Params) map[string]interface{} {
	return map[string]interface{}{
		"tool":   tool,
		"params": params.Map(),
		"text":   params.Text,
	}
}

// Guard holds compiled rules keyed by tool name. It is read-only after
// construction and safe for concurrent use.
type Guard struct {
	rules  map[string][]compiledRule
	logger *slog.Logger
}

// NewGuard compiles rules. Any rule that does not compile is an error.
func NewGuard(rules []Rule, logger *slog.Logger) (*Guard, error) {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Guard{rules: make(map[string][]compiledRule), logger: logger}
	for i, r := range rules {
		if strings.TrimSpace(r.Tool) == "" {
			return nil, fmt.Errorf("policy rule %d: tool is required", i)
		}
		if strings.TrimSpace(r.Allow) == "" {
			return nil, fmt.Errorf("policy rule %d (%s): allow expression is required", i, r.Tool)
		}
		switch r.Mode {
		case "":
			r.Mode = ModeEnforce
		case ModeEnforce, ModeWarn:
		default:
			return nil, fmt.Errorf("policy rule %d (%s): unknown mode %q", i, r.Tool, r.Mode)
		}
		if r.Message == "" {
			r.Message = fmt.Sprintf("%s rejected by rule %q", r.Tool, r.Allow)
		}

		compiled, err := expr.Compile(r.Allow, Env("", tools.ObjectParams(nil)))
		if err != nil {
			return nil, fmt.Errorf("policy rule %d (%s): %w", i, r.Tool, err)
		}
		g.rules[r.Tool] = append(g.rules[r.Tool], compiledRule{rule: r, compiled: compiled})
	}
	return g, nil
}

// Len returns the number of compiled rules.
func (g *Guard) Len() int {
	n := 0
	for _, rs := range g.rules {
		n += len(rs)
	}
	return n
}

// Check evaluates every rule for tool. It returns the first enforced
// violation; warn-mode violations are only logged. A rule that fails to
// evaluate or yields a non-boolean counts as a violation.
func (g *Guard) Check(tool string, params tools.Params) *Violation {
	env := Env(tool, params)
	for _, cr := range g.rules[tool] {
		v := evaluate(cr, env)
		if v == nil {
			continue
		}
		if cr.rule.Mode == ModeWarn {
			g.logger.Warn("policy violation (warn mode)", "tool", tool, "rule", cr.rule.Allow, "message", v.Message)
			continue
		}
		return v
	}
	return nil
}

func evaluate(cr compiledRule, env map[string]interface{}) *Violation {
	allowed, err := expr.EvalBool(cr.compiled, env)
	if err != nil {
		return &Violation{Rule: cr.rule, Message: cr.rule.Message, Details: err.Error()}
	}
	if !allowed {
		return &Violation{Rule: cr.rule, Message: cr.rule.Message}
	}
	return nil
}

// Wrap returns d with its Invoke guarded by the tool's rules.
func (g *Guard) Wrap(d tools.Descriptor) tools.Descriptor {
	if len(g.rules[d.Name]) == 0 {
		return d
	}
	inner := d.Invoke
	d.Invoke = func(ctx context.Context, params tools.Params) (*tools.Observation, error) {
		if v := g.Check(d.Name, params); v != nil {
			return nil, v
		}
		return inner(ctx, params)
	}
	return d
}

// WrapAll guards every descriptor.
func (g *Guard) WrapAll(descs []tools.Descriptor) []tools.Descriptor {
	out := make([]tools.Descriptor, len(descs))
	for i, d := range descs {
		out[i] = g.Wrap(d)
	}
	return out
}
