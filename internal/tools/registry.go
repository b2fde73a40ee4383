// Package tools implements the tool registry the agent dispatches actions to.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Func invokes a tool. Provider-side failures should be reported as a failed
// Observation; a returned error means the call itself could not be carried out.
type Func func(ctx context.Context, params Params) (*Observation, error)

// Descriptor describes one tool.
type Descriptor struct {
	Name        string
	Description string
	Invoke      Func
}

// UnknownToolError is returned when an action names no registered tool.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %s", e.Name)
}

// ExecError wraps a failure raised while executing a tool.
type ExecError struct {
	Tool string
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("executing tool %s failed: %v", e.Tool, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Registry is a fixed, read-only mapping from tool name to descriptor. It is
// safe for concurrent use.
type Registry struct {
	order []string
	tools map[string]Descriptor
}

// NewRegistry creates a registry. Names must be non-empty and unique, and every
// descriptor must have an Invoke func.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		order: make([]string, 0, len(descs)),
		tools: make(map[string]Descriptor, len(descs)),
	}
	for _, d := range descs {
		if strings.TrimSpace(d.Name) == "" {
			return nil, errors.New("tools: descriptor with empty name")
		}
		if d.Invoke == nil {
			return nil, fmt.Errorf("tools: %q has no invoke func", d.Name)
		}
		if _, dup := r.tools[d.Name]; dup {
			return nil, fmt.Errorf("tools: duplicate tool %q", d.Name)
		}
		r.order = append(r.order, d.Name)
		r.tools[d.Name] = d
	}
	return r, nil
}

// Lookup returns the descriptor registered under name (exact, case-sensitive).
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.tools[name]
	return d, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Descriptors returns all descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.order))
	for i, name := range r.order {
		out[i] = r.tools[name]
	}
	return out
}

// Describe renders the capability list given to the model, one "- name: description"
// line per tool.
func (r *Registry) Describe() string {
	lines := make([]string, len(r.order))
	for i, name := range r.order {
		lines[i] = fmt.Sprintf("- %s: %s", name, r.tools[name].Description)
	}
	return strings.Join(lines, "\n")
}

// Invoke dispatches params to the named tool. Unknown names yield
// *UnknownToolError; tool errors and panics yield *ExecError.
func (r *Registry) Invoke(ctx context.Context, name string, params Params) (obs *Observation, err error) {
	d, ok := r.Lookup(name)
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}

	defer func() {
		if p := recover(); p != nil {
			obs = nil
			err = &ExecError{Tool: name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	obs, err = d.Invoke(ctx, params)
	if err != nil {
		return nil, &ExecError{Tool: name, Err: err}
	}
	if obs == nil {
		return nil, &ExecError{Tool: name, Err: errors.New("tool returned no observation")}
	}
	if obs.RequestID == "" {
		obs.RequestID = NewRequestID()
	}
	return obs, nil
}
