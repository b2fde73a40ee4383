// Package secrets resolves credential references in configuration and keeps
// resolved values out of log output.
package secrets

import (
	"context"
	"strings"
)

// Resolver resolves secret references to their values.
type Resolver interface {
	// Resolve looks up a secret reference and returns its value.
	Resolve(ctx context.Context, ref string) (string, error)
}

// IsRef reports whether value is an env(VAR) reference.
func IsRef(value string) bool {
	v := strings.TrimSpace(value)
	return strings.HasPrefix(v, "env(") && strings.HasSuffix(v, ")")
}

// ResolveValue resolves value when it is a reference and returns it
// unchanged otherwise.
func ResolveValue(ctx context.Context, r Resolver, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}
	return r.Resolve(ctx, strings.TrimSpace(value))
}
