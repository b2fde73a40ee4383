// Package expr compiles and evaluates the boolean expressions used by tool
// policies.
package expr

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// CompiledExpr represents a compiled expression ready for evaluation.
type CompiledExpr struct {
	Source  string
	program *vm.Program
}

// Compile validates and compiles an expression string for later evaluation.
// The env parameter defines the available variables and their types;
// referencing any other name is a compile error.
func Compile(source string, env map[string]interface{}) (*CompiledExpr, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("empty expression")
	}

	program, err := expr.Compile(source, expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("expression compile error: %w", err)
	}

	return &CompiledExpr{
		Source:  source,
		program: program,
	}, nil
}

// Eval evaluates a compiled expression against env.
func Eval(compiled *CompiledExpr, env map[string]interface{}) (interface{}, error) {
	if compiled == nil || compiled.program == nil {
		return nil, fmt.Errorf("nil compiled expression")
	}

	result, err := expr.Run(compiled.program, env)
	if err != nil {
		return nil, fmt.Errorf("expression eval error for %q: %w", compiled.Source, err)
	}
	return result, nil
}

// EvalBool evaluates a compiled expression and returns a boolean result.
// Returns an error if the expression does not evaluate to a boolean.
func EvalBool(compiled *CompiledExpr, env map[string]interface{}) (bool, error) {
	result, err := Eval(compiled, env)
	if err != nil {
		return false, err
	}

	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, expected bool", compiled.Source, result)
	}
	return b, nil
}
