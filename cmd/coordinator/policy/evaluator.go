// Package policy evaluates the optional ingest accept-expression.
package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Evaluator holds one compiled CEL accept-expression. A nil Evaluator
// accepts everything.
type Evaluator struct {
	prg  cel.Program
	expr string
}

// NewEvaluator compiles an accept expression over the file attributes
// path, filename, size and kind. An empty expression yields a nil
// evaluator (accept all).
func NewEvaluator(expr string) (*Evaluator, error) {
	if expr == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("path", cel.StringType),
		cel.Variable("filename", cel.StringType),
		cel.Variable("size", cel.IntType),
		cel.Variable("kind", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile ingest policy %q: %w", expr, issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build CEL program: %w", err)
	}

	return &Evaluator{prg: prg, expr: expr}, nil
}

// Accept evaluates the expression for one candidate file. Evaluation
// errors reject the file and are returned for logging.
func (e *Evaluator) Accept(path, filename string, size int64, kind string) (bool, error) {
	if e == nil {
		return true, nil
	}

	out, _, err := e.prg.Eval(map[string]interface{}{
		"path":     path,
		"filename": filename,
		"size":     size,
		"kind":     kind,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate ingest policy: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("ingest policy did not return boolean, got %T", out.Value())
	}

	return result, nil
}
