package engine

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.uber.org/zap"
)

// CompileCondition compiles a requirement condition into an expr-lang program.
func CompileCondition(expression string) (*vm.Program, error) {
	prog, err := expr.Compile(expression, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile condition: %w", err)
	}
	return prog, nil
}

type compiledCondition struct {
	prog *vm.Program
	err  error
}

// ConditionEvaluator evaluates requirement conditions. Compiled programs
// are cached by expression string; the cache is safe for concurrent use.
type ConditionEvaluator struct {
	cache  sync.Map // string -> compiledCondition
	logger *zap.Logger
}

func NewConditionEvaluator(logger *zap.Logger) *ConditionEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConditionEvaluator{logger: logger}
}

// Applies reports whether a requirement with the given condition applies to
// env. A condition that fails to compile or run, or yields a non-bool,
// applies: the field stays required.
func (e *ConditionEvaluator) Applies(expression string, env map[string]any) bool {
	cc := e.compile(expression)
	if cc.err != nil {
		e.logger.Warn("requirement condition does not compile", zap.String("condition", expression), zap.Error(cc.err))
		return true
	}

	result, err := expr.Run(cc.prog, env)
	if err != nil {
		e.logger.Warn("requirement condition failed", zap.String("condition", expression), zap.Error(err))
		return true
	}
	applies, ok := result.(bool)
	if !ok {
		return true
	}
	return applies
}

func (e *ConditionEvaluator) compile(expression string) compiledCondition {
	if v, ok := e.cache.Load(expression); ok {
		return v.(compiledCondition)
	}
	prog, err := CompileCondition(expression)
	cc := compiledCondition{prog: prog, err: err}
	e.cache.Store(expression, cc)
	return cc
}
