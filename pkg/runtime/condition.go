package runtime

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/axionsec/axion/pkg/schema"
)

// evalCondition evaluates a conditional step's expression against the
// run's stores.
func (r *resolver) evalCondition(c schema.Condition) (bool, error) {
	switch {
	case c.Literal != nil:
		return *c.Literal, nil
	case c.Var != "":
		value, ok := r.vars.Resolve(c.Var)
		if !ok {
			return false, &UndefinedVariableError{Name: c.Var}
		}
		if value.Kind() != schema.KindBool {
			return false, fmt.Errorf("variable %q is not boolean (found %s)", c.Var, value.Kind())
		}
		return value.Bool(), nil
	case c.Not != nil:
		inner, err := r.evalCondition(*c.Not)
		if err != nil {
			return false, err
		}
		return !inner, nil
	case len(c.Eq) == 2:
		lhs, rhs, err := r.resolveOperands(c.Eq)
		if err != nil {
			return false, err
		}
		return lhs.Equal(rhs), nil
	case len(c.Ne) == 2:
		lhs, rhs, err := r.resolveOperands(c.Ne)
		if err != nil {
			return false, err
		}
		return !lhs.Equal(rhs), nil
	case c.Expr != "":
		return r.evalExpr(strings.TrimSpace(c.Expr))
	}
	return false, fmt.Errorf("empty condition")
}

func (r *resolver) resolveOperands(operands []schema.Value) (schema.Value, schema.Value, error) {
	lhs, err := r.resolveValue(operands[0])
	if err != nil {
		return schema.Value{}, schema.Value{}, err
	}
	rhs, err := r.resolveValue(operands[1])
	if err != nil {
		return schema.Value{}, schema.Value{}, err
	}
	return lhs, rhs, nil
}

// evalExpr compiles and runs a raw expression with every declared
// variable in scope. Secrets are intentionally absent from the
// expression environment.
func (r *resolver) evalExpr(exprStr string) (bool, error) {
	env := r.vars.Env()
	program, err := expr.Compile(exprStr, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compile condition %q: %w", exprStr, err)
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval condition %q: %w", exprStr, err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not return bool (got %T: %v)", exprStr, output, output)
	}
	return result, nil
}
