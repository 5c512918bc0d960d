package schema

import (
	"fmt"
	"strings"
)

// Condition is the boolean expression variant used by conditional steps.
// Exactly one field is set: a boolean literal, a boolean variable name, a
// negation, an equality or inequality over two operands, or a raw
// expression evaluated with expr-lang against the variable store.
type Condition struct {
	Literal *bool      `yaml:"literal,omitempty" json:"literal,omitempty"`
	Var     string     `yaml:"var,omitempty" json:"var,omitempty"`
	Not     *Condition `yaml:"not,omitempty" json:"not,omitempty"`
	Eq      []Value    `yaml:"eq,omitempty" json:"eq,omitempty"`
	Ne      []Value    `yaml:"ne,omitempty" json:"ne,omitempty"`
	Expr    string     `yaml:"expr,omitempty" json:"expr,omitempty"`
}

// Validate checks that exactly one condition form is present and that
// comparisons carry exactly two operands.
func (c Condition) Validate() error {
	count := 0
	if c.Literal != nil {
		count++
	}
	if c.Var != "" {
		count++
	}
	if c.Not != nil {
		count++
	}
	if len(c.Eq) > 0 {
		count++
	}
	if len(c.Ne) > 0 {
		count++
	}
	if c.Expr != "" {
		count++
	}
	if count != 1 {
		return fmt.Errorf("condition must have exactly one of literal, var, not, eq, ne, expr")
	}
	if len(c.Eq) > 0 && len(c.Eq) != 2 {
		return fmt.Errorf("eq requires exactly two operands, got %d", len(c.Eq))
	}
	if len(c.Ne) > 0 && len(c.Ne) != 2 {
		return fmt.Errorf("ne requires exactly two operands, got %d", len(c.Ne))
	}
	if c.Not != nil {
		return c.Not.Validate()
	}
	return nil
}

// String renders the condition for step names and diagnostics.
func (c Condition) String() string {
	switch {
	case c.Literal != nil:
		return fmt.Sprintf("%t", *c.Literal)
	case c.Var != "":
		return c.Var
	case c.Not != nil:
		return "!" + c.Not.String()
	case len(c.Eq) == 2:
		return fmt.Sprintf("%s == %s", c.Eq[0].Render(), c.Eq[1].Render())
	case len(c.Ne) == 2:
		return fmt.Sprintf("%s != %s", c.Ne[0].Render(), c.Ne[1].Render())
	case c.Expr != "":
		return strings.TrimSpace(c.Expr)
	}
	return "<empty>"
}
