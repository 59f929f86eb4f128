package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Condition is one parsed when-expression from a conditional rule, e.g.
// "pressure_class >= 300" or "is_nace_compliant == true". The zero value is
// the always-true condition.
type Condition struct {
	Variable string
	Op       string
	Literal  string
}

// ConditionVariables names every variable a when-expression may reference.
// They correspond to the decode context the resolver evaluates against.
var ConditionVariables = map[string]bool{
	"is_nace_compliant": true,
	"is_low_temp":       true,
	"is_metal_seated":   true,
	"valve_type":        true,
	"bore_type":         true,
	"piping_class":      true,
	"end_connection":    true,
	"pressure_class":    true,
}

var containsPattern = regexp.MustCompile(`^(\w+)\s+contains\s+(.+)$`)

// comparison operators, two-character ones first so "<=" is not read as "<".
var conditionOps = []string{"<=", ">=", "==", "<", ">"}

// ParseCondition parses a when-expression. An empty expression parses to the
// always-true condition.
func ParseCondition(expr string) (Condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Condition{}, nil
	}
	for _, op := range conditionOps {
		i := strings.Index(expr, op)
		if i < 0 {
			continue
		}
		variable := strings.TrimSpace(expr[:i])
		literal := trimQuotes(strings.TrimSpace(expr[i+len(op):]))
		if variable == "" || literal == "" {
			return Condition{}, fmt.Errorf("condition %q is missing an operand", expr)
		}
		return Condition{Variable: variable, Op: op, Literal: literal}, nil
	}
	if m := containsPattern.FindStringSubmatch(expr); m != nil {
		return Condition{Variable: m[1], Op: "contains", Literal: trimQuotes(strings.TrimSpace(m[2]))}, nil
	}
	return Condition{}, fmt.Errorf("unsupported condition %q", expr)
}

// IsAlways reports whether the condition holds unconditionally.
func (c Condition) IsAlways() bool { return c.Variable == "" }

// Eval evaluates the condition against a decode context. Unknown variables
// evaluate to false rather than failing: a schema may carry rules for
// contexts a given VDS never produces.
func (c Condition) Eval(ctx map[string]any) bool {
	if c.IsAlways() {
		return true
	}
	actual, ok := ctx[c.Variable]
	if !ok {
		return false
	}
	if c.Op == "contains" {
		return strings.Contains(strings.ToLower(fmt.Sprint(actual)), strings.ToLower(c.Literal))
	}
	if want, err := strconv.ParseFloat(c.Literal, 64); err == nil {
		if got, ok := toFloat(actual); ok {
			return compareFloats(got, want, c.Op)
		}
	}
	if c.Op != "==" {
		return false
	}
	if b, ok := actual.(bool); ok {
		return (c.Literal == "true") == b
	}
	return strings.EqualFold(fmt.Sprint(actual), c.Literal)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func compareFloats(got, want float64, op string) bool {
	switch op {
	case "<=":
		return got <= want
	case ">=":
		return got >= want
	case "<":
		return got < want
	case ">":
		return got > want
	case "==":
		return got == want
	}
	return false
}

func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
