package config

import "testing"

func TestParseCondition(t *testing.T) {
	tests := []struct {
		expr string
		want Condition
	}{
		{"", Condition{}},
		{"is_nace_compliant == true", Condition{"is_nace_compliant", "==", "true"}},
		{"pressure_class >= 300", Condition{"pressure_class", ">=", "300"}},
		{"pressure_class <= 150", Condition{"pressure_class", "<=", "150"}},
		{"pressure_class < 900", Condition{"pressure_class", "<", "900"}},
		{"valve_type contains Ball", Condition{"valve_type", "contains", "Ball"}},
		{"end_connection == 'RTJ'", Condition{"end_connection", "==", "RTJ"}},
	}

	for _, tt := range tests {
		got, err := ParseCondition(tt.expr)
		if err != nil {
			t.Errorf("ParseCondition(%q) returned error: %v", tt.expr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCondition(%q) = %+v, want %+v", tt.expr, got, tt.want)
		}
	}
}

func TestParseConditionErrors(t *testing.T) {
	for _, expr := range []string{"pressure_class ~ 300", "== 300", "pressure_class >="} {
		if _, err := ParseCondition(expr); err == nil {
			t.Errorf("ParseCondition(%q) succeeded, want error", expr)
		}
	}
}

func TestConditionEval(t *testing.T) {
	ctx := map[string]any{
		"is_nace_compliant": true,
		"is_metal_seated":   false,
		"valve_type":        "Ball Valve, Full Bore",
		"pressure_class":    float64(300),
		"end_connection":    "RTJ",
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"", true},
		{"is_nace_compliant == true", true},
		{"is_nace_compliant == false", false},
		{"is_metal_seated == true", false},
		{"pressure_class >= 300", true},
		{"pressure_class > 300", false},
		{"pressure_class <= 150", false},
		{"valve_type contains Ball", true},
		{"valve_type contains ball", true},
		{"valve_type contains Gate", false},
		{"end_connection == 'rtj'", true},
		{"piping_class == 'A1'", false}, // absent variable
	}

	for _, tt := range tests {
		cond, err := ParseCondition(tt.expr)
		if err != nil {
			t.Fatalf("ParseCondition(%q) returned error: %v", tt.expr, err)
		}
		if got := cond.Eval(ctx); got != tt.want {
			t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}
