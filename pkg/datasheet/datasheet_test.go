package datasheet

import "testing"

func TestFieldStatusFor(t *testing.T) {
	tests := []struct {
		name       string
		required   bool
		populated  bool
		confidence float64
		want       FieldStatus
	}{
		{"required and populated", true, true, 1.0, FieldOK},
		{"required but empty", true, false, 1.0, FieldMissing},
		{"optional and empty", false, false, 1.0, FieldEmpty},
		{"populated with low confidence", false, true, 0.5, FieldLowConfidence},
		{"populated at threshold", false, true, 0.8, FieldOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FieldStatusFor(tt.required, tt.populated, tt.confidence); got != tt.want {
				t.Errorf("FieldStatusFor(%v, %v, %v) = %s, want %s",
					tt.required, tt.populated, tt.confidence, got, tt.want)
			}
		})
	}
}

func TestPopulated(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"ASTM A105", true},
		{"-", true},
		{"", false},
		{"   ", false},
	}

	for _, tt := range tests {
		if got := Populated(tt.value); got != tt.want {
			t.Errorf("Populated(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestComputeCompletion(t *testing.T) {
	fields := []Field{
		{FieldName: "a", IsPopulated: true},
		{FieldName: "b", IsPopulated: true},
		{FieldName: "c", IsPopulated: false},
	}

	c := ComputeCompletion(fields)
	if c.Populated != 2 || c.Total != 3 {
		t.Fatalf("ComputeCompletion counted %d/%d, want 2/3", c.Populated, c.Total)
	}
	if c.Percentage != 66.7 {
		t.Errorf("ComputeCompletion percentage = %v, want 66.7", c.Percentage)
	}

	empty := ComputeCompletion(nil)
	if empty.Percentage != 0 {
		t.Errorf("ComputeCompletion(nil) percentage = %v, want 0", empty.Percentage)
	}
}

func testSheet() *Datasheet {
	return &Datasheet{
		Sections: []Section{
			{Name: "General", Fields: []Field{
				{FieldName: "vdsNo", Value: "BSFA1R", IsPopulated: true},
				{FieldName: "service", Value: "", IsPopulated: false},
			}},
			{Name: "Materials", Fields: []Field{
				{FieldName: "bolts", Value: "ASTM A193 Gr. B7", IsPopulated: true},
			}},
		},
	}
}

func TestFlatContainsOnlyPopulatedFields(t *testing.T) {
	flat := testSheet().Flat()

	if len(flat) != 2 {
		t.Fatalf("Flat() has %d entries, want 2: %v", len(flat), flat)
	}
	if flat["vdsNo"] != "BSFA1R" {
		t.Errorf("Flat()[vdsNo] = %q, want BSFA1R", flat["vdsNo"])
	}
	if _, ok := flat["service"]; ok {
		t.Error("Flat() contains unpopulated field service")
	}
}

func TestFieldLookup(t *testing.T) {
	ds := testSheet()

	f, ok := ds.Field("bolts")
	if !ok || f.Value != "ASTM A193 Gr. B7" {
		t.Errorf("Field(bolts) = %+v, %v; want the bolts field", f, ok)
	}
	if _, ok := ds.Field("nope"); ok {
		t.Error("Field(nope) = true, want false")
	}
	if got := len(ds.Fields()); got != 3 {
		t.Errorf("Fields() returned %d fields, want 3", got)
	}
}
