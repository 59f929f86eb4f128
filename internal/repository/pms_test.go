package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParsePressureRating(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"150#", 150},
		{"300 LB", 300},
		{"2500", 2500},
		{"900#", 900},
		{"", 0},
		{"N/A", 0},
	}
	for _, tt := range tests {
		if got := parsePressureRating(tt.in); got != tt.want {
			t.Errorf("parsePressureRating(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPMSLookups(t *testing.T) {
	pms := NewPMS([]PipingClassRow{
		{Class: "a1", PressureRating: "150#", BaseMaterial: "CS", Service: "Hydrocarbon"},
		{Class: "B1N", PressureRating: "300#", BaseMaterial: "CS"},
		{Class: "G1LN", PressureRating: "2500#", BaseMaterial: "CS"},
	})

	require.Equal(t, 3, pms.Count())
	assert.Equal(t, []string{"A1", "B1N", "G1LN"}, pms.AllClasses())

	row, ok := pms.RowFor("A1")
	require.True(t, ok, "class names are normalized to upper case")
	assert.Equal(t, 150, row.RatingNumeric)
	assert.False(t, row.IsNaceClass())
	assert.False(t, row.IsLowTempClass())

	require.True(t, pms.HasClass("b1n"))
	row, _ = pms.RowFor("B1N")
	assert.True(t, row.IsNaceClass())
	assert.False(t, row.IsLowTempClass())

	row, _ = pms.RowFor("G1LN")
	assert.True(t, row.IsNaceClass())
	assert.True(t, row.IsLowTempClass())

	n, printed, ok := pms.PressureRatingOf("B1N")
	require.True(t, ok)
	assert.Equal(t, 300, n)
	assert.Equal(t, "300#", printed)

	assert.False(t, pms.HasClass("Z9"))
}

const pipingSpecJSON = `{
  "sheets": [
    {
      "sheetName": "Notes",
      "tables": [
        {"headers": ["Note"], "rows": [{"Note": "General notes"}]}
      ]
    },
    {
      "sheetName": "Piping Material Specification",
      "tables": [
        {
          "headers": ["Piping Class", "Rating", "Material", "C.A", "Service", "Design Pressure Max", "Design Temp Min", "Design Temp Max"],
          "rows": [
            {"Piping Class": "A1", "Rating": "150#", "Material": "CS", "C.A": "3 mm", "Service": "Hydrocarbon Service", "Design Pressure Max": "19.6 barg @ 38°C", "Design Temp Min": "-29", "Design Temp Max": "200"},
            {"Piping Class": "Design Code: ASME B31.3"},
            {"Piping Class": ""},
            {"Piping Class": "B1N", "Rating": "300#", "Material": "CS", "C.A": "6 mm", "Service": "Sour Hydrocarbon (NACE)", "Design Pressure Max": "50.0 barg @ 38°C", "Design Temp Min": "-29", "Design Temp Max": "150"}
          ]
        }
      ]
    }
  ]
}`

func TestLoadPMS(t *testing.T) {
	path := writeFixture(t, "piping_specification.json", pipingSpecJSON)

	pms, err := LoadPMS(path)
	require.NoError(t, err)

	// heading and blank rows are skipped
	assert.Equal(t, 2, pms.Count())

	row, ok := pms.RowFor("A1")
	require.True(t, ok)
	assert.Equal(t, "CS", row.BaseMaterial)
	assert.Equal(t, "3 mm", row.CorrosionAllowance)
	assert.Equal(t, "19.6 barg @ 38°C", row.DesignPressureMax)
	assert.Equal(t, "-29", row.DesignTempMin)
	assert.Equal(t, 150, row.RatingNumeric)
}

func TestLoadPMSWithoutClassTable(t *testing.T) {
	path := writeFixture(t, "piping_specification.json",
		`{"sheets": [{"sheetName": "Notes", "tables": [{"headers": ["Note"], "rows": []}]}]}`)

	_, err := LoadPMS(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Piping Class")
}

func TestLoadPMSMissingFile(t *testing.T) {
	_, err := LoadPMS(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
