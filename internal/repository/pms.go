// Package repository holds the in-memory, read-only repositories built from
// the extracted source documents: the piping material specification, the
// standards clause library, and the VDS index. Each is loaded once at
// startup and then only read, so all of them are safe for concurrent use.
package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// PipingClassRow is one row of the piping material specification.
type PipingClassRow struct {
	Class              string `json:"class"`
	PressureRating     string `json:"pressureRating"`
	RatingNumeric      int    `json:"ratingNumeric"`
	BaseMaterial       string `json:"baseMaterial"`
	MaterialGroup      string `json:"materialGroup,omitempty"`
	CorrosionAllowance string `json:"corrosionAllowance,omitempty"`
	Service            string `json:"service,omitempty"`
	DesignPressureMax  string `json:"designPressureMax,omitempty"`
	DesignTempMin      string `json:"designTempMin,omitempty"`
	DesignTempMax      string `json:"designTempMax,omitempty"`
}

// IsNaceClass reports whether the class name carries the NACE modifier.
func (r PipingClassRow) IsNaceClass() bool {
	return strings.ContainsRune(classModifiers(r.Class), 'N')
}

// IsLowTempClass reports whether the class name carries the low-temperature
// modifier.
func (r PipingClassRow) IsLowTempClass() bool {
	return strings.ContainsRune(classModifiers(r.Class), 'L')
}

var classNamePattern = regexp.MustCompile(`^[A-Z][0-9]+([A-Z]*)$`)

func classModifiers(class string) string {
	m := classNamePattern.FindStringSubmatch(class)
	if m == nil {
		return ""
	}
	return m[1]
}

// PMS is the piping-material-specification repository: piping-class rows
// keyed by class name.
type PMS struct {
	rows    map[string]PipingClassRow
	classes []string
}

// NewPMS builds the repository from rows. Class names are uppercased and the
// numeric rating is derived from the printed one, so callers never have to
// keep the two in sync.
func NewPMS(rows []PipingClassRow) *PMS {
	p := &PMS{rows: make(map[string]PipingClassRow, len(rows))}
	for _, row := range rows {
		row.Class = strings.ToUpper(strings.TrimSpace(row.Class))
		if row.Class == "" {
			continue
		}
		row.RatingNumeric = parsePressureRating(row.PressureRating)
		p.rows[row.Class] = row
	}
	p.classes = make([]string, 0, len(p.rows))
	for class := range p.rows {
		p.classes = append(p.classes, class)
	}
	sort.Strings(p.classes)
	return p
}

// RowFor returns the row for an exact class name.
func (p *PMS) RowFor(class string) (PipingClassRow, bool) {
	row, ok := p.rows[strings.ToUpper(strings.TrimSpace(class))]
	return row, ok
}

// HasClass reports whether the exact class name exists.
func (p *PMS) HasClass(class string) bool {
	_, ok := p.RowFor(class)
	return ok
}

// PressureRatingOf returns the numeric and printed pressure rating of a
// class.
func (p *PMS) PressureRatingOf(class string) (int, string, bool) {
	row, ok := p.RowFor(class)
	if !ok {
		return 0, "", false
	}
	return row.RatingNumeric, row.PressureRating, true
}

// AllClasses returns the class names, sorted.
func (p *PMS) AllClasses() []string {
	return slices.Clone(p.classes)
}

// Count returns the number of piping classes.
func (p *PMS) Count() int {
	return len(p.rows)
}

// parsePressureRating extracts the numeric class from printed forms such as
// "150#", "300 LB" or "2500". Zero means the rating could not be read.
func parsePressureRating(s string) int {
	s = strings.TrimSpace(strings.ToUpper(s))
	s = strings.TrimSuffix(s, "#")
	s = strings.TrimSuffix(s, "LB")
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// pipingSpecFile mirrors the extracted piping specification JSON: a workbook
// of sheets, each with zero or more header/row tables.
type pipingSpecFile struct {
	Sheets []struct {
		SheetName string `json:"sheetName"`
		Tables    []struct {
			Headers []string         `json:"headers"`
			Rows    []map[string]any `json:"rows"`
		} `json:"tables"`
	} `json:"sheets"`
}

// classColumn is the header that identifies a piping-class table.
const classColumn = "Piping Class"

var classRowPattern = regexp.MustCompile(`^[A-Z][0-9]+[LN]*$`)

// LoadPMS reads the extracted piping specification. Every sheet is scanned
// for tables whose headers include the piping-class column; rows that are
// section headings or notes rather than classes are skipped.
func LoadPMS(path string) (*PMS, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading piping specification: %w", err)
	}
	var file pipingSpecFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing piping specification %s: %w", path, err)
	}

	var rows []PipingClassRow
	tables := 0
	for _, sheet := range file.Sheets {
		for _, table := range sheet.Tables {
			if !slices.Contains(table.Headers, classColumn) {
				continue
			}
			tables++
			for _, raw := range table.Rows {
				class := strings.ToUpper(cell(raw, classColumn))
				if class == "" || strings.Contains(class, ":") || !classRowPattern.MatchString(class) {
					continue
				}
				rows = append(rows, PipingClassRow{
					Class:              class,
					PressureRating:     cell(raw, "Rating", "Pressure Rating"),
					BaseMaterial:       cell(raw, "Material", "Base Material"),
					MaterialGroup:      cell(raw, "Material Group"),
					CorrosionAllowance: cell(raw, "C.A", "Corrosion Allowance"),
					Service:            cell(raw, "Service"),
					DesignPressureMax:  cell(raw, "Design Pressure Max"),
					DesignTempMin:      cell(raw, "Design Temp Min"),
					DesignTempMax:      cell(raw, "Design Temp Max"),
				})
			}
		}
	}
	if tables == 0 {
		return nil, fmt.Errorf("no table with a %q column in %s", classColumn, path)
	}
	return NewPMS(rows), nil
}

// cell reads the first non-empty value among the candidate column names.
// Extracted workbooks are not consistent about column naming.
func cell(row map[string]any, columns ...string) string {
	for _, col := range columns {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s != "" {
			return s
		}
	}
	return ""
}
