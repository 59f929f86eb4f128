package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// IndexRow is one pre-computed VDS index entry: a full VDS code plus the
// datasheet values that cannot be derived from rules alone (size range,
// seat material, operation, revision, and a representative size).
type IndexRow struct {
	VdsNo  string
	Values map[string]string
}

// Get returns a named column value.
func (r IndexRow) Get(column string) (string, bool) {
	v, ok := r.Values[column]
	return v, ok && v != ""
}

// Size returns the representative size in NPS inches, used for
// forged-versus-cast material branching.
func (r IndexRow) Size() (float64, bool) {
	v, ok := r.Get("size")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// VDSIndex is the immutable VDS index repository: rows keyed by VDS code.
type VDSIndex struct {
	rows  map[string]IndexRow
	codes []string
}

// NewVDSIndex builds the repository. Codes are uppercased; rows shorter than
// the minimum VDS length are dropped.
func NewVDSIndex(rows []IndexRow) *VDSIndex {
	x := &VDSIndex{rows: make(map[string]IndexRow, len(rows))}
	for _, row := range rows {
		row.VdsNo = strings.ToUpper(strings.TrimSpace(row.VdsNo))
		if len(row.VdsNo) < 5 {
			continue
		}
		if row.Values == nil {
			row.Values = map[string]string{}
		}
		x.rows[row.VdsNo] = row
	}
	x.codes = make([]string, 0, len(x.rows))
	for code := range x.rows {
		x.codes = append(x.codes, code)
	}
	sort.Strings(x.codes)
	return x
}

// LoadVDSIndex reads the extracted VDS index, a JSON array of objects each
// carrying a vdsNo plus arbitrary value columns.
func LoadVDSIndex(path string) (*VDSIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vds index: %w", err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing vds index %s: %w", path, err)
	}

	rows := make([]IndexRow, 0, len(raw))
	for _, entry := range raw {
		row := IndexRow{Values: make(map[string]string, len(entry))}
		for k, v := range entry {
			if v == nil {
				continue
			}
			s := strings.TrimSpace(fmt.Sprint(v))
			if k == "vdsNo" {
				row.VdsNo = s
				continue
			}
			row.Values[k] = s
		}
		rows = append(rows, row)
	}
	return NewVDSIndex(rows), nil
}

// RowFor returns the index row for a VDS code.
func (x *VDSIndex) RowFor(code string) (IndexRow, bool) {
	row, ok := x.rows[strings.ToUpper(strings.TrimSpace(code))]
	return row, ok
}

// Has reports whether the index carries a row for the code.
func (x *VDSIndex) Has(code string) bool {
	_, ok := x.RowFor(code)
	return ok
}

// AllCodes returns every indexed VDS code, sorted.
func (x *VDSIndex) AllCodes() []string {
	return slices.Clone(x.codes)
}

// CodesWithPrefix returns the indexed codes starting with prefix, sorted.
func (x *VDSIndex) CodesWithPrefix(prefix string) []string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return x.AllCodes()
	}
	out := []string{}
	for _, code := range x.codes {
		if strings.HasPrefix(code, prefix) {
			out = append(out, code)
		}
	}
	return out
}

// Count returns the number of indexed codes.
func (x *VDSIndex) Count() int {
	return len(x.rows)
}
