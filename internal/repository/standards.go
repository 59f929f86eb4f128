package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// AllValves is the applies-to marker for clauses that bind every valve type.
const AllValves = "All Valves"

// Clause rule types, normalized to lower case at load.
const (
	RuleMandatory      = "mandatory"
	RuleRecommendation = "recommendation"
	RuleInformational  = "informational"
)

// StandardClause is one extracted clause from a valve standard.
type StandardClause struct {
	Standard       string   `json:"standard"`
	Section        string   `json:"section,omitempty"`
	Clause         string   `json:"clause"`
	Title          string   `json:"title,omitempty"`
	Text           string   `json:"text,omitempty"`
	Page           int      `json:"page,omitempty"`
	RuleType       string   `json:"ruleType"`
	NormativeRefs  []string `json:"normativeReferences,omitempty"`
	AppliesTo      []string `json:"appliesTo,omitempty"`
	DatasheetField string   `json:"datasheetField,omitempty"`
}

// IsMandatory reports whether the clause is a binding requirement.
func (c StandardClause) IsMandatory() bool {
	return c.RuleType == RuleMandatory
}

// Reference is the citation form of the clause, e.g. "API 598 4.2".
func (c StandardClause) Reference() string {
	return strings.TrimSpace(c.Standard + " " + c.Clause)
}

// DerivedValue is the datasheet value a clause yields: the first two
// normative references, the clause text, or the bare citation, in that order
// of preference.
func (c StandardClause) DerivedValue() string {
	if len(c.NormativeRefs) > 0 {
		refs := c.NormativeRefs
		if len(refs) > 2 {
			refs = refs[:2]
		}
		return "As per " + strings.Join(refs, ", ")
	}
	if c.Text != "" {
		return c.Text
	}
	return "As per " + c.Reference()
}

// Standards is the clause repository, indexed by datasheet field, standard
// name, and valve-type applicability.
type Standards struct {
	clauses    []StandardClause
	applies    []mapset.Set[string]
	byField    map[string][]int
	byStandard map[string][]int
	valveTypes mapset.Set[string]
}

// NewStandards builds the repository and its indexes from clauses.
func NewStandards(clauses []StandardClause) *Standards {
	s := &Standards{
		clauses:    clauses,
		applies:    make([]mapset.Set[string], len(clauses)),
		byField:    make(map[string][]int),
		byStandard: make(map[string][]int),
		valveTypes: mapset.NewSet[string](),
	}
	for i := range s.clauses {
		s.clauses[i].RuleType = strings.ToLower(strings.TrimSpace(s.clauses[i].RuleType))

		applies := mapset.NewSet[string]()
		for _, vt := range s.clauses[i].AppliesTo {
			vt = strings.TrimSpace(vt)
			if vt == "" {
				continue
			}
			applies.Add(vt)
			if vt != AllValves {
				s.valveTypes.Add(vt)
			}
		}
		s.applies[i] = applies

		if f := s.clauses[i].DatasheetField; f != "" {
			s.byField[f] = append(s.byField[f], i)
		}
		if std := s.clauses[i].Standard; std != "" {
			s.byStandard[std] = append(s.byStandard[std], i)
		}
	}
	return s
}

// LoadStandards reads the extracted clause library, a JSON object with a
// top-level clauses array. Entries without a standard name are skipped.
func LoadStandards(path string) (*Standards, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading standards clauses: %w", err)
	}
	var file struct {
		Clauses []StandardClause `json:"clauses"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing standards clauses %s: %w", path, err)
	}
	clauses := file.Clauses[:0:0]
	for _, c := range file.Clauses {
		if strings.TrimSpace(c.Standard) == "" {
			continue
		}
		clauses = append(clauses, c)
	}
	return NewStandards(clauses), nil
}

// Count returns the number of clauses.
func (s *Standards) Count() int {
	return len(s.clauses)
}

// appliesTo reports whether clause i binds the given valve type.
func (s *Standards) appliesTo(i int, valveType string) bool {
	set := s.applies[i]
	if set.Cardinality() == 0 {
		return true
	}
	return set.Contains(valveType) || set.Contains(AllValves)
}

// ClausesForField returns every clause bound to a datasheet field, in
// document order.
func (s *Standards) ClausesForField(field string) []StandardClause {
	idx := s.byField[field]
	out := make([]StandardClause, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.clauses[i])
	}
	return out
}

// ClausesForValveType returns every clause applying to a valve type,
// including clauses that bind all valves.
func (s *Standards) ClausesForValveType(valveType string) []StandardClause {
	var out []StandardClause
	for i := range s.clauses {
		if s.appliesTo(i, valveType) {
			out = append(out, s.clauses[i])
		}
	}
	return out
}

// MandatoryClauseForField returns the first mandatory clause bound to field
// that applies to the valve type.
func (s *Standards) MandatoryClauseForField(field, valveType string) (StandardClause, bool) {
	for _, i := range s.byField[field] {
		c := s.clauses[i]
		if !c.IsMandatory() {
			continue
		}
		if s.appliesTo(i, valveType) {
			return c, true
		}
	}
	return StandardClause{}, false
}

// ValueForField resolves the datasheet value and citation for a field from
// its first applicable mandatory clause.
func (s *Standards) ValueForField(field, valveType string) (value, clauseRef string, ok bool) {
	c, ok := s.MandatoryClauseForField(field, valveType)
	if !ok {
		return "", "", false
	}
	return c.DerivedValue(), c.Reference(), true
}

// StandardNames returns the distinct standard names, sorted.
func (s *Standards) StandardNames() []string {
	names := make([]string, 0, len(s.byStandard))
	for name := range s.byStandard {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValveTypes returns the distinct valve types clauses apply to, sorted. The
// all-valves marker is not listed.
func (s *Standards) ValveTypes() []string {
	types := s.valveTypes.ToSlice()
	sort.Strings(types)
	return types
}
