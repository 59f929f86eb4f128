// Package filter implements the filterQuery language of the VDS list
// endpoint: comparisons joined by AND/OR with parentheses, for example
// pipingClass='B1N' AND sizeRange LIKE '24'.
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// MaxQueryLength bounds filterQuery input before parsing.
const MaxQueryLength = 1024

// knownFields are the candidate attributes a query may reference.
var knownFields = map[string]bool{
	"vdsNo":       true,
	"pipingClass": true,
	"valveType":   true,
	"sizeRange":   true,
	"revision":    true,
}

// Query is the parsed form of a filterQuery: a disjunction of AND groups.
type Query struct {
	Groups []*AndGroup `parser:"@@ ( 'OR' @@ )*"`
}

// AndGroup is a conjunction of terms.
type AndGroup struct {
	Terms []*Term `parser:"@@ ( 'AND' @@ )*"`
}

// Term is a single comparison or a parenthesized sub-query.
type Term struct {
	Cond  *Condition `parser:"  @@"`
	Group *Query     `parser:"| '(' @@ ')'"`
}

// Condition is one comparison: field, operator, quoted literal.
type Condition struct {
	Field string `parser:"@Ident"`
	Op    string `parser:"@( Operator | 'LIKE' )"`
	Value string `parser:"@String"`
}

var queryLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `(?i)\b(?:AND|OR|LIKE)\b`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Operator", Pattern: `!=|>=|<=|=|>|<`},
	{Name: "String", Pattern: `'[^']*'`},
	{Name: "Paren", Pattern: `\(|\)`},
	{Name: "whitespace", Pattern: `\s+`},
})

var queryParser = participle.MustBuild[Query](
	participle.Lexer(queryLexer),
	participle.CaseInsensitive("Keyword"),
)

// Parse validates and parses a filterQuery. An empty query parses to nil,
// which matches everything.
func Parse(query string) (*Query, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if len(query) > MaxQueryLength {
		return nil, fmt.Errorf("filterQuery exceeds maximum length of %d characters", MaxQueryLength)
	}
	if strings.Count(query, "'")%2 != 0 {
		return nil, fmt.Errorf("filterQuery has unbalanced quotes")
	}
	q, err := queryParser.ParseString("", query)
	if err != nil {
		return nil, fmt.Errorf("invalid filterQuery: %w", err)
	}
	if err := q.checkFields(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Query) checkFields() error {
	for _, g := range q.Groups {
		for _, t := range g.Terms {
			if t.Group != nil {
				if err := t.Group.checkFields(); err != nil {
					return err
				}
				continue
			}
			if !knownFields[t.Cond.Field] {
				return fmt.Errorf("unknown filter field %q", t.Cond.Field)
			}
		}
	}
	return nil
}

// Getter supplies the value of one candidate attribute; ok is false when the
// candidate has no value for it, which fails any comparison against it.
type Getter func(field string) (string, bool)

// Match evaluates the query against one candidate. A nil query matches.
func (q *Query) Match(get Getter) bool {
	if q == nil {
		return true
	}
	for _, g := range q.Groups {
		if g.match(get) {
			return true
		}
	}
	return false
}

func (g *AndGroup) match(get Getter) bool {
	for _, t := range g.Terms {
		if !t.match(get) {
			return false
		}
	}
	return true
}

func (t *Term) match(get Getter) bool {
	if t.Group != nil {
		return t.Group.Match(get)
	}
	return t.Cond.match(get)
}

func (c *Condition) match(get Getter) bool {
	have, ok := get(c.Field)
	if !ok {
		return false
	}
	want := unquote(c.Value)
	switch strings.ToUpper(c.Op) {
	case "=":
		return strings.EqualFold(have, want)
	case "!=":
		return !strings.EqualFold(have, want)
	case "LIKE":
		pattern := strings.ToLower(strings.ReplaceAll(want, "%", ""))
		return strings.Contains(strings.ToLower(have), pattern)
	case ">", ">=", "<", "<=":
		return compareOrdered(c.Op, have, want)
	default:
		return false
	}
}

// compareOrdered compares numerically when both sides parse as numbers and
// lexicographically otherwise.
func compareOrdered(op, have, want string) bool {
	var cmp int
	ln, lerr := strconv.ParseFloat(strings.TrimSpace(have), 64)
	rn, rerr := strconv.ParseFloat(strings.TrimSpace(want), 64)
	if lerr == nil && rerr == nil {
		switch {
		case ln < rn:
			cmp = -1
		case ln > rn:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(have, want)
	}
	switch op {
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	}
	return false
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}
