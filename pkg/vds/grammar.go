// Package vds implements the VDS (Valve Data Sheet) number grammar: a
// declarative rule set describing how a compact valve product code such as
// BSFB1NR is segmented, and a decoder that parses codes into structured,
// immutable records.
package vds

import (
	"regexp"
	"sort"
)

// DefaultPipingClassPattern validates the middle segment of a VDS code: a
// class letter, digits, then optional modifier letters. The two capture
// groups are informational; the decoder derives the base class itself.
const DefaultPipingClassPattern = `^([A-Z][0-9]+)([LN]*)$`

// Prefix describes one valve-type prefix (two or three letters).
type Prefix struct {
	Code            string   `json:"code"`
	Name            string   `json:"name"`
	Standards       []string `json:"standards,omitempty"`
	PrimaryStandard string   `json:"primaryStandard,omitempty"`

	// DefaultBore is assumed when the character after the prefix is already
	// a piping-class letter (A-G) rather than a bore code. Empty means the
	// bore character is mandatory for this prefix.
	DefaultBore string `json:"defaultBore,omitempty"`

	// AllowsMetalSeatedFlag permits a separate M character between the bore
	// code and the piping class.
	AllowsMetalSeatedFlag bool `json:"allowsMetalSeatedFlag,omitempty"`
}

// Bore describes one bore-type code (opening geometry).
type Bore struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// EndConnection describes one end-connection code.
type EndConnection struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Modifier describes one single-letter modifier (N, L).
type Modifier struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Grammar is the full declarative rule set for decoding VDS numbers. It is
// built once from configuration and never mutated afterwards; any number of
// decoders and readers may share it.
type Grammar struct {
	Prefixes       map[string]Prefix
	Bores          map[string]Bore
	EndConnections map[string]EndConnection
	Modifiers      map[string]Modifier

	// ClassPattern overrides DefaultPipingClassPattern when non-nil.
	ClassPattern *regexp.Regexp
}

// PrefixCodes returns the configured prefix codes, sorted.
func (g Grammar) PrefixCodes() []string {
	return sortedKeys(g.Prefixes)
}

// BoreCodes returns the configured bore codes, sorted.
func (g Grammar) BoreCodes() []string {
	return sortedKeys(g.Bores)
}

// EndConnectionCodes returns the configured end-connection codes, sorted.
func (g Grammar) EndConnectionCodes() []string {
	return sortedKeys(g.EndConnections)
}

// ModifierCodes returns the configured modifier codes, sorted.
func (g Grammar) ModifierCodes() []string {
	return sortedKeys(g.Modifiers)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
