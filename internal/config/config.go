// Package config loads and validates the three YAML rulebooks that drive
// datasheet generation: the VDS grammar rules, the field mappings (the output
// schema), and the material mappings. Loading is strict: unknown YAML keys,
// broken references, and malformed rules are rejected up front so that
// generation never has to guess.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/pipespec/valve-datasheet/pkg/datasheet"
	"github.com/pipespec/valve-datasheet/pkg/vds"
)

// Config is the immutable rulebook set a running engine is built from.
type Config struct {
	Rules      VDSRules
	Sections   []string
	Fields     []FieldDef
	Materials  map[string]MaterialMap
	Tables     Tables
	Validation ValidationRules

	// Warnings holds non-fatal findings from loading, e.g. a field that
	// references a material component no map defines.
	Warnings []string

	grammar vds.Grammar
}

// Grammar returns the decoder rule set built from the VDS rules file.
func (c *Config) Grammar() vds.Grammar {
	return c.grammar
}

// VDSRules mirrors vds_rules.yaml.
type VDSRules struct {
	Prefixes           map[string]PrefixRule        `yaml:"valve_type_prefixes"`
	Bores              map[string]BoreRule          `yaml:"bore_types"`
	EndConnections     map[string]EndConnectionRule `yaml:"end_connections"`
	Modifiers          map[string]ModifierRule      `yaml:"modifiers"`
	PipingClassPattern string                       `yaml:"piping_class_pattern"`
}

type PrefixRule struct {
	Name                  string   `yaml:"name"`
	Standards             []string `yaml:"standards"`
	PrimaryStandard       string   `yaml:"primary_standard"`
	DefaultBore           string   `yaml:"default_bore"`
	AllowsMetalSeatedFlag bool     `yaml:"allows_metal_seated_flag"`
}

type BoreRule struct {
	Name string `yaml:"name"`
}

type EndConnectionRule struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type ModifierRule struct {
	Name string `yaml:"name"`
}

// FieldDef is one entry of the output schema. Source names the resolution
// strategy; exactly one of the payload blocks must be present and must match
// it.
type FieldDef struct {
	Name        string               `yaml:"name"`
	DisplayName string               `yaml:"display_name"`
	Source      datasheet.SourceKind `yaml:"source"`
	Required    bool                 `yaml:"required"`

	VDS        *VDSFieldRule   `yaml:"vds,omitempty"`
	PMS        *PMSFieldRule   `yaml:"pms,omitempty"`
	Standard   *StandardRule   `yaml:"standard,omitempty"`
	Material   *MaterialRule   `yaml:"material,omitempty"`
	Index      *IndexRule      `yaml:"index,omitempty"`
	Calculated *CalculatedRule `yaml:"calculated,omitempty"`
	Fixed      *FixedRule      `yaml:"fixed,omitempty"`

	// Section is filled from the enclosing section during load.
	Section string `yaml:"-"`
}

// VDSFieldRule resolves a field from a decoded VDS attribute, or from
// conditional rules evaluated against the decode context.
type VDSFieldRule struct {
	Attribute string            `yaml:"attribute,omitempty"`
	Rules     []ConditionalRule `yaml:"rules,omitempty"`
}

// PMSFieldRule resolves a field from a named piping-class column.
type PMSFieldRule struct {
	Column  string `yaml:"column"`
	Default string `yaml:"default,omitempty"`
}

// StandardRule resolves a field from the standards repository, conditional
// rules, per-valve-type defaults, and a literal fallback, in that order.
type StandardRule struct {
	ClauseField       string            `yaml:"clause_field,omitempty"`
	Rules             []ConditionalRule `yaml:"rules,omitempty"`
	ValveTypeDefaults map[string]string `yaml:"valve_type_defaults,omitempty"`
	Fallback          string            `yaml:"fallback,omitempty"`
}

// MaterialRule resolves a field through the material-selection algorithm.
type MaterialRule struct {
	Component string `yaml:"component"`
}

// IndexRule resolves a field from a VDS-index column.
type IndexRule struct {
	Column string `yaml:"column"`
}

// CalculatedRule derives a numeric value from a named operand.
type CalculatedRule struct {
	Operand    string  `yaml:"operand"`
	Factor     float64 `yaml:"factor"`
	Unit       string  `yaml:"unit,omitempty"`
	Derivation string  `yaml:"derivation,omitempty"`
}

// FixedRule is a literal value.
type FixedRule struct {
	Value string `yaml:"value"`
}

// ConditionalRule pairs a condition with the value to use when it holds. An
// empty condition always holds, so a rule list usually ends with one.
type ConditionalRule struct {
	When  string `yaml:"when,omitempty"`
	Value string `yaml:"value"`

	// Cond is the parsed form of When, filled during load.
	Cond Condition `yaml:"-"`
}

// Tables holds the numeric lookup tables generation falls back to when the
// piping specification leaves a value blank.
type Tables struct {
	// ClassLetterRatings maps a piping-class letter to its ASME pressure
	// class (A -> 150, B -> 300, ...).
	ClassLetterRatings map[string]int `yaml:"class_letter_ratings"`

	// DesignPressureByRating maps an ASME pressure class to its design
	// pressure in barg. Ratings deliberately absent here stay unresolvable.
	DesignPressureByRating map[int]float64 `yaml:"design_pressure_by_rating"`
}

// ValidationRules configures the datasheet-level conflict checks.
type ValidationRules struct {
	PressureConsistency PressureConsistencyRule `yaml:"pressure_consistency"`
}

// PressureConsistencyRule flags datasheets whose pressure class and design
// pressure disagree: class at or above MinClass paired with a design pressure
// below MinPressureBarg draws a warning.
type PressureConsistencyRule struct {
	MinClass        int     `yaml:"min_class"`
	MinPressureBarg float64 `yaml:"min_pressure_barg"`
}

// MaterialMap is one fully merged material map: inheritance is already
// applied, so Components holds the effective specification per component.
type MaterialMap struct {
	Key         string
	Description string
	Components  map[string]ComponentSpec
}

// ComponentSpec is the value specification for one valve component. Exactly
// one form is set: a plain value, branches keyed by end-connection name, or a
// size-threshold pair of forged and cast grades.
type ComponentSpec struct {
	Value         string
	Branches      map[string]string
	SizeThreshold float64
	Forged        string
	Cast          string
}

// IsBranched reports whether the spec selects by end-connection name.
func (s ComponentSpec) IsBranched() bool { return len(s.Branches) > 0 }

// IsSized reports whether the spec selects by a size threshold.
func (s ComponentSpec) IsSized() bool { return s.SizeThreshold > 0 }

func (s *ComponentSpec) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&s.Value)
	case yaml.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			if value.Content[i].Value == "size_threshold" {
				var sized struct {
					SizeThreshold float64 `yaml:"size_threshold"`
					Forged        string  `yaml:"forged"`
					Cast          string  `yaml:"cast"`
				}
				if err := value.Decode(&sized); err != nil {
					return err
				}
				s.SizeThreshold = sized.SizeThreshold
				s.Forged = sized.Forged
				s.Cast = sized.Cast
				return nil
			}
		}
		return value.Decode(&s.Branches)
	default:
		return fmt.Errorf("line %d: component spec must be a string or a mapping", value.Line)
	}
}

// FieldNames returns the schema field names in schema order.
func (c *Config) FieldNames() []string {
	names := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		names = append(names, f.Name)
	}
	return names
}
