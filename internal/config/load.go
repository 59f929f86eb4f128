package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pipespec/valve-datasheet/pkg/datasheet"
	"github.com/pipespec/valve-datasheet/pkg/vds"
)

// Rulebook file names expected under the config directory.
const (
	VDSRulesFile         = "vds_rules.yaml"
	FieldMappingsFile    = "field_mappings.yaml"
	MaterialMappingsFile = "material_mappings.yaml"
)

// ErrConfigInvalid marks any rulebook loading or validation failure. A
// process that hits it must refuse to serve rather than generate datasheets
// from a rulebook it only partially understood.
var ErrConfigInvalid = errors.New("invalid configuration")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfigInvalid, fmt.Sprintf(format, args...))
}

// Attributes a VDS-sourced field may read from the decoded code.
var knownVDSAttributes = map[string]bool{
	"vds_no":           true,
	"piping_class":     true,
	"valve_type":       true,
	"bore_type":        true,
	"end_connection":   true,
	"primary_standard": true,
}

// Columns a PMS-sourced field may read from the piping-class row.
var knownPMSColumns = map[string]bool{
	"service":             true,
	"corrosion_allowance": true,
	"design_pressure_max": true,
	"design_temperature":  true,
	"pressure_class":      true,
}

// Operands a calculated field may derive from.
var knownOperands = map[string]bool{
	"design_pressure": true,
}

type fieldMappingsFile struct {
	Sections   []sectionDef    `yaml:"sections"`
	Tables     Tables          `yaml:"tables"`
	Validation ValidationRules `yaml:"validation"`
}

type sectionDef struct {
	Name   string     `yaml:"name"`
	Fields []FieldDef `yaml:"fields"`
}

type materialMappingsFile struct {
	BaseMaterials map[string]materialDef `yaml:"base_materials"`
}

type materialDef struct {
	Description        string                   `yaml:"description"`
	Inherits           string                   `yaml:"inherits"`
	Components         map[string]ComponentSpec `yaml:"components"`
	ComponentOverrides map[string]ComponentSpec `yaml:"component_overrides"`
}

// Load reads and validates the three rulebooks under dir. Every returned
// error wraps ErrConfigInvalid.
func Load(dir string) (*Config, error) {
	var rules VDSRules
	if err := decodeStrict(filepath.Join(dir, VDSRulesFile), &rules); err != nil {
		return nil, err
	}
	var mappings fieldMappingsFile
	if err := decodeStrict(filepath.Join(dir, FieldMappingsFile), &mappings); err != nil {
		return nil, err
	}
	var materials materialMappingsFile
	if err := decodeStrict(filepath.Join(dir, MaterialMappingsFile), &materials); err != nil {
		return nil, err
	}

	grammar, err := buildGrammar(rules)
	if err != nil {
		return nil, err
	}

	sections, fields, err := buildSchema(mappings.Sections)
	if err != nil {
		return nil, err
	}

	merged, err := mergeMaterials(materials.BaseMaterials)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Rules:      rules,
		Sections:   sections,
		Fields:     fields,
		Materials:  merged,
		Tables:     mappings.Tables,
		Validation: mappings.Validation,
		grammar:    grammar,
	}
	cfg.Warnings = crossCheck(cfg)
	return cfg, nil
}

// decodeStrict decodes one YAML file rejecting unknown keys, so a typo in a
// rulebook surfaces at startup instead of silently disabling a rule.
func decodeStrict(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return invalidf("%v", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return invalidf("%s: %v", filepath.Base(path), err)
	}
	return nil
}

func buildGrammar(rules VDSRules) (vds.Grammar, error) {
	if len(rules.Prefixes) == 0 {
		return vds.Grammar{}, invalidf("%s: no valve_type_prefixes defined", VDSRulesFile)
	}
	if len(rules.Bores) == 0 {
		return vds.Grammar{}, invalidf("%s: no bore_types defined", VDSRulesFile)
	}
	if len(rules.EndConnections) == 0 {
		return vds.Grammar{}, invalidf("%s: no end_connections defined", VDSRulesFile)
	}
	if len(rules.Modifiers) == 0 {
		return vds.Grammar{}, invalidf("%s: no modifiers defined", VDSRulesFile)
	}

	g := vds.Grammar{
		Prefixes:       make(map[string]vds.Prefix, len(rules.Prefixes)),
		Bores:          make(map[string]vds.Bore, len(rules.Bores)),
		EndConnections: make(map[string]vds.EndConnection, len(rules.EndConnections)),
		Modifiers:      make(map[string]vds.Modifier, len(rules.Modifiers)),
	}

	if rules.PipingClassPattern != "" {
		re, err := regexp.Compile(rules.PipingClassPattern)
		if err != nil {
			return vds.Grammar{}, invalidf("piping_class_pattern: %v", err)
		}
		g.ClassPattern = re
	}

	for code, b := range rules.Bores {
		if err := validGrammarCode(code, 1, "bore type"); err != nil {
			return vds.Grammar{}, err
		}
		if b.Name == "" {
			return vds.Grammar{}, invalidf("bore type %s has no name", code)
		}
		g.Bores[code] = vds.Bore{Code: code, Name: b.Name}
	}

	for code, p := range rules.Prefixes {
		if len(code) < 2 || len(code) > 3 || code != strings.ToUpper(code) {
			return vds.Grammar{}, invalidf("valve type prefix %q must be 2 or 3 uppercase letters", code)
		}
		if p.Name == "" {
			return vds.Grammar{}, invalidf("valve type prefix %s has no name", code)
		}
		if p.DefaultBore != "" {
			if _, ok := g.Bores[p.DefaultBore]; !ok {
				return vds.Grammar{}, invalidf("valve type prefix %s: default_bore %q is not a configured bore type", code, p.DefaultBore)
			}
		}
		g.Prefixes[code] = vds.Prefix{
			Code:                  code,
			Name:                  p.Name,
			Standards:             p.Standards,
			PrimaryStandard:       p.PrimaryStandard,
			DefaultBore:           p.DefaultBore,
			AllowsMetalSeatedFlag: p.AllowsMetalSeatedFlag,
		}
	}

	for code, e := range rules.EndConnections {
		if err := validGrammarCode(code, 1, "end connection"); err != nil {
			return vds.Grammar{}, err
		}
		if e.Name == "" {
			return vds.Grammar{}, invalidf("end connection %s has no name", code)
		}
		g.EndConnections[code] = vds.EndConnection{Code: code, Name: e.Name, Description: e.Description}
	}

	for code, m := range rules.Modifiers {
		if err := validGrammarCode(code, 1, "modifier"); err != nil {
			return vds.Grammar{}, err
		}
		g.Modifiers[code] = vds.Modifier{Code: code, Name: m.Name}
	}

	return g, nil
}

func validGrammarCode(code string, length int, what string) error {
	if len(code) != length || code != strings.ToUpper(code) {
		return invalidf("%s code %q must be %d uppercase letter(s)", what, code, length)
	}
	return nil
}

func buildSchema(sections []sectionDef) ([]string, []FieldDef, error) {
	if len(sections) == 0 {
		return nil, nil, invalidf("%s: no sections defined", FieldMappingsFile)
	}

	names := make([]string, 0, len(sections))
	seenSections := make(map[string]bool, len(sections))
	var fields []FieldDef
	seenFields := make(map[string]bool)

	for _, sec := range sections {
		if sec.Name == "" {
			return nil, nil, invalidf("section with empty name")
		}
		if seenSections[sec.Name] {
			return nil, nil, invalidf("duplicate section %q", sec.Name)
		}
		seenSections[sec.Name] = true
		names = append(names, sec.Name)

		if len(sec.Fields) == 0 {
			return nil, nil, invalidf("section %q has no fields", sec.Name)
		}
		for _, f := range sec.Fields {
			if f.Name == "" {
				return nil, nil, invalidf("section %q: field with empty name", sec.Name)
			}
			if seenFields[f.Name] {
				return nil, nil, invalidf("duplicate field %q", f.Name)
			}
			seenFields[f.Name] = true

			f.Section = sec.Name
			if f.DisplayName == "" {
				f.DisplayName = displayName(f.Name)
			}
			validated, err := validateField(f)
			if err != nil {
				return nil, nil, err
			}
			fields = append(fields, validated)
		}
	}
	return names, fields, nil
}

// validateField checks the tagged payload against the declared source kind
// and parses any embedded conditions.
func validateField(f FieldDef) (FieldDef, error) {
	payloads := 0
	for _, present := range []bool{
		f.VDS != nil, f.PMS != nil, f.Standard != nil, f.Material != nil,
		f.Index != nil, f.Calculated != nil, f.Fixed != nil,
	} {
		if present {
			payloads++
		}
	}
	if payloads != 1 {
		return f, invalidf("field %q declares %d rule payloads, want exactly one", f.Name, payloads)
	}

	var err error
	switch f.Source {
	case datasheet.SourceVDS:
		if f.VDS == nil {
			return f, payloadMismatch(f)
		}
		if f.VDS.Attribute == "" && len(f.VDS.Rules) == 0 {
			return f, invalidf("field %q needs a vds attribute or rules", f.Name)
		}
		if f.VDS.Attribute != "" && !knownVDSAttributes[f.VDS.Attribute] {
			return f, invalidf("field %q references unknown vds attribute %q", f.Name, f.VDS.Attribute)
		}
		if f.VDS.Rules, err = parseRules(f.Name, f.VDS.Rules); err != nil {
			return f, err
		}
	case datasheet.SourcePMS:
		if f.PMS == nil {
			return f, payloadMismatch(f)
		}
		if !knownPMSColumns[f.PMS.Column] {
			return f, invalidf("field %q references unknown pms column %q", f.Name, f.PMS.Column)
		}
	case datasheet.SourceStandard:
		if f.Standard == nil {
			return f, payloadMismatch(f)
		}
		s := f.Standard
		if s.ClauseField == "" && len(s.Rules) == 0 && len(s.ValveTypeDefaults) == 0 && s.Fallback == "" {
			return f, invalidf("field %q has an empty standard rule", f.Name)
		}
		if s.Rules, err = parseRules(f.Name, s.Rules); err != nil {
			return f, err
		}
	case datasheet.SourcePMSAndStandard:
		if f.Material == nil {
			return f, payloadMismatch(f)
		}
		if f.Material.Component == "" {
			return f, invalidf("field %q has no material component", f.Name)
		}
	case datasheet.SourceVDSIndex:
		if f.Index == nil {
			return f, payloadMismatch(f)
		}
		if f.Index.Column == "" {
			return f, invalidf("field %q has no index column", f.Name)
		}
	case datasheet.SourceCalculated:
		if f.Calculated == nil {
			return f, payloadMismatch(f)
		}
		c := f.Calculated
		if !knownOperands[c.Operand] {
			return f, invalidf("field %q references unknown operand %q", f.Name, c.Operand)
		}
		if c.Factor <= 0 {
			return f, invalidf("field %q has non-positive factor %v", f.Name, c.Factor)
		}
		if c.Unit == "" {
			c.Unit = "barg"
		}
		if c.Derivation == "" {
			c.Derivation = fmt.Sprintf("%g x %s", c.Factor, c.Operand)
		}
	case datasheet.SourceFixed:
		if f.Fixed == nil {
			return f, payloadMismatch(f)
		}
		if f.Fixed.Value == "" {
			return f, invalidf("field %q has an empty fixed value", f.Name)
		}
	default:
		return f, invalidf("field %q has unknown source kind %q", f.Name, f.Source)
	}
	return f, nil
}

func payloadMismatch(f FieldDef) error {
	return invalidf("field %q: rule payload does not match source kind %s", f.Name, f.Source)
}

func parseRules(field string, rules []ConditionalRule) ([]ConditionalRule, error) {
	for i, r := range rules {
		cond, err := ParseCondition(r.When)
		if err != nil {
			return nil, invalidf("field %q rule %d: %v", field, i+1, err)
		}
		if !cond.IsAlways() && !ConditionVariables[cond.Variable] {
			return nil, invalidf("field %q rule %d: unknown condition variable %q", field, i+1, cond.Variable)
		}
		if r.Value == "" {
			return nil, invalidf("field %q rule %d: empty value", field, i+1)
		}
		rules[i].Cond = cond
	}
	return rules, nil
}

func mergeMaterials(defs map[string]materialDef) (map[string]MaterialMap, error) {
	if len(defs) == 0 {
		return nil, invalidf("%s: no base_materials defined", MaterialMappingsFile)
	}

	merged := make(map[string]MaterialMap, len(defs))
	for key, def := range defs {
		components := make(map[string]ComponentSpec)
		if def.Inherits != "" {
			if def.Inherits == key {
				return nil, invalidf("material map %s inherits itself", key)
			}
			parent, ok := defs[def.Inherits]
			if !ok {
				return nil, invalidf("material map %s inherits unknown map %s", key, def.Inherits)
			}
			if parent.Inherits != "" {
				return nil, invalidf("material map %s inherits %s, which itself inherits %s; inheritance is single-level", key, def.Inherits, parent.Inherits)
			}
			for name, spec := range parent.Components {
				components[name] = spec
			}
		}
		for name, spec := range def.Components {
			components[name] = spec
		}
		for name, spec := range def.ComponentOverrides {
			components[name] = spec
		}
		if len(components) == 0 {
			return nil, invalidf("material map %s has no components", key)
		}
		merged[key] = MaterialMap{Key: key, Description: def.Description, Components: components}
	}
	return merged, nil
}

// crossCheck collects non-fatal findings across the rulebooks.
func crossCheck(cfg *Config) []string {
	var warnings []string
	for _, f := range cfg.Fields {
		if f.Source != datasheet.SourcePMSAndStandard {
			continue
		}
		defined := false
		for _, m := range cfg.Materials {
			if _, ok := m.Components[f.Material.Component]; ok {
				defined = true
				break
			}
		}
		if !defined {
			warnings = append(warnings,
				fmt.Sprintf("field %q references material component %q, which no material map defines", f.Name, f.Material.Component))
		}
	}
	return warnings
}

// displayName derives a human heading from a camelCase field name, e.g.
// "pipingClass" becomes "Piping Class". Schema entries normally set
// display_name explicitly; this covers the ones that skip it.
func displayName(name string) string {
	var b strings.Builder
	for i, r := range name {
		if i == 0 {
			if r >= 'a' && r <= 'z' {
				r = r - 'a' + 'A'
			}
			b.WriteRune(r)
			continue
		}
		if r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
