// Package resolver computes datasheet field values from their configured
// sources: decoded VDS attributes, piping-class rows, standard clauses,
// material maps, the VDS index, derived calculations, and fixed literals.
// Every resolution also produces the traceability record explaining it.
package resolver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pipespec/valve-datasheet/internal/config"
	"github.com/pipespec/valve-datasheet/internal/repository"
	"github.com/pipespec/valve-datasheet/pkg/datasheet"
	"github.com/pipespec/valve-datasheet/pkg/vds"
)

// Resolver resolves schema fields against the loaded rulebooks and
// repositories. It is stateless and safe for concurrent use.
type Resolver struct {
	cfg       *config.Config
	pms       *repository.PMS
	standards *repository.Standards
	index     *repository.VDSIndex
}

// New returns a resolver over the given rulebooks and repositories.
func New(cfg *config.Config, pms *repository.PMS, standards *repository.Standards, index *repository.VDSIndex) *Resolver {
	return &Resolver{cfg: cfg, pms: pms, standards: standards, index: index}
}

// Resolve computes one schema field for a decoded VDS. The returned field is
// always complete, traceability included; the error reports the fields that
// stayed empty because an upstream value was missing.
func (r *Resolver) Resolve(d vds.Decoded, def config.FieldDef) (datasheet.Field, *ResolveError) {
	var (
		value string
		trace datasheet.Traceability
		rerr  *ResolveError
	)

	switch def.Source {
	case datasheet.SourceVDS:
		value, trace = r.resolveVDS(d, def)
	case datasheet.SourcePMS:
		value, trace = r.resolvePMS(d, def)
	case datasheet.SourceStandard:
		value, trace = r.resolveStandard(d, def)
	case datasheet.SourcePMSAndStandard:
		value, trace, rerr = r.resolveMaterial(d, def)
	case datasheet.SourceVDSIndex:
		value, trace, rerr = r.resolveIndex(d, def)
	case datasheet.SourceCalculated:
		value, trace, rerr = r.resolveCalculated(d, def)
	case datasheet.SourceFixed:
		value, trace = r.resolveFixed(def)
	default:
		// config.Load rejects unknown kinds; an empty field with an empty
		// trace keeps the schema shape even if one slips through.
		trace = datasheet.Traceability{SourceKind: def.Source, Confidence: 1}
	}

	populated := datasheet.Populated(value)
	return datasheet.Field{
		FieldName:        def.Name,
		DisplayName:      def.DisplayName,
		Section:          def.Section,
		Value:            value,
		IsRequired:       def.Required,
		IsPopulated:      populated,
		ValidationStatus: datasheet.FieldStatusFor(def.Required, populated, trace.Confidence),
		Traceability:     trace,
	}, rerr
}

func (r *Resolver) resolveVDS(d vds.Decoded, def config.FieldDef) (string, datasheet.Traceability) {
	rule := def.VDS
	trace := datasheet.Traceability{
		SourceKind:     datasheet.SourceVDS,
		SourceDocument: "VDS No: " + d.Raw,
		DerivationRule: "Selected based on VDS No",
		Confidence:     1,
	}

	var value string
	switch rule.Attribute {
	case "vds_no":
		value = d.Raw
	case "piping_class":
		value = d.PipingClass
	case "valve_type":
		value = d.ValveType()
	case "bore_type":
		value = d.BoreName
	case "end_connection":
		value = d.EndConnectionDescription
	case "primary_standard":
		value = d.PrimaryStandard
	default:
		matched, when, ok := r.evalRules(rule.Rules, d)
		if !ok {
			trace.Notes = "no conditional rule matched"
			return "", trace
		}
		value = matched
		if when != "" {
			trace.DerivationRule = "Condition: " + when
		}
	}
	trace.SourceValue = value
	return value, trace
}

func (r *Resolver) resolvePMS(d vds.Decoded, def config.FieldDef) (string, datasheet.Traceability) {
	rule := def.PMS
	trace := datasheet.Traceability{
		SourceKind:     datasheet.SourcePMS,
		DerivationRule: "Automated based on PMS class",
		Confidence:     1,
	}

	row, class, ok := r.pipingRow(d)
	if !ok {
		trace.SourceDocument = "PMS"
		trace.Notes = fmt.Sprintf("piping class %s not found", d.PipingClass)
		trace.SourceValue = rule.Default
		return rule.Default, trace
	}
	trace.SourceDocument = "PMS Class " + class

	var value string
	switch rule.Column {
	case "service":
		value = row.Service
	case "corrosion_allowance":
		value = row.CorrosionAllowance
	case "design_pressure_max":
		value = row.DesignPressureMax
	case "design_temperature":
		if row.DesignTempMin != "" && row.DesignTempMax != "" {
			value = fmt.Sprintf("%s°C to %s°C", row.DesignTempMin, row.DesignTempMax)
		}
	case "pressure_class":
		if rating := r.pressureRating(d); rating > 0 {
			value = fmt.Sprintf("ASME B16.34 Class %d", rating)
		}
	}
	if value == "" && rule.Default != "" {
		value = rule.Default
		trace.Notes = "column blank, default applied"
	}
	trace.SourceValue = value
	return value, trace
}

func (r *Resolver) resolveStandard(d vds.Decoded, def config.FieldDef) (string, datasheet.Traceability) {
	rule := def.Standard
	trace := datasheet.Traceability{
		SourceKind:     datasheet.SourceStandard,
		DerivationRule: "As per valve standard",
		Confidence:     1,
	}

	if rule.ClauseField != "" {
		if c, ok := r.standards.MandatoryClauseForField(rule.ClauseField, genericValveType(d)); ok {
			value := c.DerivedValue()
			trace.SourceDocument = c.Standard
			trace.ClauseReference = c.Reference()
			trace.SourceValue = value
			return value, trace
		}
	}

	trace.SourceDocument = "Field Mappings"
	if value, when, ok := r.evalRules(rule.Rules, d); ok {
		if when != "" {
			trace.DerivationRule = "Condition: " + when
		}
		trace.SourceValue = value
		return value, trace
	}

	if len(rule.ValveTypeDefaults) > 0 {
		for _, key := range []string{d.ValveType(), d.PrefixName, genericValveType(d)} {
			if value, ok := rule.ValveTypeDefaults[key]; ok {
				trace.DerivationRule = "Default for " + key
				trace.SourceValue = value
				return value, trace
			}
		}
	}

	if rule.Fallback != "" {
		trace.SourceValue = rule.Fallback
		return rule.Fallback, trace
	}

	trace.Notes = "no clause, rule, or default matched"
	return "", trace
}

func (r *Resolver) resolveIndex(d vds.Decoded, def config.FieldDef) (string, datasheet.Traceability, *ResolveError) {
	rule := def.Index
	trace := datasheet.Traceability{
		SourceKind:     datasheet.SourceVDSIndex,
		SourceDocument: "VDS Index",
		DerivationRule: "From VDS Index lookup",
		Confidence:     1,
	}

	row, ok := r.index.RowFor(d.Raw)
	if !ok {
		detail := "no index row for " + d.Raw
		trace.Notes = detail
		return "", trace, &ResolveError{Field: def.Name, Kind: KindMissingIndexRow, Detail: detail}
	}
	value, ok := row.Get(rule.Column)
	if !ok {
		trace.Notes = fmt.Sprintf("index row has no %s", rule.Column)
		return "", trace, nil
	}
	trace.SourceValue = value
	return value, trace, nil
}

func (r *Resolver) resolveCalculated(d vds.Decoded, def config.FieldDef) (string, datasheet.Traceability, *ResolveError) {
	rule := def.Calculated
	trace := datasheet.Traceability{
		SourceKind:     datasheet.SourceCalculated,
		DerivationRule: rule.Derivation,
		Confidence:     1,
	}

	operand, source, ok := r.designPressure(d)
	if !ok {
		detail := fmt.Sprintf("no numeric design pressure for class %s", d.PipingClass)
		trace.Notes = detail
		return "", trace, &ResolveError{Field: def.Name, Kind: KindMissingOperand, Detail: detail}
	}
	trace.SourceDocument = source
	trace.SourceValue = fmt.Sprintf("%.1f %s", operand, rule.Unit)
	value := fmt.Sprintf("%.1f %s", operand*rule.Factor, rule.Unit)
	return value, trace, nil
}

func (r *Resolver) resolveFixed(def config.FieldDef) (string, datasheet.Traceability) {
	value := def.Fixed.Value
	return value, datasheet.Traceability{
		SourceKind:     datasheet.SourceFixed,
		SourceDocument: "Field Mappings",
		SourceValue:    value,
		DerivationRule: "Fixed value",
		Confidence:     1,
	}
}

// evalRules returns the value of the first rule whose condition holds.
func (r *Resolver) evalRules(rules []config.ConditionalRule, d vds.Decoded) (value, when string, ok bool) {
	if len(rules) == 0 {
		return "", "", false
	}
	ctx := r.conditionContext(d)
	for _, rule := range rules {
		if rule.Cond.Eval(ctx) {
			return rule.Value, strings.TrimSpace(rule.When), true
		}
	}
	return "", "", false
}

// conditionContext builds the variable set when-expressions evaluate
// against.
func (r *Resolver) conditionContext(d vds.Decoded) map[string]any {
	return map[string]any{
		"is_nace_compliant": d.IsNaceCompliant,
		"is_low_temp":       d.IsLowTemp,
		"is_metal_seated":   d.IsMetalSeated,
		"valve_type":        d.ValveType(),
		"bore_type":         d.BoreName,
		"piping_class":      d.PipingClass,
		"end_connection":    d.EndConnectionName,
		"pressure_class":    float64(r.pressureRating(d)),
	}
}

// pipingRow fetches the piping-class row, trying the full class name first
// and the base class second, the same order the decoder validated against.
func (r *Resolver) pipingRow(d vds.Decoded) (repository.PipingClassRow, string, bool) {
	if row, ok := r.pms.RowFor(d.PipingClass); ok {
		return row, d.PipingClass, true
	}
	if row, ok := r.pms.RowFor(d.PipingClassBase); ok {
		return row, d.PipingClassBase, true
	}
	return repository.PipingClassRow{}, "", false
}

// pressureRating returns the numeric pressure class, from the piping row
// when it prints one and from the class-letter table otherwise. Zero means
// unknown.
func (r *Resolver) pressureRating(d vds.Decoded) int {
	if row, _, ok := r.pipingRow(d); ok && row.RatingNumeric > 0 {
		return row.RatingNumeric
	}
	if d.PipingClass == "" {
		return 0
	}
	return r.cfg.Tables.ClassLetterRatings[d.PipingClass[:1]]
}

var numericPattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// designPressure returns the numeric design pressure in barg and the
// document it came from: the piping row when it prints one, else the
// rating-table entry for the class.
func (r *Resolver) designPressure(d vds.Decoded) (float64, string, bool) {
	if row, class, ok := r.pipingRow(d); ok && row.DesignPressureMax != "" {
		if m := numericPattern.FindString(row.DesignPressureMax); m != "" {
			if v, err := strconv.ParseFloat(m, 64); err == nil {
				return v, "PMS Class " + class, true
			}
		}
	}
	rating := r.pressureRating(d)
	if v, ok := r.cfg.Tables.DesignPressureByRating[rating]; ok {
		return v, fmt.Sprintf("ASME B16.34 Class %d", rating), true
	}
	return 0, "", false
}

// genericValveType strips bore qualifiers from the prefix name: clause
// applicability lists name plain types like "Ball Valve".
func genericValveType(d vds.Decoded) string {
	name, _, _ := strings.Cut(d.PrefixName, ",")
	return strings.TrimSpace(name)
}
