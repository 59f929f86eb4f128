package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pipespec/valve-datasheet/pkg/datasheet"
	"github.com/pipespec/valve-datasheet/pkg/vds"
)

// Generate decodes vdsNo and resolves the full schema into a datasheet.
// Resolution failures never abort generation: they are collected into the
// datasheet's validation errors (required fields) or warnings (optional
// fields). Only decode errors and a context expiry abort.
func (e *Engine) Generate(ctx context.Context, vdsNo string) (*datasheet.Datasheet, error) {
	decoded, err := e.decoder.Decode(vdsNo)
	if err != nil {
		return nil, err
	}
	if err := deadline(ctx); err != nil {
		return nil, err
	}

	fields := make([]datasheet.Field, 0, len(e.cfg.Fields))
	errs := []string{}
	warns := []string{}
	errored := make(map[string]bool)
	for _, def := range e.cfg.Fields {
		field, rerr := e.resolver.Resolve(decoded, def)
		fields = append(fields, field)
		if rerr != nil {
			errored[def.Name] = true
			if def.Required {
				errs = append(errs, rerr.Error())
			} else {
				warns = append(warns, rerr.Error())
			}
		}
	}
	if err := deadline(ctx); err != nil {
		return nil, err
	}

	for _, f := range fields {
		if f.IsRequired && !f.IsPopulated && !errored[f.FieldName] {
			errs = append(errs, "Required field missing: "+f.DisplayName)
		}
	}
	warns = append(warns, e.conflictWarnings(decoded, fields)...)
	if err := deadline(ctx); err != nil {
		return nil, err
	}

	completion := datasheet.ComputeCompletion(fields)
	status := statusFor(errs, warns)
	ds := &datasheet.Datasheet{
		Metadata: datasheet.Metadata{
			VdsNo:             decoded.Raw,
			GeneratedAt:       e.clock().UTC(),
			GenerationVersion: GenerationVersion,
			Completion:        completion,
			ValidationStatus:  status,
			ValidationErrors:  errs,
			Warnings:          warns,
		},
		Sections: sectionize(e.cfg.Sections, fields),
	}

	e.logger.Debug("datasheet generated",
		"vdsNo", decoded.Raw,
		"status", status,
		"completion", completion.Percentage)
	return ds, nil
}

func statusFor(errs, warns []string) datasheet.Status {
	switch {
	case len(errs) > 0:
		return datasheet.StatusInvalid
	case len(warns) > 0:
		return datasheet.StatusWarnings
	default:
		return datasheet.StatusValid
	}
}

// sectionize groups fields under the schema's section headings, preserving
// both section and field order.
func sectionize(names []string, fields []datasheet.Field) []datasheet.Section {
	sections := make([]datasheet.Section, 0, len(names))
	for _, name := range names {
		s := datasheet.Section{Name: name}
		for _, f := range fields {
			if f.Section == name {
				s.Fields = append(s.Fields, f)
			}
		}
		sections = append(sections, s)
	}
	return sections
}

// conflictWarnings runs the cross-field consistency checks: decoded service
// flags against the resolved service and material fields, and the pressure
// class against the design pressure.
func (e *Engine) conflictWarnings(d vds.Decoded, fields []datasheet.Field) []string {
	byName := make(map[string]datasheet.Field, len(fields))
	for _, f := range fields {
		byName[f.FieldName] = f
	}
	var warns []string

	if d.IsNaceCompliant {
		if f := byName["sourService"]; f.IsPopulated && !strings.Contains(f.Value, "NACE") {
			warns = append(warns, "NACE-compliant VDS but the sour service entry does not reference NACE")
		}
		if f := byName["bolts"]; f.IsPopulated && !strings.Contains(f.Value, "7M") {
			warns = append(warns, "NACE-compliant VDS but the bolting is not a 7M grade")
		}
	}
	if d.IsLowTemp {
		if f := byName["bodyMaterial"]; f.IsPopulated &&
			!containsAny(f.Value, "LF2", "LCB", "LF3", "LCC", "A350", "A352") {
			warns = append(warns, "low-temperature VDS but the body material is not a low-temperature grade")
		}
	}

	rule := e.cfg.Validation.PressureConsistency
	if rule.MinClass > 0 {
		// "ASME B16.34 Class 900" puts the rating last; the design pressure
		// value leads with its number ("153.2 barg @ 38°C").
		rating, okRating := lastNumber(byName["pressureClass"].Value)
		pressure, okPressure := firstNumber(byName["designPressure"].Value)
		if okRating && okPressure && int(rating) >= rule.MinClass && pressure < rule.MinPressureBarg {
			warns = append(warns, fmt.Sprintf(
				"pressure class %d but design pressure %.1f barg is below %.1f barg",
				int(rating), pressure, rule.MinPressureBarg))
		}
	}

	if body := byName["bodyMaterial"]; body.IsPopulated && containsAny(body.Value, "A105", "A216") {
		if ball := byName["ballMaterial"]; ball.IsPopulated && !strings.Contains(ball.Value, "316") {
			warns = append(warns, "carbon steel body paired with a ball material that is not a 316 grade")
		}
	}
	return warns
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var firstNumberPattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// firstNumber extracts the leading numeric token of a formatted value such
// as "153.2 barg @ 38°C".
func firstNumber(s string) (float64, bool) {
	return parseNumber(firstNumberPattern.FindString(s))
}

// lastNumber extracts the trailing numeric token of a formatted value such
// as "ASME B16.34 Class 900".
func lastNumber(s string) (float64, bool) {
	all := firstNumberPattern.FindAllString(s, -1)
	if len(all) == 0 {
		return 0, false
	}
	return parseNumber(all[len(all)-1])
}

func parseNumber(m string) (float64, bool) {
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
