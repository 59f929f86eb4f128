package resolver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pipespec/valve-datasheet/internal/config"
	"github.com/pipespec/valve-datasheet/pkg/datasheet"
	"github.com/pipespec/valve-datasheet/pkg/vds"
)

// resolveMaterial runs the material-selection algorithm: compose the material
// key from the piping class base material and the NACE and low-temperature
// flags, walk the fallback chain to the first map that exists, then read the
// requested component, branching on end connection or size where the map
// says so.
func (r *Resolver) resolveMaterial(d vds.Decoded, def config.FieldDef) (string, datasheet.Traceability, *ResolveError) {
	component := def.Material.Component
	trace := datasheet.Traceability{
		SourceKind:     datasheet.SourcePMSAndStandard,
		SourceDocument: "Material Mappings",
		Confidence:     1,
	}

	row, _, ok := r.pipingRow(d)
	if !ok || row.BaseMaterial == "" {
		detail := fmt.Sprintf("no base material for piping class %s", d.PipingClass)
		trace.Notes = detail
		return "", trace, &ResolveError{Field: def.Name, Kind: KindUnknownMaterial, Detail: detail}
	}

	base := row.BaseMaterial
	nace := d.IsNaceCompliant
	lt := d.IsLowTemp
	trace.DerivationRule = fmt.Sprintf("Material lookup: base=%s, nace=%t, lt=%t", base, nace, lt)

	candidates := materialCandidates(base, nace, lt)
	var (
		used string
		mat  config.MaterialMap
	)
	for _, key := range candidates {
		if m, ok := r.cfg.Materials[key]; ok {
			used = key
			mat = m
			break
		}
	}
	if used == "" {
		detail := fmt.Sprintf("key %s not in material maps", candidates[0])
		trace.Notes = detail
		return "", trace, &ResolveError{Field: def.Name, Kind: KindUnknownMaterial, Detail: detail}
	}
	trace.SourceDocument = fmt.Sprintf("Material Mappings (%s)", used)

	notes := []string{"component=" + component}
	if used != candidates[0] {
		notes = append(notes, "fallback from "+candidates[0])
	}

	spec, ok := mat.Components[component]
	if !ok {
		detail := fmt.Sprintf("material %s has no component %s", used, component)
		trace.Notes = detail
		return "", trace, &ResolveError{Field: def.Name, Kind: KindUnknownComponent, Detail: detail}
	}

	var value string
	switch {
	case spec.IsBranched():
		branch, ok := spec.Branches[d.EndConnectionName]
		if !ok {
			detail := fmt.Sprintf("component %s has no branch for end connection %s", component, d.EndConnectionName)
			trace.Notes = detail
			return "", trace, &ResolveError{Field: def.Name, Kind: KindUnknownComponent, Detail: detail}
		}
		value = branch
		notes = append(notes, "branch="+d.EndConnectionName)
	case spec.IsSized():
		value, notes = r.sizedValue(d, spec, notes)
	default:
		value = spec.Value
	}

	trace.SourceValue = value
	trace.Notes = strings.Join(notes, "; ")
	return value, trace, nil
}

// sizedValue picks the forged or cast grade by the representative size from
// the VDS index. Without a usable size both grades are listed so the sheet
// stays reviewable.
func (r *Resolver) sizedValue(d vds.Decoded, spec config.ComponentSpec, notes []string) (string, []string) {
	size, ok := r.representativeSize(d)
	if !ok {
		return fmt.Sprintf("Forged - %s, Cast - %s", spec.Forged, spec.Cast),
			append(notes, "size unknown, both grades listed")
	}
	if size <= spec.SizeThreshold {
		return spec.Forged, append(notes,
			fmt.Sprintf("size %s <= %s (forged)", formatSize(size), formatSize(spec.SizeThreshold)))
	}
	return spec.Cast, append(notes,
		fmt.Sprintf("size %s > %s (cast)", formatSize(size), formatSize(spec.SizeThreshold)))
}

// representativeSize reads the size column of the VDS-index row, if any.
func (r *Resolver) representativeSize(d vds.Decoded) (float64, bool) {
	row, ok := r.index.RowFor(d.Raw)
	if !ok {
		return 0, false
	}
	return row.Size()
}

// materialCandidates composes the material key from the modifiers and
// returns the fallback chain, most specific first. Modifiers are dropped
// one at a time, low temperature before NACE, the bare base last.
func materialCandidates(base string, nace, lt bool) []string {
	switch {
	case nace && lt:
		return []string{"LT" + base + "_NACE", base + "_NACE", base}
	case lt:
		return []string{"LT" + base, base}
	case nace:
		return []string{base + "_NACE", base}
	default:
		return []string{base}
	}
}

func formatSize(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
