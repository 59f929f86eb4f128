// Package datasheet defines the generated valve datasheet: resolved fields
// with per-field traceability, ordered sections, and the flat and structured
// views emitted by the engine.
package datasheet

import (
	"math"
	"strings"
	"time"
)

// SourceKind names the upstream a field value is resolved from.
type SourceKind string

const (
	SourceVDS            SourceKind = "VDS"
	SourcePMS            SourceKind = "PMS"
	SourceStandard       SourceKind = "STANDARD"
	SourcePMSAndStandard SourceKind = "PMS_AND_STANDARD"
	SourceVDSIndex       SourceKind = "VDS_INDEX"
	SourceCalculated     SourceKind = "CALCULATED"
	SourceFixed          SourceKind = "FIXED"
)

// KnownSourceKinds lists every source kind a field definition may declare.
var KnownSourceKinds = []SourceKind{
	SourceVDS,
	SourcePMS,
	SourceStandard,
	SourcePMSAndStandard,
	SourceVDSIndex,
	SourceCalculated,
	SourceFixed,
}

// Traceability records where a field value came from and how it was derived.
// Every populated field carries one; an empty field carries one explaining
// why it is empty.
type Traceability struct {
	SourceKind      SourceKind `json:"sourceKind"`
	SourceDocument  string     `json:"sourceDocument,omitempty"`
	SourceValue     string     `json:"sourceValue,omitempty"`
	DerivationRule  string     `json:"derivationRule,omitempty"`
	ClauseReference string     `json:"clauseReference,omitempty"`
	Confidence      float64    `json:"confidence"`
	Notes           string     `json:"notes,omitempty"`
}

// FieldStatus is the per-field validation outcome.
type FieldStatus string

const (
	FieldOK            FieldStatus = "OK"
	FieldMissing       FieldStatus = "MISSING"
	FieldEmpty         FieldStatus = "EMPTY"
	FieldLowConfidence FieldStatus = "LOW_CONFIDENCE"
)

// lowConfidenceThreshold marks resolved values the engine is not sure about.
const lowConfidenceThreshold = 0.8

// FieldStatusFor derives the per-field validation status from whether the
// field is required, whether it resolved to a value, and the resolution
// confidence.
func FieldStatusFor(required, populated bool, confidence float64) FieldStatus {
	switch {
	case required && !populated:
		return FieldMissing
	case !populated:
		return FieldEmpty
	case confidence < lowConfidenceThreshold:
		return FieldLowConfidence
	default:
		return FieldOK
	}
}

// Populated reports whether value counts as a populated datasheet entry.
// A dash is a real engineering value ("not applicable") and counts.
func Populated(value string) bool {
	return strings.TrimSpace(value) != ""
}

// Field is one resolved datasheet entry.
type Field struct {
	FieldName        string       `json:"fieldName"`
	DisplayName      string       `json:"displayName"`
	Section          string       `json:"section"`
	Value            string       `json:"value"`
	IsRequired       bool         `json:"isRequired"`
	IsPopulated      bool         `json:"isPopulated"`
	ValidationStatus FieldStatus  `json:"validationStatus"`
	Traceability     Traceability `json:"traceability"`
}

// Section groups fields under one datasheet heading, in schema order.
type Section struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Completion summarizes how much of the schema resolved to a value.
type Completion struct {
	Populated  int     `json:"populated"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// ComputeCompletion counts populated fields and derives the percentage,
// rounded to one decimal place.
func ComputeCompletion(fields []Field) Completion {
	c := Completion{Total: len(fields)}
	for _, f := range fields {
		if f.IsPopulated {
			c.Populated++
		}
	}
	if c.Total > 0 {
		c.Percentage = math.Round(float64(c.Populated)/float64(c.Total)*1000) / 10
	}
	return c
}

// Status is the datasheet-level validation outcome.
type Status string

const (
	StatusValid    Status = "valid"
	StatusWarnings Status = "warnings"
	StatusInvalid  Status = "invalid"
)

// Metadata describes one generation run.
type Metadata struct {
	VdsNo             string     `json:"vdsNo"`
	GeneratedAt       time.Time  `json:"generatedAt"`
	GenerationVersion string     `json:"generationVersion"`
	Completion        Completion `json:"completion"`
	ValidationStatus  Status     `json:"validationStatus"`
	ValidationErrors  []string   `json:"validationErrors"`
	Warnings          []string   `json:"warnings"`
}

// Datasheet is a fully generated valve datasheet: generation metadata plus
// every schema field grouped into ordered sections.
type Datasheet struct {
	Metadata Metadata  `json:"metadata"`
	Sections []Section `json:"sections"`
}

// Fields returns every field in schema order.
func (d *Datasheet) Fields() []Field {
	var out []Field
	for _, s := range d.Sections {
		out = append(out, s.Fields...)
	}
	return out
}

// Field returns the named field.
func (d *Datasheet) Field(name string) (Field, bool) {
	for _, s := range d.Sections {
		for _, f := range s.Fields {
			if f.FieldName == name {
				return f, true
			}
		}
	}
	return Field{}, false
}

// Flat returns the populated fields as a plain name-to-value map, the compact
// view used by exports and the flat API endpoint.
func (d *Datasheet) Flat() map[string]string {
	out := make(map[string]string)
	for _, s := range d.Sections {
		for _, f := range s.Fields {
			if f.IsPopulated {
				out[f.FieldName] = f.Value
			}
		}
	}
	return out
}
