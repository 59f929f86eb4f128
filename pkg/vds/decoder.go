package vds

import (
	"fmt"
	"regexp"
	"strings"
)

// ErrorKind classifies a decode failure by the grammar stage that rejected
// the input.
type ErrorKind string

const (
	UnknownPrefix        ErrorKind = "UnknownPrefix"
	UnknownBore          ErrorKind = "UnknownBore"
	UnknownClass         ErrorKind = "UnknownClass"
	UnknownModifier      ErrorKind = "UnknownModifier"
	UnknownEndConnection ErrorKind = "UnknownEndConnection"
	TruncatedVDS         ErrorKind = "TruncatedVDS"
)

// DecodeError reports a VDS number the grammar cannot accept. Segment holds
// the offending slice of the input, VDS the normalized input as a whole.
type DecodeError struct {
	Kind    ErrorKind
	Segment string
	VDS     string
}

func (e *DecodeError) Error() string {
	if e.Segment == "" {
		return fmt.Sprintf("%s in VDS %q", e.Kind, e.VDS)
	}
	return fmt.Sprintf("%s(%q) in VDS %q", e.Kind, e.Segment, e.VDS)
}

// ClassChecker answers whether a piping class exists in the piping material
// specification. The decoder uses it only to confirm existence; field values
// are read elsewhere.
type ClassChecker interface {
	HasClass(class string) bool
}

// MinLength is the shortest input a VDS number can have: a two-letter prefix
// with a default bore, a two-character piping class, and an end connection.
const MinLength = 5

var classBasePattern = regexp.MustCompile(`^[A-Z][0-9]+`)

// Decoded is the structured form of a VDS number. All segment fields hold
// slices of the normalized input, so the raw code can be reconstructed from
// them in grammar order.
type Decoded struct {
	Raw                      string `json:"raw"`
	Prefix                   string `json:"valveTypePrefix"`
	PrefixName               string `json:"valveTypeName"`
	BoreType                 string `json:"boreType"`
	BoreName                 string `json:"boreTypeName"`
	PipingClass              string `json:"pipingClass"`
	PipingClassBase          string `json:"pipingClassBase"`
	EndConnection            string `json:"endConnection"`
	EndConnectionName        string `json:"endConnectionName"`
	EndConnectionDescription string `json:"endConnectionDescription"`
	IsNaceCompliant          bool   `json:"isNaceCompliant"`
	IsLowTemp                bool   `json:"isLowTemp"`
	IsMetalSeated            bool   `json:"isMetalSeated"`
	PrimaryStandard          string `json:"primaryStandard"`
}

// ValveType returns the human-readable valve type, combining the prefix name
// with the bore name unless the prefix name already spells it out.
func (d Decoded) ValveType() string {
	if d.BoreName == "" || strings.Contains(d.PrefixName, d.BoreName) {
		return d.PrefixName
	}
	return d.PrefixName + ", " + d.BoreName
}

// Modifiers lists the active service modifiers in display form.
func (d Decoded) Modifiers() []string {
	mods := []string{}
	if d.IsNaceCompliant {
		mods = append(mods, "NACE")
	}
	if d.IsLowTemp {
		mods = append(mods, "Low Temperature")
	}
	if d.IsMetalSeated {
		mods = append(mods, "Metal Seated")
	}
	return mods
}

// Decoder parses VDS numbers against a grammar. It is stateless and safe for
// concurrent use.
type Decoder struct {
	grammar      Grammar
	classes      ClassChecker
	classPattern *regexp.Regexp
}

// NewDecoder returns a decoder for the given grammar. classes confirms
// piping-class existence during decoding.
func NewDecoder(grammar Grammar, classes ClassChecker) *Decoder {
	pattern := grammar.ClassPattern
	if pattern == nil {
		pattern = regexp.MustCompile(DefaultPipingClassPattern)
	}
	return &Decoder{grammar: grammar, classes: classes, classPattern: pattern}
}

// Grammar returns the rule set the decoder was built with.
func (d *Decoder) Grammar() Grammar {
	return d.grammar
}

// Decode parses input into its structured form. Trailing whitespace is
// stripped and letters are uppercased before parsing; leading or embedded
// whitespace is not repaired and fails at whatever stage it lands in. The
// returned error is always a *DecodeError.
func (d *Decoder) Decode(input string) (Decoded, error) {
	raw := strings.ToUpper(strings.TrimRight(input, " \t\r\n"))
	if len(raw) < MinLength {
		return Decoded{}, &DecodeError{Kind: TruncatedVDS, Segment: raw, VDS: raw}
	}

	prefix, ok := d.matchPrefix(raw)
	if !ok {
		n := 3
		if len(raw) < n {
			n = len(raw)
		}
		return Decoded{}, &DecodeError{Kind: UnknownPrefix, Segment: raw[:n], VDS: raw}
	}
	pos := len(prefix.Code)

	rest := raw[pos:]
	if len(rest) < 3 {
		return Decoded{}, &DecodeError{Kind: TruncatedVDS, Segment: rest, VDS: raw}
	}

	bore, metalSeated, consumed, err := d.matchBore(raw, pos, prefix)
	if err != nil {
		return Decoded{}, err
	}
	pos += consumed

	if len(raw)-pos < 3 {
		return Decoded{}, &DecodeError{Kind: TruncatedVDS, Segment: raw[pos:], VDS: raw}
	}

	middle := raw[pos : len(raw)-1]
	base, err := d.matchClass(raw, middle)
	if err != nil {
		return Decoded{}, err
	}

	nace, lowTemp, err := d.matchModifiers(raw, middle[len(base):])
	if err != nil {
		return Decoded{}, err
	}

	if !d.classes.HasClass(middle) && !d.classes.HasClass(base) {
		return Decoded{}, &DecodeError{Kind: UnknownClass, Segment: middle, VDS: raw}
	}

	endCode := raw[len(raw)-1:]
	end, ok := d.grammar.EndConnections[endCode]
	if !ok {
		return Decoded{}, &DecodeError{Kind: UnknownEndConnection, Segment: endCode, VDS: raw}
	}

	return Decoded{
		Raw:                      raw,
		Prefix:                   prefix.Code,
		PrefixName:               prefix.Name,
		BoreType:                 bore.Code,
		BoreName:                 bore.Name,
		PipingClass:              middle,
		PipingClassBase:          base,
		EndConnection:            end.Code,
		EndConnectionName:        end.Name,
		EndConnectionDescription: end.Description,
		IsNaceCompliant:          nace,
		IsLowTemp:                lowTemp,
		IsMetalSeated:            metalSeated,
		PrimaryStandard:          prefix.PrimaryStandard,
	}, nil
}

// Validate reports whether input is a well-formed VDS number, with the
// decode failure message when it is not.
func (d *Decoder) Validate(input string) (bool, string) {
	if _, err := d.Decode(input); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// matchPrefix tries the longer prefix first so that three-letter codes such
// as BSF win over their two-letter parent BS.
func (d *Decoder) matchPrefix(raw string) (Prefix, bool) {
	if len(raw) >= 3 {
		if p, ok := d.grammar.Prefixes[raw[:3]]; ok {
			return p, true
		}
	}
	if p, ok := d.grammar.Prefixes[raw[:2]]; ok {
		return p, true
	}
	return Prefix{}, false
}

func (d *Decoder) matchBore(raw string, pos int, prefix Prefix) (Bore, bool, int, error) {
	code := raw[pos : pos+1]
	if bore, ok := d.grammar.Bores[code]; ok {
		if code == "M" {
			return bore, true, 1, nil
		}
		if prefix.AllowsMetalSeatedFlag && raw[pos+1] == 'M' {
			return bore, true, 2, nil
		}
		return bore, false, 1, nil
	}
	// A piping-class letter here means the bore is implied by the prefix.
	if code[0] >= 'A' && code[0] <= 'G' && prefix.DefaultBore != "" {
		if bore, ok := d.grammar.Bores[prefix.DefaultBore]; ok {
			return bore, false, 0, nil
		}
	}
	return Bore{}, false, 0, &DecodeError{Kind: UnknownBore, Segment: code, VDS: raw}
}

func (d *Decoder) matchClass(raw, middle string) (string, error) {
	if d.classPattern.MatchString(middle) {
		return classBasePattern.FindString(middle), nil
	}
	base := classBasePattern.FindString(middle)
	if base == "" || len(base) == len(middle) {
		return "", &DecodeError{Kind: UnknownClass, Segment: middle, VDS: raw}
	}
	// The class shape is fine, so the first trailing letter must be an
	// unconfigured modifier.
	return "", &DecodeError{Kind: UnknownModifier, Segment: middle[len(base) : len(base)+1], VDS: raw}
}

func (d *Decoder) matchModifiers(raw, mods string) (nace, lowTemp bool, err error) {
	for i := 0; i < len(mods); i++ {
		code := mods[i : i+1]
		if _, ok := d.grammar.Modifiers[code]; !ok {
			return false, false, &DecodeError{Kind: UnknownModifier, Segment: code, VDS: raw}
		}
		switch code {
		case "N":
			nace = true
		case "L":
			lowTemp = true
		}
	}
	return nace, lowTemp, nil
}
