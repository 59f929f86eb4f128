package resolver

import "fmt"

// Kind classifies a resolution failure.
type Kind string

const (
	// KindMissingOperand means a calculated field had no numeric input, e.g.
	// a piping class with no design pressure and no rating-table entry.
	KindMissingOperand Kind = "MissingOperand"

	// KindUnknownMaterial means no material map exists for the composed key
	// or any of its fallback ancestors.
	KindUnknownMaterial Kind = "UnknownMaterial"

	// KindUnknownComponent means the selected material map does not define
	// the requested component, or lacks the required branch.
	KindUnknownComponent Kind = "UnknownComponent"

	// KindMissingIndexRow means the decoded VDS has no row in the VDS index.
	KindMissingIndexRow Kind = "MissingIndexRow"
)

// ResolveError reports one field that could not be resolved. It never aborts
// generation: the engine turns it into a validation error when the field is
// required and a warning otherwise.
type ResolveError struct {
	Field  string
	Kind   Kind
	Detail string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Kind, e.Detail)
}
