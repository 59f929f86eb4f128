package server

import (
	"net/http"
	"strconv"
)

// Listing page bounds.
const (
	defaultLimit = 100
	maxLimit     = 1000
)

// listParams reads offset and limit from the query string. Offset is clamped
// to zero or more; limit is clamped to 1..maxLimit and defaults to
// defaultLimit when absent or unparseable.
func listParams(r *http.Request) (offset, limit int) {
	limit = defaultLimit
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			offset = n
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			switch {
			case n < 1:
				limit = 1
			case n > maxLimit:
				limit = maxLimit
			default:
				limit = n
			}
		}
	}
	return offset, limit
}

// page slices codes to the requested window. An offset past the end yields
// an empty page, never an error.
func page(codes []string, offset, limit int) []string {
	if offset >= len(codes) {
		return []string{}
	}
	end := offset + limit
	if end > len(codes) {
		end = len(codes)
	}
	return codes[offset:end]
}
