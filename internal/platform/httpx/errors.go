// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Mapping pairs a sentinel error with the HTTP status and title it
// should produce.
type Mapping struct {
	Err    error
	Status int
	Title  string
}

// RespondError maps err against the given mappings using errors.Is and
// writes an RFC7807 response. Unmapped errors become an opaque 500 so
// internal details never leak to callers.
func RespondError(w http.ResponseWriter, err error, mappings ...Mapping) {
	for _, m := range mappings {
		if errors.Is(err, m.Err) {
			Problem(w, m.Status, m.Title, err.Error())
			return
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
