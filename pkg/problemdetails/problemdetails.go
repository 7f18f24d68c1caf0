// Package problemdetails renders API errors as RFC 7807 problem
// documents.
package problemdetails

import (
	"encoding/json"
	"net/http"
)

const typeBase = "https://shortlink.dev/problems/"

const (
	TypeInvalidRequest    = "invalid-request"
	TypeInvalidURL        = "invalid-url"
	TypeNotFound          = "not-found"
	TypeCodeExhausted     = "code-exhausted"
	TypeRateLimitExceeded = "rate-limit-exceeded"
	TypeInternalError     = "internal-error"
)

// ProblemDetail is the wire form of one API error.
type ProblemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// New builds a problem document. problemType is one of the Type*
// constants; the full type URI is derived from it.
func New(status int, problemType, title, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:   typeBase + problemType,
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// NotFound is the canonical absent-resource problem.
func NotFound(detail string) *ProblemDetail {
	return New(http.StatusNotFound, TypeNotFound, "Not Found", detail)
}

// Internal is the canonical opaque server-side problem. Details stay in
// the logs.
func Internal() *ProblemDetail {
	return New(http.StatusInternalServerError, TypeInternalError,
		"Internal Server Error", "internal server error")
}

// Write renders the problem to the response with the RFC 7807 media type.
func (p *ProblemDetail) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
