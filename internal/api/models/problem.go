package models

import (
	"encoding/json"
	"net/http"
)

// ProblemType identifies a class of API error. Its title and status are fixed per type.
type ProblemType string

const (
	ProblemTypeValidation      ProblemType = "urn:ecosensor:problem:validation-error"
	ProblemTypeNotFound        ProblemType = "urn:ecosensor:problem:not-found"
	ProblemTypeTooManyRequests ProblemType = "urn:ecosensor:problem:too-many-requests"
	ProblemTypeInternal        ProblemType = "urn:ecosensor:problem:internal-error"
	ProblemTypeBadGateway      ProblemType = "urn:ecosensor:problem:bad-upstream-response"
	ProblemTypeUnavailable     ProblemType = "urn:ecosensor:problem:upstream-unavailable"
)

var problemTypes = map[ProblemType]struct {
	title  string
	status int
}{
	ProblemTypeValidation:      {"Validation error", http.StatusBadRequest},
	ProblemTypeNotFound:        {"Not found", http.StatusNotFound},
	ProblemTypeTooManyRequests: {"Too many requests", http.StatusTooManyRequests},
	ProblemTypeInternal:        {"Internal server error", http.StatusInternalServerError},
	ProblemTypeBadGateway:      {"Bad upstream response", http.StatusBadGateway},
	ProblemTypeUnavailable:     {"Upstream unavailable", http.StatusServiceUnavailable},
}

// Title is the fixed human-readable summary of the type.
func (t ProblemType) Title() string {
	if p, ok := problemTypes[t]; ok {
		return p.title
	}
	return problemTypes[ProblemTypeInternal].title
}

// Status is the HTTP status the type is served with. Unknown types are internal errors.
func (t ProblemType) Status() int {
	if p, ok := problemTypes[t]; ok {
		return p.status
	}
	return http.StatusInternalServerError
}

// Problem is an RFC7807 error body, written as application/problem+json.
type Problem struct {
	Type     ProblemType  `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError points at the request parameter that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewProblem builds a problem of the given type for the request identified by traceID.
func NewProblem(t ProblemType, traceID, detail string) *Problem {
	return &Problem{
		Type:    t,
		Title:   t.Title(),
		Status:  t.Status(),
		Detail:  detail,
		TraceID: traceID,
	}
}

// WithInstance sets the request path the problem occurred on.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors attaches per-parameter validation failures.
func (p *Problem) WithErrors(errs []FieldError) *Problem {
	p.Errors = errs
	return p
}

// Write sends the problem with its status code. The trace id doubles as the request id header.
func (p *Problem) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
