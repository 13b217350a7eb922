// Package response provides utilities for HTTP response handling.
package response

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/saveecobot/ecosensor/internal/api/middleware"
	"github.com/saveecobot/ecosensor/internal/api/models"
)

func setRequestID(w http.ResponseWriter, r *http.Request) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set(middleware.RequestIDHeader, requestID)
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Text writes a plain text response, used for the notification style station listings.
func Text(w http.ResponseWriter, r *http.Request, status int, body string) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Error writes a Problem+JSON error response for the current request.
func Error(w http.ResponseWriter, r *http.Request, t models.ProblemType, detail string) {
	problem(r, t, detail).Write(w)
}

func problem(r *http.Request, t models.ProblemType, detail string) *models.Problem {
	return models.NewProblem(t, middleware.GetRequestID(r.Context()), detail).WithInstance(r.URL.Path)
}

// BadRequest writes a 400 naming the offending parameters.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errs []models.FieldError) {
	problem(r, models.ProblemTypeValidation, detail).WithErrors(errs).Write(w)
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.ProblemTypeNotFound, detail)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.ProblemTypeInternal, detail)
}

// BadGateway writes a 502 response for an unusable upstream answer.
func BadGateway(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.ProblemTypeBadGateway, detail)
}

// ServiceUnavailable writes a 503 response. A non-zero retryAfterSeconds sets the Retry-After header.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string, retryAfterSeconds int) {
	if retryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	Error(w, r, models.ProblemTypeUnavailable, detail)
}
