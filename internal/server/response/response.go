// Package response writes JSON bodies for every HTTP endpoint. Success payloads are written
// as-is; failures use an envelope carrying a stable error code.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"truledgr/backend/internal/identity/service"
)

type errorEnvelope struct {
	Success bool     `json:"success"`
	Error   apiError `json:"error"`
	Meta    meta     `json:"meta"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type meta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// JSON writes data as the response body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, r, status, data)
}

// Error writes an error envelope with a machine-readable code.
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	write(w, r, status, errorEnvelope{
		Error: apiError{Code: code, Message: message},
		Meta:  meta{RequestID: requestID(r), Timestamp: time.Now().UTC()},
	})
}

// FromError maps a service error onto its HTTP status and writes it. Errors without a kind
// are reported as a generic 500 so internal causes never reach the client.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	if kind == "" {
		Error(w, r, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	Error(w, r, StatusFor(kind), string(kind), service.MessageOf(err))
}

// StatusFor returns the HTTP status for an error kind.
func StatusFor(kind service.Kind) int {
	switch kind {
	case service.KindInvalidCredentials, service.KindInvalidOrExpiredToken:
		return http.StatusUnauthorized
	case service.KindInactiveAccount, service.KindSelfImpersonation, service.KindInvalidArgument:
		return http.StatusBadRequest
	case service.KindSessionNotFound, service.KindTargetNotFound:
		return http.StatusNotFound
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindConflict:
		return http.StatusConflict
	case service.KindRateLimited:
		return http.StatusTooManyRequests
	case service.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrBodyTooLarge is returned by Decode when the request body exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("request body too large")

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// Decode reads a JSON body into dst, rejecting unknown fields. An empty body leaves dst zero.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrBodyTooLarge
		}
		return err
	}
	return nil
}

// BadRequest writes a 400 invalid_argument error.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusBadRequest, string(service.KindInvalidArgument), message)
}

func requestID(r *http.Request) string {
	id := chimiddleware.GetReqID(r.Context())
	if id == "" {
		id = r.Header.Get("X-Request-Id")
	}
	if id == "" {
		id = "req-unknown"
	}
	return id
}

func write(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", requestID(r))
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
