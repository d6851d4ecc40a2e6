package common

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// NotFoundError reports a missing book, entity or artifact.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// StoreError reports an unavailable vector store or a malformed query.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ExtractionError reports model output that is not a usable knowledge graph.
type ExtractionError struct {
	BookID string
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("knowledge graph extraction for %s failed: %s: %v", e.BookID, e.Reason, e.Err)
	}
	return fmt.Sprintf("knowledge graph extraction for %s failed: %s", e.BookID, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// TimeoutError reports a long running operation that exceeded its budget.
// The abandoned work is not cancelled at the provider.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
}

// UpstreamError reports a failed LLM completion call.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream call failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// BadRequestError reports invalid caller input.
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string { return e.Reason }

// StatusOf maps an error to the HTTP status used at the API boundary.
func StatusOf(err error) int {
	var (
		notFound   *NotFoundError
		timeout    *TimeoutError
		badRequest *BadRequestError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &badRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
