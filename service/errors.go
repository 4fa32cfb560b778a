package service

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrInvalidFileType    = errors.New("invalid file type")
	ErrFileTooLarge       = errors.New("file too large")
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
	ErrStaleSubmission    = errors.New("submission superseded by reset")
	ErrUnexpectedShape    = errors.New("unexpected response shape")
	ErrEmptyQuestion      = errors.New("question is empty")
	ErrMissingAnswer      = errors.New("response has no answer")
	ErrSessionNotFound    = errors.New("session not found")
)

// ValidationError is a local rejection of a selected document. It never
// reaches the network.
type ValidationError struct {
	Err       error // ErrInvalidFileType or ErrFileTooLarge
	MediaType string
	Size      int64
	Limit     int64
}

func (e *ValidationError) Error() string {
	if errors.Is(e.Err, ErrFileTooLarge) {
		return fmt.Sprintf("%v: %d bytes exceeds limit of %d bytes", e.Err, e.Size, e.Limit)
	}
	return fmt.Sprintf("%v: %q", e.Err, e.MediaType)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// TransportKind classifies why a remote call did not complete.
type TransportKind string

const (
	TransportTimeout    TransportKind = "timeout"
	TransportNetwork    TransportKind = "network"
	TransportHTTPStatus TransportKind = "http-status"
)

// TransportError is a failed submission or query request.
type TransportError struct {
	Kind       TransportKind
	StatusCode int    // set for TransportHTTPStatus
	Message    string // error message reported by the service, if any
	Err        error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case TransportHTTPStatus:
		if e.Message != "" {
			return fmt.Sprintf("service returned status %d: %s", e.StatusCode, e.Message)
		}
		return fmt.Sprintf("service returned status %d", e.StatusCode)
	case TransportTimeout:
		return fmt.Sprintf("request timed out: %v", e.Err)
	default:
		return fmt.Sprintf("request failed: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NormalizationError reports an analysis response that cannot be turned into
// clauses at all.
type NormalizationError struct {
	Detail string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrUnexpectedShape, e.Detail)
}

func (e *NormalizationError) Is(target error) bool {
	return target == ErrUnexpectedShape
}

// QueryError is a failed question-answering call.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// transportFailure classifies an error returned by http.Client.Do.
func transportFailure(err error) *TransportError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Kind: TransportTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Kind: TransportTimeout, Err: err}
	}
	return &TransportError{Kind: TransportNetwork, Err: err}
}

// Code returns a stable diagnostic code for err, suitable for logs and API
// responses. It returns "" for a nil error.
func Code(err error) string {
	if err == nil {
		return ""
	}

	var transportErr *TransportError
	switch {
	case errors.Is(err, ErrInvalidFileType):
		return "invalid_file_type"
	case errors.Is(err, ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, ErrSubmissionInFlight):
		return "submission_in_flight"
	case errors.Is(err, ErrStaleSubmission):
		return "stale_submission"
	case errors.Is(err, ErrUnexpectedShape):
		return "unexpected_shape"
	case errors.Is(err, ErrEmptyQuestion):
		return "empty_question"
	case errors.Is(err, ErrMissingAnswer):
		return "missing_answer"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrResultNotFound):
		return "result_not_found"
	case errors.As(err, &transportErr):
		switch transportErr.Kind {
		case TransportTimeout:
			return "timeout"
		case TransportHTTPStatus:
			return "http_status"
		default:
			return "network"
		}
	}
	return "internal"
}

// UserMessage maps err to the message shown to the user. Every error kind
// has its own message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var queryErr *QueryError
	isQuery := errors.As(err, &queryErr)

	var validationErr *ValidationError
	var transportErr *TransportError
	switch {
	case errors.Is(err, ErrInvalidFileType):
		return "Please upload a PDF, DOCX, or TXT file."
	case errors.Is(err, ErrFileTooLarge):
		if errors.As(err, &validationErr) && validationErr.Limit > 0 {
			return fmt.Sprintf("File size must be less than %s.", formatSize(validationErr.Limit))
		}
		return "The file is too large."
	case errors.Is(err, ErrSubmissionInFlight):
		return "Another document is still being analyzed. Please wait for it to finish or reset."
	case errors.Is(err, ErrStaleSubmission):
		return "The analysis was cancelled."
	case errors.Is(err, ErrUnexpectedShape):
		return "The analysis service returned a response that could not be read."
	case errors.Is(err, ErrEmptyQuestion):
		return "Please enter a question."
	case errors.Is(err, ErrMissingAnswer):
		return "The query service did not return an answer."
	case errors.Is(err, ErrSessionNotFound):
		return "Session not found."
	case errors.Is(err, ErrResultNotFound):
		return "No stored result for this session. It may have expired."
	case errors.As(err, &transportErr):
		return transportMessage(transportErr, isQuery)
	}
	return "Something went wrong. Please try again."
}

func transportMessage(err *TransportError, query bool) string {
	service := "analysis"
	if query {
		service = "query"
	}
	switch err.Kind {
	case TransportTimeout:
		if query {
			return "The question timed out. Please try again."
		}
		return "Analysis timed out. Please try again with a smaller file."
	case TransportHTTPStatus:
		if err.Message != "" {
			return err.Message
		}
		return fmt.Sprintf("The %s service returned an error (status %d).", service, err.StatusCode)
	default:
		return fmt.Sprintf("Network error. Please check that the %s service is running.", service)
	}
}

func formatSize(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%.1fMB", float64(n)/mb)
}
