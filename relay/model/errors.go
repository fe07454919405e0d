package model

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Laisky/errors/v2"
)

// ErrorKind classifies every failure the question pipeline can surface.
type ErrorKind string

const (
	// KindMalformedInput is caused by the client and never worth retrying.
	KindMalformedInput ErrorKind = "malformed_input"
	// KindSubmission means the descriptor write or the job trigger failed. Resubmit with a fresh request id.
	KindSubmission ErrorKind = "submission_error"
	// KindJobFailed is a permanent backend failure observed while polling.
	KindJobFailed ErrorKind = "job_failed"
	// KindJobTimedOut means the result did not appear before the deadline.
	KindJobTimedOut ErrorKind = "job_timed_out"
	// KindUpstream is a failed synchronous generation call.
	KindUpstream ErrorKind = "upstream_error"
	// KindUnavailable means the requested path is not configured on this instance.
	KindUnavailable ErrorKind = "unavailable"
	// KindNotFound is an unknown job id.
	KindNotFound ErrorKind = "not_found"
	// KindCanceled means the caller went away before a terminal state was reached.
	KindCanceled ErrorKind = "request_canceled"
	KindInternal ErrorKind = "internal_error"
)

// StatusClientClosedRequest is the nginx convention for a caller that disconnected.
const StatusClientClosedRequest = 499

// StatusCode maps the kind to the HTTP status rendered at the boundary.
func (k ErrorKind) StatusCode() int {
	switch k {
	case KindMalformedInput:
		return http.StatusBadRequest
	case KindSubmission, KindJobFailed, KindUpstream:
		return http.StatusBadGateway
	case KindJobTimedOut:
		return http.StatusGatewayTimeout
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindNotFound:
		return http.StatusNotFound
	case KindCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether resubmitting the whole request may succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindSubmission, KindJobTimedOut:
		return true
	default:
		return false
	}
}

// QuestionError is the typed error carried from the pipeline to the HTTP boundary.
type QuestionError struct {
	Kind    ErrorKind
	Message string
	JobID   string
	Err     error
}

func (e *QuestionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *QuestionError) Unwrap() error { return e.Err }

func (e *QuestionError) StatusCode() int { return e.Kind.StatusCode() }

func (e *QuestionError) Retryable() bool { return e.Kind.Retryable() }

// WithJobID returns e tagged with the job id, for errors raised after submission.
func (e *QuestionError) WithJobID(jobID string) *QuestionError {
	e.JobID = jobID
	return e
}

// NewError builds a QuestionError with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *QuestionError {
	return &QuestionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds a QuestionError around cause.
func WrapError(kind ErrorKind, cause error, message string) *QuestionError {
	return &QuestionError{Kind: kind, Message: message, Err: cause}
}

// MalformedInput is shorthand for NewError(KindMalformedInput, ...).
func MalformedInput(format string, args ...any) *QuestionError {
	return NewError(KindMalformedInput, format, args...)
}

// AsQuestionError extracts the QuestionError from err. Context errors become
// KindCanceled and anything else KindInternal.
func AsQuestionError(err error) *QuestionError {
	if err == nil {
		return nil
	}

	var qe *QuestionError
	if errors.As(err, &qe) {
		return qe
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return WrapError(KindCanceled, err, "request canceled")
	}
	return WrapError(KindInternal, err, "internal error")
}

// ToErrorWithStatusCode renders err for the HTTP boundary.
func ToErrorWithStatusCode(err error) *ErrorWithStatusCode {
	qe := AsQuestionError(err)
	return &ErrorWithStatusCode{
		Error: Error{
			Message:   qe.Message,
			Type:      string(qe.Kind),
			Code:      string(qe.Kind),
			Retryable: qe.Retryable(),
			JobID:     qe.JobID,
			RawError:  err,
		},
		StatusCode: qe.StatusCode(),
	}
}
