package core

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// ErrorCode tags pipeline errors so callers can tell stages apart.
type ErrorCode string

const (
	CodeAudioExtractionFailed ErrorCode = "AUDIO_EXTRACTION_FAILED"
	CodeTranscriptionFailed   ErrorCode = "TRANSCRIPTION_FAILED"
	CodeAllServicesFailed     ErrorCode = "ALL_SERVICES_FAILED"
	CodeSlideExtractionFailed ErrorCode = "SLIDE_EXTRACTION_FAILED"
	CodeGenerationFailed      ErrorCode = "GENERATION_FAILED"
	CodeInvalidJSON           ErrorCode = "INVALID_JSON"
	CodeInvalidQuizSchema     ErrorCode = "INVALID_QUIZ_SCHEMA"
	CodeFileTooLarge          ErrorCode = "FILE_TOO_LARGE"
	CodeNotFound              ErrorCode = "NOT_FOUND"
)

// PipelineError is a typed error raised by the lower level services.
type PipelineError struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewError wraps err with a code and the operation that failed.
func NewError(code ErrorCode, op string, err error) error {
	return &PipelineError{Code: code, Op: op, Err: err}
}

// CodeOf returns the code of the outermost PipelineError in err's chain.
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsCode reports whether any PipelineError in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var pe *PipelineError
		if !errors.As(err, &pe) {
			return false
		}
		if pe.Code == code {
			return true
		}
		err = pe.Err
	}
	return false
}

// StatusError is returned by HTTP backends for non-2xx responses.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s http %d: %s", e.Service, e.StatusCode, e.Body)
}

// IsNonRetryable reports whether retrying err would repeat the same failure:
// client errors from a backend, oversize input or a missing record. Malformed
// model output is retryable since a fresh generation usually parses.
func IsNonRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case CodeFileTooLarge, CodeNotFound:
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		return isClientStatus(se.StatusCode)
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return isClientStatus(ge.Code)
	}
	return false
}

func isClientStatus(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return true
	}
	return false
}
