package models

import (
	"errors"
	"fmt"
)

// Error codes used across the harness.
const (
	// Scrape stage: reported per example, the run continues.
	ErrCodeLaunch         = "BROWSER_LAUNCH_FAILED"
	ErrCodeNavigation     = "NAVIGATION_FAILED"
	ErrCodeInputNotFound  = "INPUT_NOT_FOUND"
	ErrCodeTimeout        = "ANSWER_TIMEOUT"
	ErrCodeAnswerNotFound = "ANSWER_NOT_FOUND"

	// Configuration: fatal at startup, before any scrape attempt.
	ErrCodeConfig = "CONFIG_INVALID"

	// Judge provider: fatal, aborts the remaining run.
	ErrCodeJudgeFailure     = "JUDGE_FAILURE"
	ErrCodeJudgeAuthFailure = "JUDGE_AUTH_FAILURE"
	ErrCodeJudgeRateLimited = "JUDGE_RATE_LIMITED"

	// Results tracking: logged and skipped, never fatal.
	ErrCodeTracking = "TRACKING_FAILURE"
)

// ErrorDetail is the structured error carried on per-example results
// and API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to a result-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// ErrorCode extracts the code from an error chain. Errors that are not
// ScrapeErrors report as internal judge failures only when asked by the
// runner; here they simply return the empty string.
func ErrorCode(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Detail converts any error into an ErrorDetail, preserving the code when
// the chain contains a ScrapeError.
func Detail(err error) *ErrorDetail {
	if err == nil {
		return nil
	}
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.ToDetail()
	}
	return &ErrorDetail{Code: "INTERNAL_ERROR", Message: err.Error()}
}

// IsFatal reports whether an error must abort the whole run.
// Configuration errors and judge-provider errors are fatal; scrape errors
// and tracking errors are not.
func IsFatal(err error) bool {
	switch ErrorCode(err) {
	case ErrCodeConfig, ErrCodeJudgeFailure, ErrCodeJudgeAuthFailure, ErrCodeJudgeRateLimited:
		return true
	}
	return false
}
