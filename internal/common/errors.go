package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// ErrInvalidInput marks rejected caller input such as bad configuration.
var ErrInvalidInput = errors.New("invalid input")

// NewAppError creates an AppError.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Pipeline failure kinds. Match with errors.Is.
var (
	ErrRasterization  = errors.New("rasterization failed")
	ErrOCR            = errors.New("ocr failed")
	ErrClassification = errors.New("classification failed")
	ErrResource       = errors.New("scratch resource failure")
)

// Stage names used in StageError and log attributes.
const (
	StageRasterize = "rasterize"
	StageOCR       = "ocr"
	StageClassify  = "classify"
	StageScratch   = "scratch"
)

// StageError is a pipeline failure tagged with the stage that raised it and,
// for OCR, the 1-based page index.
type StageError struct {
	Kind    error
	Stage   string
	Page    int
	Message string
	Cause   error
}

func (e *StageError) Error() string {
	msg := e.Stage
	if e.Page > 0 {
		msg = fmt.Sprintf("%s page %d", msg, e.Page)
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// Is matches the error's kind sentinel.
func (e *StageError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// NewRasterizationError creates a StageError for PDF-to-image failures.
func NewRasterizationError(message string, cause error) *StageError {
	return &StageError{Kind: ErrRasterization, Stage: StageRasterize, Message: message, Cause: cause}
}

// NewOCRError creates a StageError for a page that could not be recognized.
func NewOCRError(page int, message string, cause error) *StageError {
	return &StageError{Kind: ErrOCR, Stage: StageOCR, Page: page, Message: message, Cause: cause}
}

// NewClassificationError creates a StageError for classification-service failures.
func NewClassificationError(message string, cause error) *StageError {
	return &StageError{Kind: ErrClassification, Stage: StageClassify, Message: message, Cause: cause}
}

// NewResourceError creates a StageError for scratch-directory failures.
func NewResourceError(message string, cause error) *StageError {
	return &StageError{Kind: ErrResource, Stage: StageScratch, Message: message, Cause: cause}
}

// AsStageError returns the first StageError in err's chain.
func AsStageError(err error) (*StageError, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsFatal reports whether err must fail the request rather than degrade it.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrClassification)
}
