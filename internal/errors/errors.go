package errors

import (
	"fmt"
	"time"
)

/**
 * Custom error types for the blockparse worker.
 *
 * Errors are contained at the document boundary: a batch run always
 * completes and reports per-document status, so every failure carries the
 * document id and pipeline stage it occurred in.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Input errors
	ErrorInputFetch         ErrorCode = "INPUT_FETCH_FAILED"
	ErrorUnsupportedContent ErrorCode = "UNSUPPORTED_CONTENT_TYPE"

	// Backend document-AI errors, split so operators can tell a
	// configuration problem (credentials) from a data problem (size)
	ErrorBackendTransient    ErrorCode = "BACKEND_TRANSIENT"
	ErrorBackendCredential   ErrorCode = "BACKEND_CREDENTIAL"
	ErrorBackendUnclassified ErrorCode = "BACKEND_UNCLASSIFIED"

	// Processing errors
	ErrorRenderFailed  ErrorCode = "PAGE_RENDER_FAILED"
	ErrorLayoutFailed  ErrorCode = "LAYOUT_DETECTION_FAILED"
	ErrorOCRFailed     ErrorCode = "OCR_FAILED"
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"
)

// ParseError represents a structured per-document error
type ParseError struct {
	Code       ErrorCode
	Message    string
	DocumentID string
	Stage      string
	Timestamp  time.Time
	Details    map[string]interface{}
	Cause      error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewInputFetchError(documentID string, cause error) *ParseError {
	return &ParseError{
		Code:       ErrorInputFetch,
		Message:    "failed to fetch source document",
		DocumentID: documentID,
		Stage:      "fetch",
		Timestamp:  time.Now(),
		Cause:      cause,
	}
}

func NewUnsupportedContentError(documentID, contentType string) *ParseError {
	return &ParseError{
		Code:       ErrorUnsupportedContent,
		Message:    fmt.Sprintf("unsupported content type: %s", contentType),
		DocumentID: documentID,
		Stage:      "fetch",
		Timestamp:  time.Now(),
		Details: map[string]interface{}{
			"content_type": contentType,
		},
	}
}

func NewBackendError(code ErrorCode, documentID string, cause error) *ParseError {
	return &ParseError{
		Code:       code,
		Message:    "document-AI backend call failed",
		DocumentID: documentID,
		Stage:      "backend",
		Timestamp:  time.Now(),
		Cause:      cause,
	}
}

func NewRenderFailedError(documentID string, cause error) *ParseError {
	return &ParseError{
		Code:       ErrorRenderFailed,
		Message:    "failed to render document pages",
		DocumentID: documentID,
		Stage:      "render",
		Timestamp:  time.Now(),
		Cause:      cause,
	}
}

func NewLayoutFailedError(documentID string, pageNumber int, cause error) *ParseError {
	return &ParseError{
		Code:       ErrorLayoutFailed,
		Message:    fmt.Sprintf("layout detection failed on page %d", pageNumber),
		DocumentID: documentID,
		Stage:      "layout",
		Timestamp:  time.Now(),
		Details: map[string]interface{}{
			"page_number": pageNumber,
		},
		Cause: cause,
	}
}

func NewOCRFailedError(documentID string, pageNumber int, cause error) *ParseError {
	return &ParseError{
		Code:       ErrorOCRFailed,
		Message:    fmt.Sprintf("OCR failed on page %d", pageNumber),
		DocumentID: documentID,
		Stage:      "ocr",
		Timestamp:  time.Now(),
		Details: map[string]interface{}{
			"page_number": pageNumber,
		},
		Cause: cause,
	}
}

func NewStorageFailedError(documentID string, cause error) *ParseError {
	return &ParseError{
		Code:       ErrorStorageFailed,
		Message:    "failed to store parse results",
		DocumentID: documentID,
		Stage:      "storage",
		Timestamp:  time.Now(),
		Cause:      cause,
	}
}

// ToMap converts the error to a map for database storage
func (e *ParseError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code":  string(e.Code),
		"message":     e.Message,
		"document_id": e.DocumentID,
		"stage":       e.Stage,
		"timestamp":   e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
