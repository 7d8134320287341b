// Package types defines shared types and errors used across the PDF
// translator: the error taxonomy, language codes, and document-level
// result reporting structures.
package types

// ErrorCode identifies a class of processing failure
type ErrorCode string

const (
	// ErrDetection indicates an empty or malformed layout block. The block
	// is dropped with a warning; the page continues.
	ErrDetection ErrorCode = "DETECTION_FAILED"
	// ErrFormulaRestore indicates a formula placeholder id outside the
	// recorded range. The placeholder text is left in place with a warning.
	ErrFormulaRestore ErrorCode = "FORMULA_RESTORE_FAILED"
	// ErrFontResolution indicates that neither the primary, fallback nor
	// default multilingual font could be resolved. Fatal for the run.
	ErrFontResolution ErrorCode = "FONT_RESOLUTION_FAILED"
	// ErrContentStream indicates a malformed page content array. The page
	// is skipped and output unchanged.
	ErrContentStream ErrorCode = "CONTENT_STREAM_INVALID"
	// ErrDocumentOpen indicates the source PDF could not be opened. Fatal.
	ErrDocumentOpen ErrorCode = "DOCUMENT_OPEN_FAILED"
	// ErrScannedPDF indicates the document has no extractable text
	ErrScannedPDF ErrorCode = "SCANNED_PDF"
	// ErrTranslation indicates the external translator failed
	ErrTranslation ErrorCode = "TRANSLATION_FAILED"
	// ErrConfig indicates invalid or unreadable configuration
	ErrConfig ErrorCode = "CONFIG_INVALID"
)

// AppError is a processing error with a code, message and optional cause
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Page    int       `json:"page,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message and cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// NewPageError creates a new AppError attributed to a specific page
func NewPageError(code ErrorCode, message string, page int, cause error) *AppError {
	return &AppError{Code: code, Message: message, Page: page, Cause: cause}
}

// IsCode reports whether err is an *AppError with the given code
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*AppError); ok {
		return ae.Code == code
	}
	return false
}
