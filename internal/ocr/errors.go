package ocr

import (
	"errors"
	"fmt"
)

// Common OCR processing errors
var (
	// ErrImageTooLarge is returned when the image exceeds MaxImageSizeBytes.
	ErrImageTooLarge = errors.New("image file size exceeds the maximum limit (20MB)")

	// ErrInvalidImage is returned when the upload cannot be decoded as an image.
	ErrInvalidImage = errors.New("invalid or corrupted image")

	// ErrOCRFailed is returned when the OCR engine fails to process the image.
	ErrOCRFailed = errors.New("OCR processing failed")

	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS environment variables are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrEmptyDocument is returned when the image contains no readable text.
	ErrEmptyDocument = errors.New("document contains no readable text")

	// ErrInvalidConfiguration is returned when a recognizer is missing required settings.
	ErrInvalidConfiguration = errors.New("invalid OCR configuration")

	// ErrUnsupportedEngine is returned for an unknown OCR engine name.
	ErrUnsupportedEngine = errors.New("unsupported OCR engine")
)

// OCRError wraps errors with additional context about the OCR processing failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "RecognizeText", "Preprocess").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// NewOCRError creates a new OCRError with the specified operation and underlying error.
func NewOCRError(op string, err error, details string) *OCRError {
	return &OCRError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err
	}

	return NewOCRError(op, err, details)
}
