// Package ocr turns an identity-card image into recognized text.
//
// Images are first normalized for OCR by Preprocess (grayscale, Otsu
// threshold, 3x3 dilation) and then handed to a Recognizer. Recognizers are
// interchangeable; the extraction engine only ever sees the returned text.
//
// Supported engines:
//   - tesseract: local binary, run once per page segmentation mode; the
//     longest output wins
//   - vision: Google Cloud Vision document text detection
//   - documentai: Google Document AI OCR processor
//   - openai: vision-capable chat model asked for a verbatim transcription
//
// Google engines read GOOGLE_APPLICATION_CREDENTIALS (path to a service
// account JSON file) or GOOGLE_CREDENTIALS (inline JSON) from the environment.
package ocr

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// Engine names accepted by NewRecognizer
const (
	EngineTesseract  = "tesseract"
	EngineVision     = "vision"
	EngineDocumentAI = "documentai"
	EngineOpenAI     = "openai"
)

const (
	// MaxImageSizeBytes is the largest image accepted by any recognizer (20MB)
	MaxImageSizeBytes = 20 * 1024 * 1024
)

// Recognizer extracts raw text from an image file.
type Recognizer interface {
	// RecognizeText runs OCR on the image at imagePath.
	RecognizeText(ctx context.Context, imagePath string) (*OCRResult, error)
}

// OCRResult contains the results of OCR processing with metadata.
type OCRResult struct {
	// Text is the recognized text, unmodified.
	Text string `json:"text"`

	// Engine names the recognizer that produced Text.
	Engine string `json:"engine"`

	// Variant identifies the engine configuration that won, e.g. "--psm 4".
	Variant string `json:"variant,omitempty"`

	// Confidence is the average confidence reported by the engine (0.0 to 1.0),
	// zero when the engine reports none.
	Confidence float32 `json:"confidence,omitempty"`

	// LanguageCodes contains the detected languages in the document.
	LanguageCodes []string `json:"language_codes,omitempty"`

	// ProcessedAt is the timestamp when the OCR processing completed.
	ProcessedAt time.Time `json:"processed_at"`

	// ProcessingDuration is how long the OCR processing took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// Options selects and configures a recognizer.
type Options struct {
	Engine     string
	Tesseract  TesseractConfig
	DocumentAI DocumentAIConfig
	OpenAI     OpenAIConfig
}

// NewRecognizer builds the recognizer named by opts.Engine.
// The returned value implements io.Closer when it holds a client connection.
func NewRecognizer(ctx context.Context, opts Options) (Recognizer, error) {
	const op = "NewRecognizer"

	var (
		r   Recognizer
		err error
	)
	switch opts.Engine {
	case "", EngineTesseract:
		r = NewTesseractRecognizer(opts.Tesseract, nil)
	case EngineVision:
		var v *VisionRecognizer
		if v, err = NewVisionRecognizer(ctx); err == nil {
			r = v
		}
	case EngineDocumentAI:
		var d *DocumentAIRecognizer
		if d, err = NewDocumentAIRecognizer(ctx, opts.DocumentAI); err == nil {
			r = d
		}
	case EngineOpenAI:
		var o *OpenAIRecognizer
		if o, err = NewOpenAIRecognizer(opts.OpenAI); err == nil {
			r = o
		}
	default:
		return nil, NewOCRError(op, ErrUnsupportedEngine, fmt.Sprintf("engine %q", opts.Engine))
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Close releases r if it holds resources.
func Close(r Recognizer) error {
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func readImage(op, imagePath string) ([]byte, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to read image")
	}
	if len(data) > MaxImageSizeBytes {
		return nil, WrapOCRError(op, ErrImageTooLarge, fmt.Sprintf("file size: %d bytes", len(data)))
	}
	if len(data) == 0 {
		return nil, WrapOCRError(op, ErrInvalidImage, "empty file")
	}
	return data, nil
}
