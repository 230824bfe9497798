package ocr

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"idscan/internal/logger"
)

// DocumentAIConfig holds configuration for a Document AI OCR processor.
type DocumentAIConfig struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processing location (e.g., "us", "eu").
	Location string

	// ProcessorID is the ID of an OCR (DOCUMENT_OCR) processor.
	ProcessorID string

	// Timeout bounds a single ProcessDocument call. Default: 60 seconds.
	Timeout time.Duration
}

type documentProcessor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

// DocumentAIRecognizer implements Recognizer using a Google Document AI OCR processor.
type DocumentAIRecognizer struct {
	client documentProcessor
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIRecognizer creates a recognizer for the processor in config,
// with credentials from environment.
func NewDocumentAIRecognizer(ctx context.Context, config DocumentAIConfig) (*DocumentAIRecognizer, error) {
	const op = "NewDocumentAIRecognizer"

	if config.ProjectID == "" || config.ProcessorID == "" {
		return nil, NewOCRError(op, ErrInvalidConfiguration, "project and processor ID are required")
	}
	if config.Location == "" {
		config.Location = "us"
	}

	// Processors outside "us" are only reachable on their regional endpoint
	var clientOptions []option.ClientOption
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}
	creds := googleCredentials()
	clientOptions = append(clientOptions, creds...)

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(creds) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return newDocumentAIRecognizer(client, config), nil
}

func newDocumentAIRecognizer(client documentProcessor, config DocumentAIConfig) *DocumentAIRecognizer {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &DocumentAIRecognizer{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}
}

// RecognizeText implements Recognizer.
func (d *DocumentAIRecognizer) RecognizeText(ctx context.Context, imagePath string) (*OCRResult, error) {
	const op = "RecognizeText"
	startTime := time.Now()

	content, err := readImage(op, imagePath)
	if err != nil {
		return nil, err
	}

	processCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: d.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: http.DetectContentType(content),
			},
		},
	}

	resp, err := d.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Document AI call failed: %v", err))
	}
	if resp.Document == nil {
		return nil, WrapOCRError(op, ErrOCRFailed, "no document in response")
	}
	if strings.TrimSpace(resp.Document.Text) == "" {
		return nil, WrapOCRError(op, ErrEmptyDocument, imagePath)
	}

	var languages []string
	var confidenceSum float32
	for _, page := range resp.Document.Pages {
		if page.Layout != nil {
			confidenceSum += page.Layout.Confidence
		}
		for _, lang := range page.DetectedLanguages {
			if lang.LanguageCode != "" && !contains(languages, lang.LanguageCode) {
				languages = append(languages, lang.LanguageCode)
			}
		}
	}
	var avgConfidence float32
	if n := len(resp.Document.Pages); n > 0 {
		avgConfidence = confidenceSum / float32(n)
	}

	now := time.Now()
	d.log.Debug().
		Int("pages", len(resp.Document.Pages)).
		Int("text_length", len(resp.Document.Text)).
		Msg("Document AI OCR completed")

	return &OCRResult{
		Text:               resp.Document.Text,
		Engine:             EngineDocumentAI,
		Confidence:         avgConfidence,
		LanguageCodes:      languages,
		ProcessedAt:        now,
		ProcessingDuration: now.Sub(startTime),
	}, nil
}

// processorName constructs the full processor name for Document AI API.
func (d *DocumentAIRecognizer) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		d.config.ProjectID, d.config.Location, d.config.ProcessorID)
}

// Close closes the underlying Document AI client.
func (d *DocumentAIRecognizer) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
