package ocr

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"idscan/internal/logger"
)

// imageAnnotator is the part of vision.ImageAnnotatorClient we use.
type imageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// VisionRecognizer implements Recognizer using Google Cloud Vision API.
type VisionRecognizer struct {
	client imageAnnotator
	hints  []string
	log    zerolog.Logger
}

// NewVisionRecognizer creates a recognizer with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewVisionRecognizer(ctx context.Context) (*VisionRecognizer, error) {
	const op = "NewVisionRecognizer"

	opts := googleCredentials()
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if len(opts) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}

	return newVisionRecognizer(client), nil
}

func newVisionRecognizer(client imageAnnotator) *VisionRecognizer {
	return &VisionRecognizer{
		client: client,
		// Cards are bilingual; the hint keeps Devanagari labels from being
		// forced into Latin lookalikes.
		hints: []string{"en", "hi"},
		log:   logger.WithComponent("vision"),
	}
}

// RecognizeText implements Recognizer with DOCUMENT_TEXT_DETECTION.
func (g *VisionRecognizer) RecognizeText(ctx context.Context, imagePath string) (*OCRResult, error) {
	const op = "RecognizeText"
	startTime := time.Now()

	content, err := readImage(op, imagePath)
	if err != nil {
		return nil, err
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: content},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: g.hints},
			},
		},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	result, err := processVisionResponse(resp.Responses[0])
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to process Vision API response")
	}

	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(startTime)

	g.log.Debug().
		Float32("confidence", result.Confidence).
		Strs("languages", result.LanguageCodes).
		Int("text_length", len(result.Text)).
		Msg("Vision OCR completed")

	return result, nil
}

// processVisionResponse extracts text, page confidence and detected languages.
func processVisionResponse(imgResp *visionpb.AnnotateImageResponse) (*OCRResult, error) {
	if imgResp.Error != nil {
		return nil, fmt.Errorf("%w: Vision API error: %s", ErrOCRFailed, imgResp.Error.Message)
	}

	annotation := imgResp.FullTextAnnotation
	if annotation == nil || strings.TrimSpace(annotation.Text) == "" {
		return nil, ErrEmptyDocument
	}

	var confidenceSum float32
	languageSet := make(map[string]bool)
	for _, page := range annotation.Pages {
		confidenceSum += page.Confidence
		if page.Property == nil {
			continue
		}
		for _, lang := range page.Property.DetectedLanguages {
			if lang.LanguageCode != "" {
				languageSet[lang.LanguageCode] = true
			}
		}
	}

	var avgConfidence float32
	if n := len(annotation.Pages); n > 0 {
		avgConfidence = confidenceSum / float32(n)
	}

	languages := make([]string, 0, len(languageSet))
	for lang := range languageSet {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	return &OCRResult{
		Text:          annotation.Text,
		Engine:        EngineVision,
		Confidence:    avgConfidence,
		LanguageCodes: languages,
	}, nil
}

// Close closes the underlying Vision client.
func (g *VisionRecognizer) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// googleCredentials prefers inline JSON over a credentials file and falls
// back to application default credentials.
func googleCredentials() []option.ClientOption {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}
	}
	return nil
}
