package extract

import (
	"regexp"

	"github.com/rs/zerolog"

	"idscan/internal/logger"
	"idscan/pkg/models"
)

// Engine applies a fixed table of FieldSpecs to recognized text.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	specs []FieldSpec
	log   zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger replaces the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithFieldSpecs replaces the Aadhaar field table.
func WithFieldSpecs(specs []FieldSpec) Option {
	return func(e *Engine) {
		e.specs = specs
	}
}

// NewEngine creates an engine using DefaultFieldSpecs.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		specs: defaultSpecs,
		log:   logger.WithComponent("extract"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract normalizes text with the default engine and extracts every field.
func Extract(text string) models.ExtractionResult {
	return NewEngine().Extract(text)
}

// Extract normalizes text and extracts every field.
func (e *Engine) Extract(text string) models.ExtractionResult {
	result, _ := e.run(text, false)
	return result
}

// ExtractWithTrace is Extract plus the list of every candidate evaluated,
// in evaluation order.
func (e *Engine) ExtractWithTrace(text string) (models.ExtractionResult, []Candidate) {
	return e.run(text, true)
}

func (e *Engine) run(text string, trace bool) (models.ExtractionResult, []Candidate) {
	e.log.Debug().Str("text", text).Msg("Extracting fields from recognized text")

	cleaned := Normalize(text)
	e.log.Debug().Str("text", cleaned).Msg("Cleaned text")

	var (
		result     models.ExtractionResult
		candidates []Candidate
	)
	for _, spec := range e.specs {
		var sink *[]Candidate
		if trace {
			sink = &candidates
		}
		result.Set(spec.Field, e.extractField(spec, cleaned, sink))
	}

	e.log.Debug().
		Interface("result", result).
		Int("found", result.Found()).
		Msg("Extraction completed")

	return result, candidates
}

// extractField returns the first accepted candidate of spec, or "".
func (e *Engine) extractField(spec FieldSpec, text string, sink *[]Candidate) string {
	for pi, p := range spec.Patterns {
		if p.re == nil {
			e.log.Warn().Str("field", spec.Field).Int("pattern", pi).Msg("Pattern not compiled, skipping")
			continue
		}
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			c := Candidate{Field: spec.Field, Pattern: pi}

			raw, err := capture(p.re, text, loc)
			if err != nil {
				c.Outcome = OutcomeFault
				c.Err = &RejectionError{Field: spec.Field, Reason: p.Expr, Err: err}
				e.log.Warn().
					Err(c.Err).
					Str("field", spec.Field).
					Int("pattern", pi).
					Msg("Error processing match")
				record(sink, c)
				continue
			}
			c.Raw = raw

			value, err := spec.validate(raw)
			if err != nil {
				c.Outcome = OutcomeRejected
				c.Err = err
				e.log.Debug().
					Err(err).
					Str("field", spec.Field).
					Int("pattern", pi).
					Msg("Candidate rejected")
				record(sink, c)
				continue
			}

			c.Value = value
			c.Outcome = OutcomeAccepted
			record(sink, c)
			return value
		}
	}
	return ""
}

// capture reads the first capture group of a match, or the whole match when
// the pattern has no groups.
func capture(re *regexp.Regexp, text string, loc []int) (string, error) {
	if re.NumSubexp() == 0 {
		return text[loc[0]:loc[1]], nil
	}
	if len(loc) < 4 || loc[2] < 0 {
		return "", ErrMissingGroup
	}
	return text[loc[2]:loc[3]], nil
}

func record(sink *[]Candidate, c Candidate) {
	if sink != nil {
		*sink = append(*sink, c)
	}
}

// validate runs the field validator. A spec without one accepts any
// non-blank candidate, trimmed.
func (spec FieldSpec) validate(raw string) (string, error) {
	if spec.Validate == nil {
		return validatePresent(spec.Field)(raw)
	}
	return spec.Validate(raw)
}
