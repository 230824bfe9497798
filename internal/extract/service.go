// Package extract turns noisy OCR text from an Aadhaar card into a structured record.
//
// Every field owns an ordered list of candidate patterns, from label-anchored
// (high confidence) to shape-only (best effort). The engine walks the list in
// order, runs every match of a pattern through the field validator and keeps
// the first candidate the validator accepts. A field with no accepted candidate
// is left empty; that is a partial result, not an error.
//
// Fields are extracted independently in the order:
//
//	name, dob, gender, aadharNumber, vid, issueDate
//
// Matching is case-insensitive for every field except name.
//
// Patterns use RE2 semantics: \b and \d are ASCII only. A letter such as "é"
// ends a word, so "Singhé" still yields "Singh", and digits in other scripts
// (Devanagari "०१२३") never count as digits.
//
// Known limitation: the name heuristic looks for three words shaped like
// "Rahul", so names printed in capitals or in a local script are not found.
package extract

import (
	"regexp"

	"idscan/pkg/models"
)

// Validator decides whether a candidate is accepted for a field.
// It returns the value to store, or an error wrapping ErrRejected.
type Validator func(candidate string) (string, error)

// Pattern is one candidate matcher of a field.
type Pattern struct {
	// Expr is the expression as written, without case flags.
	Expr string

	// CaseSensitive disables the (?i) flag.
	CaseSensitive bool

	re *regexp.Regexp
}

// NewPattern compiles expr. It panics on an invalid expression, like regexp.MustCompile.
func NewPattern(expr string, caseSensitive bool) Pattern {
	src := expr
	if !caseSensitive {
		src = "(?i)" + expr
	}
	return Pattern{
		Expr:          expr,
		CaseSensitive: caseSensitive,
		re:            regexp.MustCompile(src),
	}
}

// FieldSpec is the static extraction recipe of a single field.
type FieldSpec struct {
	// Field is the result key, one of models.FieldKeys.
	Field string

	// Patterns are evaluated in order; the first one has the highest priority.
	Patterns []Pattern

	// Validate gates every candidate. Nil accepts any non-blank capture, trimmed.
	Validate Validator
}

// Outcome classifies an evaluated candidate.
type Outcome int

const (
	// OutcomeAccepted means the candidate was stored in the result.
	OutcomeAccepted Outcome = iota

	// OutcomeRejected means the validator refused the candidate.
	OutcomeRejected

	// OutcomeFault means no candidate could be read from the match.
	OutcomeFault
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFault:
		return "fault"
	}
	return "unknown"
}

// Candidate records one evaluated match.
type Candidate struct {
	Field   string  // result key
	Pattern int     // index into the field's pattern list
	Raw     string  // captured text before validation
	Value   string  // stored value, set only when accepted
	Outcome Outcome // accepted, rejected or fault
	Err     error   // *RejectionError for rejected and fault outcomes
}

// Extractor is implemented by Engine.
type Extractor interface {
	// Extract normalizes text and returns the extracted fields.
	Extract(text string) models.ExtractionResult
}
