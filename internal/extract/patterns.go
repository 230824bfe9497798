package extract

import (
	"strings"
	"unicode"

	"idscan/pkg/models"
)

// Label variants seen on scanned cards. "OFA" and "arta" are how tesseract
// reads the Hindi label printed next to the date of birth, "qea/" the one next
// to gender, "tssue" and "Deve" are misreads of "Issue" and "Date".
var defaultSpecs = []FieldSpec{
	{
		Field: models.FieldName,
		Patterns: []Pattern{
			NewPattern(`\b([A-Z][a-z]+\s+[A-Z][a-z]+\s+[A-Z][a-z]+)\b`, true),
			// RE2 has no lookahead, so the label is consumed along with the name.
			NewPattern(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){2})\s+(?:OFA|DOB|arta)`, true),
			NewPattern(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){2})\b`, true),
		},
		Validate: validateName,
	},
	{
		Field: models.FieldDOB,
		Patterns: []Pattern{
			NewPattern(`(?:DOB|Date of Birth|Birth|जन्म)[:\s]*(\d{1,2}/\d{1,2}/\d{4})`, false),
			NewPattern(`OFA\s*arta/DOB:\s*(\d{1,2}/\d{1,2}/\d{4})`, false),
			NewPattern(`(\d{1,2}/\d{1,2}/\d{4})`, false),
		},
		Validate: validatePresent(models.FieldDOB),
	},
	{
		Field: models.FieldGender,
		Patterns: []Pattern{
			NewPattern(`(?:Gender|Sex|लिंग)[:\s]*(MALE|FEMALE|Male|Female|M|F)`, false),
			NewPattern(`\b(MALE|FEMALE|Male|Female)\b`, false),
			NewPattern(`qea/\s*(MALE|FEMALE)`, false),
		},
		Validate: validateGender,
	},
	{
		Field: models.FieldAadharNumber,
		Patterns: []Pattern{
			NewPattern(`(\d{4}\s+\d{4}\s+\d{4})`, false),
			NewPattern(`(\d{4}[\s-]*\d{4}[\s-]*\d{4})`, false),
		},
		Validate: validateDigits(models.FieldAadharNumber, 12),
	},
	{
		Field: models.FieldVID,
		Patterns: []Pattern{
			NewPattern(`VID\s*:\s*(\d{4}\s*\d{4}\s*\d{3})`, false),
			NewPattern(`VID\s*(\d{4}\s*\d{4}\s*\d{3})`, false),
		},
		Validate: validateDigits(models.FieldVID, 11),
	},
	{
		Field: models.FieldIssueDate,
		Patterns: []Pattern{
			NewPattern(`(?:Issue|tssue)\s*(?:Date|Deve):\s*(\d{2}/\d{2}/\d{4})`, false),
			NewPattern(`(?:Issue|tssue).*?(\d{2}/\d{2}/\d{4})`, false),
		},
		Validate: validatePresent(models.FieldIssueDate),
	},
}

// DefaultFieldSpecs returns the Aadhaar field table in extraction order.
// The returned slice is a copy; the compiled patterns are shared.
func DefaultFieldSpecs() []FieldSpec {
	specs := make([]FieldSpec, len(defaultSpecs))
	copy(specs, defaultSpecs)
	return specs
}

// validateName accepts exactly three words that each start with an uppercase letter.
func validateName(candidate string) (string, error) {
	parts := strings.Fields(candidate)
	if len(parts) != 3 {
		return "", reject(models.FieldName, candidate, "want three words")
	}
	for _, part := range parts {
		if !unicode.IsUpper([]rune(part)[0]) {
			return "", reject(models.FieldName, candidate, "word not capitalized")
		}
	}
	return candidate, nil
}

func validateGender(candidate string) (string, error) {
	return strings.ToUpper(candidate), nil
}

func validatePresent(field string) Validator {
	return func(candidate string) (string, error) {
		v := strings.TrimSpace(candidate)
		if v == "" {
			return "", reject(field, candidate, "empty")
		}
		return v, nil
	}
}

// validateDigits strips everything but digits and accepts exactly n of them.
func validateDigits(field string, n int) Validator {
	return func(candidate string) (string, error) {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, candidate)
		if len(digits) != n {
			return "", reject(field, candidate, "wrong digit count")
		}
		return digits, nil
	}
}
