package models

// Field keys of an extraction result, in extraction order.
const (
	FieldName         = "name"
	FieldDOB          = "dob"
	FieldGender       = "gender"
	FieldAadharNumber = "aadharNumber"
	FieldVID          = "vid"
	FieldIssueDate    = "issueDate"
)

// FieldKeys is the fixed field set every ExtractionResult carries.
var FieldKeys = []string{
	FieldName,
	FieldDOB,
	FieldGender,
	FieldAadharNumber,
	FieldVID,
	FieldIssueDate,
}

// ExtractionResult holds the fields read from one identity card.
// An empty string means the field was not found.
type ExtractionResult struct {
	Name         string `json:"name"`         // Full name, three capitalized words
	DOB          string `json:"dob"`          // Date of birth as printed (D/M/YYYY)
	Gender       string `json:"gender"`       // MALE, FEMALE, M or F
	AadharNumber string `json:"aadharNumber"` // 12 digits, separators removed
	VID          string `json:"vid"`          // 11 digits, separators removed
	IssueDate    string `json:"issueDate"`    // DD/MM/YYYY
}

// Get returns the value stored under a field key.
func (r *ExtractionResult) Get(key string) string {
	if p := r.slot(key); p != nil {
		return *p
	}
	return ""
}

// Set stores value under a field key. Unknown keys are ignored.
func (r *ExtractionResult) Set(key, value string) {
	if p := r.slot(key); p != nil {
		*p = value
	}
}

// Map returns the result as a flat record with every field key present.
func (r ExtractionResult) Map() map[string]string {
	m := make(map[string]string, len(FieldKeys))
	for _, k := range FieldKeys {
		m[k] = r.Get(k)
	}
	return m
}

// Found reports how many fields hold a value.
func (r ExtractionResult) Found() int {
	n := 0
	for _, k := range FieldKeys {
		if r.Get(k) != "" {
			n++
		}
	}
	return n
}

// ExtractionResultFromMap builds a result from a flat record. Missing keys stay empty.
func ExtractionResultFromMap(m map[string]string) ExtractionResult {
	var r ExtractionResult
	for _, k := range FieldKeys {
		r.Set(k, m[k])
	}
	return r
}

func (r *ExtractionResult) slot(key string) *string {
	switch key {
	case FieldName:
		return &r.Name
	case FieldDOB:
		return &r.DOB
	case FieldGender:
		return &r.Gender
	case FieldAadharNumber:
		return &r.AadharNumber
	case FieldVID:
		return &r.VID
	case FieldIssueDate:
		return &r.IssueDate
	}
	return nil
}
