package extract

import "strings"

// Normalize turns line breaks into spaces, collapses whitespace runs to a
// single space and trims both ends.
func Normalize(raw string) string {
	raw = strings.NewReplacer("\r", " ", "\n", " ").Replace(raw)
	return strings.Join(strings.Fields(raw), " ")
}
