package dashboard

import "strings"

var countryAliases = map[string]string{
	"in":             "IN",
	"india":          "IN",
	"au":             "AU",
	"australia":      "AU",
	"uk":             "UK",
	"gb":             "UK",
	"united kingdom": "UK",
	"great britain":  "UK",
}

var countryLabels = map[string]string{
	"IN": "India",
	"AU": "Australia",
	"UK": "United Kingdom",
}

// NormalizeCountry collapses legacy spellings onto one code. Unknown values
// are trimmed and upper-cased.
func NormalizeCountry(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if code, ok := countryAliases[key]; ok {
		return code
	}
	return strings.ToUpper(strings.TrimSpace(raw))
}

// CountryLabel is the display name for a normalised code.
func CountryLabel(code string) string {
	if label, ok := countryLabels[code]; ok {
		return label
	}
	return code
}
