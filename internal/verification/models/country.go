package models

import (
	"strings"

	dErrors "docverify/pkg/domain-errors"
)

// Country is an upper-cased two-letter code.
type Country string

func (c Country) String() string { return string(c) }

// DefaultCountryCodes are the markets the service launched with.
var DefaultCountryCodes = []string{"IN", "AU", "UK"}

// NormalizeCountryInput trims and upper-cases raw input and keeps its first two runes.
func NormalizeCountryInput(raw string) Country {
	s := []rune(strings.ToUpper(strings.TrimSpace(raw)))
	if len(s) > 2 {
		s = s[:2]
	}
	return Country(s)
}

// CountrySet is the configured allow-list of submission countries.
type CountrySet struct {
	ordered []Country
	allowed map[Country]bool
}

// NewCountrySet builds an allow-list from codes, normalising each one and
// dropping blanks and duplicates.
func NewCountrySet(codes ...string) CountrySet {
	cs := CountrySet{allowed: make(map[Country]bool, len(codes))}
	for _, code := range codes {
		c := NormalizeCountryInput(code)
		if c == "" || cs.allowed[c] {
			continue
		}
		cs.allowed[c] = true
		cs.ordered = append(cs.ordered, c)
	}
	return cs
}

// DefaultCountrySet returns the launch markets.
func DefaultCountrySet() CountrySet {
	return NewCountrySet(DefaultCountryCodes...)
}

// Parse normalises raw input and checks it against the allow-list.
func (cs CountrySet) Parse(raw string) (Country, error) {
	c := NormalizeCountryInput(raw)
	if c == "" {
		return "", dErrors.New(dErrors.CodeValidation, "country is required")
	}
	if !cs.allowed[c] {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported country")
	}
	return c, nil
}

// Contains reports whether c is supported.
func (cs CountrySet) Contains(c Country) bool { return cs.allowed[c] }

// Codes lists the supported countries in configuration order.
func (cs CountrySet) Codes() []Country {
	return append([]Country(nil), cs.ordered...)
}
