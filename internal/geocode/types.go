package geocode

import (
	"errors"
	"regexp"
	"strings"

	"leadrouter_backend/internal/geo"
)

// ErrNotFound is returned when no tier can resolve a postal code.
var ErrNotFound = errors.New("postal code could not be resolved")

// Source identifies which tier produced a result.
type Source string

const (
	SourceProvider Source = "provider"
	SourceStatic   Source = "static"
	SourceRegional Source = "regional"
)

// Result is a resolved postal code. Estimated marks coarse regional
// results whose accuracy is significantly lower than a real lookup.
type Result struct {
	Coordinates geo.Coordinates `json:"coordinates"`
	Source      Source          `json:"source"`
	Estimated   bool            `json:"estimated"`
}

var (
	nonZipChars = regexp.MustCompile(`[^\d-]`)
	zipPattern  = regexp.MustCompile(`^(\d{5})(?:-?(\d{4}))?`)
)

// CleanPostalCode strips everything but digits and hyphens and truncates
// the remainder to a 5-digit ZIP or 9-digit ZIP+4. Returns "" when the
// input does not contain a leading 5-digit group.
func CleanPostalCode(raw string) string {
	stripped := nonZipChars.ReplaceAllString(strings.TrimSpace(raw), "")
	m := zipPattern.FindStringSubmatch(stripped)
	if m == nil {
		return ""
	}
	if m[2] != "" {
		return m[1] + "-" + m[2]
	}
	return m[1]
}

// zip5 returns the leading 5-digit group of a cleaned postal code.
func zip5(cleaned string) string {
	if len(cleaned) < 5 {
		return ""
	}
	return cleaned[:5]
}
