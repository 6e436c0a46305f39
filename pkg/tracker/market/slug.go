package market

import (
	"regexp"
	"strings"
)

var (
	numericSuffix = regexp.MustCompile(`(-\d{3,})+$`)
	allDigits     = regexp.MustCompile(`^\d+$`)
)

// DeriveEventSlug guesses a parent-event slug from a market slug by dropping
// trailing numeric id groups. Returns "" when the remainder is too short or
// purely numeric.
func DeriveEventSlug(marketSlug string) string {
	clean := numericSuffix.ReplaceAllString(marketSlug, "")
	clean = strings.TrimRight(clean, "-")
	if len(clean) <= 5 || allDigits.MatchString(clean) {
		return ""
	}
	return clean
}

// IsPlaceholderTitle reports whether title is the synthetic "Market <id>"
// label used when no metadata could be found.
func IsPlaceholderTitle(title, marketID string) bool {
	return title == "" || title == PlaceholderTitle(marketID)
}

// PlaceholderTitle returns the synthetic title for a market id.
func PlaceholderTitle(marketID string) string {
	id := marketID
	if len(id) > 8 {
		id = id[:8]
	}
	return "Market " + id
}
