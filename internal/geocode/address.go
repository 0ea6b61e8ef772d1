package geocode

import (
	"regexp"
	"strings"
)

// Components are the pieces of an address recoverable by pattern matching,
// used to short-circuit to the ZIP table before paying for a geocode call.
type Components struct {
	Street string `json:"street,omitempty"`
	City   string `json:"city,omitempty"`
	State  string `json:"state,omitempty"`
	ZIP    string `json:"zip,omitempty"`
}

var (
	zipPattern    = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\b`)
	statePattern  = regexp.MustCompile(`(?i)\b(A[KLRSZ]|C[AOT]|D[CE]|FL|G[AU]|HI|I[ADLN]|K[SY]|LA|M[ADEINOPST]|N[CDEHJMVY]|O[HKR]|P[AR]|RI|S[CD]|T[NX]|UT|V[AIT]|W[AIVY])\b`)
	streetPattern = regexp.MustCompile(`(?i)^\s*\d+\s+\S+`)
)

// ParseAddressComponents extracts zip/state/city/street from free text. It is
// deliberately lightweight: a recovered ZIP is enough to answer from the
// lookup table, and anything we miss simply falls through to full geocoding.
func ParseAddressComponents(text string) Components {
	var out Components
	text = strings.TrimSpace(text)
	if text == "" {
		return out
	}

	if m := zipPattern.FindStringSubmatch(text); m != nil {
		out.ZIP = m[1]
	}
	if m := statePattern.FindString(text); m != "" {
		out.State = strings.ToUpper(m)
	}
	if m := streetPattern.FindString(text); m != "" {
		out.Street = strings.TrimSpace(m)
	}

	// City is a best-effort read of the comma-separated segment before the
	// state/ZIP tail.
	parts := strings.Split(text, ",")
	if len(parts) >= 2 {
		candidate := strings.TrimSpace(parts[len(parts)-2])
		if len(parts) >= 3 && !looksLikeCity(candidate) {
			candidate = strings.TrimSpace(parts[len(parts)-3])
		}
		if looksLikeCity(candidate) {
			out.City = candidate
		}
	}
	return out
}

// HasZIP reports whether a ZIP was recovered.
func (c Components) HasZIP() bool {
	return c.ZIP != ""
}

func looksLikeCity(s string) bool {
	if s == "" || zipPattern.MatchString(s) {
		return false
	}
	// A bare state abbreviation is not a city.
	if len(s) == 2 && statePattern.MatchString(s) {
		return false
	}
	return !streetPattern.MatchString(s)
}

// LooksLikeZIP reports whether the whole query is a bare ZIP code, meaning
// the caller can skip address parsing entirely.
func LooksLikeZIP(query string) bool {
	query = strings.TrimSpace(query)
	if m := zipPattern.FindString(query); m != query || m == "" {
		return false
	}
	return true
}

// CanonicalZIP returns the five-digit ZIP for a bare ZIP or ZIP+4 query.
// The lookup table is keyed by five digits, so the +4 suffix must be
// stripped before any table access. Returns "" when the query is not a ZIP.
func CanonicalZIP(query string) string {
	query = strings.TrimSpace(query)
	m := zipPattern.FindStringSubmatch(query)
	if m == nil || m[0] != query {
		return ""
	}
	return m[1]
}
