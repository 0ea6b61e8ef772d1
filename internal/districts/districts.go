package districts

import (
	"fmt"
	"strconv"
	"strings"
)

// AtLarge is the district value assigned to at-large seats and the non-voting
// delegate seats of DC and the territories.
const AtLarge = "00"

// Mapping associates a ZIP code with one congressional district. ZIPs whose
// postal boundary crosses district lines carry several mappings, exactly one
// of which is flagged Primary.
type Mapping struct {
	State    string `json:"state"`
	District string `json:"district"`
	Primary  bool   `json:"primary,omitempty"`
}

// SkippedZIP describes a dataset row group the loader quarantined because it
// violated the one-primary invariant. Surfaced through health checks so
// operators know which ZIPs were dropped.
type SkippedZIP struct {
	ZIP    string `json:"zip"`
	Reason string `json:"reason"`
}

// Table is an immutable ZIP-to-district lookup. Lookups never fail: unknown
// or malformed ZIPs produce empty results, not errors.
type Table struct {
	byZIP   map[string][]Mapping
	skipped []SkippedZIP
}

// NewTable builds a table from grouped mappings, enforcing the one-primary
// invariant per multi-district ZIP. Violating groups are quarantined rather
// than rejected wholesale, so one bad row cannot take down the dataset.
func NewTable(groups map[string][]Mapping) *Table {
	byZIP := make(map[string][]Mapping, len(groups))
	var skipped []SkippedZIP
	for zip, mappings := range groups {
		if len(mappings) == 0 {
			continue
		}
		if len(mappings) > 1 {
			primaries := 0
			for _, m := range mappings {
				if m.Primary {
					primaries++
				}
			}
			if primaries != 1 {
				skipped = append(skipped, SkippedZIP{
					ZIP:    zip,
					Reason: fmt.Sprintf("multi-district zip has %d primary entries, want 1", primaries),
				})
				continue
			}
		}
		byZIP[zip] = mappings
	}
	return &Table{byZIP: byZIP, skipped: skipped}
}

// AllForZIP returns every district mapping for the ZIP, or an empty slice when
// the ZIP is unknown. Callers receive a copy so the table stays immutable.
func (t *Table) AllForZIP(zip string) []Mapping {
	mappings, ok := t.byZIP[normalizeZIP(zip)]
	if !ok {
		return nil
	}
	out := make([]Mapping, len(mappings))
	copy(out, mappings)
	return out
}

// PrimaryForZIP returns the primary mapping for a multi-district ZIP, the sole
// mapping otherwise, or nil when the ZIP is unknown.
func (t *Table) PrimaryForZIP(zip string) *Mapping {
	mappings, ok := t.byZIP[normalizeZIP(zip)]
	if !ok {
		return nil
	}
	if len(mappings) == 1 {
		m := mappings[0]
		return &m
	}
	for _, m := range mappings {
		if m.Primary {
			out := m
			return &out
		}
	}
	return nil
}

// IsMultiDistrict reports whether the ZIP straddles more than one district.
func (t *Table) IsMultiDistrict(zip string) bool {
	return len(t.byZIP[normalizeZIP(zip)]) > 1
}

// StateForZIP returns the two-letter state for the ZIP, or empty when unknown.
func (t *Table) StateForZIP(zip string) string {
	mappings, ok := t.byZIP[normalizeZIP(zip)]
	if !ok || len(mappings) == 0 {
		return ""
	}
	return mappings[0].State
}

// Len reports how many ZIPs the table covers.
func (t *Table) Len() int {
	return len(t.byZIP)
}

// Skipped reports the ZIPs the loader quarantined.
func (t *Table) Skipped() []SkippedZIP {
	out := make([]SkippedZIP, len(t.skipped))
	copy(out, t.skipped)
	return out
}

func normalizeZIP(zip string) string {
	return strings.TrimSpace(zip)
}

// NormalizeDistrict canonicalizes district values: "AL", "at-large", and "0"
// variants collapse to AtLarge, numeric districts are zero-padded to two
// digits, anything else passes through trimmed.
func NormalizeDistrict(district string) string {
	d := strings.TrimSpace(district)
	switch strings.ToUpper(d) {
	case "", "AL", "AT-LARGE", "00", "0":
		return AtLarge
	}
	if n, err := strconv.Atoi(d); err == nil {
		return fmt.Sprintf("%02d", n)
	}
	return d
}
