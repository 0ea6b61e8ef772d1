package directory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/civiq/civiq/internal/districts"
)

// legislatorRecord mirrors one entry of the congress-legislators YAML. Every
// field is optional: the upstream schema is not contractually guaranteed, so
// missing pieces degrade to empty values instead of parse failures.
type legislatorRecord struct {
	ID struct {
		Bioguide string `yaml:"bioguide"`
	} `yaml:"id"`
	Name struct {
		First        string `yaml:"first"`
		Last         string `yaml:"last"`
		OfficialFull string `yaml:"official_full"`
	} `yaml:"name"`
	Terms []termRecord `yaml:"terms"`
}

type termRecord struct {
	Type     string `yaml:"type"`
	State    string `yaml:"state"`
	District *int   `yaml:"district"`
	Party    string `yaml:"party"`
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
}

const termDateLayout = "2006-01-02"

// ParseLegislators decodes the bulk YAML dataset and keeps only members whose
// latest term covers the given instant. The roster is sorted by state then
// name so responses are stable across refreshes.
func ParseLegislators(data []byte, now time.Time) ([]Representative, error) {
	var records []legislatorRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("directory: decode dataset: %w", err)
	}

	var roster []Representative
	for _, record := range records {
		rep, ok := buildRepresentative(record, now)
		if !ok {
			continue
		}
		roster = append(roster, rep)
	}

	sort.Slice(roster, func(i, j int) bool {
		if roster[i].State != roster[j].State {
			return roster[i].State < roster[j].State
		}
		return roster[i].Name < roster[j].Name
	})
	return roster, nil
}

func buildRepresentative(record legislatorRecord, now time.Time) (Representative, bool) {
	id := strings.ToUpper(strings.TrimSpace(record.ID.Bioguide))
	if id == "" || len(record.Terms) == 0 {
		return Representative{}, false
	}

	current := record.Terms[len(record.Terms)-1]
	if !termCovers(current, now) {
		return Representative{}, false
	}

	chamber, title := chamberForType(current.Type)
	if chamber == "" {
		return Representative{}, false
	}

	rep := Representative{
		BioguideID: id,
		Name:       displayName(record),
		Party:      current.Party,
		State:      strings.ToUpper(strings.TrimSpace(current.State)),
		Chamber:    chamber,
		Title:      title,
	}
	if chamber == ChamberHouse {
		if current.District == nil {
			return Representative{}, false
		}
		rep.District = districts.NormalizeDistrict(fmt.Sprintf("%d", *current.District))
	}

	for _, term := range record.Terms {
		tc, _ := chamberForType(term.Type)
		if tc == "" {
			continue
		}
		rep.Terms = append(rep.Terms, Term{
			Chamber: tc,
			State:   strings.ToUpper(strings.TrimSpace(term.State)),
			Party:   term.Party,
			Start:   term.Start,
			End:     term.End,
		})
	}
	return rep, true
}

// termCovers checks start <= now < end; unparseable dates fail closed so a
// member with corrupt term bounds never shows up as currently serving.
func termCovers(term termRecord, now time.Time) bool {
	start, err := time.Parse(termDateLayout, term.Start)
	if err != nil {
		return false
	}
	end, err := time.Parse(termDateLayout, term.End)
	if err != nil {
		return false
	}
	return !now.Before(start) && now.Before(end)
}

func chamberForType(termType string) (Chamber, string) {
	switch strings.ToLower(strings.TrimSpace(termType)) {
	case "rep":
		return ChamberHouse, "Rep."
	case "sen":
		return ChamberSenate, "Sen."
	default:
		return "", ""
	}
}

func displayName(record legislatorRecord) string {
	if full := strings.TrimSpace(record.Name.OfficialFull); full != "" {
		return full
	}
	return strings.TrimSpace(strings.TrimSpace(record.Name.First) + " " + strings.TrimSpace(record.Name.Last))
}
