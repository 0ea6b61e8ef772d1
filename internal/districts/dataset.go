package districts

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
)

//go:embed zip_districts.csv
var embeddedDataset []byte

// datasetRow mirrors one line of the ZIP-to-district CSV.
type datasetRow struct {
	ZIP      string `csv:"zip"`
	State    string `csv:"state"`
	District string `csv:"district"`
	Primary  bool   `csv:"primary,omitempty"`
}

// LoadEmbedded builds the lookup table from the dataset compiled into the
// binary. The embedded data is pre-validated, so an error here means a broken
// build rather than bad operator input.
func LoadEmbedded() (*Table, error) {
	return Load(strings.NewReader(string(embeddedDataset)))
}

// LoadFile builds the table from an operator-supplied CSV override.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("districts: open dataset: %w", err)
	}
	defer f.Close()
	table, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("districts: dataset %s: %w", path, err)
	}
	return table, nil
}

// Load decodes the zip,state,district,primary CSV into a Table. District
// values are normalized so "AL" and bare numbers land in canonical form.
func Load(r io.Reader) (*Table, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("districts: csv decoder: %w", err)
	}
	var rows []datasetRow
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("districts: decode csv: %w", err)
	}

	groups := make(map[string][]Mapping)
	for _, row := range rows {
		zip := strings.TrimSpace(row.ZIP)
		state := strings.ToUpper(strings.TrimSpace(row.State))
		if zip == "" || state == "" {
			continue
		}
		groups[zip] = append(groups[zip], Mapping{
			State:    state,
			District: NormalizeDistrict(row.District),
			Primary:  row.Primary,
		})
	}
	return NewTable(groups), nil
}
