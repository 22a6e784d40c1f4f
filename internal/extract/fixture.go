package extract

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/rename-cli/internal/model"
)

// Fixture is one regression case: a text, the company it is about, and the
// facts the active rules are expected to extract. An empty Want.NewName
// expects no name; empty date or reason expectations are not checked.
type Fixture struct {
	Name string      `yaml:"name"`
	Old  string      `yaml:"old"`
	Text string      `yaml:"text"`
	Want Expectation `yaml:"want"`
}

// Expectation is the expected extraction for a Fixture.
type Expectation struct {
	NewName      string `yaml:"new_name"`
	ChangeDate   string `yaml:"change_date,omitempty"`
	ChangeReason string `yaml:"change_reason,omitempty"`
}

// Mismatch is a fixture whose extraction differs from its expectation.
type Mismatch struct {
	Fixture Fixture
	Got     model.ExtractionOutcome
}

// LoadFixtures reads a YAML list of fixtures.
func LoadFixtures(path string) ([]Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read fixtures %s", path)
	}
	var out []Fixture
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrapf(err, "extract: parse fixtures %s", path)
	}
	return out, nil
}

// Replay runs every fixture and returns the ones that do not match.
func (e *Extractor) Replay(fixtures []Fixture) []Mismatch {
	var out []Mismatch
	for _, f := range fixtures {
		got := e.Extract(f.Text, f.Old)
		if !f.Want.matches(got) {
			out = append(out, Mismatch{Fixture: f, Got: got})
		}
	}
	return out
}

func (w Expectation) matches(got model.ExtractionOutcome) bool {
	if w.NewName == "" {
		return !got.HasName
	}
	if !got.HasName || got.NewName != w.NewName {
		return false
	}
	if w.ChangeDate != "" && got.ChangeDate != w.ChangeDate {
		return false
	}
	return w.ChangeReason == "" || got.ChangeReason == w.ChangeReason
}
