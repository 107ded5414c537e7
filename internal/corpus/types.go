// Package corpus defines the paper and score records shared by every stage of
// the scoring pipeline.
package corpus

// Indicator names the scoring method a PaperScore was produced by.
type Indicator string

const (
	IndicatorAtypicality Indicator = "atypicality"
	IndicatorCommonness  Indicator = "commonness"
	IndicatorNovelty     Indicator = "novelty"
	IndicatorFoster      Indicator = "foster"
	IndicatorDistance    Indicator = "distance"
)

// Item is a single knowledge element cited or used by a paper.
type Item struct {
	Name string `json:"name"`
	Year *int   `json:"year,omitempty"` // creation year, required by the null model
}

// Paper is one record of the corpus. Items may repeat.
type Paper struct {
	ID    string `json:"id"`
	Year  int    `json:"year"`
	Items []Item `json:"items"`
}

// Names returns the item names in order, dropping empty names.
func (p Paper) Names() []string {
	names := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		if it.Name == "" {
			continue
		}
		names = append(names, it.Name)
	}
	return names
}

// PaperScore is the per-paper output of an indicator.
type PaperScore struct {
	PaperID   string             `json:"paper_id"`
	Year      int                `json:"year"`
	Indicator Indicator          `json:"indicator"`
	Variable  string             `json:"variable"`
	Headline  map[string]float64 `json:"headline"`
	Raw       []float64          `json:"raw,omitempty"`
}

// Key identifies the indicator configuration a score belongs to, e.g.
// "atypicality_c04_referencelist".
func (s PaperScore) Key() string {
	return string(s.Indicator) + "_" + s.Variable
}

// IntPtr is a small helper for building items with a year.
func IntPtr(v int) *int {
	return &v
}
