package model

// CompanyQuery is the unit of work: one company name as provided plus its
// canonical form. Build it with normalize.Normalizer.Query.
type CompanyQuery struct {
	OriginalName   string `json:"original_name"`
	NormalizedName string `json:"normalized_name"`
}

// RawResult is one web-search hit as returned by a search provider.
type RawResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Text returns the title and snippet joined for matching.
func (r RawResult) Text() string {
	switch {
	case r.Title == "":
		return r.Snippet
	case r.Snippet == "":
		return r.Title
	}
	return r.Title + " " + r.Snippet
}

// ScoredResult pairs a RawResult with its relevance score. Position is the
// acquisition index and breaks ties when ranking.
type ScoredResult struct {
	RawResult
	Score    float64 `json:"score"`
	Position int     `json:"position"`
}

// ExtractionOutcome is what the fact extractor derived from one text.
// HasName is false when no candidate survived; ChangeDate and ChangeReason
// then hold their sentinels.
type ExtractionOutcome struct {
	NewName      string `json:"new_name,omitempty"`
	HasName      bool   `json:"has_name"`
	ChangeDate   string `json:"change_date"`
	ChangeReason string `json:"change_reason"`
}

// NoExtraction returns the outcome used when nothing could be extracted.
func NoExtraction() ExtractionOutcome {
	return ExtractionOutcome{ChangeDate: DateUnknown, ChangeReason: ReasonUnknown}
}
