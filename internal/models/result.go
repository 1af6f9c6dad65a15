package models

// SearchResult is a single ranked hit. Transient, never persisted.
type SearchResult struct {
	RecordID      string       `json:"record_id"`
	Title         string       `json:"title"`
	FileType      string       `json:"file_type"`
	Path          string       `json:"path"`
	Score         float64      `json:"score"`
	MatchedFields []string     `json:"matched_fields,omitempty"`
	Rank          int          `json:"rank"`
	Record        *MediaRecord `json:"record,omitempty"`
}

// FacetCount is one value bucket within a facet field.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// SearchResults is the response for one search request.
type SearchResults struct {
	Items       []*SearchResult         `json:"items"`
	TotalCount  int                     `json:"total_count"`
	Query       string                  `json:"query"`
	Facets      map[string][]FacetCount `json:"facets,omitempty"`
	Suggestions []string                `json:"suggestions,omitempty"`
	ElapsedMs   float64                 `json:"elapsed_ms"`
	// Degraded indicates the index fell back to empty after a failed
	// snapshot load; results may be incomplete until reingestion.
	Degraded bool `json:"degraded,omitempty"`
}
