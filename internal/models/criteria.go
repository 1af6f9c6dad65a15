package models

import "time"

// CompareOp is the comparison applied by a field filter.
type CompareOp string

const (
	OpContains    CompareOp = "contains"
	OpEquals      CompareOp = "equals"
	OpGreaterThan CompareOp = "gt"
	OpLessThan    CompareOp = "lt"
	OpBetween     CompareOp = "between"
)

// FieldPredicate is a single field filter. Value2 is only set for OpBetween.
type FieldPredicate struct {
	Op     CompareOp `json:"op"`
	Value  string    `json:"value"`
	Value2 string    `json:"value2,omitempty"`
}

// DateRange is an inclusive [From, To] window.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SizeRange bounds file size in bytes. Max <= 0 means unbounded above;
// Min <= 0 means unbounded below.
type SizeRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// SearchCriteria is the flat, transient query representation produced by the
// natural-language translator (and by template loads). Free-text Terms use
// OR-of-any-field semantics: a record matches when any term appears in any of
// title, description, tags, or keywords. Everything else intersects.
type SearchCriteria struct {
	Terms        []string                  `json:"terms,omitempty"`
	Phrases      []string                  `json:"phrases,omitempty"`
	ExcludeTerms []string                  `json:"exclude_terms,omitempty"`
	FieldFilters map[string]FieldPredicate `json:"field_filters,omitempty"`
	DateRange    *DateRange                `json:"date_range,omitempty"`
	SizeRange    *SizeRange                `json:"size_range,omitempty"`
	Tags         []string                  `json:"tags,omitempty"`
	SortBy       string                    `json:"sort_by,omitempty"`
	SortOrder    string                    `json:"sort_order,omitempty"`
	Limit        int                       `json:"limit,omitempty"`
	Offset       int                       `json:"offset,omitempty"`
}

// IsEmpty reports whether the criteria constrains nothing.
func (c *SearchCriteria) IsEmpty() bool {
	return len(c.Terms) == 0 && len(c.Phrases) == 0 && len(c.ExcludeTerms) == 0 &&
		len(c.FieldFilters) == 0 && c.DateRange == nil && c.SizeRange == nil &&
		len(c.Tags) == 0
}

// Clone returns a deep copy of the criteria.
func (c *SearchCriteria) Clone() *SearchCriteria {
	cp := *c
	cp.Terms = append([]string(nil), c.Terms...)
	cp.Phrases = append([]string(nil), c.Phrases...)
	cp.ExcludeTerms = append([]string(nil), c.ExcludeTerms...)
	cp.Tags = append([]string(nil), c.Tags...)
	if c.FieldFilters != nil {
		cp.FieldFilters = make(map[string]FieldPredicate, len(c.FieldFilters))
		for k, v := range c.FieldFilters {
			cp.FieldFilters[k] = v
		}
	}
	if c.DateRange != nil {
		dr := *c.DateRange
		cp.DateRange = &dr
	}
	if c.SizeRange != nil {
		sr := *c.SizeRange
		cp.SizeRange = &sr
	}
	return &cp
}
