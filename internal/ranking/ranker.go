// Package ranking orders executor candidates into the final result list.
// Relevance is a weighted sum of per-field term frequency, a phrase bonus, a
// specificity bonus for field-scoped hits, and a recency component; explicit
// sort settings fully override relevance. Ties always break by record id so
// repeated calls over the same snapshot yield identical ordering.
package ranking

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kensaku-io/kensaku/internal/models"
)

// Evidence describes how a candidate matched the query.
type Evidence struct {
	// TermHits maps field name to the total term-frequency of query terms
	// found in that field.
	TermHits map[string]int
	// PhraseHits counts exact phrase matches.
	PhraseHits int
	// FieldMatches counts satisfied field-scoped predicates. These score
	// higher than free-text fallback hits.
	FieldMatches int
}

// AddTermHit records n term occurrences in field.
func (e *Evidence) AddTermHit(field string, n int) {
	if e.TermHits == nil {
		e.TermHits = make(map[string]int)
	}
	e.TermHits[field] += n
}

// Merge folds other into e.
func (e *Evidence) Merge(other Evidence) {
	for f, n := range other.TermHits {
		e.AddTermHit(f, n)
	}
	e.PhraseHits += other.PhraseHits
	e.FieldMatches += other.FieldMatches
}

// Candidate pairs a matched record with its evidence.
type Candidate struct {
	Record   *models.MediaRecord
	Evidence Evidence
}

// Config holds scoring weights.
type Config struct {
	TitleWeight         float64
	TagsWeight          float64
	KeywordsWeight      float64
	DescriptionWeight   float64
	CategoryWeight      float64
	PhraseBonus         float64
	FieldMatchBonus     float64
	RecencyWeight       float64
	RecencyHalfLifeDays float64
}

// DefaultConfig returns the default weights: title outranks tags and
// keywords, which outrank description.
func DefaultConfig() *Config {
	return &Config{
		TitleWeight:         3.0,
		TagsWeight:          2.0,
		KeywordsWeight:      2.0,
		DescriptionWeight:   1.0,
		CategoryWeight:      1.0,
		PhraseBonus:         2.5,
		FieldMatchBonus:     1.5,
		RecencyWeight:       1.0,
		RecencyHalfLifeDays: 90,
	}
}

// Ranker scores and orders candidates.
type Ranker struct {
	cfg *Config
	now func() time.Time
}

// NewRanker creates a ranker; nil cfg uses DefaultConfig.
func NewRanker(cfg *Config) *Ranker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.RecencyHalfLifeDays <= 0 {
		cfg.RecencyHalfLifeDays = DefaultConfig().RecencyHalfLifeDays
	}
	return &Ranker{cfg: cfg, now: time.Now}
}

// Score computes the relevance score for one candidate.
func (r *Ranker) Score(c Candidate) float64 {
	var score float64
	for field, tf := range c.Evidence.TermHits {
		score += r.fieldWeight(field) * float64(tf)
	}
	score += r.cfg.PhraseBonus * float64(c.Evidence.PhraseHits)
	score += r.cfg.FieldMatchBonus * float64(c.Evidence.FieldMatches)
	score += r.cfg.RecencyWeight * r.recency(c.Record.ModifiedAt)
	return score
}

func (r *Ranker) fieldWeight(field string) float64 {
	switch field {
	case "title":
		return r.cfg.TitleWeight
	case "tags":
		return r.cfg.TagsWeight
	case "keywords":
		return r.cfg.KeywordsWeight
	case "description":
		return r.cfg.DescriptionWeight
	case "category":
		return r.cfg.CategoryWeight
	default:
		return 1.0
	}
}

// recency decays from 1 toward 0 with record age, halving every
// RecencyHalfLifeDays.
func (r *Ranker) recency(modifiedAt time.Time) float64 {
	if modifiedAt.IsZero() {
		return 0
	}
	ageDays := r.now().Sub(modifiedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-math.Ln2 * ageDays / r.cfg.RecencyHalfLifeDays)
}

// Rank orders candidates and builds the full (pre-pagination) result list.
// sortBy empty or "relevance" uses the score; otherwise the named field
// fully overrides relevance. Ordering is deterministic: ties break by id.
func (r *Ranker) Rank(candidates []Candidate, sortBy, sortOrder string) []*models.SearchResult {
	results := make([]*models.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, &models.SearchResult{
			RecordID:      c.Record.ID,
			Title:         c.Record.Title,
			FileType:      c.Record.FileType,
			Path:          c.Record.Path,
			Score:         r.Score(c),
			MatchedFields: matchedFields(c.Evidence),
			Record:        c.Record,
		})
	}

	less := relevanceLess(results)
	if sortBy != "" && sortBy != "relevance" {
		less = fieldLess(results, sortBy, sortOrder != "asc")
	}
	sort.SliceStable(results, less)

	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// Paginate applies offset/limit after full ranking. limit <= 0 returns the
// remainder.
func Paginate(results []*models.SearchResult, offset, limit int) []*models.SearchResult {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return nil
	}
	end := len(results)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return results[offset:end]
}

func relevanceLess(results []*models.SearchResult) func(i, j int) bool {
	return func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].RecordID < results[j].RecordID
	}
}

func fieldLess(results []*models.SearchResult, sortBy string, desc bool) func(i, j int) bool {
	cmp := func(a, b *models.SearchResult) int {
		switch sortBy {
		case "date":
			switch {
			case a.Record.ModifiedAt.Before(b.Record.ModifiedAt):
				return -1
			case a.Record.ModifiedAt.After(b.Record.ModifiedAt):
				return 1
			}
		case "name":
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case "size":
			switch {
			case a.Record.FileSizeBytes < b.Record.FileSizeBytes:
				return -1
			case a.Record.FileSizeBytes > b.Record.FileSizeBytes:
				return 1
			}
		case "type":
			return strings.Compare(a.FileType, b.FileType)
		}
		return 0
	}
	return func(i, j int) bool {
		c := cmp(results[i], results[j])
		if c == 0 {
			return results[i].RecordID < results[j].RecordID
		}
		if desc {
			return c > 0
		}
		return c < 0
	}
}

func matchedFields(e Evidence) []string {
	if len(e.TermHits) == 0 {
		return nil
	}
	fields := make([]string, 0, len(e.TermHits))
	for f := range e.TermHits {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
