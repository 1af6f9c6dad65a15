// Package search runs parsed queries and translated criteria against an
// index snapshot, then assembles ranked, faceted results.
package search

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kensaku-io/kensaku/internal/index"
	"github.com/kensaku-io/kensaku/internal/models"
	"github.com/kensaku-io/kensaku/internal/query"
	"github.com/kensaku-io/kensaku/internal/ranking"
)

// Executor evaluates one query against one immutable snapshot. Evaluation is
// read-only, so cancellation never leaves partially-visible state.
type Executor struct {
	snap   *index.Snapshot
	lexer  *query.Lexer
	strict bool
}

// NewExecutor creates an executor bound to a snapshot. strict surfaces
// unknown field names instead of treating them as zero matches.
func NewExecutor(snap *index.Snapshot, lexer *query.Lexer, strict bool) *Executor {
	return &Executor{snap: snap, lexer: lexer, strict: strict}
}

// resultSet maps record id to accumulated match evidence.
type resultSet map[string]*ranking.Evidence

// freeTextFields are the fields searched by unscoped terms on the
// natural-language path.
var freeTextFields = []string{index.FieldTitle, index.FieldDescription, index.FieldTags, index.FieldKeywords}

// knownFields maps accepted query field names to canonical internal names.
var knownFields = map[string]string{
	"title":       "title",
	"description": "description",
	"tags":        "tags",
	"tag":         "tags",
	"keywords":    "keywords",
	"keyword":     "keywords",
	"category":    "category",
	"mood":        "mood",
	"filetype":    "filetype",
	"type":        "filetype",
	"size":        "size",
	"date":        "date",
	"modified":    "date",
	"created":     "created",
	"path":        "path",
}

// ExecuteNode evaluates a boolean AST and returns candidates with evidence.
func (e *Executor) ExecuteNode(ctx context.Context, node query.Node) ([]ranking.Candidate, error) {
	set, err := e.eval(ctx, node)
	if err != nil {
		return nil, err
	}
	return e.candidates(set), nil
}

func (e *Executor) eval(ctx context.Context, node query.Node) (resultSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case *query.MatchAll:
		return e.universe(), nil
	case *query.Term:
		return e.evalTerm(n.Value, index.TextFields), nil
	case *query.Phrase:
		return e.evalPhrase(n.Words), nil
	case *query.FieldMatch:
		return e.evalFieldMatch(n)
	case *query.And:
		return e.evalAnd(ctx, n)
	case *query.Or:
		return e.evalOr(ctx, n)
	case *query.Not:
		return e.evalNot(ctx, n)
	default:
		return resultSet{}, nil
	}
}

func (e *Executor) universe() resultSet {
	set := make(resultSet, e.snap.Len())
	e.snap.Each(func(rec *models.MediaRecord) bool {
		set[rec.ID] = &ranking.Evidence{}
		return true
	})
	return set
}

// evalTerm unions per-field postings so evidence keeps field-level term
// frequencies for ranking.
func (e *Executor) evalTerm(term string, fields []string) resultSet {
	set := make(resultSet)
	for _, field := range fields {
		for _, p := range e.snap.Lookup(field, term) {
			ev, ok := set[p.ID]
			if !ok {
				ev = &ranking.Evidence{}
				set[p.ID] = ev
			}
			ev.AddTermHit(field, len(p.Positions))
		}
	}
	return set
}

// evalPhrase matches words at adjacent positions within a single field.
// Order matters: "taipei rain" does not match "rain in taipei".
func (e *Executor) evalPhrase(words []string) resultSet {
	set := make(resultSet)
	if len(words) == 0 {
		return set
	}
	for _, field := range index.TextFields {
		first := e.snap.Lookup(field, words[0])
		for _, p := range first {
			starts := p.Positions
			for _, w := range words[1:] {
				next := positionsFor(e.snap.Lookup(field, w), p.ID)
				starts = advance(starts, next)
				if len(starts) == 0 {
					break
				}
			}
			if len(starts) == 0 {
				continue
			}
			ev, ok := set[p.ID]
			if !ok {
				ev = &ranking.Evidence{}
				set[p.ID] = ev
			}
			ev.PhraseHits += len(starts)
			ev.AddTermHit(field, len(words)*len(starts))
		}
	}
	return set
}

// positionsFor returns the positions of id within posts, or nil.
func positionsFor(posts []index.Posting, id string) []int {
	i := sort.Search(len(posts), func(i int) bool { return posts[i].ID >= id })
	if i < len(posts) && posts[i].ID == id {
		return posts[i].Positions
	}
	return nil
}

// advance keeps each start position whose successor appears in next.
func advance(starts, next []int) []int {
	nextSet := make(map[int]bool, len(next))
	for _, p := range next {
		nextSet[p] = true
	}
	var out []int
	for _, s := range starts {
		if nextSet[s+1] {
			out = append(out, s)
		}
	}
	// Shift so the chain continues from the successor position.
	for i := range out {
		out[i]++
	}
	return out
}

func (e *Executor) evalFieldMatch(fm *query.FieldMatch) (resultSet, error) {
	canonical, known := knownFields[fm.Field]
	if !known {
		// Technical attributes (shot_type, lighting_style, ...) are
		// looked up dynamically; anything else is unknown.
		if e.hasTechnicalAttr(fm.Field) {
			return e.scanRecords(func(rec *models.MediaRecord) bool {
				return predicateHolds(strings.ToLower(rec.TechnicalAttrs[fm.Field]), fm)
			}), nil
		}
		if e.strict {
			return nil, &ExecError{Kind: UnknownField, Field: fm.Field}
		}
		return resultSet{}, nil
	}

	switch canonical {
	case "size":
		return e.scanRecords(func(rec *models.MediaRecord) bool {
			return numericPredicateHolds(rec.FileSizeBytes, fm)
		}), nil
	case "date":
		return e.scanRecords(func(rec *models.MediaRecord) bool {
			return datePredicateHolds(rec.ModifiedAt, fm)
		}), nil
	case "created":
		return e.scanRecords(func(rec *models.MediaRecord) bool {
			return datePredicateHolds(rec.CreatedAt, fm)
		}), nil
	case "mood":
		return e.scanRecords(func(rec *models.MediaRecord) bool {
			return predicateHolds(strings.ToLower(rec.Mood), fm)
		}), nil
	case "filetype":
		return e.scanRecords(func(rec *models.MediaRecord) bool {
			return predicateHolds(strings.ToLower(rec.FileType), fm)
		}), nil
	case "path":
		return e.scanRecords(func(rec *models.MediaRecord) bool {
			return predicateHolds(strings.ToLower(rec.Path), fm)
		}), nil
	default:
		// Indexed text fields: every token of the value must appear in
		// the scoped field.
		return e.evalTextFieldContains(canonical, fm.Value), nil
	}
}

func (e *Executor) evalTextFieldContains(field, value string) resultSet {
	tokens := e.lexer.AnalyzeText(value)
	if len(tokens) == 0 {
		return resultSet{}
	}
	set := e.evalScopedTerm(field, tokens[0])
	for _, tok := range tokens[1:] {
		set = intersect(set, e.evalScopedTerm(field, tok))
		if len(set) == 0 {
			return set
		}
	}
	for _, ev := range set {
		ev.FieldMatches++
	}
	return set
}

func (e *Executor) evalScopedTerm(field, term string) resultSet {
	set := make(resultSet)
	for _, p := range e.snap.Lookup(field, term) {
		ev := &ranking.Evidence{}
		ev.AddTermHit(field, len(p.Positions))
		set[p.ID] = ev
	}
	return set
}

func (e *Executor) hasTechnicalAttr(key string) bool {
	found := false
	e.snap.Each(func(rec *models.MediaRecord) bool {
		if _, ok := rec.TechnicalAttrs[key]; ok {
			found = true
			return false
		}
		return true
	})
	return found
}

func (e *Executor) scanRecords(pred func(*models.MediaRecord) bool) resultSet {
	set := make(resultSet)
	e.snap.Each(func(rec *models.MediaRecord) bool {
		if pred(rec) {
			set[rec.ID] = &ranking.Evidence{FieldMatches: 1}
		}
		return true
	})
	return set
}

// evalAnd evaluates the cheapest-looking branch first and short-circuits as
// soon as the running intersection is empty.
func (e *Executor) evalAnd(ctx context.Context, n *query.And) (resultSet, error) {
	children := make([]query.Node, len(n.Children))
	copy(children, n.Children)
	sort.SliceStable(children, func(i, j int) bool {
		return e.estimateCost(children[i]) < e.estimateCost(children[j])
	})

	var acc resultSet
	for _, child := range children {
		set, err := e.eval(ctx, child)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = set
		} else {
			acc = intersect(acc, set)
		}
		if len(acc) == 0 {
			return resultSet{}, nil
		}
	}
	if acc == nil {
		acc = resultSet{}
	}
	return acc, nil
}

// estimateCost approximates a branch's candidate count. Terms use the
// all-fields posting list length; anything unbounded counts as the full
// corpus.
func (e *Executor) estimateCost(node query.Node) int {
	switch n := node.(type) {
	case *query.Term:
		return len(e.snap.Lookup(index.FieldAll, n.Value))
	case *query.Phrase:
		if len(n.Words) == 0 {
			return 0
		}
		return len(e.snap.Lookup(index.FieldAll, n.Words[0]))
	case *query.FieldMatch:
		if canonical, ok := knownFields[n.Field]; ok {
			switch canonical {
			case "title", "description", "tags", "keywords", "category":
				toks := e.lexer.AnalyzeText(n.Value)
				if len(toks) > 0 {
					return len(e.snap.Lookup(canonical, toks[0]))
				}
			}
		}
		return e.snap.Len()
	case *query.And:
		min := e.snap.Len()
		for _, c := range n.Children {
			if cost := e.estimateCost(c); cost < min {
				min = cost
			}
		}
		return min
	case *query.Or:
		total := 0
		for _, c := range n.Children {
			total += e.estimateCost(c)
		}
		return total
	default:
		return e.snap.Len()
	}
}

func (e *Executor) evalOr(ctx context.Context, n *query.Or) (resultSet, error) {
	acc := make(resultSet)
	for _, child := range n.Children {
		set, err := e.eval(ctx, child)
		if err != nil {
			return nil, err
		}
		for id, ev := range set {
			if existing, ok := acc[id]; ok {
				existing.Merge(*ev)
			} else {
				acc[id] = ev
			}
		}
	}
	return acc, nil
}

// evalNot returns the complement of the child within the indexed universe.
func (e *Executor) evalNot(ctx context.Context, n *query.Not) (resultSet, error) {
	inner, err := e.eval(ctx, n.Child)
	if err != nil {
		return nil, err
	}
	set := make(resultSet)
	e.snap.Each(func(rec *models.MediaRecord) bool {
		if _, matched := inner[rec.ID]; !matched {
			set[rec.ID] = &ranking.Evidence{}
		}
		return true
	})
	return set, nil
}

// ExecuteCriteria evaluates translated natural-language criteria. Free-text
// terms use OR-of-any-field semantics; everything else intersects.
func (e *Executor) ExecuteCriteria(ctx context.Context, c *models.SearchCriteria) ([]ranking.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var set resultSet
	if len(c.Terms) > 0 {
		set = make(resultSet)
		for _, term := range c.Terms {
			for id, ev := range e.evalTerm(term, freeTextFields) {
				if existing, ok := set[id]; ok {
					existing.Merge(*ev)
				} else {
					set[id] = ev
				}
			}
		}
	} else {
		set = e.universe()
	}

	for _, phrase := range c.Phrases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		set = intersect(set, e.evalPhrase(query.PhraseWords(phrase)))
		if len(set) == 0 {
			return nil, nil
		}
	}

	fields := make([]string, 0, len(c.FieldFilters))
	for f := range c.FieldFilters {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pred := c.FieldFilters[field]
		filterSet, err := e.evalFieldMatch(&query.FieldMatch{
			Field: field, Op: pred.Op, Value: pred.Value, Value2: pred.Value2,
		})
		if err != nil {
			return nil, err
		}
		set = intersect(set, filterSet)
		if len(set) == 0 {
			return nil, nil
		}
	}

	for _, tag := range c.Tags {
		set = intersect(set, e.evalTextFieldContains(index.FieldTags, tag))
		if len(set) == 0 {
			return nil, nil
		}
	}

	if c.DateRange != nil {
		set = intersect(set, e.scanRecords(func(rec *models.MediaRecord) bool {
			return !rec.ModifiedAt.Before(c.DateRange.From) && !rec.ModifiedAt.After(c.DateRange.To)
		}))
	}
	if c.SizeRange != nil {
		set = intersect(set, e.scanRecords(func(rec *models.MediaRecord) bool {
			if c.SizeRange.Min > 0 && rec.FileSizeBytes < c.SizeRange.Min {
				return false
			}
			if c.SizeRange.Max > 0 && rec.FileSizeBytes > c.SizeRange.Max {
				return false
			}
			return true
		}))
	}

	// Exclusions consult the virtual all-fields segment.
	for _, term := range c.ExcludeTerms {
		for _, p := range e.snap.Lookup(index.FieldAll, term) {
			delete(set, p.ID)
		}
	}

	return e.candidates(set), nil
}

// intersect keeps ids present in both sets, merging evidence from b into a's
// entries.
func intersect(a, b resultSet) resultSet {
	if len(b) < len(a) {
		// Iterate the smaller set.
		out := make(resultSet, len(b))
		for id, bev := range b {
			if aev, ok := a[id]; ok {
				aev.Merge(*bev)
				out[id] = aev
			}
		}
		return out
	}
	out := make(resultSet, len(a))
	for id, aev := range a {
		if bev, ok := b[id]; ok {
			aev.Merge(*bev)
			out[id] = aev
		}
	}
	return out
}

// candidates converts a result set into deterministic, id-ordered candidates.
func (e *Executor) candidates(set resultSet) []ranking.Candidate {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]ranking.Candidate, 0, len(ids))
	for _, id := range ids {
		rec := e.snap.Record(id)
		if rec == nil {
			continue
		}
		out = append(out, ranking.Candidate{Record: rec, Evidence: *set[id]})
	}
	return out
}

// predicateHolds applies a string comparison. Contains is substring match;
// equals is exact; ranges compare lexically.
func predicateHolds(value string, fm *query.FieldMatch) bool {
	switch fm.Op {
	case models.OpEquals:
		return value == fm.Value
	case models.OpGreaterThan:
		return value > fm.Value
	case models.OpLessThan:
		return value < fm.Value
	case models.OpBetween:
		return value >= fm.Value && value <= fm.Value2
	default:
		return strings.Contains(value, fm.Value)
	}
}

func numericPredicateHolds(value int64, fm *query.FieldMatch) bool {
	v1, err := strconv.ParseInt(fm.Value, 10, 64)
	if err != nil {
		return false
	}
	switch fm.Op {
	case models.OpGreaterThan:
		return value > v1
	case models.OpLessThan:
		return value < v1
	case models.OpBetween:
		v2, err := strconv.ParseInt(fm.Value2, 10, 64)
		if err != nil {
			return false
		}
		return value >= v1 && value <= v2
	default:
		return value == v1
	}
}

var dateFormats = []string{"2006-01-02", "2006/01/02", "2006/1/2", time.RFC3339}

func parseQueryDate(s string) (time.Time, bool) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func datePredicateHolds(value time.Time, fm *query.FieldMatch) bool {
	v1, ok := parseQueryDate(fm.Value)
	if !ok {
		return false
	}
	switch fm.Op {
	case models.OpGreaterThan:
		return value.After(v1)
	case models.OpLessThan:
		return value.Before(v1)
	case models.OpBetween:
		v2, ok := parseQueryDate(fm.Value2)
		if !ok {
			return false
		}
		return !value.Before(v1) && !value.After(v2.AddDate(0, 0, 1))
	default:
		// Same calendar day.
		return !value.Before(v1) && value.Before(v1.AddDate(0, 0, 1))
	}
}
