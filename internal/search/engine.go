package search

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kensaku-io/kensaku/internal/config"
	"github.com/kensaku-io/kensaku/internal/index"
	"github.com/kensaku-io/kensaku/internal/models"
	"github.com/kensaku-io/kensaku/internal/nlquery"
	"github.com/kensaku-io/kensaku/internal/query"
	"github.com/kensaku-io/kensaku/internal/ranking"
	"github.com/kensaku-io/kensaku/internal/suggest"
	"github.com/kensaku-io/kensaku/internal/template"
)

// Mode selects how the raw query string is interpreted.
type Mode string

const (
	// ModeAuto picks boolean when the query carries operator syntax,
	// natural-language otherwise.
	ModeAuto Mode = "auto"
	// ModeNatural always routes through the natural-language translator.
	ModeNatural Mode = "nl"
	// ModeBoolean always routes through the boolean parser.
	ModeBoolean Mode = "boolean"
)

// Observer receives search telemetry. Implemented by the metrics package;
// nil disables observation.
type Observer interface {
	ObserveSearch(mode string, elapsed time.Duration)
	SetIndexSize(n int)
}

// Stats is a point-in-time snapshot of engine activity counters.
type Stats struct {
	TotalSearches   uint64 `json:"total_searches"`
	NaturalSearches uint64 `json:"natural_searches"`
	BooleanSearches uint64 `json:"boolean_searches"`
	IndexedRecords  int    `json:"indexed_records"`
	IndexDegraded   bool   `json:"index_degraded"`
}

// Engine coordinates query interpretation, execution, ranking, and facets
// over the live index. It is safe for concurrent use; every search runs
// against the snapshot current at its start.
type Engine struct {
	cfg        *config.Config
	logger     *zap.Logger
	idx        *index.Index
	lexer      *query.Lexer
	translator *nlquery.Translator
	ranker     *ranking.Ranker
	templates  *template.Store
	suggester  *suggest.Suggester
	observer   Observer

	totalSearches   atomic.Uint64
	naturalSearches atomic.Uint64
	booleanSearches atomic.Uint64
}

// NewEngine wires the search pipeline. templates, suggester and observer may
// be nil; the corresponding features are then disabled.
func NewEngine(cfg *config.Config, logger *zap.Logger, idx *index.Index, lexer *query.Lexer,
	translator *nlquery.Translator, ranker *ranking.Ranker,
	templates *template.Store, suggester *suggest.Suggester, observer Observer) *Engine {
	return &Engine{
		cfg:        cfg,
		logger:     logger,
		idx:        idx,
		lexer:      lexer,
		translator: translator,
		ranker:     ranker,
		templates:  templates,
		suggester:  suggester,
		observer:   observer,
	}
}

// Search runs raw under the given mode and returns one page of ranked
// results. page is 1-based; pageSize 0 takes the configured default.
func (e *Engine) Search(ctx context.Context, raw string, mode Mode, page, pageSize int) (*models.SearchResults, error) {
	start := time.Now()
	snap := e.idx.Snapshot()

	useBoolean := mode == ModeBoolean || (mode != ModeNatural && looksBoolean(raw))

	var (
		candidates []ranking.Candidate
		sortBy     string
		sortOrder  string
		err        error
	)
	if useBoolean {
		candidates, err = e.runBoolean(ctx, snap, raw)
	} else {
		criteria := e.translator.Translate(raw)
		sortBy, sortOrder = criteria.SortBy, criteria.SortOrder
		candidates, err = e.runCriteria(ctx, snap, &criteria)
	}
	if err != nil {
		return nil, err
	}

	results := e.assemble(snap, raw, candidates, sortBy, sortOrder, page, pageSize, 0, start)
	e.finishSearch(raw, useBoolean, start, snap)
	return results, nil
}

// SearchCriteria executes already-built criteria, the same path template and
// API-driven searches use.
func (e *Engine) SearchCriteria(ctx context.Context, criteria *models.SearchCriteria, page, pageSize int) (*models.SearchResults, error) {
	start := time.Now()
	snap := e.idx.Snapshot()

	candidates, err := e.runCriteria(ctx, snap, criteria)
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 && criteria.Limit > 0 {
		pageSize = criteria.Limit
	}
	// An explicit page wins; otherwise the criteria's own offset applies.
	offset := 0
	if page < 1 && criteria.Offset > 0 {
		offset = criteria.Offset
	}
	results := e.assemble(snap, "", candidates, criteria.SortBy, criteria.SortOrder, page, pageSize, offset, start)
	e.finishSearch("", false, start, snap)
	return results, nil
}

// SearchTemplate runs the named saved template.
func (e *Engine) SearchTemplate(ctx context.Context, name string, page, pageSize int) (*models.SearchResults, error) {
	if e.templates == nil {
		return nil, template.ErrNotFound
	}
	tpl, err := e.templates.Get(name)
	if err != nil {
		return nil, err
	}
	results, err := e.SearchCriteria(ctx, &tpl.Criteria, page, pageSize)
	if err != nil {
		return nil, err
	}
	results.Query = name
	return results, nil
}

func (e *Engine) runBoolean(ctx context.Context, snap *index.Snapshot, raw string) ([]ranking.Candidate, error) {
	tokens, err := e.lexer.Tokenize(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	node, err := query.Parse(tokens)
	if err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	exec := NewExecutor(snap, e.lexer, e.cfg.Search.StrictFields)
	return exec.ExecuteNode(ctx, node)
}

func (e *Engine) runCriteria(ctx context.Context, snap *index.Snapshot, criteria *models.SearchCriteria) ([]ranking.Candidate, error) {
	exec := NewExecutor(snap, e.lexer, e.cfg.Search.StrictFields)
	return exec.ExecuteCriteria(ctx, criteria)
}

// assemble ranks, facets, and paginates one result set. Facets aggregate the
// full candidate set so counts stay stable across pages.
func (e *Engine) assemble(snap *index.Snapshot, raw string, candidates []ranking.Candidate,
	sortBy, sortOrder string, page, pageSize, offset int, start time.Time) *models.SearchResults {

	if pageSize <= 0 {
		pageSize = e.cfg.Search.DefaultLimit
	}
	if pageSize > e.cfg.Search.MaxLimit {
		pageSize = e.cfg.Search.MaxLimit
	}
	if page < 1 {
		page = 1
	}

	ranked := e.ranker.Rank(candidates, sortBy, sortOrder)
	facets := AggregateFacets(candidates, nil, e.cfg.Search.FacetTopN)
	items := ranking.Paginate(ranked, (page-1)*pageSize+offset, pageSize)

	results := &models.SearchResults{
		Items:      items,
		TotalCount: len(ranked),
		Query:      raw,
		Facets:     facets,
		ElapsedMs:  float64(time.Since(start).Microseconds()) / 1000.0,
		Degraded:   snap.Degraded(),
	}
	if len(ranked) == 0 {
		results.Suggestions = e.zeroResultSuggestions(raw)
	}
	return results
}

func (e *Engine) finishSearch(raw string, boolean bool, start time.Time, snap *index.Snapshot) {
	e.totalSearches.Add(1)
	modeLabel := "natural"
	if boolean {
		e.booleanSearches.Add(1)
		modeLabel = "boolean"
	} else {
		e.naturalSearches.Add(1)
	}
	if e.suggester != nil && raw != "" {
		e.suggester.Record(raw)
	}
	if e.observer != nil {
		e.observer.ObserveSearch(modeLabel, time.Since(start))
		e.observer.SetIndexSize(snap.Len())
	}
	e.logger.Debug("Search completed",
		zap.String("query", raw),
		zap.String("mode", modeLabel),
		zap.Duration("elapsed", time.Since(start)))
}

// zeroResultSuggestions proposes alternatives when a search matched nothing.
func (e *Engine) zeroResultSuggestions(raw string) []string {
	if e.suggester == nil {
		return nil
	}
	fields := strings.Fields(strings.ToLower(raw))
	if len(fields) == 0 {
		return nil
	}
	runes := []rune(fields[0])
	if len(runes) < 2 {
		return nil
	}
	return e.suggester.Suggest(string(runes[:2]))
}

// Suggest returns query completions for a prefix.
func (e *Engine) Suggest(prefix string) []string {
	if e.suggester == nil {
		return nil
	}
	return e.suggester.Suggest(prefix)
}

// OnRecordCreated indexes a new record.
func (e *Engine) OnRecordCreated(ctx context.Context, rec *models.MediaRecord) error {
	return e.idx.Upsert(ctx, rec)
}

// OnRecordUpdated reindexes a changed record, fully replacing its postings.
func (e *Engine) OnRecordUpdated(ctx context.Context, rec *models.MediaRecord) error {
	return e.idx.Upsert(ctx, rec)
}

// OnRecordDeleted removes a record from the index.
func (e *Engine) OnRecordDeleted(ctx context.Context, id string) error {
	return e.idx.Remove(ctx, id)
}

// Record returns the indexed record by id, or nil.
func (e *Engine) Record(id string) *models.MediaRecord {
	return e.idx.Snapshot().Record(id)
}

// Templates exposes the template store for the HTTP layer.
func (e *Engine) Templates() *template.Store { return e.templates }

// Stats reports activity counters and index health.
func (e *Engine) Stats() Stats {
	snap := e.idx.Snapshot()
	return Stats{
		TotalSearches:   e.totalSearches.Load(),
		NaturalSearches: e.naturalSearches.Load(),
		BooleanSearches: e.booleanSearches.Load(),
		IndexedRecords:  snap.Len(),
		IndexDegraded:   snap.Degraded(),
	}
}

// looksBoolean reports whether raw uses operator syntax: parentheses,
// known-field scoping, or uppercase AND/OR/NOT words. A colon only counts
// when a known field name precedes it, so prose like "meeting at 12:30"
// stays on the natural-language path. Dynamic attribute queries
// (shot_type:wide) take mode=boolean explicitly.
func looksBoolean(raw string) bool {
	if strings.ContainsAny(raw, "()") {
		return true
	}
	for _, w := range strings.Fields(raw) {
		switch w {
		case "AND", "OR", "NOT":
			return true
		}
		if i := strings.Index(w, ":"); i > 0 {
			if _, ok := knownFields[strings.ToLower(w[:i])]; ok {
				return true
			}
		}
	}
	return false
}
