// Package index implements the in-memory inverted index over media records.
// Readers work against immutable point-in-time snapshots; writers serialize
// through a single mutation queue and publish new posting segments with a
// copy-on-write swap, so in-flight queries never observe partial updates.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kensaku-io/kensaku/internal/models"
	"github.com/kensaku-io/kensaku/internal/query"
)

// Field names carrying their own posting segments. FieldAll is the virtual
// segment covering every text field, used for unscoped terms.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldTags        = "tags"
	FieldKeywords    = "keywords"
	FieldCategory    = "category"
	FieldAll         = "all"
)

// TextFields lists the concrete per-field segments, excluding the virtual
// all-fields segment.
var TextFields = []string{FieldTitle, FieldDescription, FieldTags, FieldKeywords, FieldCategory}

// Posting records one document containing a token in one field, with the
// token positions used for phrase adjacency.
type Posting struct {
	ID        string `json:"id"`
	Positions []int  `json:"positions,omitempty"`
}

// fieldSegment maps token to its posting list, kept sorted by record id.
// Segments are immutable once published in a snapshot.
type fieldSegment map[string][]Posting

// Snapshot is an immutable point-in-time view of the index.
type Snapshot struct {
	records  map[string]*models.MediaRecord
	fields   map[string]fieldSegment
	degraded bool
}

// Lookup returns the posting list for token in field. The returned slice is
// shared and must not be mutated.
func (s *Snapshot) Lookup(field, token string) []Posting {
	seg, ok := s.fields[field]
	if !ok {
		return nil
	}
	return seg[token]
}

// Record returns the stored record for id, or nil.
func (s *Snapshot) Record(id string) *models.MediaRecord {
	return s.records[id]
}

// IDs returns all indexed record ids in sorted order.
func (s *Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Each calls fn for every stored record until fn returns false.
func (s *Snapshot) Each(fn func(*models.MediaRecord) bool) {
	for _, rec := range s.records {
		if !fn(rec) {
			return
		}
	}
}

// Len returns the number of indexed records.
func (s *Snapshot) Len() int { return len(s.records) }

// Degraded reports whether this snapshot is the empty fallback installed
// after a failed restore.
func (s *Snapshot) Degraded() bool { return s.degraded }

type mutationKind int

const (
	mutUpsert mutationKind = iota
	mutRemove
)

type mutation struct {
	kind   mutationKind
	record *models.MediaRecord
	id     string
	done   chan error
}

// maxBatch bounds how many queued mutations coalesce into one snapshot swap.
const maxBatch = 64

// ErrClosed is returned by writes against a closed index.
var ErrClosed = errors.New("index is closed")

// Index owns the record store and posting segments. All writes flow through
// a single worker goroutine; reads grab the current snapshot and never block.
type Index struct {
	lexer  *query.Lexer
	logger *zap.Logger

	snap atomic.Pointer[Snapshot]

	mu     sync.Mutex // guards closed + send
	mutCh  chan mutation
	closed bool
	wg     sync.WaitGroup
}

// New creates an empty index using lexer for ingest-time tokenization, so
// index-time and query-time normalization stay symmetric.
func New(lexer *query.Lexer, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := &Index{
		lexer:  lexer,
		logger: logger,
		mutCh:  make(chan mutation, maxBatch),
	}
	idx.snap.Store(emptySnapshot(false))
	idx.wg.Add(1)
	go idx.mutationLoop()
	return idx
}

func emptySnapshot(degraded bool) *Snapshot {
	fields := make(map[string]fieldSegment, len(TextFields)+1)
	for _, f := range TextFields {
		fields[f] = fieldSegment{}
	}
	fields[FieldAll] = fieldSegment{}
	return &Snapshot{
		records:  map[string]*models.MediaRecord{},
		fields:   fields,
		degraded: degraded,
	}
}

// Snapshot returns the current immutable view.
func (idx *Index) Snapshot() *Snapshot {
	return idx.snap.Load()
}

// Upsert inserts or fully replaces the record. A replace purges all old
// postings before new ones are added; partial updates never occur.
func (idx *Index) Upsert(ctx context.Context, rec *models.MediaRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("upsert: record must have an id")
	}
	return idx.enqueue(ctx, mutation{kind: mutUpsert, record: rec.Clone(), id: rec.ID})
}

// Remove deletes the record and all its postings. Removing an unknown id is
// a no-op.
func (idx *Index) Remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("remove: id is empty")
	}
	return idx.enqueue(ctx, mutation{kind: mutRemove, id: id})
}

func (idx *Index) enqueue(ctx context.Context, m mutation) error {
	m.done = make(chan error, 1)
	// The send stays under the mutex so Close cannot close mutCh between
	// the closed check and the send.
	idx.mu.Lock()
	if idx.closed {
		idx.mu.Unlock()
		return ErrClosed
	}
	select {
	case idx.mutCh <- m:
		idx.mu.Unlock()
	case <-ctx.Done():
		idx.mu.Unlock()
		return ctx.Err()
	}
	select {
	case err := <-m.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the mutation worker after draining queued writes.
func (idx *Index) Close() {
	idx.mu.Lock()
	if idx.closed {
		idx.mu.Unlock()
		return
	}
	idx.closed = true
	close(idx.mutCh)
	idx.mu.Unlock()
	idx.wg.Wait()
}

// mutationLoop applies queued mutations, coalescing bursts into a single
// snapshot swap to amortize the copy cost.
func (idx *Index) mutationLoop() {
	defer idx.wg.Done()
	for m, ok := <-idx.mutCh; ok; m, ok = <-idx.mutCh {
		batch := []mutation{m}
	drain:
		for len(batch) < maxBatch {
			select {
			case next, more := <-idx.mutCh:
				if !more {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		idx.applyBatch(batch)
	}
}

// applyBatch builds the next snapshot from the current one. Record store and
// every affected field segment are copied before mutation, then the new
// snapshot is published atomically.
func (idx *Index) applyBatch(batch []mutation) {
	cur := idx.snap.Load()

	next := &Snapshot{
		records: make(map[string]*models.MediaRecord, len(cur.records)+len(batch)),
		fields:  make(map[string]fieldSegment, len(cur.fields)),
	}
	for id, rec := range cur.records {
		next.records[id] = rec
	}
	for name, seg := range cur.fields {
		copied := make(fieldSegment, len(seg))
		for tok, posts := range seg {
			copied[tok] = posts
		}
		next.fields[name] = copied
	}

	for _, m := range batch {
		if old := next.records[m.id]; old != nil {
			idx.purgeRecord(next, old)
			delete(next.records, m.id)
		}
		if m.kind == mutUpsert {
			next.records[m.id] = m.record
			idx.addRecord(next, m.record)
		}
	}

	idx.snap.Store(next)
	for _, m := range batch {
		m.done <- nil
	}
	idx.logger.Debug("index batch applied",
		zap.Int("mutations", len(batch)),
		zap.Int("records", len(next.records)),
	)
}

// fieldTokens analyzes one record into per-field token streams. Multi-value
// fields (tags, keywords) leave a position gap between values so phrase
// adjacency never crosses a value boundary.
func (idx *Index) fieldTokens(rec *models.MediaRecord) map[string][]string {
	joinValues := func(values []string) []string {
		var out []string
		for _, v := range values {
			toks := idx.lexer.AnalyzeText(v)
			if len(out) > 0 && len(toks) > 0 {
				out = append(out, "") // gap marker, not indexed
			}
			out = append(out, toks...)
		}
		return out
	}
	return map[string][]string{
		FieldTitle:       idx.lexer.AnalyzeText(rec.Title),
		FieldDescription: idx.lexer.AnalyzeText(rec.Description),
		FieldTags:        joinValues(rec.Tags),
		FieldKeywords:    joinValues(rec.Keywords),
		FieldCategory:    idx.lexer.AnalyzeText(rec.Category),
	}
}

func (idx *Index) addRecord(snap *Snapshot, rec *models.MediaRecord) {
	tokensByField := idx.fieldTokens(rec)
	allPositions := make(map[string][]int)
	base := 0
	for _, field := range TextFields {
		tokens := tokensByField[field]
		positions := make(map[string][]int)
		for pos, tok := range tokens {
			if tok == "" {
				continue
			}
			positions[tok] = append(positions[tok], pos)
			allPositions[tok] = append(allPositions[tok], base+pos)
		}
		seg := snap.fields[field]
		for tok, ps := range positions {
			seg[tok] = insertPosting(seg[tok], Posting{ID: rec.ID, Positions: ps})
		}
		base += len(tokens) + 1
	}
	all := snap.fields[FieldAll]
	for tok, ps := range allPositions {
		all[tok] = insertPosting(all[tok], Posting{ID: rec.ID, Positions: ps})
	}
}

func (idx *Index) purgeRecord(snap *Snapshot, rec *models.MediaRecord) {
	tokensByField := idx.fieldTokens(rec)
	for _, field := range TextFields {
		seg := snap.fields[field]
		for _, tok := range tokensByField[field] {
			if tok == "" {
				continue
			}
			if posts, ok := seg[tok]; ok {
				seg[tok] = removePosting(posts, rec.ID)
				if len(seg[tok]) == 0 {
					delete(seg, tok)
				}
			}
		}
	}
	all := snap.fields[FieldAll]
	for _, tokens := range tokensByField {
		for _, tok := range tokens {
			if tok == "" {
				continue
			}
			if posts, ok := all[tok]; ok {
				all[tok] = removePosting(posts, rec.ID)
				if len(all[tok]) == 0 {
					delete(all, tok)
				}
			}
		}
	}
}

// insertPosting returns a new posting list with p added (or replaced),
// keeping id order. The input list is never mutated: it may be shared with a
// published snapshot.
func insertPosting(posts []Posting, p Posting) []Posting {
	i := sort.Search(len(posts), func(i int) bool { return posts[i].ID >= p.ID })
	out := make([]Posting, 0, len(posts)+1)
	out = append(out, posts[:i]...)
	out = append(out, p)
	if i < len(posts) && posts[i].ID == p.ID {
		out = append(out, posts[i+1:]...)
	} else {
		out = append(out, posts[i:]...)
	}
	return out
}

// removePosting returns a new posting list without id.
func removePosting(posts []Posting, id string) []Posting {
	i := sort.Search(len(posts), func(i int) bool { return posts[i].ID >= id })
	if i >= len(posts) || posts[i].ID != id {
		return posts
	}
	out := make([]Posting, 0, len(posts)-1)
	out = append(out, posts[:i]...)
	out = append(out, posts[i+1:]...)
	return out
}
