// Package suggest produces query completions from a fixed keyword vocabulary
// and the recent search history.
package suggest

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// HistorySink persists recorded queries. Recording failures are logged, never
// surfaced to the searcher.
type HistorySink interface {
	AppendHistory(query string) error
}

// Suggester ranks completions for a prefix. History recording is
// asynchronous so the search path never blocks on it.
type Suggester struct {
	mu     sync.RWMutex
	counts map[string]int
	order  []string // insertion order, oldest first, for history trimming

	vocabulary  []string
	maxResults  int
	historySize int

	recordMu sync.Mutex // guards closed + sends on recordCh
	closed   bool
	recordCh chan string
	done     chan struct{}
	sink     HistorySink
	logger   *zap.Logger
}

// New creates a suggester. vocabulary is the static keyword list (typically
// the translation rule values); sink may be nil.
func New(vocabulary []string, maxResults, historySize int, sink HistorySink, logger *zap.Logger) *Suggester {
	if maxResults <= 0 {
		maxResults = 10
	}
	if historySize <= 0 {
		historySize = 1000
	}
	s := &Suggester{
		counts:      make(map[string]int),
		vocabulary:  dedupeSorted(vocabulary),
		maxResults:  maxResults,
		historySize: historySize,
		recordCh:    make(chan string, 256),
		done:        make(chan struct{}),
		sink:        sink,
		logger:      logger,
	}
	go s.recordLoop()
	return s
}

// Record notes a completed search. It never blocks; when the buffer is full
// or the suggester is closed the query is dropped.
func (s *Suggester) Record(query string) {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return
	}
	// The send stays under the mutex so Close cannot close recordCh between
	// the closed check and the send.
	s.recordMu.Lock()
	defer s.recordMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.recordCh <- query:
	default:
	}
}

// Close stops the recording worker after draining buffered queries. Later
// Record calls are no-ops.
func (s *Suggester) Close() {
	s.recordMu.Lock()
	if s.closed {
		s.recordMu.Unlock()
		return
	}
	s.closed = true
	close(s.recordCh)
	s.recordMu.Unlock()
	<-s.done
}

func (s *Suggester) recordLoop() {
	defer close(s.done)
	for q := range s.recordCh {
		s.ingest(q)
		if s.sink != nil {
			if err := s.sink.AppendHistory(q); err != nil {
				s.logger.Warn("Failed to persist search history", zap.Error(err))
			}
		}
	}
}

func (s *Suggester) ingest(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tok := range strings.Fields(query) {
		if len(tok) < 2 {
			continue
		}
		if s.counts[tok] == 0 {
			s.order = append(s.order, tok)
		}
		s.counts[tok]++
	}
	// Trim oldest tokens once the history model outgrows its configured size.
	for len(s.order) > s.historySize {
		old := s.order[0]
		s.order = s.order[1:]
		delete(s.counts, old)
	}
}

// Suggest returns completions for prefix: history tokens by descending
// frequency, then vocabulary matches, ties alphabetical, capped at the
// configured maximum. An empty prefix returns the most frequent history
// tokens.
func (s *Suggester) Suggest(prefix string) []string {
	prefix = strings.TrimSpace(strings.ToLower(prefix))

	s.mu.RLock()
	type scored struct {
		token string
		count int
	}
	var hits []scored
	for tok, n := range s.counts {
		if prefix == "" || strings.HasPrefix(tok, prefix) {
			hits = append(hits, scored{tok, n})
		}
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].count != hits[j].count {
			return hits[i].count > hits[j].count
		}
		return hits[i].token < hits[j].token
	})

	seen := make(map[string]bool, len(hits))
	out := make([]string, 0, s.maxResults)
	for _, h := range hits {
		if len(out) >= s.maxResults {
			return out
		}
		out = append(out, h.token)
		seen[h.token] = true
	}

	if prefix == "" {
		return out
	}
	for _, v := range s.vocabulary {
		if len(out) >= s.maxResults {
			break
		}
		if strings.HasPrefix(v, prefix) && !seen[v] {
			out = append(out, v)
		}
	}
	return out
}

func dedupeSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
