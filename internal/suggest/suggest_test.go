package suggest

import (
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestSuggestFromHistory(t *testing.T) {
	s := New(nil, 10, 100, nil, zap.NewNop())
	s.Record("taipei night")
	s.Record("taipei rain")
	s.Record("tokyo street")
	s.Close()

	got := s.Suggest("ta")
	if len(got) == 0 || got[0] != "taipei" {
		t.Fatalf("Suggest(ta) = %v, want taipei first", got)
	}
	for _, g := range got {
		if g == "tokyo" {
			t.Errorf("tokyo should not match prefix ta: %v", got)
		}
	}
}

func TestSuggestFrequencyThenAlpha(t *testing.T) {
	s := New(nil, 10, 100, nil, zap.NewNop())
	s.Record("night market")
	s.Record("night market")
	s.Record("nature walk")
	s.Close()

	got := s.Suggest("n")
	if len(got) < 2 {
		t.Fatalf("Suggest(n) = %v", got)
	}
	if got[0] != "night" {
		t.Errorf("most frequent first: got %v", got)
	}
	// "market" ties "nature" at count 1 but does not match the prefix.
	if got[1] != "nature" {
		t.Errorf("alphabetical tie-break: got %v", got)
	}
}

func TestSuggestVocabularyFallback(t *testing.T) {
	s := New([]string{"happy", "harbor", "calm"}, 10, 100, nil, zap.NewNop())
	defer s.Close()

	got := s.Suggest("ha")
	if len(got) != 2 || got[0] != "happy" || got[1] != "harbor" {
		t.Fatalf("Suggest(ha) = %v, want [happy harbor]", got)
	}
}

func TestSuggestCap(t *testing.T) {
	s := New([]string{"aa", "ab", "ac", "ad"}, 2, 100, nil, zap.NewNop())
	defer s.Close()

	if got := s.Suggest("a"); len(got) != 2 {
		t.Fatalf("Suggest(a) = %v, want 2 entries", got)
	}
}

func TestHistoryTrimming(t *testing.T) {
	s := New(nil, 10, 2, nil, zap.NewNop())
	s.Record("alpha")
	s.Record("bravo")
	s.Record("charlie")
	s.Close()

	if got := s.Suggest("al"); len(got) != 0 {
		t.Errorf("oldest token should be trimmed, got %v", got)
	}
	if got := s.Suggest("ch"); len(got) != 1 {
		t.Errorf("newest token should survive, got %v", got)
	}
}

func TestBlankAndShortQueriesIgnored(t *testing.T) {
	s := New(nil, 10, 100, nil, zap.NewNop())
	s.Record("   ")
	s.Record("a b")
	s.Close()

	if got := s.Suggest(""); len(got) != 0 {
		t.Errorf("expected empty model, got %v", got)
	}
}

func TestRecordDuringCloseDoesNotPanic(t *testing.T) {
	s := New(nil, 10, 100, nil, zap.NewNop())

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			s.Record("taipei night")
		}()
	}
	close(start)
	s.Close()
	wg.Wait()

	// Records after Close are dropped silently.
	s.Record("after close")
	if got := s.Suggest("af"); len(got) != 0 {
		t.Errorf("record after close should be a no-op, got %v", got)
	}
}

type recordingSink struct {
	mu      sync.Mutex
	queries []string
	fail    bool
}

func (r *recordingSink) AppendHistory(q string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("sink down")
	}
	r.queries = append(r.queries, q)
	return nil
}

func TestSinkReceivesQueries(t *testing.T) {
	sink := &recordingSink{}
	s := New(nil, 10, 100, sink, zap.NewNop())
	s.Record("harbor sunset")
	s.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.queries) != 1 || sink.queries[0] != "harbor sunset" {
		t.Errorf("sink got %v", sink.queries)
	}
}

func TestSinkFailureKeepsModel(t *testing.T) {
	sink := &recordingSink{fail: true}
	s := New(nil, 10, 100, sink, zap.NewNop())
	s.Record("still works")
	s.Close()

	if got := s.Suggest("st"); len(got) == 0 {
		t.Error("in-memory model should survive sink failures")
	}
}
