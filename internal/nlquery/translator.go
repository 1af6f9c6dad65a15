package nlquery

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/kensaku-io/kensaku/internal/models"
	"github.com/kensaku-io/kensaku/internal/query"
)

// Translator converts free natural-language phrases into SearchCriteria.
// It never fails: in the worst case the whole phrase becomes one free-text
// term matched against title, description, tags, and keywords.
type Translator struct {
	rules []Rule
	lexer *query.Lexer
	now   func() time.Time
}

// NewTranslator creates a translator over the given ordered rule list. A nil
// rules slice uses DefaultRules. The lexer provides the same token
// normalization the index uses.
func NewTranslator(rules []Rule, lexer *query.Lexer) *Translator {
	if rules == nil {
		rules = DefaultRules()
	}
	if lexer == nil {
		lexer = query.NewLexer(1, 3)
	}
	return &Translator{rules: rules, lexer: lexer, now: time.Now}
}

var (
	excludeRe = regexp.MustCompile(`(?:^|\s)-([\p{L}\p{N}]+)`)
	phraseRe  = regexp.MustCompile(`"([^"]+)"`)

	stopwords = map[string]bool{
		"the": true, "a": true, "an": true, "of": true, "in": true, "on": true,
		"with": true, "and": true, "or": true, "for": true, "to": true,
		"is": true, "are": true, "was": true, "were": true, "me": true,
		"show": true, "find": true, "all": true, "from": true, "some": true,
		"files": true, "file": true,
		"的": true, "了": true, "在": true, "是": true, "有": true,
		"和": true, "與": true, "或": true,
	}
)

// Translate parses a natural-language phrase into structured criteria.
func (t *Translator) Translate(phrase string) models.SearchCriteria {
	criteria := models.SearchCriteria{SortBy: "relevance", SortOrder: "desc"}

	text := strings.ToLower(strings.Join(strings.Fields(phrase), " "))
	if text == "" {
		return criteria
	}
	original := text

	// Quoted spans become exact phrases.
	for _, m := range phraseRe.FindAllStringSubmatch(text, -1) {
		if p := strings.TrimSpace(m[1]); p != "" {
			criteria.Phrases = append(criteria.Phrases, p)
		}
	}
	text = phraseRe.ReplaceAllString(text, " ")

	// Leading-dash words are exclusions.
	for _, m := range excludeRe.FindAllStringSubmatch(text, -1) {
		criteria.ExcludeTerms = append(criteria.ExcludeTerms, m[1])
	}
	text = excludeRe.ReplaceAllString(text, " ")

	criteria.DateRange, text = extractDateRange(text, t.now())
	criteria.SizeRange, text = extractSizeRange(text)
	criteria.SortBy, criteria.SortOrder, text = extractSort(text)

	criteria.FieldFilters, text = t.applyRules(text)

	// Residual tokens become free-text terms with OR-of-any-field semantics.
	for _, tok := range t.lexer.AnalyzeText(text) {
		if stopwords[tok] || isNumeric(tok) || len(tok) == 1 && tok[0] < 0x80 {
			continue
		}
		criteria.Terms = append(criteria.Terms, tok)
	}
	criteria.Terms = dedupe(criteria.Terms)

	// Worst case: nothing was recognized, fall back to a single term. An
	// extracted sort directive counts as recognized; "sort by date" alone
	// means match-all in date order, not a search for those words.
	if criteria.IsEmpty() && criteria.SortBy == "relevance" && criteria.SortOrder == "desc" {
		criteria.Terms = []string{original}
	}
	return criteria
}

// ruleMatch is one candidate keyword hit within the working text.
type ruleMatch struct {
	start, end int
	ruleIdx    int
}

// applyRules scans text against the ordered rule tables. Overlapping matches
// resolve by longest pattern first, ties by rule insertion order. Matched
// spans are removed from the returned text.
func (t *Translator) applyRules(text string) (map[string]models.FieldPredicate, string) {
	var matches []ruleMatch
	for idx, rule := range t.rules {
		from := 0
		for {
			rel := indexWordFrom(text, rule.Pattern, from)
			if rel < 0 {
				break
			}
			matches = append(matches, ruleMatch{start: rel, end: rel + len(rule.Pattern), ruleIdx: idx})
			from = rel + len(rule.Pattern)
		}
	}
	if len(matches) == 0 {
		return nil, text
	}

	sort.Slice(matches, func(i, j int) bool {
		li, lj := matches[i].end-matches[i].start, matches[j].end-matches[j].start
		if li != lj {
			return li > lj
		}
		if matches[i].ruleIdx != matches[j].ruleIdx {
			return matches[i].ruleIdx < matches[j].ruleIdx
		}
		return matches[i].start < matches[j].start
	})

	filters := make(map[string]models.FieldPredicate)
	taken := make([]bool, len(text))
	for _, m := range matches {
		if overlapsTaken(taken, m.start, m.end) {
			continue
		}
		rule := t.rules[m.ruleIdx]
		if _, exists := filters[rule.Field]; !exists {
			filters[rule.Field] = models.FieldPredicate{Op: models.OpContains, Value: rule.Value}
		}
		for i := m.start; i < m.end; i++ {
			taken[i] = true
		}
		text = maskSpan(text, m.start, m.end)
	}
	if len(filters) == 0 {
		filters = nil
	}
	return filters, text
}

var sortFieldRe = regexp.MustCompile(`\bsort(?:ed)?\s+by\s+(date|time|name|title|size|type|relevance)\b`)

// extractSort pulls sort directives out of the text. Defaults to relevance
// descending when no directive is present.
func extractSort(text string) (sortBy, sortOrder, remaining string) {
	sortBy, sortOrder = "relevance", "desc"

	if m := sortFieldRe.FindStringSubmatchIndex(text); m != nil {
		field := text[m[2]:m[3]]
		switch field {
		case "time":
			sortBy = "date"
		case "title":
			sortBy = "name"
		default:
			sortBy = field
		}
		text = maskSpan(text, m[0], m[1])
	}

	orderPhrases := []struct{ phrase, order string }{
		{"newest first", "desc"},
		{"latest first", "desc"},
		{"oldest first", "asc"},
		{"descending", "desc"},
		{"ascending", "asc"},
	}
	for _, op := range orderPhrases {
		idx := indexWord(text, op.phrase)
		if idx < 0 {
			continue
		}
		sortOrder = op.order
		if strings.HasSuffix(op.phrase, "first") && sortBy == "relevance" {
			sortBy = "date"
		}
		text = maskSpan(text, idx, idx+len(op.phrase))
		break
	}
	return sortBy, sortOrder, text
}

// indexWord finds pattern in text at a word boundary (for ASCII patterns;
// CJK patterns match as substrings). Returns -1 when absent.
func indexWord(text, pattern string) int {
	return indexWordFrom(text, pattern, 0)
}

func indexWordFrom(text, pattern string, from int) int {
	for from <= len(text)-len(pattern) {
		rel := strings.Index(text[from:], pattern)
		if rel < 0 {
			return -1
		}
		start := from + rel
		end := start + len(pattern)
		if boundaryBefore(text, start, pattern) && boundaryAfter(text, end, pattern) {
			return start
		}
		from = start + 1
	}
	return -1
}

func boundaryBefore(text string, start int, pattern string) bool {
	if start == 0 {
		return true
	}
	first, _ := firstRune(pattern)
	if isCJKRune(first) {
		return true
	}
	r, _ := lastRuneBefore(text, start)
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(text string, end int, pattern string) bool {
	if end >= len(text) {
		return true
	}
	last, _ := lastRuneBefore(pattern, len(pattern))
	if isCJKRune(last) {
		return true
	}
	r, _ := firstRune(text[end:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func firstRune(s string) (rune, int) {
	for _, r := range s {
		return r, len(string(r))
	}
	return 0, 0
}

func lastRuneBefore(s string, end int) (rune, int) {
	var last rune
	var size int
	for _, r := range s[:end] {
		last = r
		size = len(string(r))
	}
	return last, size
}

func isCJKRune(r rune) bool {
	return unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r)
}

// maskSpan blanks [start, end) with spaces, preserving offsets for
// subsequent span matches.
func maskSpan(text string, start, end int) string {
	return text[:start] + strings.Repeat(" ", end-start) + text[end:]
}

func overlapsTaken(taken []bool, start, end int) bool {
	for i := start; i < end && i < len(taken); i++ {
		if taken[i] {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func dedupe(in []string) []string {
	if len(in) < 2 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
