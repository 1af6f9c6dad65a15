package query

import (
	"strings"
	"unicode"
)

// Segmenter splits a CJK run into words. When supplied, it replaces the
// built-in bounded n-gram expansion.
type Segmenter interface {
	Segment(text string) []string
}

// Lexer turns raw query text into a typed token stream and normalizes free
// text into index tokens. NGram bounds control how CJK runs without
// delimiting whitespace are expanded into substring-matchable grams.
type Lexer struct {
	ngramMin  int
	ngramMax  int
	segmenter Segmenter
}

// NewLexer creates a lexer with the given CJK n-gram bounds.
func NewLexer(ngramMin, ngramMax int) *Lexer {
	if ngramMin < 1 {
		ngramMin = 1
	}
	if ngramMax < ngramMin {
		ngramMax = ngramMin
	}
	return &Lexer{ngramMin: ngramMin, ngramMax: ngramMax}
}

// WithSegmenter injects an external CJK segmenter and returns the lexer.
func (l *Lexer) WithSegmenter(s Segmenter) *Lexer {
	l.segmenter = s
	return l
}

// Tokenize converts raw query text into tokens. Quoted phrases preserve
// internal whitespace. Terms, field values, and phrase words are lowercased.
func (l *Lexer) Tokenize(raw string) ([]Token, error) {
	var tokens []Token
	runes := []rune(raw)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, Token{Kind: TokenLParen, Text: "(", Pos: byteOffset(runes, i)})
			i++
		case r == ')':
			tokens = append(tokens, Token{Kind: TokenRParen, Text: ")", Pos: byteOffset(runes, i)})
			i++
		case r == '"':
			start := i
			phrase, next, ok := scanQuoted(runes, i)
			if !ok {
				return nil, &LexError{Kind: UnterminatedPhrase, Offset: byteOffset(runes, start)}
			}
			tokens = append(tokens, Token{
				Kind: TokenPhrase,
				Text: strings.ToLower(phrase),
				Pos:  byteOffset(runes, start),
			})
			i = next
		default:
			start := i
			for i < len(runes) && !unicode.IsSpace(runes[i]) &&
				runes[i] != '(' && runes[i] != ')' && runes[i] != '"' {
				i++
			}
			word := string(runes[start:i])
			pos := byteOffset(runes, start)

			// field:"quoted value"
			if strings.HasSuffix(word, ":") && i < len(runes) && runes[i] == '"' {
				phrase, next, ok := scanQuoted(runes, i)
				if !ok {
					return nil, &LexError{Kind: UnterminatedPhrase, Offset: byteOffset(runes, i)}
				}
				tokens = append(tokens, Token{
					Kind:  TokenFieldValue,
					Text:  word + `"` + phrase + `"`,
					Field: strings.ToLower(strings.TrimSuffix(word, ":")),
					Value: strings.ToLower(phrase),
					Pos:   pos,
				})
				i = next
				continue
			}

			toks, err := l.classifyWord(word, pos)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, toks...)
		}
	}
	return tokens, nil
}

// classifyWord turns a bare word into operator, field, range, or term tokens.
// A single CJK word may expand into several TERM tokens (n-gram candidates).
func (l *Lexer) classifyWord(word string, pos int) ([]Token, error) {
	switch strings.ToUpper(word) {
	case "AND":
		return []Token{{Kind: TokenAnd, Text: word, Pos: pos}}, nil
	case "OR":
		return []Token{{Kind: TokenOr, Text: word, Pos: pos}}, nil
	case "NOT":
		return []Token{{Kind: TokenNot, Text: word, Pos: pos}}, nil
	}

	if idx := strings.Index(word, ":"); idx > 0 {
		field := strings.ToLower(word[:idx])
		rest := word[idx+1:]
		if isFieldName(field) {
			return l.classifyFieldValue(word, field, rest, pos)
		}
	}

	var tokens []Token
	for _, term := range l.expandTerms(word) {
		tokens = append(tokens, Token{Kind: TokenTerm, Text: term, Pos: pos})
	}
	return tokens, nil
}

func (l *Lexer) classifyFieldValue(word, field, rest string, pos int) ([]Token, error) {
	switch {
	case rest == "":
		return nil, &LexError{Kind: MalformedRange, Offset: pos}
	case strings.HasPrefix(rest, ">"):
		v := rest[1:]
		if v == "" {
			return nil, &LexError{Kind: MalformedRange, Offset: pos}
		}
		return []Token{{Kind: TokenRange, Text: word, Field: field, Op: RangeGreater, Value: strings.ToLower(v), Pos: pos}}, nil
	case strings.HasPrefix(rest, "<"):
		v := rest[1:]
		if v == "" {
			return nil, &LexError{Kind: MalformedRange, Offset: pos}
		}
		return []Token{{Kind: TokenRange, Text: word, Field: field, Op: RangeLess, Value: strings.ToLower(v), Pos: pos}}, nil
	case strings.Contains(rest, ".."):
		parts := strings.SplitN(rest, "..", 2)
		if parts[0] == "" || parts[1] == "" {
			return nil, &LexError{Kind: MalformedRange, Offset: pos}
		}
		return []Token{{
			Kind: TokenRange, Text: word, Field: field, Op: RangeBetween,
			Value: strings.ToLower(parts[0]), Value2: strings.ToLower(parts[1]), Pos: pos,
		}}, nil
	default:
		return []Token{{Kind: TokenFieldValue, Text: word, Field: field, Value: strings.ToLower(rest), Pos: pos}}, nil
	}
}

// PhraseWords splits quoted phrase text into words with the same edge
// normalization indexed tokens receive, so "taipei rain." still lines up
// with stored postings. No n-gram expansion happens here: each word must
// keep exactly one position for the adjacency check.
func PhraseWords(text string) []string {
	var out []string
	for _, w := range strings.Fields(text) {
		if w = normalizeWord(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// AnalyzeText normalizes free text into an ordered token stream for indexing.
// The slice index of each token is its position, used for phrase adjacency.
func (l *Lexer) AnalyzeText(text string) []string {
	var out []string
	for _, word := range strings.Fields(text) {
		out = append(out, l.expandIndexTerms(word)...)
	}
	return out
}

// expandTerms normalizes a query word into one or more term candidates.
// CJK runs longer than the n-gram bound split into consecutive max-length
// grams so substring queries still match the index-time grams.
func (l *Lexer) expandTerms(word string) []string {
	var out []string
	for _, seg := range splitScriptRuns(normalizeWord(word)) {
		if !seg.cjk {
			if seg.text != "" {
				out = append(out, seg.text)
			}
			continue
		}
		if l.segmenter != nil {
			out = append(out, l.segmenter.Segment(seg.text)...)
			continue
		}
		runes := []rune(seg.text)
		if len(runes) <= l.ngramMax {
			out = append(out, seg.text)
			continue
		}
		for i := 0; i+l.ngramMax <= len(runes); i++ {
			out = append(out, string(runes[i:i+l.ngramMax]))
		}
	}
	return out
}

// expandIndexTerms normalizes a document word into index tokens. CJK runs emit
// every n-gram of each bounded length so any query gram finds a posting.
func (l *Lexer) expandIndexTerms(word string) []string {
	var out []string
	for _, seg := range splitScriptRuns(normalizeWord(word)) {
		if !seg.cjk {
			if seg.text != "" {
				out = append(out, seg.text)
			}
			continue
		}
		if l.segmenter != nil {
			out = append(out, l.segmenter.Segment(seg.text)...)
			continue
		}
		runes := []rune(seg.text)
		for n := l.ngramMin; n <= l.ngramMax; n++ {
			if n > len(runes) {
				break
			}
			for i := 0; i+n <= len(runes); i++ {
				out = append(out, string(runes[i:i+n]))
			}
		}
	}
	return out
}

type scriptRun struct {
	text string
	cjk  bool
}

// splitScriptRuns partitions a word into maximal CJK and non-CJK runs.
func splitScriptRuns(word string) []scriptRun {
	var runs []scriptRun
	var cur []rune
	curCJK := false
	for _, r := range word {
		c := isCJK(r)
		if len(cur) > 0 && c != curCJK {
			runs = append(runs, scriptRun{text: string(cur), cjk: curCJK})
			cur = cur[:0]
		}
		cur = append(cur, r)
		curCJK = c
	}
	if len(cur) > 0 {
		runs = append(runs, scriptRun{text: string(cur), cjk: curCJK})
	}
	return runs
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// normalizeWord lowercases and strips ASCII punctuation from the edges,
// keeping interior characters (hyphens, apostrophes) intact.
func normalizeWord(word string) string {
	word = strings.ToLower(word)
	return strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// scanQuoted reads a double-quoted span starting at runes[start] == '"'.
// Returns the content, the index after the closing quote, and whether the
// quote was terminated.
func scanQuoted(runes []rune, start int) (string, int, bool) {
	for j := start + 1; j < len(runes); j++ {
		if runes[j] == '"' {
			return string(runes[start+1 : j]), j + 1, true
		}
	}
	return "", 0, false
}

// byteOffset converts a rune index into a byte offset in the original string.
func byteOffset(runes []rune, idx int) int {
	return len(string(runes[:idx]))
}

// isFieldName reports whether s looks like a field identifier rather than a
// term containing a colon (e.g. a timestamp). Unknown-but-plausible field
// names are allowed here; resolution is deferred to execution.
func isFieldName(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return s != ""
}
