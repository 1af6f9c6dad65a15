package query

import (
	"errors"
	"testing"
)

func mustParse(t *testing.T, raw string) Node {
	t.Helper()
	lx := NewLexer(1, 3)
	tokens, err := lx.Tokenize(raw)
	if err != nil {
		t.Fatalf("Tokenize(%q) error: %v", raw, err)
	}
	node, err := Parse(tokens)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", raw, err)
	}
	return node
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "or binds looser than and", raw: "a OR b AND c", want: "OR(a, AND(b, c))"},
		{name: "explicit grouping", raw: "a OR (b AND c)", want: "OR(a, AND(b, c))"},
		{name: "parens override", raw: "(a OR b) AND c", want: "AND(OR(a, b), c)"},
		{name: "not binds tightest", raw: "NOT a AND b", want: "AND(NOT(a), b)"},
		{name: "implicit and", raw: "taipei happy", want: "AND(taipei, happy)"},
		{name: "implicit and with field", raw: "taipei mood:happy", want: "AND(taipei, mood:happy)"},
		{name: "double negation", raw: "NOT NOT a", want: "NOT(NOT(a))"},
		{name: "phrase leaf", raw: `"taipei rain" report`, want: `AND("taipei rain", report)`},
		{name: "phrase words normalized", raw: `"taipei rain."`, want: `"taipei rain"`},
		{name: "range leaf", raw: "size:>1048576", want: "size:>1048576"},
		{name: "between leaf", raw: "size:100..200 AND a", want: "AND(size:100..200, a)"},
		{name: "single term", raw: "taipei", want: "taipei"},
		{name: "nested groups", raw: "((a))", want: "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustParse(t, tt.raw).String(); got != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseWhitespaceInsensitive(t *testing.T) {
	variants := []string{
		"a OR b AND c",
		"  a   OR b     AND c ",
		"a OR\tb AND\nc",
	}
	want := mustParse(t, variants[0]).String()
	for _, raw := range variants[1:] {
		if got := mustParse(t, raw).String(); got != want {
			t.Errorf("Parse(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestParseEmptyInputIsMatchAll(t *testing.T) {
	node, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(empty) error: %v", err)
	}
	if _, ok := node.(*MatchAll); !ok {
		t.Errorf("Parse(empty) = %T, want *MatchAll", node)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind ParseErrorKind
	}{
		{name: "missing close paren", raw: "(a OR b", wantKind: UnbalancedParens},
		{name: "extra close paren", raw: "a OR b)", wantKind: UnbalancedParens},
		{name: "bare close paren", raw: ")", wantKind: UnbalancedParens},
		{name: "trailing and", raw: "a AND", wantKind: DanglingOperator},
		{name: "trailing or", raw: "a OR", wantKind: DanglingOperator},
		{name: "leading or", raw: "OR a", wantKind: DanglingOperator},
		{name: "bare not", raw: "NOT", wantKind: DanglingOperator},
		{name: "doubled operator", raw: "a AND OR b", wantKind: DanglingOperator},
	}

	lx := NewLexer(1, 3)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := lx.Tokenize(tt.raw)
			if err != nil {
				t.Fatalf("Tokenize(%q) error: %v", tt.raw, err)
			}
			_, err = Parse(tokens)
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("Parse(%q) error = %v, want ParseError", tt.raw, err)
			}
			if parseErr.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", parseErr.Kind, tt.wantKind)
			}
		})
	}
}

func TestParseUnknownFieldIsNotAParseError(t *testing.T) {
	// Unknown field names defer to execution (fail-soft).
	node := mustParse(t, "bogusfield:value")
	fm, ok := node.(*FieldMatch)
	if !ok {
		t.Fatalf("got %T, want *FieldMatch", node)
	}
	if fm.Field != "bogusfield" {
		t.Errorf("field = %q", fm.Field)
	}
}
