package query

import "fmt"

// LexErrorKind identifies the class of tokenization failure.
type LexErrorKind string

const (
	UnterminatedPhrase LexErrorKind = "unterminated_phrase"
	MalformedRange     LexErrorKind = "malformed_range"
)

// LexError is a tokenization failure with the byte offset where it occurred.
type LexError struct {
	Kind   LexErrorKind
	Offset int
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at offset %d: %s", e.Offset, e.Kind)
}

// ParseErrorKind identifies the class of parse failure.
type ParseErrorKind string

const (
	UnbalancedParens ParseErrorKind = "unbalanced_parens"
	DanglingOperator ParseErrorKind = "dangling_operator"
)

// ParseError is a parse failure with the byte position of the offending token.
type ParseError struct {
	Kind     ParseErrorKind
	Position int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Position, e.Kind)
}
