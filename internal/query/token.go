// Package query implements the boolean query language: tokenizer,
// operator-precedence parser, and the AST consumed by the executor.
// The same tokenizer also normalizes text at index time so query-time
// and index-time analysis stay symmetric.
package query

// TokenKind classifies a lexed token.
type TokenKind int

const (
	TokenTerm TokenKind = iota
	TokenPhrase
	TokenFieldValue
	TokenRange
	TokenAnd
	TokenOr
	TokenNot
	TokenLParen
	TokenRParen
)

// String returns the token kind name for diagnostics.
func (k TokenKind) String() string {
	switch k {
	case TokenTerm:
		return "TERM"
	case TokenPhrase:
		return "PHRASE"
	case TokenFieldValue:
		return "FIELD_VALUE"
	case TokenRange:
		return "RANGE"
	case TokenAnd:
		return "AND"
	case TokenOr:
		return "OR"
	case TokenNot:
		return "NOT"
	case TokenLParen:
		return "LPAREN"
	case TokenRParen:
		return "RPAREN"
	}
	return "UNKNOWN"
}

// RangeOp is the comparison carried by a RANGE token.
type RangeOp int

const (
	RangeGreater RangeOp = iota
	RangeLess
	RangeBetween
)

// Token is a single lexed unit. Field, Value, Value2, and Op are only
// populated for FIELD_VALUE and RANGE tokens. Pos is the byte offset of the
// token in the raw query.
type Token struct {
	Kind   TokenKind
	Text   string
	Field  string
	Value  string
	Value2 string
	Op     RangeOp
	Pos    int
}
