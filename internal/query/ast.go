package query

import (
	"fmt"
	"strings"

	"github.com/kensaku-io/kensaku/internal/models"
)

// Node is a boolean query AST node. Evaluation is pure; depth is bounded by
// the token count of the query.
type Node interface {
	fmt.Stringer
	node()
}

// MatchAll matches every indexed record. It is the sentinel for empty input.
type MatchAll struct{}

// Term matches records containing the term in any field.
type Term struct {
	Value string
}

// Phrase matches records where Words appear in order at adjacent positions
// within a single field.
type Phrase struct {
	Words []string
}

// FieldMatch matches records whose field satisfies the comparison. Value2 is
// only set for OpBetween. Unknown fields resolve to zero matches at
// execution time.
type FieldMatch struct {
	Field  string
	Op     models.CompareOp
	Value  string
	Value2 string
}

// And matches records matching every child.
type And struct {
	Children []Node
}

// Or matches records matching any child.
type Or struct {
	Children []Node
}

// Not matches the complement of Child within the indexed universe.
type Not struct {
	Child Node
}

func (*MatchAll) node()   {}
func (*Term) node()       {}
func (*Phrase) node()     {}
func (*FieldMatch) node() {}
func (*And) node()        {}
func (*Or) node()         {}
func (*Not) node()        {}

func (*MatchAll) String() string { return "*" }

func (n *Term) String() string { return n.Value }

func (n *Phrase) String() string { return `"` + strings.Join(n.Words, " ") + `"` }

func (n *FieldMatch) String() string {
	switch n.Op {
	case models.OpGreaterThan:
		return fmt.Sprintf("%s:>%s", n.Field, n.Value)
	case models.OpLessThan:
		return fmt.Sprintf("%s:<%s", n.Field, n.Value)
	case models.OpBetween:
		return fmt.Sprintf("%s:%s..%s", n.Field, n.Value, n.Value2)
	default:
		return fmt.Sprintf("%s:%s", n.Field, n.Value)
	}
}

func (n *And) String() string { return "AND(" + joinNodes(n.Children) + ")" }

func (n *Or) String() string { return "OR(" + joinNodes(n.Children) + ")" }

func (n *Not) String() string { return "NOT(" + n.Child.String() + ")" }

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}
