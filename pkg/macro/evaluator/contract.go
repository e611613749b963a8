package evaluator

import (
	"fmt"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
	merrors "github.com/sambeau/seqmacro/pkg/macro/errors"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

// Any accepts an argument of every kind.
const Any = value.NotSet

// Contract describes the arguments a function accepts. Build one with
// Fixed, Variadic or Between; the zero Contract checks nothing.
type Contract struct {
	MinArgs int
	MaxArgs int          // -1 for no upper bound
	Args    []value.Kind // expected kind per position; the last entry repeats

	defined bool
}

// Fixed is a contract for exactly len(kinds) arguments.
func Fixed(kinds ...value.Kind) Contract {
	return Contract{MinArgs: len(kinds), MaxArgs: len(kinds), Args: kinds, defined: true}
}

// Variadic is a contract for at least minArgs arguments.
func Variadic(minArgs int, kinds ...value.Kind) Contract {
	return Contract{MinArgs: minArgs, MaxArgs: -1, Args: kinds, defined: true}
}

// Between is a contract for minArgs to maxArgs arguments.
func Between(minArgs, maxArgs int, kinds ...value.Kind) Contract {
	return Contract{MinArgs: minArgs, MaxArgs: maxArgs, Args: kinds, defined: true}
}

// IsZero reports whether the contract checks nothing.
func (c Contract) IsZero() bool { return !c.defined }

// Arity renders the accepted argument count, e.g. "2", "1 to 3", "at least 1".
func (c Contract) Arity() string {
	switch {
	case c.MaxArgs < 0:
		return fmt.Sprintf("at least %d", c.MinArgs)
	case c.MinArgs == c.MaxArgs:
		return fmt.Sprintf("%d", c.MinArgs)
	}
	return fmt.Sprintf("%d to %d", c.MinArgs, c.MaxArgs)
}

func (c Contract) kindAt(i int) value.Kind {
	switch {
	case len(c.Args) == 0:
		return Any
	case i < len(c.Args):
		return c.Args[i]
	}
	return c.Args[len(c.Args)-1]
}

// Check validates the evaluated arguments of a call. A wrong count or an
// argument of the wrong kind is an error; a NotSet argument where a typed
// one is expected sets notSet instead. An Int is accepted for a Float.
func (c Contract) Check(n *ast.Node) (notSet bool, err error) {
	got := len(n.Children)
	if got < c.MinArgs || (c.MaxArgs >= 0 && got > c.MaxArgs) {
		return false, merrors.New("EXEC-0008", map[string]any{"Name": n.Name, "Expected": c.Arity(), "Got": got})
	}

	for i, arg := range n.Children {
		want, have := c.kindAt(i), arg.Value.Kind()
		switch {
		case want == Any, have == want:
		case have == value.NotSet:
			notSet = true
		case want == value.Float && have == value.Int:
		default:
			return false, merrors.New("EXEC-0009", map[string]any{
				"Index":    i + 1,
				"Name":     n.Name,
				"Expected": want.String(),
				"Got":      have.String(),
			})
		}
	}
	return notSet, nil
}
