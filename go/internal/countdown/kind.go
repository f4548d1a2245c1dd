package countdown

import (
	"fmt"
	"strings"
)

// Kind identifies one of the three lifecycle countdowns.
type Kind int

const (
	KindBeginning Kind = iota
	KindRestart
	KindEnd
)

// Kinds lists every countdown kind in resolver precedence order.
var Kinds = []Kind{KindBeginning, KindRestart, KindEnd}

func (k Kind) String() string {
	switch k {
	case KindBeginning:
		return "beginning"
	case KindRestart:
		return "restart"
	case KindEnd:
		return "end"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a case-insensitive kind name to its Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "beginning", "begin":
		return KindBeginning, nil
	case "restart":
		return KindRestart, nil
	case "end", "the_end", "theend", "the-end":
		return KindEnd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}
