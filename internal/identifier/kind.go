package identifier

import (
	"fmt"
	"strings"
)

// Kind tags an identifier with the registry that resolves it.
type Kind int

const (
	KindUnknown Kind = iota
	Preprint
	Resolver
)

// Kinds lists the supported kinds in pass order.
var Kinds = []Kind{Preprint, Resolver}

func (k Kind) String() string {
	switch k {
	case Preprint:
		return "preprint"
	case Resolver:
		return "resolver"
	default:
		return "unknown"
	}
}

// Registry returns the user-facing registry name for the kind.
func (k Kind) Registry() string {
	switch k {
	case Preprint:
		return "arXiv"
	case Resolver:
		return "DOI"
	default:
		return "unknown"
	}
}

// ParseKind accepts the kind name or the registry alias.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "preprint", "arxiv":
		return Preprint, nil
	case "resolver", "doi":
		return Resolver, nil
	default:
		return KindUnknown, fmt.Errorf("unknown identifier kind %q", value)
	}
}
