package identifier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalid marks input that cannot be normalized into an identifier.
var ErrInvalid = errors.New("invalid identifier")

// InvalidError describes why raw input was rejected.
type InvalidError struct {
	Raw    string
	Kind   Kind
	Reason string
}

func (e *InvalidError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("invalid %s identifier: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("invalid %s identifier %q: %s", e.Kind, e.Raw, e.Reason)
}

func (e *InvalidError) Is(target error) bool {
	return target == ErrInvalid
}

// Identifier is a normalized registry identifier.
type Identifier struct {
	Kind  Kind
	Value string
}

func (id Identifier) String() string {
	return id.Value
}

// IsZero reports whether the identifier carries no value.
func (id Identifier) IsZero() bool {
	return id.Kind == KindUnknown || id.Value == ""
}

var (
	preprintPrefixes = []string{
		"https://arxiv.org/abs/",
		"http://arxiv.org/abs/",
		"https://www.arxiv.org/abs/",
		"http://www.arxiv.org/abs/",
		"https://export.arxiv.org/abs/",
		"http://export.arxiv.org/abs/",
		"https://arxiv.org/pdf/",
		"http://arxiv.org/pdf/",
		"arxiv.org/abs/",
		"arxiv.org/pdf/",
		"arxiv:",
	}
	resolverPrefixes = []string{
		"https://doi.org/",
		"http://doi.org/",
		"https://dx.doi.org/",
		"http://dx.doi.org/",
		"doi.org/",
		"dx.doi.org/",
		"doi:",
	}

	versionSuffix  = regexp.MustCompile(`v\d+$`)
	newStyleID     = regexp.MustCompile(`^\d{4}\.\d{4,5}$`)
	oldStyleID     = regexp.MustCompile(`^[a-z][a-z\-]*(\.[A-Z]{2})?/\d{7}$`)
	doiPattern     = regexp.MustCompile(`^10\.\d{4,9}(\.\d+)*/\S+$`)
	urlSchemeMatch = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*://`)
)

// Normalize strips registry decoration from raw and validates the result
// against the identifier grammar for kind.
func Normalize(raw string, kind Kind) (Identifier, error) {
	value := strings.TrimSpace(norm.NFKC.String(raw))
	if value == "" {
		return Identifier{}, &InvalidError{Raw: raw, Kind: kind, Reason: "empty"}
	}
	switch kind {
	case Preprint:
		return normalizePreprint(raw, value)
	case Resolver:
		return normalizeResolver(raw, value)
	default:
		return Identifier{}, &InvalidError{Raw: raw, Kind: kind, Reason: "unsupported kind"}
	}
}

// MustNormalize is Normalize for trusted literals; it panics on invalid input.
func MustNormalize(raw string, kind Kind) Identifier {
	id, err := Normalize(raw, kind)
	if err != nil {
		panic(err)
	}
	return id
}

func normalizePreprint(raw, value string) (Identifier, error) {
	value = stripPrefix(value, preprintPrefixes)
	value = stripQuery(value)
	value = strings.TrimSuffix(value, "/")
	if trimmed, ok := cutSuffixFold(value, ".pdf"); ok {
		value = trimmed
	}
	value = versionSuffix.ReplaceAllString(value, "")
	value = strings.TrimSpace(value)
	if value == "" {
		return Identifier{}, &InvalidError{Raw: raw, Kind: Preprint, Reason: "empty after stripping prefix"}
	}
	if urlSchemeMatch.MatchString(value) {
		return Identifier{}, &InvalidError{Raw: raw, Kind: Preprint, Reason: "not an arXiv address"}
	}
	if !newStyleID.MatchString(value) && !oldStyleID.MatchString(value) {
		return Identifier{}, &InvalidError{Raw: raw, Kind: Preprint, Reason: "not an arXiv identifier"}
	}
	return Identifier{Kind: Preprint, Value: value}, nil
}

func normalizeResolver(raw, value string) (Identifier, error) {
	value = strings.TrimSpace(stripPrefix(value, resolverPrefixes))
	if value == "" {
		return Identifier{}, &InvalidError{Raw: raw, Kind: Resolver, Reason: "empty after stripping prefix"}
	}
	if urlSchemeMatch.MatchString(value) {
		return Identifier{}, &InvalidError{Raw: raw, Kind: Resolver, Reason: "not a DOI resolver address"}
	}
	if !doiPattern.MatchString(value) {
		return Identifier{}, &InvalidError{Raw: raw, Kind: Resolver, Reason: "not a DOI"}
	}
	return Identifier{Kind: Resolver, Value: value}, nil
}

// stripPrefix removes the first matching prefix, ignoring case.
func stripPrefix(value string, prefixes []string) string {
	lower := strings.ToLower(value)
	for _, prefix := range prefixes {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(value[len(prefix):])
		}
	}
	return value
}

func stripQuery(value string) string {
	if idx := strings.IndexAny(value, "?#"); idx >= 0 {
		return value[:idx]
	}
	return value
}

func cutSuffixFold(value, suffix string) (string, bool) {
	if len(value) < len(suffix) {
		return value, false
	}
	if strings.EqualFold(value[len(value)-len(suffix):], suffix) {
		return value[:len(value)-len(suffix)], true
	}
	return value, false
}
