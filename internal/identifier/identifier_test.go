package identifier_test

import (
	"errors"
	"testing"

	"bibneat/internal/identifier"
)

func TestNormalizePreprint(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"https://arxiv.org/abs/1234.5678v2", "1234.5678"},
		{"1234.5678", "1234.5678"},
		{"  arXiv:2101.01234v11 ", "2101.01234"},
		{"http://arxiv.org/abs/hep-th/9901001v3", "hep-th/9901001"},
		{"https://arxiv.org/pdf/2101.01234v1.pdf", "2101.01234"},
		{"https://export.arxiv.org/abs/math.GT/0309136", "math.GT/0309136"},
		{"ARXIV.ORG/ABS/1234.5678", "1234.5678"},
		{"１２３４.５６７８", "1234.5678"},
	}
	for _, tc := range cases {
		got, err := identifier.Normalize(tc.raw, identifier.Preprint)
		if err != nil {
			t.Fatalf("Normalize(%q) returned error: %v", tc.raw, err)
		}
		if got.Value != tc.want || got.Kind != identifier.Preprint {
			t.Fatalf("Normalize(%q) = %+v, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeResolver(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"  https://doi.org/10.1000/xyz ", "10.1000/xyz"},
		{"10.1000/xyz", "10.1000/xyz"},
		{"doi:10.1103/PhysRevLett.116.061102", "10.1103/PhysRevLett.116.061102"},
		{"http://dx.doi.org/10.1016/j.cell.2020.01.001", "10.1016/j.cell.2020.01.001"},
	}
	for _, tc := range cases {
		got, err := identifier.Normalize(tc.raw, identifier.Resolver)
		if err != nil {
			t.Fatalf("Normalize(%q) returned error: %v", tc.raw, err)
		}
		if got.Value != tc.want || got.Kind != identifier.Resolver {
			t.Fatalf("Normalize(%q) = %+v, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := map[identifier.Kind][]string{
		identifier.Preprint: {"https://arxiv.org/abs/1234.5678v2", "hep-th/9901001v1", "arXiv:2101.01234"},
		identifier.Resolver: {"https://doi.org/10.1000/xyz", "doi:10.1000/ABC.v2", "10.1000/xyz"},
	}
	for kind, raws := range inputs {
		for _, raw := range raws {
			first, err := identifier.Normalize(raw, kind)
			if err != nil {
				t.Fatalf("Normalize(%q) returned error: %v", raw, err)
			}
			second, err := identifier.Normalize(first.Value, kind)
			if err != nil {
				t.Fatalf("Normalize(%q) second pass returned error: %v", first.Value, err)
			}
			if first != second {
				t.Fatalf("Normalize not idempotent for %q: %+v then %+v", raw, first, second)
			}
		}
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	cases := []struct {
		raw  string
		kind identifier.Kind
	}{
		{"", identifier.Preprint},
		{"   ", identifier.Resolver},
		{"https://arxiv.org/abs/", identifier.Preprint},
		{"https://doi.org/", identifier.Resolver},
		{"https://example.com/paper", identifier.Preprint},
		{"https://example.com/10.1000/xyz", identifier.Resolver},
		{"not an id", identifier.Preprint},
		{"1234.5678", identifier.Resolver},
		{"10.1000/xyz", identifier.KindUnknown},
	}
	for _, tc := range cases {
		_, err := identifier.Normalize(tc.raw, tc.kind)
		if err == nil {
			t.Fatalf("Normalize(%q, %s) expected error", tc.raw, tc.kind)
		}
		if !errors.Is(err, identifier.ErrInvalid) {
			t.Fatalf("Normalize(%q, %s) error %v does not match ErrInvalid", tc.raw, tc.kind, err)
		}
	}
}

func TestParseKind(t *testing.T) {
	for input, want := range map[string]identifier.Kind{
		"preprint": identifier.Preprint,
		"arXiv":    identifier.Preprint,
		"DOI":      identifier.Resolver,
		"resolver": identifier.Resolver,
	} {
		got, err := identifier.ParseKind(input)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %v, %v; want %v", input, got, err, want)
		}
	}
	if _, err := identifier.ParseKind("isbn"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
