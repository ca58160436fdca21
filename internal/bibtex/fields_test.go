package bibtex_test

import (
	"testing"

	"bibneat/internal/bibtex"
)

func mustEntry(t *testing.T, text string) bibtex.Entry {
	t.Helper()
	entry, err := bibtex.ParseEntry(text)
	if err != nil {
		t.Fatalf("ParseEntry returned error: %v", err)
	}
	return entry
}

func TestPreprintCandidate(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"eprint", `@misc{a, eprint = {2101.01234}, archivePrefix = {arXiv}}`, "2101.01234"},
		{"eprint without prefix", `@misc{a, eprint = {2101.01234v2}}`, "2101.01234v2"},
		{"other archive", `@misc{a, eprint = {123}, archivePrefix = {HAL}}`, ""},
		{"url", `@misc{a, url = {https://arxiv.org/abs/1234.5678v1}}`, "https://arxiv.org/abs/1234.5678v1"},
		{"journal note", `@article{a, journal = {arXiv:1234.56789v3 [cs.LG]}}`, "1234.56789"},
		{"none", `@article{a, doi = {10.1000/xyz}}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := bibtex.PreprintCandidate(mustEntry(t, tc.text)); got != tc.want {
				t.Fatalf("PreprintCandidate = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDOICandidate(t *testing.T) {
	if got := bibtex.DOICandidate(mustEntry(t, `@article{a, doi = {10.1000/xyz}}`)); got != "10.1000/xyz" {
		t.Fatalf("unexpected doi %q", got)
	}
	if got := bibtex.DOICandidate(mustEntry(t, `@article{a, url = {https://doi.org/10.1000/abc}}`)); got != "https://doi.org/10.1000/abc" {
		t.Fatalf("unexpected doi from url %q", got)
	}
	if got := bibtex.DOICandidate(mustEntry(t, `@article{a, title = {x}}`)); got != "" {
		t.Fatalf("expected no doi, got %q", got)
	}
}

func TestFindDOI(t *testing.T) {
	payload := "@misc{x,\n  doi = {10.48550/ARXIV.2101.01234},\n}"
	if got := bibtex.FindDOI(payload); got != "10.48550/ARXIV.2101.01234" {
		t.Fatalf("unexpected doi %q", got)
	}
	if got := bibtex.FindDOI("published as 10.1000/xyz, see there"); got != "10.1000/xyz" {
		t.Fatalf("unexpected scanned doi %q", got)
	}
	if got := bibtex.FindDOI("@misc{x, title = {none}}"); got != "" {
		t.Fatalf("expected empty doi, got %q", got)
	}
}

func TestRekey(t *testing.T) {
	got, err := bibtex.Rekey("@article{Abbott_2016_new,\n  title = {X},\n}", "Abbott2016")
	if err != nil {
		t.Fatalf("Rekey returned error: %v", err)
	}
	want := "@article{Abbott2016,\n  title = {X},\n}"
	if got != want {
		t.Fatalf("Rekey = %q, want %q", got, want)
	}
	if _, err := bibtex.Rekey("@article{nokey}", "k"); err == nil {
		t.Fatal("expected error for entry without key separator")
	}
}
