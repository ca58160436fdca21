package bibtex

import (
	"regexp"
	"strings"
)

var (
	arxivNote = regexp.MustCompile(`(?i)arxiv:\s*([a-z\-]+(?:\.[a-z]{2})?/\d{7}|\d{4}\.\d{4,5})(v\d+)?`)
	doiInText = regexp.MustCompile(`10\.\d{4,9}(?:\.\d+)*/[^\s,}"]+`)
)

// PreprintCandidate returns the raw arXiv identifier carried by the entry, or
// "" when it has none. The eprint field wins when its archive prefix is arXiv
// or absent; otherwise arxiv.org URLs and "arXiv:" notes are consulted.
func PreprintCandidate(e Entry) string {
	if eprint, ok := e.Field("eprint"); ok && eprint != "" {
		prefix, _ := e.Field("archiveprefix")
		if prefix == "" {
			prefix, _ = e.Field("eprinttype")
		}
		if prefix == "" || strings.EqualFold(prefix, "arxiv") {
			return eprint
		}
	}
	if url, ok := e.Field("url"); ok && strings.Contains(strings.ToLower(url), "arxiv.org/") {
		return url
	}
	for _, name := range []string{"journal", "note", "howpublished"} {
		value, ok := e.Field(name)
		if !ok {
			continue
		}
		if m := arxivNote.FindStringSubmatch(value); m != nil {
			return m[1]
		}
	}
	return ""
}

// DOICandidate returns the raw DOI carried by the entry, or "".
func DOICandidate(e Entry) string {
	if doi, ok := e.Field("doi"); ok && doi != "" {
		return doi
	}
	if url, ok := e.Field("url"); ok && strings.Contains(strings.ToLower(url), "doi.org/") {
		return url
	}
	return ""
}

// FindDOI extracts the DOI from a fetched BibTeX payload. It prefers the doi
// field of the first entry and falls back to scanning the text.
func FindDOI(payload string) string {
	if entry, err := ParseEntry(payload); err == nil {
		if doi := DOICandidate(entry); doi != "" {
			return doi
		}
	}
	return doiInText.FindString(payload)
}

// Rekey replaces the cite key of the first entry in raw with key.
func Rekey(raw, key string) (string, error) {
	at := strings.IndexByte(raw, '@')
	if at < 0 {
		return "", ErrNoEntry
	}
	open := strings.IndexAny(raw[at:], "{(")
	if open < 0 {
		return "", &SyntaxError{Offset: at, Msg: "expected { or ("}
	}
	open += at
	comma := strings.IndexByte(raw[open:], ',')
	if comma < 0 {
		return "", &SyntaxError{Offset: open, Msg: "entry has no key separator"}
	}
	comma += open
	return raw[:open+1] + key + raw[comma:], nil
}
