package testsupport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// Response is a canned registry reply.
type Response struct {
	Status int
	Body   string
	// Delay holds the reply back. A delay longer than the client timeout
	// produces a timeout outcome.
	Delay time.Duration
}

// Registry is an httptest server standing in for arXiv and doi.org.
// Unknown identifiers answer 404.
type Registry struct {
	server *httptest.Server

	mu        sync.Mutex
	preprints map[string]Response
	resolvers map[string]Response
	requests  []string
	accepts   []string
	done      chan struct{}
}

// NewRegistry starts a fake registry and closes it on cleanup.
func NewRegistry(t testing.TB) *Registry {
	t.Helper()
	reg := &Registry{
		preprints: make(map[string]Response),
		resolvers: make(map[string]Response),
		done:      make(chan struct{}),
	}
	reg.server = httptest.NewServer(http.HandlerFunc(reg.serve))
	t.Cleanup(func() {
		close(reg.done)
		reg.server.Close()
	})
	return reg
}

// PreprintBaseURL is the preprint endpoint, ending in a slash.
func (r *Registry) PreprintBaseURL() string {
	return r.server.URL + "/bibtex/"
}

// ResolverBaseURL is the resolver endpoint, ending in a slash.
func (r *Registry) ResolverBaseURL() string {
	return r.server.URL + "/doi/"
}

// Preprint registers a reply for an arXiv identifier.
func (r *Registry) Preprint(id string, resp Response) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preprints[id] = resp
	return r
}

// Resolver registers a reply for a DOI.
func (r *Registry) Resolver(doi string, resp Response) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[doi] = resp
	return r
}

// Requests returns the request paths served so far.
func (r *Registry) Requests() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.requests...)
}

// ResolverAccepts returns the Accept headers sent to the resolver endpoint.
func (r *Registry) ResolverAccepts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.accepts...)
}

// Count returns how many requests hit path.
func (r *Registry) Count(path string) int {
	n := 0
	for _, p := range r.Requests() {
		if p == path {
			n++
		}
	}
	return n
}

func (r *Registry) serve(w http.ResponseWriter, req *http.Request) {
	path := req.URL.Path
	r.mu.Lock()
	r.requests = append(r.requests, path)
	var (
		resp Response
		ok   bool
	)
	switch {
	case strings.HasPrefix(path, "/bibtex/"):
		resp, ok = r.preprints[strings.TrimPrefix(path, "/bibtex/")]
	case strings.HasPrefix(path, "/doi/"):
		r.accepts = append(r.accepts, req.Header.Get("Accept"))
		resp, ok = r.resolvers[strings.TrimPrefix(path, "/doi/")]
	}
	r.mu.Unlock()

	if !ok {
		http.NotFound(w, req)
		return
	}
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-req.Context().Done():
			return
		case <-r.done:
			return
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/x-bibtex")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp.Body))
}
