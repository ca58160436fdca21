package registry_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bibneat/internal/identifier"
	"bibneat/internal/registry"
	"bibneat/internal/transport"
)

const arxivPayload = "@misc{smith2021,\n  title = {A Preprint},\n  eprint = {2101.01234},\n}\n"

func newClient(t *testing.T, server *httptest.Server, opts ...registry.Option) *registry.Client {
	t.Helper()
	opts = append([]registry.Option{registry.WithEndpoints(registry.Endpoints{
		PreprintBaseURL: server.URL + "/bibtex/",
		ResolverBaseURL: server.URL + "/doi",
	})}, opts...)
	client, err := registry.New(transport.NewDirect(), opts...)
	if err != nil {
		t.Fatalf("registry.New returned error: %v", err)
	}
	return client
}

func TestNewRequiresTransport(t *testing.T) {
	if _, err := registry.New(nil); err == nil {
		t.Fatal("expected error when transport missing")
	}
}

func TestFetchPreprintFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bibtex/2101.01234" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(arxivPayload))
	}))
	t.Cleanup(server.Close)

	result := newClient(t, server).Fetch(context.Background(), identifier.MustNormalize("arXiv:2101.01234v3", identifier.Preprint))
	if result.Status != registry.StatusFound || result.Payload != arxivPayload {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestFetchResolverSendsAcceptHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/doi/10.1000/xyz" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != registry.DefaultResolverAccept {
			t.Errorf("unexpected Accept header %q", got)
		}
		_, _ = w.Write([]byte("@article{x, doi = {10.1000/xyz}}"))
	}))
	t.Cleanup(server.Close)

	result := newClient(t, server).Fetch(context.Background(), identifier.MustNormalize("https://doi.org/10.1000/xyz", identifier.Resolver))
	if !result.Found() {
		t.Fatalf("expected found, got %+v", result)
	}
}

func TestFetchClassifiesStatuses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   registry.Status
	}{
		{"created", http.StatusCreated, "@misc{a,}", registry.StatusFound},
		{"not found", http.StatusNotFound, "", registry.StatusNotFound},
		{"server error", http.StatusInternalServerError, "oops", registry.StatusUnknownResponse},
		{"redirect", http.StatusNotModified, "", registry.StatusUnknownResponse},
		{"empty body", http.StatusOK, "  \n", registry.StatusUnknownResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(server.Close)

			result := newClient(t, server).Fetch(context.Background(), identifier.MustNormalize("1234.5678", identifier.Preprint))
			if result.Status != tc.want {
				t.Fatalf("status = %s, want %s", result.Status, tc.want)
			}
			if result.Status != registry.StatusFound && result.Payload != "" {
				t.Fatalf("payload must be empty for %s", result.Status)
			}
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	start := time.Now()
	result := newClient(t, server, registry.WithTimeout(50*time.Millisecond)).
		Fetch(context.Background(), identifier.MustNormalize("1234.5678", identifier.Preprint))
	if result.Status != registry.StatusTimeout {
		t.Fatalf("expected timeout, got %+v", result)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
}

func TestFetchTransportError(t *testing.T) {
	failing := transport.Func(func(ctx context.Context, url string, headers map[string]string) (*transport.Response, error) {
		return nil, errors.New("connection refused")
	})
	client, err := registry.New(failing)
	if err != nil {
		t.Fatalf("registry.New returned error: %v", err)
	}
	result := client.Fetch(context.Background(), identifier.MustNormalize("10.1000/xyz", identifier.Resolver))
	if result.Status != registry.StatusTransportError || result.Err == nil {
		t.Fatalf("expected transport error, got %+v", result)
	}
}

func TestFetchInvalidIdentifierSkipsDispatch(t *testing.T) {
	var calls atomic.Int32
	counting := transport.Func(func(ctx context.Context, url string, headers map[string]string) (*transport.Response, error) {
		calls.Add(1)
		return &transport.Response{Status: http.StatusOK, Body: "x"}, nil
	})
	client, err := registry.New(counting)
	if err != nil {
		t.Fatalf("registry.New returned error: %v", err)
	}
	for _, id := range []identifier.Identifier{
		{},
		{Kind: identifier.Preprint, Value: "https://example.com/x"},
		{Kind: identifier.Resolver, Value: "1234.5678"},
	} {
		if result := client.Fetch(context.Background(), id); result.Status != registry.StatusInvalidIdentifier {
			t.Fatalf("Fetch(%+v) = %s, want invalid_identifier", id, result.Status)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no dispatch, got %d calls", calls.Load())
	}
}

func TestTargetUsesPublicEndpointsByDefault(t *testing.T) {
	client, err := registry.New(transport.NewDirect())
	if err != nil {
		t.Fatalf("registry.New returned error: %v", err)
	}
	url, headers, err := client.Target(identifier.MustNormalize("1234.5678", identifier.Preprint))
	if err != nil || url != "https://arxiv.org/bibtex/1234.5678" || headers != nil {
		t.Fatalf("unexpected preprint target %q %v %v", url, headers, err)
	}
	url, headers, err = client.Target(identifier.MustNormalize("10.1000/xyz", identifier.Resolver))
	if err != nil || url != "https://doi.org/10.1000/xyz" {
		t.Fatalf("unexpected resolver target %q %v", url, err)
	}
	if headers["Accept"] != "text/bibliography; style=bibtex; locale=en-GB" {
		t.Fatalf("unexpected resolver headers %v", headers)
	}
}
