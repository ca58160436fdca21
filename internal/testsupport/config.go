package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"bibneat/internal/config"
	"bibneat/internal/library"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Registry endpoints point at an unroutable address until WithRegistry is
// applied.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Library.Path = filepath.Join(base, "library.db")
	cfgVal.Logging.Dir = filepath.Join(base, "logs")
	cfgVal.Registries.PreprintBaseURL = "http://127.0.0.1:1/bibtex/"
	cfgVal.Registries.ResolverBaseURL = "http://127.0.0.1:1/doi/"
	cfgVal.Registries.RequestTimeoutMS = 2000
	cfgVal.Transport.RelaySocket = shortSocketPath(t)

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithRegistry points both registry endpoints at a fake registry.
func WithRegistry(reg *Registry) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Registries.PreprintBaseURL = reg.PreprintBaseURL()
		b.cfg.Registries.ResolverBaseURL = reg.ResolverBaseURL()
		b.cfg.Transport.RelayAllowedHosts = nil
	}
}

// WithPolicy edits the policy section in place.
func WithPolicy(edit func(*config.Policy)) ConfigOption {
	return func(b *configBuilder) {
		edit(&b.cfg.Policy)
	}
}

// WithRequestTimeoutMS overrides the per-request timeout.
func WithRequestTimeoutMS(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Registries.RequestTimeoutMS = ms
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Library.Path)
}

// MustOpenLibrary opens the library named by cfg and closes it on cleanup.
func MustOpenLibrary(t testing.TB, cfg *config.Config, opts ...library.Option) *library.Store {
	t.Helper()
	store, err := library.Open(cfg.Library.Path, opts...)
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// shortSocketPath returns a socket path short enough for the unix socket
// path limit, which t.TempDir paths can exceed.
func shortSocketPath(t testing.TB) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "bn")
	if err != nil {
		t.Fatalf("create socket dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "relay.sock")
}
