package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bibneat/internal/config"
	"bibneat/internal/testsupport"
)

const sampleLibrary = `@misc{alpha2021,
  title = {Alpha Preprint},
  eprint = {2101.00001v1},
  archivePrefix = {arXiv},
}

@misc{beta2021,
  title = {Beta Preprint},
  eprint = {2101.00002},
}

@article{Abbott2016,
  title = {Observation of Gravitational Waves},
  doi = {10.1103/PhysRevLett.116.061102},
}
`

const alphaPayload = `@misc{arxiv210100001,
  title = {Alpha Preprint (registry)},
  eprint = {2101.00001},
  doi = {10.1000/alpha},
}`

const alphaPublished = `@article{Alpha_2022,
  title = {Alpha Published},
  journal = {Journal of Tests},
  doi = {10.1000/alpha},
}`

type cliTestEnv struct {
	cfg        *config.Config
	reg        *testsupport.Registry
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	for _, key := range []string{"BIBNEAT_LIBRARY", "BIBNEAT_TRANSPORT", "BIBNEAT_RELAY_SOCKET", "BIBNEAT_LOG_LEVEL", "BIBNEAT_MAX_IN_FLIGHT"} {
		t.Setenv(key, "")
	}

	reg := testsupport.NewRegistry(t)
	cfg := testsupport.NewConfig(t, testsupport.WithRegistry(reg))
	configPath := filepath.Join(base, "bibneat.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, reg: reg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[library]
path = %q
preserve_keys = true

[registries]
preprint_base_url = %q
resolver_base_url = %q
request_timeout_ms = %d

[transport]
relay_socket = %q

[logging]
dir = %q
level = "warn"
`,
		cfg.Library.Path,
		cfg.Registries.PreprintBaseURL,
		cfg.Registries.ResolverBaseURL,
		cfg.Registries.RequestTimeoutMS,
		cfg.Transport.RelaySocket,
		cfg.Logging.Dir,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (env *cliTestEnv) writeBib(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(env.baseDir, "refs.bib")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write bib: %v", err)
	}
	return path
}

func (env *cliTestEnv) importSample(t *testing.T) {
	t.Helper()
	if _, _, err := runCLI(t, []string{"import", env.writeBib(t, sampleLibrary)}, env.configPath); err != nil {
		t.Fatalf("import: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
