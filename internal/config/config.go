package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Library locates the record store.
type Library struct {
	Path         string `toml:"path"`
	PreserveKeys bool   `toml:"preserve_keys"`
}

// Registries holds lookup endpoints and request limits.
type Registries struct {
	PreprintBaseURL  string `toml:"preprint_base_url"`
	ResolverBaseURL  string `toml:"resolver_base_url"`
	ResolverAccept   string `toml:"resolver_accept"`
	RequestTimeoutMS int    `toml:"request_timeout_ms"`
	UserAgent        string `toml:"user_agent"`
}

// Transport selects how GETs leave the process.
type Transport struct {
	Mode              string   `toml:"mode"` // direct or relay
	RelaySocket       string   `toml:"relay_socket"`
	RelayAllowedHosts []string `toml:"relay_allowed_hosts"`
}

// Reconcile tunes batch lookups.
type Reconcile struct {
	// MaxInFlight caps concurrent lookups per batch. 0 means unbounded.
	MaxInFlight int `toml:"max_in_flight"`
}

// KindPolicy is the replace/follow policy for one identifier kind.
type KindPolicy struct {
	ReplaceOnFound    bool `toml:"replace_on_found"`
	FollowToPublished bool `toml:"follow_to_published"`
}

// Policy groups per-kind policies.
type Policy struct {
	ImmediateFollow bool       `toml:"immediate_follow"`
	Preprint        KindPolicy `toml:"preprint"`
	Resolver        KindPolicy `toml:"resolver"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
}

// Config encapsulates all configuration values for bibneat.
type Config struct {
	Library    Library    `toml:"library"`
	Registries Registries `toml:"registries"`
	Transport  Transport  `toml:"transport"`
	Reconcile  Reconcile  `toml:"reconcile"`
	Policy     Policy     `toml:"policy"`
	Logging    Logging    `toml:"logging"`
}

// RequestTimeout returns the per-request lookup timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Registries.RequestTimeoutMS) * time.Millisecond
}

// RelayMode reports whether lookups go through the relay.
func (c *Config) RelayMode() bool {
	return c.Transport.Mode == TransportRelay
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the library and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Library.Path)}
	if c.Logging.Dir != "" {
		dirs = append(dirs, c.Logging.Dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}
