package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"bibneat/internal/config"
	"bibneat/internal/library"
	"bibneat/internal/logging"
	"bibneat/internal/policy"
	"bibneat/internal/reconcile"
	"bibneat/internal/registry"
	"bibneat/internal/relay"
	"bibneat/internal/services"
	"bibneat/internal/transport"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "load", "", err)
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "ensure directories", "", err)
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// logger builds the command logger; extra handlers receive the same records.
func (c *commandContext) logger(cmd *cobra.Command, extra ...slog.Handler) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	base, err := logging.NewFromSettings(logging.Settings{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Dir:     cfg.Logging.Dir,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "logging", "init", "", err)
	}
	if len(extra) > 0 {
		base = logging.TeeLogger(base, extra...)
	}
	return base, nil
}

func (c *commandContext) openLibrary(logger *slog.Logger) (*library.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := library.Open(cfg.Library.Path,
		library.WithPreserveKeys(cfg.Library.PreserveKeys),
		library.WithLogger(logger))
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "library", "open", cfg.Library.Path, err)
	}
	return store, nil
}

// withLibrary opens the library for the duration of fn.
func (c *commandContext) withLibrary(logger *slog.Logger, fn func(*library.Store) error) error {
	store, err := c.openLibrary(logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// transport returns the configured GET transport and its cleanup.
func (c *commandContext) transport(cfg *config.Config) (transport.Transport, func(), error) {
	if !cfg.RelayMode() {
		return transport.NewDirect(transport.WithUserAgent(cfg.Registries.UserAgent)), func() {}, nil
	}
	client, err := relay.Dial(cfg.Transport.RelaySocket)
	if err != nil {
		return nil, nil, wrapDialError(err, cfg.Transport.RelaySocket)
	}
	return client, func() { _ = client.Close() }, nil
}

type orchestratorOptions struct {
	policies policy.Set
	opts     []reconcile.Option
}

// orchestrator wires the registry client and reconciler for store.
func (c *commandContext) orchestrator(store *library.Store, logger *slog.Logger, o orchestratorOptions) (*reconcile.Orchestrator, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	t, cleanup, err := c.transport(cfg)
	if err != nil {
		return nil, nil, err
	}
	client, err := registry.New(t,
		registry.WithEndpoints(registry.Endpoints{
			PreprintBaseURL: cfg.Registries.PreprintBaseURL,
			ResolverBaseURL: cfg.Registries.ResolverBaseURL,
			ResolverAccept:  cfg.Registries.ResolverAccept,
		}),
		registry.WithTimeout(cfg.RequestTimeout()),
		registry.WithLogger(logger))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	opts := append([]reconcile.Option{
		reconcile.WithLogger(logger),
		reconcile.WithMaxInFlight(cfg.Reconcile.MaxInFlight),
	}, o.opts...)
	orch, err := reconcile.New(store, client, o.policies, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return orch, cleanup, nil
}

// lockPass takes the library's pass lock, mapping contention to ErrBusy.
func lockPass(store *library.Store) (*library.PassLock, error) {
	lock, err := store.LockPass()
	if errors.Is(err, library.ErrPassInProgress) {
		return nil, services.Wrap(services.ErrBusy, "library", "lock", "another bibneat pass is running on this library", err)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "library", "lock", "", err)
	}
	return lock, nil
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
		return services.Wrap(services.ErrTransport, "relay", "connect", fmt.Sprintf("socket %s not found; start it with `bibneat relay serve`", socket), err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return services.Wrap(services.ErrTransport, "relay", "connect", fmt.Sprintf("socket %s refused the connection; verify the relay is running", socket), err)
	default:
		return services.Wrap(services.ErrTransport, "relay", "connect", "", err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
