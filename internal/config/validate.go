package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateRegistries(); err != nil {
		return err
	}
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateReconcile(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateLibrary() error {
	if c.Library.Path == "" {
		return errors.New("library.path must be set")
	}
	return nil
}

func (c *Config) validateRegistries() error {
	if err := validateBaseURL("registries.preprint_base_url", c.Registries.PreprintBaseURL); err != nil {
		return err
	}
	if err := validateBaseURL("registries.resolver_base_url", c.Registries.ResolverBaseURL); err != nil {
		return err
	}
	if c.Registries.RequestTimeoutMS <= 0 {
		return errors.New("registries.request_timeout_ms must be positive")
	}
	return nil
}

func validateBaseURL(field, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http or https URL", field)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", field)
	}
	return nil
}

func (c *Config) validateTransport() error {
	switch c.Transport.Mode {
	case TransportDirect:
		return nil
	case TransportRelay:
		if c.Transport.RelaySocket == "" {
			return errors.New("transport.relay_socket must be set when transport.mode is relay")
		}
		return nil
	default:
		return fmt.Errorf("transport.mode must be %q or %q, got %q", TransportDirect, TransportRelay, c.Transport.Mode)
	}
}

func (c *Config) validateReconcile() error {
	if c.Reconcile.MaxInFlight < 0 {
		return errors.New("reconcile.max_in_flight must be zero (unbounded) or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
