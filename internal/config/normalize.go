package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnv()
	if err := c.normalizeLibrary(); err != nil {
		return err
	}
	c.normalizeRegistries()
	if err := c.normalizeTransport(); err != nil {
		return err
	}
	return c.normalizeLogging()
}

// applyEnv lets BIBNEAT_* variables override file values.
func (c *Config) applyEnv() {
	if value, ok := os.LookupEnv("BIBNEAT_LIBRARY"); ok && strings.TrimSpace(value) != "" {
		c.Library.Path = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("BIBNEAT_TRANSPORT"); ok && strings.TrimSpace(value) != "" {
		c.Transport.Mode = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("BIBNEAT_RELAY_SOCKET"); ok && strings.TrimSpace(value) != "" {
		c.Transport.RelaySocket = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("BIBNEAT_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("BIBNEAT_MAX_IN_FLIGHT"); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			c.Reconcile.MaxInFlight = parsed
		}
	}
}

func (c *Config) normalizeLibrary() error {
	var err error
	if c.Library.Path, err = expandPath(strings.TrimSpace(c.Library.Path)); err != nil {
		return fmt.Errorf("library.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeRegistries() {
	c.Registries.PreprintBaseURL = strings.TrimSpace(c.Registries.PreprintBaseURL)
	c.Registries.ResolverBaseURL = strings.TrimSpace(c.Registries.ResolverBaseURL)
	c.Registries.ResolverAccept = strings.TrimSpace(c.Registries.ResolverAccept)
	c.Registries.UserAgent = strings.TrimSpace(c.Registries.UserAgent)
	if c.Registries.PreprintBaseURL == "" {
		c.Registries.PreprintBaseURL = defaultPreprintBaseURL
	}
	if c.Registries.ResolverBaseURL == "" {
		c.Registries.ResolverBaseURL = defaultResolverBaseURL
	}
	if c.Registries.ResolverAccept == "" {
		c.Registries.ResolverAccept = defaultResolverAccept
	}
}

func (c *Config) normalizeTransport() error {
	c.Transport.Mode = strings.ToLower(strings.TrimSpace(c.Transport.Mode))
	if c.Transport.Mode == "" {
		c.Transport.Mode = TransportDirect
	}
	var err error
	if c.Transport.RelaySocket, err = expandPath(strings.TrimSpace(c.Transport.RelaySocket)); err != nil {
		return fmt.Errorf("transport.relay_socket: %w", err)
	}
	hosts := c.Transport.RelayAllowedHosts[:0]
	for _, host := range c.Transport.RelayAllowedHosts {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			hosts = append(hosts, host)
		}
	}
	c.Transport.RelayAllowedHosts = hosts
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	var err error
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}
