// Package config loads, normalizes, and validates bibneat configuration.
//
// Configuration lives in TOML. Load looks at the --config flag path, then
// ~/.config/bibneat/config.toml, then ./bibneat.toml, decodes over Default(),
// expands ~ in paths, applies BIBNEAT_* environment overrides and validates
// the result. CreateSample writes the embedded sample_config.toml for
// `bibneat config init`.
package config
