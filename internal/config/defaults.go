package config

const (
	defaultConfigPath = "~/.config/bibneat/config.toml"
	projectConfigName = "bibneat.toml"

	defaultLibraryPath = "~/.local/share/bibneat/library.db"
	defaultLogDir      = "~/.local/share/bibneat/logs"
	defaultRelaySocket = "~/.local/share/bibneat/relay.sock"

	defaultPreprintBaseURL  = "https://arxiv.org/bibtex/"
	defaultResolverBaseURL  = "https://doi.org/"
	defaultResolverAccept   = "text/bibliography; style=bibtex; locale=en-GB"
	defaultRequestTimeoutMS = 20000
	defaultUserAgent        = "bibneat/1 (+https://github.com/bibneat/bibneat)"

	TransportDirect = "direct"
	TransportRelay  = "relay"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Library: Library{
			Path:         defaultLibraryPath,
			PreserveKeys: true,
		},
		Registries: Registries{
			PreprintBaseURL:  defaultPreprintBaseURL,
			ResolverBaseURL:  defaultResolverBaseURL,
			ResolverAccept:   defaultResolverAccept,
			RequestTimeoutMS: defaultRequestTimeoutMS,
			UserAgent:        defaultUserAgent,
		},
		Transport: Transport{
			Mode:              TransportDirect,
			RelaySocket:       defaultRelaySocket,
			RelayAllowedHosts: []string{"arxiv.org", "doi.org"},
		},
		Policy: Policy{
			ImmediateFollow: true,
			Preprint: KindPolicy{
				ReplaceOnFound:    false,
				FollowToPublished: false,
			},
			Resolver: KindPolicy{
				ReplaceOnFound: false,
			},
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
			Dir:    defaultLogDir,
		},
	}
}
