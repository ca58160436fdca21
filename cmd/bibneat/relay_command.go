package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bibneat/internal/relay"
	"bibneat/internal/transport"
)

func newRelayCommand(ctx *commandContext) *cobra.Command {
	relayCmd := &cobra.Command{
		Use:   "relay",
		Short: "Run or probe the lookup relay",
	}
	relayCmd.AddCommand(newRelayServeCommand(ctx))
	relayCmd.AddCommand(newRelayPingCommand(ctx))
	return relayCmd
}

func newRelayServeCommand(ctx *commandContext) *cobra.Command {
	var socket string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve registry GETs for clients configured with transport.mode = \"relay\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := strings.TrimSpace(socket)
			if path == "" {
				path = cfg.Transport.RelaySocket
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			direct := transport.NewDirect(transport.WithUserAgent(cfg.Registries.UserAgent))
			server, err := relay.NewServer(cmd.Context(), path, direct, logger,
				relay.WithAllowedHosts(cfg.Transport.RelayAllowedHosts...))
			if err != nil {
				return wrapDialError(err, path)
			}
			server.Serve()
			fmt.Fprintf(cmd.OutOrStdout(), "Relay listening on %s\n", server.Path())
			<-cmd.Context().Done()
			server.Close()
			return nil
		},
	}
	cmd.Flags().StringVar(&socket, "socket", "", "Socket path (defaults to transport.relay_socket)")
	return cmd
}

func newRelayPingCommand(ctx *commandContext) *cobra.Command {
	var socket string

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that a relay is answering",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := strings.TrimSpace(socket)
			if path == "" {
				path = cfg.Transport.RelaySocket
			}
			client, err := relay.Dial(path)
			if err != nil {
				return wrapDialError(err, path)
			}
			defer client.Close()
			resp, err := client.Ping(cmd.Context())
			if err != nil {
				return wrapDialError(err, path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Relay pid %d up since %s, %d fetches served\n",
				resp.PID, time.Unix(resp.Started, 0).Format(time.RFC3339), resp.Served)
			return nil
		},
	}
	cmd.Flags().StringVar(&socket, "socket", "", "Socket path (defaults to transport.relay_socket)")
	return cmd
}
