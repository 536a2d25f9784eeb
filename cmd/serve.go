package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/server"
)

func newServeCmd(g *globals) *cobra.Command {
	var overridePort int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			if cmd.Flags().Changed("port") {
				if overridePort <= 0 || overridePort > 65535 {
					return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
				}
				cfg.Server.Port = overridePort
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.close(); err != nil {
					slog.Warn("close operator secret store", "err", err)
				}
			}()

			srv, err := server.New(cfg, server.Deps{
				Router:      a.router,
				Credentials: a.resolver,
				Ranker:      a.ranker,
			})
			if err != nil {
				return err
			}

			slog.Info("gateway configured",
				"backends", a.registry.Names(),
				"operator_source", cfg.Operator.Source,
				"allow_user_tokens", cfg.Operator.UserTokensAllowed(),
				"dynamic_selection", cfg.Chat.DynamicSelectionEnabled(),
			)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().IntVar(&overridePort, "port", 0, "override server port from configuration")
	return cmd
}
