package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iyulab/huntdesk/internal/hunt"
	"github.com/iyulab/huntdesk/internal/server"
	"github.com/iyulab/huntdesk/internal/sigma"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the hunting API on localhost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = a.cfg.Server.Port
			}

			engine, err := sigma.NewWithDir(a.cfg.Hunt.RulesDir)
			if err != nil {
				return err
			}
			c := a.client()
			srv := server.New(hunt.New(c, c, engine), a.releaseCache())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr, err := srv.Start(ctx, port)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "huntdesk API listening on http://%s (Ctrl+C to stop)\n", addr)

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")
	return cmd
}
