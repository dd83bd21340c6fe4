package main

import (
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forgeline/forgeline/internal/config"
	"github.com/forgeline/forgeline/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve exposes the generation pipeline over HTTP:

  POST /api/v1/instructions          submit instructions for a session
  POST /api/v1/sessions/{id}/reset   discard a session's conversation
  GET  /healthz                      liveness check`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	pl, assembler, cleanup, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	color.Green("forgeline listening on %s", cfg.Server.Addr)
	return server.New(pl, assembler).ListenAndServe(ctx, cfg.Server.Addr)
}
