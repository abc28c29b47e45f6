package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/config"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/observability"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/server"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/transport/ws"
)

const defaultConfigPath = "sketchpad.toml"

func newRootCmd() *cobra.Command {
	var configPath string
	rootCmd := &cobra.Command{
		Use:           "sketchpad",
		Short:         "Canvas sketchpad: distribute drawing commands to live canvases",
		Long:          "sketchpad accepts drawing instructions over MCP or HTTP, pushes them to connected canvas clients over websockets, and tracks each command until a client acknowledges it.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newProbeCmd(),
		newConfigCmd(&configPath),
		newVersionCmd(),
	)
	return rootCmd
}

func newServeCmd(configPath *string) *cobra.Command {
	var transport string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sketchpad server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			observability.InitLogger("sketchpad")
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if transport != "" {
				cfg.MCPTransport = transport
			}
			srv, err := server.New(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&transport, "mcp", "", "override mcp_transport (http|stdio|none)")
	return cmd
}

func newProbeCmd() *cobra.Command {
	var (
		url         string
		sessionID   string
		maxAttempts int
		status      bool
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Connect as a canvas client and acknowledge every pushed command",
		RunE: func(cmd *cobra.Command, _ []string) error {
			observability.InitLogger("sketchpad-probe")
			probe, err := ws.NewProbe(ws.ProbeConfig{
				URL:          url,
				SessionID:    sessionID,
				MaxAttempts:  maxAttempts,
				ReportStatus: status,
			})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return probe.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://127.0.0.1:7420"+server.WebsocketPath, "websocket endpoint")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to associate with")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "give up after N failed dials (0 retries forever)")
	cmd.Flags().BoolVar(&status, "status", false, "acknowledge with command-status instead of command-consumed")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write([]byte(server.Version + "\n"))
			return err
		},
	}
}
