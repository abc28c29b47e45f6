package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/config"
)

func newConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or check sketchpad config files",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config template with default values",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := resolvePath(*configPath)
			if err := config.WriteTemplate(path, force); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote config template to %s\n", path)
			return err
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load a config file with env overrides and validate it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := resolvePath(*configPath)
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "config %s ok (addr=%s delivery_mode=%s mcp_transport=%s)\n",
				path, cfg.Addr, cfg.DeliveryMode, cfg.MCPTransport)
			return err
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}

func resolvePath(path string) string {
	if path == "" {
		return defaultConfigPath
	}
	return path
}
