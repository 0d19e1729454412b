// Package commands implements hublinkd's cobra command tree.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hublinkchat/hublink/pkg/logging"
)

// Execute builds and runs the root command. Called once from main.go.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hublinkd",
		Short: "HubLink chat server",
		Long: `hublinkd runs the HubLink multi-user channel chat server: account
storage, channel membership, command dispatch, and the binary file
transfer subprotocol, all over one TCP listener.`,
		SilenceUsage:      true,
		PersistentPreRunE: setupEnvironment,
		// Running hublinkd with no subcommand starts the server, the same
		// default action `serve` provides explicitly.
		RunE: runServe,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to a YAML config file")
	root.PersistentFlags().String("log-level", "info", "log level: "+logging.LevelNames())
	root.PersistentFlags().String("log-format", "text", "log format: text or json")
	root.Flags().Bool("auto-delete-empty-channels", false,
		"best-effort delete non-Hub channels 5 minutes after their last member leaves")

	root.AddCommand(
		newServeCmd(),
		newExportUsersCmd(),
		newExportChannelsCmd(),
		newImportChannelsCmd(),
		newBootstrapAdminCmd(),
	)

	return root
}

// setupEnvironment loads an optional .env file and configures slog before
// any subcommand runs, mirroring the config-then-logging bootstrap order
// gospeak's cmd/server/main.go uses.
func setupEnvironment(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("hublinkd: .env present but unreadable", "err", err)
	}

	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	if err := logging.Setup(logging.Options{Level: level, Format: format, Output: os.Stdout}); err != nil {
		return fmt.Errorf("logging setup: %w", err)
	}
	return nil
}

// bindConfig returns a viper instance bound to HUBLINK_-prefixed
// environment variables and, when --config is given, that YAML file.
// loadServerConfig overlays the values it finds onto
// server.DefaultConfig, the three-layer scheme SPEC_FULL's Configuration
// section describes.
func bindConfig(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("HUBLINK")
	v.AutomaticEnv()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}
