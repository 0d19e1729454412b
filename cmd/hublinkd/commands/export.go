package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hublinkchat/hublink/pkg/accounts"
	"github.com/hublinkchat/hublink/pkg/registry"
)

func newExportUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-users",
		Short: "Export every account as YAML and print it to stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadServerConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openAccountStore(cfg)
			if err != nil {
				return fmt.Errorf("open account store: %w", err)
			}
			defer func() { _ = store.Close() }()

			data, err := accounts.ExportUsersYAML(store)
			if err != nil {
				return fmt.Errorf("export users: %w", err)
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

func newExportChannelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-channels",
		Short: "Export every channel definition as YAML and print it to stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadServerConfig(cmd)
			if err != nil {
				return err
			}
			reg := registry.New()
			if err := reg.Load(cfg.ChannelStorePath); err != nil {
				return fmt.Errorf("load channel registry: %w", err)
			}

			data, err := reg.ExportYAML()
			if err != nil {
				return fmt.Errorf("export channels: %w", err)
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

func newImportChannelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-channels <file.yaml>",
		Short: "Create channels defined in a YAML file, then save the channel registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0]) //nolint:gosec // operator-provided path
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			reg := registry.New()
			if err := reg.Load(cfg.ChannelStorePath); err != nil {
				return fmt.Errorf("load channel registry: %w", err)
			}
			if err := reg.ImportYAML(data); err != nil {
				return fmt.Errorf("import channels: %w", err)
			}
			if err := reg.Save(cfg.ChannelStorePath); err != nil {
				return fmt.Errorf("save channel registry: %w", err)
			}
			return nil
		},
	}
	return cmd
}
