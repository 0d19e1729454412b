package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hublinkchat/hublink/pkg/accounts"
	"github.com/hublinkchat/hublink/pkg/registry"
	"github.com/hublinkchat/hublink/pkg/scheduler"
	"github.com/hublinkchat/hublink/pkg/server"
	"github.com/hublinkchat/hublink/pkg/session"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HubLink chat server (default action)",
		RunE:  runServe,
	}
	cmd.Flags().Bool("auto-delete-empty-channels", false,
		"best-effort delete non-Hub channels 5 minutes after their last member leaves")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadServerConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := openAccountStore(cfg)
	if err != nil {
		// spec.md §7 FatalStartup: a store/listener the process can't open
		// aborts the process rather than limping along half-initialized.
		return fmt.Errorf("open account store: %w", err)
	}
	defer func() { _ = store.Close() }()

	reg := registry.New()
	reg.SetAutoDeleteEmpty(cfg.AutoDeleteEmpty)
	if err := reg.Load(cfg.ChannelStorePath); err != nil {
		return fmt.Errorf("load channel registry: %w", err)
	}

	helpText := readTextFileOrEmpty(cfg.HelpFile)
	creditsText := readTextFileOrEmpty(cfg.CreditsFile)

	if err := os.MkdirAll(cfg.UploadsDir, 0o700); err != nil {
		return fmt.Errorf("create uploads dir: %w", err)
	}

	srv := server.New(cfg, server.Dependencies{
		Accounts:    store,
		Registry:    reg,
		Table:       session.NewTable(),
		HelpText:    helpText,
		CreditsText: creditsText,
	})

	sched := scheduler.New(store, reg, cfg.UploadsDir, cfg.ChannelStorePath)
	if err := sched.Start(cfg.PersistInterval); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("hublinkd: received signal, shutting down", "signal", sig)
		srv.Shutdown()
	}()

	if err := srv.Run(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func openAccountStore(cfg server.Config) (accounts.Store, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		return accounts.NewSQLiteStore(cfg.AccountStorePath)
	case "file", "":
		return accounts.NewFileStore(cfg.AccountStorePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func readTextFileOrEmpty(path string) string {
	data, err := os.ReadFile(path) //nolint:gosec // operator-controlled config path
	if err != nil {
		return ""
	}
	return string(data)
}
