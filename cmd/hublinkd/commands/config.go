package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hublinkchat/hublink/pkg/server"
)

// loadServerConfig layers an optional --config YAML file and HUBLINK_-
// prefixed environment variables over server.DefaultConfig, the
// three-layer scheme SPEC_FULL.md's Configuration section describes.
// Flags set explicitly by the caller take precedence over both.
func loadServerConfig(cmd *cobra.Command) (server.Config, error) {
	cfg := server.DefaultConfig()

	v, err := bindConfig(cmd)
	if err != nil {
		return cfg, err
	}

	overlayString(v, "listen_addr", &cfg.ListenAddr)
	overlayString(v, "metrics_addr", &cfg.MetricsAddr)
	overlayString(v, "store_driver", &cfg.StoreDriver)
	overlayString(v, "account_store_path", &cfg.AccountStorePath)
	overlayString(v, "channel_store_path", &cfg.ChannelStorePath)
	overlayString(v, "uploads_dir", &cfg.UploadsDir)
	overlayString(v, "downloads_dir", &cfg.DownloadsDir)
	overlayString(v, "help_file", &cfg.HelpFile)
	overlayString(v, "credits_file", &cfg.CreditsFile)
	overlayString(v, "allowed_origin", &cfg.AllowedOrigin)

	if v.IsSet("auto_delete_empty") {
		cfg.AutoDeleteEmpty = v.GetBool("auto_delete_empty")
	}
	if v.IsSet("persist_interval") {
		d, err := time.ParseDuration(v.GetString("persist_interval"))
		if err != nil {
			return cfg, fmt.Errorf("parse persist_interval: %w", err)
		}
		cfg.PersistInterval = d
	}

	if flag, _ := cmd.Flags().GetBool("auto-delete-empty-channels"); flag {
		cfg.AutoDeleteEmpty = true
	}

	return cfg, nil
}

func overlayString(v *viper.Viper, key string, field *string) {
	if v.IsSet(key) {
		*field = v.GetString(key)
	}
}
