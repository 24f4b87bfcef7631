package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fake_api_server/app/http_mock_app"
	configs "fake_api_server/internal/infra/config"
	"fake_api_server/utils"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "fake_api_server",
		Short:         "Serve user-defined mock HTTP endpoints",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $FAKEAPI_CONFIG_PATH or config/fake_api.<env>.yaml)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mock server and management API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the config file, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: addr=%s database=%s requestLog=%s auth=%s\n",
				cfg.Server.Addr, cfg.DatabaseConfig.Driver, cfg.RequestLogConfig.Driver, cfg.AuthConfig.Mode)
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fake_api_server %s (%s)\n", Version, Commit)
		},
	}

	root.AddCommand(serveCmd, checkCmd, versionCmd)
	return root
}

func loadConfig(path string) (*configs.AppConfig, error) {
	if path == "" {
		return configs.LoadAppConfig()
	}
	_ = godotenv.Load()
	return configs.LoadAppConfigFrom(path)
}

func runServe(parent context.Context, cfg *configs.AppConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	log := utils.InitLogger(utils.LogOptions{
		Path:       cfg.Log.Path,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	server, cleanup, err := http_mock_app.InitializeServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"version":  Version,
		"database": cfg.DatabaseConfig.Driver,
		"redis":    cfg.RedisConfig.Enabled,
		"liveness": cfg.LivenessConfig.Enabled,
	}).Info("starting fake api server")
	return server.Run(ctx)
}
