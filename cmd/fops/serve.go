package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nhassan/fieldops/internal/config"
	"github.com/nhassan/fieldops/internal/devserver"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local development backend",
		Long:  "Starts a self-contained backend with seeded demo accounts, for developing against without a real deployment.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to fieldops config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := devserver.Open(cfg.DevServer.Driver, cfg.DevServer.DSN)
	if err != nil {
		return err
	}
	if err := devserver.AutoMigrate(db); err != nil {
		return err
	}
	if err := devserver.Seed(db); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Dev backend listening on :%d (seeded accounts use password %q)\n",
		cfg.DevServer.Port, devserver.SeedPassword)

	return devserver.Start(ctx, devserver.StartOpts{
		DB:       db,
		Port:     cfg.DevServer.Port,
		Secret:   cfg.DevServer.Secret,
		TokenTTL: time.Duration(cfg.DevServer.TokenTTLMin) * time.Minute,
		Out:      out,
	})
}
