package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nhassan/fieldops/internal/notify"
	"github.com/nhassan/fieldops/internal/notify/discord"
	"github.com/nhassan/fieldops/internal/notify/slack"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the event notifier daemon",
		Long:  "Polls the backend for request, booking and chat activity and announces it on the configured Discord and Slack channels.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to fieldops config file")
	return cmd
}

func runWatch(cmd *cobra.Command, configPath string) error {
	s, err := buildSDK(configPath)
	if err != nil {
		return err
	}
	user, err := s.requireUser()
	if err != nil {
		return err
	}

	watcher, err := notify.NewWatcher(notify.WatcherOpts{
		Requests:     s.client.Requests,
		Chat:         s.client.Chat,
		SelfID:       user.ID,
		PollInterval: time.Duration(s.cfg.Notify.PollIntervalSec) * time.Second,
		DigestCron:   s.cfg.Notify.DigestCron,
	})
	if err != nil {
		return err
	}

	var adapters []notify.Adapter
	if s.cfg.Notify.Discord.BotToken != "" {
		a, err := discord.New(discord.AdapterOpts{
			BotToken:  s.cfg.Notify.Discord.BotToken,
			ChannelID: s.cfg.Notify.Discord.ChannelID,
		})
		if err != nil {
			return err
		}
		adapters = append(adapters, a)
	}
	if s.cfg.Notify.Slack.BotToken != "" {
		a, err := slack.New(slack.AdapterOpts{
			BotToken:  s.cfg.Notify.Slack.BotToken,
			ChannelID: s.cfg.Notify.Slack.ChannelID,
		})
		if err != nil {
			return err
		}
		adapters = append(adapters, a)
	}
	if len(adapters) == 0 {
		return fmt.Errorf("no notify adapters configured; set notify.discord.bot_token or notify.slack.bot_token")
	}

	daemon, err := notify.NewDaemon(notify.DaemonOpts{
		Watcher:  watcher,
		Adapters: adapters,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintln(cmd.OutOrStdout(), "Watching for service-desk activity (ctrl-c to stop)")
	if err := daemon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
