package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nhassan/fieldops/internal/chat"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Request conversation commands",
	}

	cmd.AddCommand(newChatTailCmd())
	cmd.AddCommand(newChatSendCmd())
	return cmd
}

func newChatTailCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "tail REQUEST_ID",
		Short: "Follow a request's conversation",
		Long:  "Polls a request's conversation and prints new messages until interrupted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runChatTail(cmd, configPath, id)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to fieldops config file")
	return cmd
}

func runChatTail(cmd *cobra.Command, configPath string, requestID int) error {
	s, err := buildSDK(configPath)
	if err != nil {
		return err
	}
	user, err := s.requireUser()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printed := 0
	sync, err := chat.NewSynchronizer(chat.SynchronizerOpts{
		Service:      s.client.Chat,
		SelfID:       user.ID,
		PollInterval: time.Duration(s.cfg.Chat.PollIntervalSec) * time.Second,
		OnUpdate: func(msgs []chat.Message) {
			// Print only the tail the previous update has not shown yet.
			for ; printed < len(msgs); printed++ {
				m := msgs[printed]
				who := "them"
				if m.Role == chat.RoleSelf {
					who = "you"
				}
				fmt.Fprintf(out, "[%s] %s: %s\n", m.CreatedAt.Format("15:04"), who, m.Text)
			}
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintf(out, "Following conversation on request #%d (ctrl-c to stop)\n", requestID)
	sync.Open(requestID)
	<-ctx.Done()
	sync.Close()
	return nil
}

func newChatSendCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "send REQUEST_ID TEXT",
		Short: "Send a message on a request's conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runChatSend(cmd, configPath, id, args[1])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to fieldops config file")
	return cmd
}

func runChatSend(cmd *cobra.Command, configPath string, requestID int, text string) error {
	s, err := buildSDK(configPath)
	if err != nil {
		return err
	}
	if _, err := s.requireUser(); err != nil {
		return err
	}

	if _, err := s.client.Chat.Send(context.Background(), requestID, text); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Sent.")
	return nil
}
