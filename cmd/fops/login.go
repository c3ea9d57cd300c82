package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd() *cobra.Command {
	var (
		configPath string
		mobile     string
		password   string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and persist the session",
		Long:  "Exchanges a mobile number and password for tokens, then stores them so later commands run authenticated.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, configPath, mobile, password)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to fieldops config file")
	cmd.Flags().StringVar(&mobile, "mobile", "", "mobile number (required)")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	cmd.MarkFlagRequired("mobile")
	return cmd
}

func runLogin(cmd *cobra.Command, configPath, mobile, password string) error {
	s, err := buildSDK(configPath)
	if err != nil {
		return err
	}

	if password == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.auth.Login(ctx, mobile, password)
	if err != nil {
		return err
	}
	if err := s.session.Login(ctx, result.User(), result.AccessToken, result.RefreshToken); err != nil {
		return err
	}

	user := result.User()
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s %s (%s)\n", user.FirstName, user.LastName, user.Role.Name)
	return nil
}
