package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to fieldops config file")
	return cmd
}

func runLogout(cmd *cobra.Command, configPath string) error {
	s, err := buildSDK(configPath)
	if err != nil {
		return err
	}
	s.session.Logout(context.Background())
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
	return nil
}
