package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newWhoamiCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to fieldops config file")
	return cmd
}

func runWhoami(cmd *cobra.Command, configPath string) error {
	s, err := buildSDK(configPath)
	if err != nil {
		return err
	}
	user, err := s.requireUser()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s %s\n", user.FirstName, user.LastName)
	fmt.Fprintf(w, "Role:\t%s\n", user.Role.Name)
	fmt.Fprintf(w, "Mobile:\t%s\n", user.MobileNumber)
	if user.Unit != "" {
		fmt.Fprintf(w, "Unit:\t%s\n", user.Unit)
	}
	fmt.Fprintf(w, "Profile:\t#%d\n", user.ProfileID)
	return w.Flush()
}
