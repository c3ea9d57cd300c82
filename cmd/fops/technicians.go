package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTechniciansCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "technicians",
		Short: "List technician profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTechnicians(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to fieldops config file")
	return cmd
}

func runTechnicians(cmd *cobra.Command, configPath string) error {
	s, err := buildSDK(configPath)
	if err != nil {
		return err
	}
	if _, err := s.requireUser(); err != nil {
		return err
	}

	techs, err := s.client.Profiles.Technicians(context.Background())
	if err != nil {
		return err
	}
	if len(techs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No technicians.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMOBILE")
	for _, p := range techs {
		name := p.User.FirstName + " " + p.User.LastName
		fmt.Fprintf(w, "%d\t%s\t%s\n", p.ID, name, p.MobileNumber)
	}
	return w.Flush()
}
