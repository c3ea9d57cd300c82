package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/nhassan/fieldops/internal/api"
	"github.com/nhassan/fieldops/internal/models"
	"github.com/spf13/cobra"
)

func newRequestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Service request commands",
	}

	cmd.AddCommand(newRequestsListCmd())
	cmd.AddCommand(newRequestsCreateCmd())
	cmd.AddCommand(newRequestsShowCmd())
	cmd.AddCommand(newRequestsStatusCmd())
	cmd.AddCommand(newRequestsReviewCmd())
	return cmd
}

func newRequestsListCmd() *cobra.Command {
	var (
		configPath string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List service requests",
		Long:  "Lists your own requests, newest first. Supervisors can pass --all to see every request.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequestsList(cmd, configPath, all)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to fieldops config file")
	cmd.Flags().BoolVar(&all, "all", false, "list every request, not just your own")
	return cmd
}

func runRequestsList(cmd *cobra.Command, configPath string, all bool) error {
	s, err := buildSDK(configPath)
	if err != nil {
		return err
	}
	user, err := s.requireUser()
	if err != nil {
		return err
	}

	ctx := context.Background()
	var reqs []models.ServiceRequest
	if all {
		reqs, err = s.client.Requests.ListAll(ctx)
	} else {
		reqs, err = s.client.Requests.ListByProfile(ctx, user.ProfileID)
	}
	if err != nil {
		return err
	}

	if len(reqs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No requests.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSERVICE\tSTATUS\tUPDATED")
	for _, r := range reqs {
		updated := "-"
		if r.DateUpdated != nil {
			updated = r.DateUpdated.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Service.Title, r.Status, updated)
	}
	return w.Flush()
}

func newRequestsCreateCmd() *cobra.Command {
	var (
		configPath string
		service    int
		details    string
		date       string
		slot       string
		files      []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a new service request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequestsCreate(cmd, configPath, service, details, date, slot, files)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to fieldops config file")
	cmd.Flags().IntVar(&service, "service", 0, "service id (required)")
	cmd.Flags().StringVar(&details, "details", "", "what needs fixing")
	cmd.Flags().StringVar(&date, "date", "", "preferred date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&slot, "slot", "", "preferred time slot (morning, afternoon, evening)")
	cmd.Flags().StringSliceVar(&files, "file", nil, "photo attachment path (repeatable)")
	cmd.MarkFlagRequired("service")
	return cmd
}

func runRequestsCreate(cmd *cobra.Command, configPath string, service int, details, date, slot string, files []string) error {
	s, err := buildSDK(configPath)
	if err != nil {
		return err
	}
	user, err := s.requireUser()
	if err != nil {
		return err
	}

	ctx := context.Background()

	var relations []api.FileRelation
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open attachment %s: %w", path, err)
		}
		id, err := s.client.Files.Upload(ctx, filepath.Base(path), f)
		f.Close()
		if err != nil {
			return err
		}
		relations = append(relations, api.FileRelation{FileID: id})
	}

	created, err := s.client.Requests.Create(ctx, api.CreateRequestInput{
		Service:           service,
		Profile:           user.ProfileID,
		AdditionalDetails: details,
		PreferedDate:      date,
		PreferedTimeSlot:  slot,
		Files:             relations,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created request #%d (%s)\n", created.ID, created.Status)
	return nil
}

func newRequestsShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show REQUEST_ID",
		Short: "Show one request in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runRequestsShow(cmd, configPath, id)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to fieldops config file")
	return cmd
}

func runRequestsShow(cmd *cobra.Command, configPath string, id int) error {
	s, err := buildSDK(configPath)
	if err != nil {
		return err
	}
	if _, err := s.requireUser(); err != nil {
		return err
	}

	r, err := s.client.Requests.Get(context.Background(), id)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("request #%d not found", id)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Request:\t#%d\n", r.ID)
	fmt.Fprintf(w, "Service:\t%s\n", r.Service.Title)
	fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	if r.AdditionalDetails != "" {
		fmt.Fprintf(w, "Details:\t%s\n", r.AdditionalDetails)
	}
	if r.PreferedDate != "" {
		fmt.Fprintf(w, "Preferred:\t%s %s\n", r.PreferedDate, r.PreferedTimeSlot)
	}
	fmt.Fprintf(w, "Created:\t%s\n", r.DateCreated.Format("2006-01-02 15:04"))
	if len(r.Files) > 0 {
		fmt.Fprintf(w, "Attachments:\t%d\n", len(r.Files))
	}
	return w.Flush()
}

func newRequestsStatusCmd() *cobra.Command {
	var (
		configPath string
		booking    int
	)

	cmd := &cobra.Command{
		Use:   "status REQUEST_ID STATUS",
		Short: "Move a request through its lifecycle",
		Long:  "Sets a request's status (pending, scheduled, done, rejected). Pass --booking when scheduling to link the visit.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runRequestsStatus(cmd, configPath, id, args[1], booking)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to fieldops config file")
	cmd.Flags().IntVar(&booking, "booking", 0, "booking id to link")
	return cmd
}

func runRequestsStatus(cmd *cobra.Command, configPath string, id int, status string, booking int) error {
	s, err := buildSDK(configPath)
	if err != nil {
		return err
	}
	if _, err := s.requireUser(); err != nil {
		return err
	}

	updated, err := s.client.Requests.UpdateStatus(context.Background(), id, status, booking)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Request #%d is now %s\n", updated.ID, updated.Status)
	return nil
}

func newRequestsReviewCmd() *cobra.Command {
	var (
		configPath string
		rating     int
		comment    string
	)

	cmd := &cobra.Command{
		Use:   "review REQUEST_ID",
		Short: "Rate a completed request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runRequestsReview(cmd, configPath, id, rating, comment)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to fieldops config file")
	cmd.Flags().IntVar(&rating, "rating", 0, "rating 1-5 (required)")
	cmd.Flags().StringVar(&comment, "comment", "", "review comment")
	cmd.MarkFlagRequired("rating")
	return cmd
}

func runRequestsReview(cmd *cobra.Command, configPath string, id, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5")
	}
	s, err := buildSDK(configPath)
	if err != nil {
		return err
	}
	if _, err := s.requireUser(); err != nil {
		return err
	}

	if _, err := s.client.Requests.SubmitReview(context.Background(), id, rating, comment); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Review saved for request #%d\n", id)
	return nil
}
