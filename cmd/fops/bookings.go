package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/nhassan/fieldops/internal/api"
	"github.com/spf13/cobra"
)

func newBookingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "Technician visit commands",
	}

	cmd.AddCommand(newBookingsListCmd())
	cmd.AddCommand(newBookingsCreateCmd())
	cmd.AddCommand(newBookingsNotesCmd())
	return cmd
}

func newBookingsListCmd() *cobra.Command {
	var (
		configPath string
		technician int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled visits for a technician",
		Long:  "Lists a technician's bookings whose requests are still scheduled. Defaults to your own profile.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBookingsList(cmd, configPath, technician)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to fieldops config file")
	cmd.Flags().IntVar(&technician, "technician", 0, "technician profile id (defaults to yours)")
	return cmd
}

func runBookingsList(cmd *cobra.Command, configPath string, technician int) error {
	s, err := buildSDK(configPath)
	if err != nil {
		return err
	}
	user, err := s.requireUser()
	if err != nil {
		return err
	}
	if technician == 0 {
		technician = user.ProfileID
	}

	bookings, err := s.client.Bookings.ListForTechnician(context.Background(), technician)
	if err != nil {
		return err
	}
	if len(bookings) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No scheduled visits.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREQUEST\tSERVICE\tUNIT\tDATE\tSLOT")
	for _, b := range bookings {
		fmt.Fprintf(w, "%d\t#%d\t%s\t%s\t%s\t%s\n",
			b.ID, b.Request.ID, b.Request.Service.Title, b.Request.Profile.Unit, b.Date, b.TimeSlot)
	}
	return w.Flush()
}

func newBookingsCreateCmd() *cobra.Command {
	var (
		configPath string
		request    int
		technician int
		date       string
		slot       string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a technician against a request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBookingsCreate(cmd, configPath, request, technician, date, slot)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to fieldops config file")
	cmd.Flags().IntVar(&request, "request", 0, "request id (required)")
	cmd.Flags().IntVar(&technician, "technician", 0, "technician profile id (required)")
	cmd.Flags().StringVar(&date, "date", "", "visit date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&slot, "slot", "", "time slot (morning, afternoon, evening)")
	cmd.MarkFlagRequired("request")
	cmd.MarkFlagRequired("technician")
	return cmd
}

func runBookingsCreate(cmd *cobra.Command, configPath string, request, technician int, date, slot string) error {
	s, err := buildSDK(configPath)
	if err != nil {
		return err
	}
	if _, err := s.requireUser(); err != nil {
		return err
	}

	ctx := context.Background()
	b, err := s.client.Bookings.Create(ctx, api.CreateBookingInput{
		Request:    request,
		Technician: technician,
		Date:       date,
		TimeSlot:   slot,
	})
	if err != nil {
		return err
	}

	// Scheduling a visit moves the request forward in the same step.
	if _, err := s.client.Requests.UpdateStatus(ctx, request, "scheduled", b.ID); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Booking #%d created; request #%d is now scheduled\n", b.ID, request)
	return nil
}

func newBookingsNotesCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "notes BOOKING_ID NOTES",
		Short: "Record technician notes on a visit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return runBookingsNotes(cmd, configPath, id, args[1])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to fieldops config file")
	return cmd
}

func runBookingsNotes(cmd *cobra.Command, configPath string, id int, notes string) error {
	s, err := buildSDK(configPath)
	if err != nil {
		return err
	}
	if _, err := s.requireUser(); err != nil {
		return err
	}

	if _, err := s.client.Bookings.UpdateNotes(context.Background(), id, notes); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Notes saved on booking #%d\n", id)
	return nil
}
