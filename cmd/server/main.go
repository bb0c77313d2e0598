package main // Entry point package

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "practice",
	Short: "Booking service for a one-therapist practice",
	Long: `Serves the booking API (availability, bookings, cancellations,
reschedules and session credits) and carries the operational commands
around it: schema migration, the notification worker and credit
administration. Configuration comes from the environment and an optional
.env file.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
