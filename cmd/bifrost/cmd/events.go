package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aadithya-v/bifrost/store"
)

var (
	eventsIdentity string
	eventsLimit    int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent issuance and validation events",
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := store.OpenEventStore(eventStore)
		if err != nil {
			return fmt.Errorf("failed to open event store: %w", err)
		}
		if events == nil {
			return errors.New("no event store configured, set --events or EVENT_STORE")
		}
		defer events.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		list, err := events.Recent(ctx, eventsIdentity, eventsLimit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tKIND\tOUTCOME\tREASON\tIDENTITY\tIP\tDEVICE\tCOUNTRY")
		for _, e := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				e.CreatedAt.Format(time.RFC3339), e.Kind, e.Outcome, e.Reason,
				e.Identity, e.ClientIP, e.DeviceType, e.Country)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().StringVar(&eventStore, "events", os.Getenv("EVENT_STORE"), "Audit event store as driver:dsn (sqlite, mysql, postgres)")
	eventsCmd.Flags().StringVar(&eventsIdentity, "identity", "", "Only show events for this identity")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "Maximum number of events")
}
