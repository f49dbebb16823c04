package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bsecurity/rosterwatch/pkg/eventlog"
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recorded audit events",
	Long:  "Prints the audit events recorded by past runs when db.path is configured.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("db.path")
		if path == "" {
			return fmt.Errorf("no audit database configured: set db.path in the config file")
		}

		sinceArg, _ := cmd.Flags().GetString("since")
		limit, _ := cmd.Flags().GetInt("limit")

		since := time.Time{}
		if sinceArg != "" {
			t, err := time.Parse(time.RFC3339, sinceArg)
			if err != nil {
				return fmt.Errorf("invalid --since value %q: expected RFC3339 timestamp", sinceArg)
			}
			since = t
		}

		store, err := eventlog.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		events, err := store.List(cmd.Context(), since, limit)
		if err != nil {
			return err
		}

		for _, ev := range events {
			fmt.Printf("%s  %-7s %-22s retry=%d  %s\n",
				ev.Time.Format(time.RFC3339), ev.Level, ev.Kind, ev.RetryAttempts, ev.Content)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().String("since", "", "Only show events at or after this RFC3339 timestamp")
	eventsCmd.Flags().Int("limit", 50, "Maximum number of events to print (0 = all)")
}
