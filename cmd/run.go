package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bsecurity/rosterwatch/internal/utils"
	"github.com/bsecurity/rosterwatch/pkg/eventlog"
	"github.com/bsecurity/rosterwatch/pkg/notify"
	"github.com/bsecurity/rosterwatch/pkg/portal"
	"github.com/bsecurity/rosterwatch/pkg/roster"
	"github.com/bsecurity/rosterwatch/pkg/scraper"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape the roster and send the shift summary",
	Long: `Logs in to the roster portal, reads the shifts for the planned dates
derived from the base date, and sends the summary by SMS. Exits non-zero
when the run fails or the retry budget is exhausted.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		dateArg, _ := cmd.Flags().GetString("date")

		// The base date must be valid before anything touches the network.
		base, err := resolveBaseDate(dateArg, time.Now())
		if err != nil {
			return err
		}

		dates := roster.Plan(base)
		planned := make([]string, 0, len(dates))
		for _, d := range dates {
			planned = append(planned, d.ISO())
		}
		utils.Log.Infof("Base date %s (%s), processing: %s",
			base.Format("2006-01-02"), base.Weekday(), strings.Join(planned, ", "))

		lock, err := utils.NewRunLock()
		if err != nil {
			return err
		}
		if err := lock.Lock(); err != nil {
			return err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				utils.Log.Warnf("Could not release run lock: %v", err)
			}
		}()

		var sink eventlog.Sink
		if path := viper.GetString("db.path"); path != "" {
			store, err := eventlog.Open(path)
			if err != nil {
				return fmt.Errorf("opening audit database: %w", err)
			}
			defer store.Close()
			sink = store
		}

		portalCfg := portal.Config{
			URL:      viper.GetString("portal.url"),
			Username: viper.GetString("portal.username"),
			Password: viper.GetString("portal.password"),
			Timeout:  viper.GetDuration("portal.timeout"),
			Proxy:    viper.GetString("portal.proxy"),
		}

		cfg := scraper.Config{
			Recipients: scraper.Recipients{
				Primary:   viper.GetString("recipients.primary"),
				Secondary: viper.GetString("recipients.secondary"),
				Tertiary:  viper.GetString("recipients.tertiary"),
			},
			TertiaryDays: viper.GetStringSlice("notify.tertiarydays"),
			MaxRetries:   viper.GetInt("retry.maxattempts"),
			RetryDelay:   viper.GetDuration("retry.delay"),
		}

		orch := scraper.New(cfg,
			func() (portal.Session, error) { return portal.New(portalCfg) },
			notify.NewClickSend(viper.GetString("clicksend.username"), viper.GetString("clicksend.password")),
			eventlog.NewEmitter(sink),
		)

		return orch.Run(cmd.Context(), dates)
	},
}

// resolveBaseDate turns the --date argument into a concrete date: the
// literal "today" or "tomorrow", or an explicit YYYY-MM-DD.
func resolveBaseDate(arg string, now time.Time) (time.Time, error) {
	switch strings.ToLower(arg) {
	case "today":
		return now, nil
	case "tomorrow":
		return now.AddDate(0, 0, 1), nil
	}
	t, err := time.Parse("2006-01-02", arg)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use 'today', 'tomorrow', or YYYY-MM-DD", arg)
	}
	return t, nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("date", "d", "today", "Base date for processing: 'today', 'tomorrow', or YYYY-MM-DD")
}
