package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/bsecurity/rosterwatch/internal/utils"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rosterwatch",
	Short: "Scrapes the self-service roster portal and texts the shift summary.",
	Long: `rosterwatch logs in to the self-service roster portal, reads the
rostered shifts for the upcoming day (or the whole weekend on Fridays),
and sends the summary by SMS. Provisional rosters are retried until the
portal finalises them or the retry budget runs out.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rosterwatch.yaml)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".rosterwatch")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.rosterwatch.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Set default empty values for all keys
	viper.SetDefault("portal.url", "https://dpw.portal.tambla.net/Microster.SelfService/Default.aspx")
	viper.SetDefault("portal.username", "")
	viper.SetDefault("portal.password", "")
	viper.SetDefault("portal.timeout", "30s")
	viper.SetDefault("portal.proxy", "")
	viper.SetDefault("clicksend.username", "")
	viper.SetDefault("clicksend.password", "")
	viper.SetDefault("recipients.primary", "")
	viper.SetDefault("recipients.secondary", "")
	viper.SetDefault("recipients.tertiary", "")
	viper.SetDefault("notify.tertiarydays", []string{"wed", "thu"})
	viper.SetDefault("retry.maxattempts", 120)
	viper.SetDefault("retry.delay", "60s")
	viper.SetDefault("db.path", "")

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
