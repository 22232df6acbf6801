// Command chapel serves a church website mirrored from Notion.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eringen/chapel"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	addrFlag     string
	siteFileFlag string
)

var rootCmd = &cobra.Command{
	Use:   "chapel",
	Short: "A church website built from Notion databases",
	Long: `chapel mirrors sermons, bulletins, news, the event calendar and the
staff directory from Notion into SQLite and serves them as a website.

Configuration is read from the environment (see .env.example written by
"chapel init").`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "listen address (overrides ADDR)")
	rootCmd.PersistentFlags().StringVar(&siteFileFlag, "site-file", "", "site information file (overrides SITE_FILE)")
	rootCmd.AddCommand(serveCmd, syncCmd, initCmd, versionCmd)
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig() (chapel.SiteConfig, error) {
	cfg, err := chapel.ParseEnv()
	if err != nil {
		return cfg, err
	}
	if addrFlag != "" {
		cfg.Addr = addrFlag
	}
	if siteFileFlag != "" {
		cfg.SiteFile = siteFileFlag
	}
	return cfg, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the chapel version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "chapel %s\n", version)
	},
}
