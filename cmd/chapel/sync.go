package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/cobra"

	"github.com/eringen/chapel"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror the Notion databases once and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app := chapel.New(cfg, chapel.DefaultViews())
		defer app.Close()
		if err := app.Open(); err != nil {
			return err
		}
		if app.Syncer == nil {
			return errors.New("NOTION_TOKEN is not set")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		run, err := app.Syncer.Run(ctx)

		names := make([]string, 0, len(run.Counts))
		for name := range run.Counts {
			names = append(names, name)
		}
		sort.Strings(names)
		out := cmd.OutOrStdout()
		for _, name := range names {
			fmt.Fprintf(out, "%-10s %d\n", name, run.Counts[name])
		}
		if err == nil {
			fmt.Fprintf(out, "synced in %s\n", run.Duration())
		}
		return err
	},
}
