package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eringen/chapel/scaffold"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a starter site.yaml and .env.example",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		data, err := scaffold.NewData(dir)
		if err != nil {
			return err
		}
		written, err := scaffold.Generate(dir, data)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, path := range written {
			fmt.Fprintf(out, "  created %s\n", path)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Next steps:")
		fmt.Fprintln(out, "  1. Set ADMIN_PASSWORD and the Notion settings in .env.example and export them.")
		fmt.Fprintln(out, "  2. Edit site.yaml with your service times and locations.")
		fmt.Fprintln(out, "  3. Run: chapel sync && chapel serve")
		return nil
	},
}
