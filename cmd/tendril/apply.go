package main

import (
	"github.com/aretw0/tendril/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply <job-url>",
	Short: "Fill and submit an Easy Apply form",
	Long:  `Walks the Easy Apply dialog of a posting, answering fields from the configured answers table.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.ApplyEasy(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return render(cmd, res, tui.ApplyMarkdown(res))
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
	addJSONFlag(applyCmd)
}
