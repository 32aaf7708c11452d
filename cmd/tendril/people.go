package main

import (
	"github.com/aretw0/tendril/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var peopleCmd = &cobra.Command{
	Use:   "people <company>",
	Short: "Collect people from a company page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.SearchPeople(cmd.Context(), args[0], limit, exclude...)
		if err != nil {
			return err
		}
		return render(cmd, res, tui.PeopleMarkdown(res))
	},
}

func init() {
	rootCmd.AddCommand(peopleCmd)
	peopleCmd.Flags().Int("limit", 20, "Maximum people to return (0 for no limit)")
	peopleCmd.Flags().StringSlice("exclude", nil, "Profile URLs to leave out")
	addJSONFlag(peopleCmd)
}
