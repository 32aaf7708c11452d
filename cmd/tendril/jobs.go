package main

import (
	"github.com/aretw0/tendril/internal/presentation/tui"
	"github.com/aretw0/tendril/pkg/workflows/jobsearch"
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs <keywords>",
	Short: "Search job postings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		location, _ := cmd.Flags().GetString("location")
		easy, _ := cmd.Flags().GetBool("easy-apply")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.SearchJobs(cmd.Context(), jobsearch.Query{
			Keywords:  args[0],
			Location:  location,
			EasyApply: easy,
		}, limit)
		if err != nil {
			return err
		}
		return render(cmd, res, tui.JobsMarkdown(res))
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.Flags().String("location", "", "Location filter")
	jobsCmd.Flags().Bool("easy-apply", false, "Only Easy Apply postings")
	jobsCmd.Flags().Int("limit", 25, "Maximum postings to return (0 for no limit)")
	addJSONFlag(jobsCmd)
}
