package main

import (
	"fmt"
	"slices"

	"github.com/aretw0/tendril/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [workflow]",
	Short: "Export a workflow graph visualization",
	Long:  `Prints a Mermaid diagram (graph TD) of a workflow. Without arguments, lists the workflows.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if len(args) == 0 {
			names := make([]string, 0)
			for name := range a.svc.Graphs() {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		}

		topo, ok := a.svc.Topology(args[0])
		if !ok {
			return fmt.Errorf("unknown workflow %q", args[0])
		}
		_, err = fmt.Fprint(out, graph.GenerateMermaid(topo, nil))
		return err
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
