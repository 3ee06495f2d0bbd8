package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := g.client().ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLABEL\tCREATED\tMESSAGES\tVISIBLE")
			for _, s := range list {
				created := time.UnixMilli(s.CreatedAt).UTC().Format(time.RFC3339)
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", s.ID, s.Label, created, s.Messages, s.Visible)
			}
			return w.Flush()
		},
	}
}

func newCreateCmd(g *globalFlags) *cobra.Command {
	var label string
	c := &cobra.Command{
		Use:   "create",
		Short: "Create a session and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.client().CreateSession(cmd.Context(), label)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.ID)
			return nil
		},
	}
	c.Flags().StringVarP(&label, "label", "l", "", "human-readable label")
	return c
}

func newDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session>",
		Short: "Delete a session and its journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.client().DeleteSession(cmd.Context(), args[0])
		},
	}
}

func newClearCmd(g *globalFlags) *cobra.Command {
	var evaluations bool
	c := &cobra.Command{
		Use:   "clear <session>",
		Short: "Clear the console",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl := g.client()
			var err error
			if evaluations {
				_, err = cl.ClearEvaluations(cmd.Context(), args[0])
			} else {
				_, err = cl.Clear(cmd.Context(), args[0])
			}
			return err
		},
	}
	c.Flags().BoolVar(&evaluations, "evaluations", false, "only remove evaluation commands and results")
	return c
}

func newClearLogpointCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-logpoint <session> <logpoint>",
		Short: "Remove a logpoint's messages and ignore its later hits",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := g.client().ClearLogpoint(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d visible\n", len(v.Visible))
			return nil
		},
	}
}

func newFilterCmd(g *globalFlags) *cobra.Command {
	c := &cobra.Command{
		Use:   "filter",
		Short: "Change a session's filters",
	}
	c.AddCommand(
		&cobra.Command{
			Use:   "toggle <session> <error|warn|info|debug|log|nodemodules>",
			Short: "Flip a filter",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := g.client().ToggleFilter(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printView(cmd, v.Visible, v.Filtered)
			},
		},
		&cobra.Command{
			Use:   "text <session> <text>",
			Short: `Search; "-term" excludes and "/re/" matches a regular expression`,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := g.client().SetFilterText(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printView(cmd, v.Visible, v.Filtered)
			},
		},
		&cobra.Command{
			Use:   "clear <session>",
			Short: "Put every filter back to its default",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := g.client().ClearFilters(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printView(cmd, v.Visible, v.Filtered)
			},
		},
	)
	return c
}

func printView(cmd *cobra.Command, visible []string, filtered map[string]int) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%d visible, %d filtered\n", len(visible), filtered["global"])
	return err
}
