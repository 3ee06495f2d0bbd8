package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/snehjoshi/replayconsole/pkg/client"
)

func newVisibleCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	c := &cobra.Command{
		Use:   "visible <session>",
		Short: "Print the visible messages in display order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := g.client().VisibleMessages(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				for _, m := range msgs {
					if err := enc.Encode(m); err != nil {
						return err
					}
				}
				return nil
			}
			for _, m := range msgs {
				fmt.Fprintf(out, "%s%-6s %-5s %s\n", strings.Repeat("  ", m.Indent), m.ID, m.Level, summary(m))
			}
			return nil
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "print one JSON message per line")
	return c
}

// summary is a one-line rendering of a message.
func summary(m *client.Message) string {
	if m.MessageText != nil {
		return m.MessageText.Text
	}
	parts := make([]string, 0, len(m.Parameters))
	for _, p := range m.Parameters {
		switch {
		case p.ClassName != "":
			parts = append(parts, p.ClassName)
		case p.Primitive == nil:
			parts = append(parts, "null")
		default:
			parts = append(parts, fmt.Sprint(p.Primitive))
		}
	}
	if len(parts) == 0 {
		return "[" + string(m.Type) + "]"
	}
	return strings.Join(parts, " ")
}
