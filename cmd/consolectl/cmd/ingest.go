package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/snehjoshi/replayconsole/pkg/client"
)

// maxLineBytes bounds one JSON Lines record.
const maxLineBytes = 4 << 20

func newIngestCmd(g *globalFlags) *cobra.Command {
	var batch int
	c := &cobra.Command{
		Use:   "ingest <session> <file.jsonl|->",
		Short: "Send console messages from a JSON Lines file",
		Long: `Reads one console message per line and sends them in batches, in file
order. Blank lines are skipped. Use "-" to read standard input.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if batch < 1 {
				return errors.New("--batch must be at least 1")
			}
			in := cmd.InOrStdin()
			if args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			cl := g.client()
			sent := 0
			var last *client.View
			err := readBatches(in, batch, func(msgs []client.Message) error {
				v, err := cl.AddMessages(cmd.Context(), args[0], msgs...)
				if err != nil {
					return fmt.Errorf("batch at message %d: %w", sent, err)
				}
				sent += len(msgs)
				last = v
				return nil
			})
			if err != nil {
				return err
			}
			visible := 0
			if last != nil {
				visible = len(last.Visible)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d messages, %d visible\n", sent, visible)
			return nil
		},
	}
	c.Flags().IntVarP(&batch, "batch", "b", 100, "messages per request")
	return c
}

// readBatches decodes r line by line and calls fn with up to size messages
// at a time.
func readBatches(r io.Reader, size int, fn func([]client.Message) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	buf := make([]client.Message, 0, size)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var m client.Message
		if err := json.Unmarshal([]byte(text), &m); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		buf = append(buf, m)
		if len(buf) == size {
			if err := fn(buf); err != nil {
				return err
			}
			buf = make([]client.Message, 0, size)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if len(buf) > 0 {
		return fn(buf)
	}
	return nil
}
