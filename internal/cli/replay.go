package cli

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	kio "github.com/matzehuels/kahnsched/pkg/io"
	"github.com/matzehuels/kahnsched/pkg/kahn"
)

// replayCommand creates the replay command for inspecting a history file.
func (c *CLI) replayCommand() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "replay [history.json]",
		Short: "Step through a recorded schedule",
		Long: `Step through a recorded schedule.

Opens an interactive viewer over a result written by 'schedule' (json or
tensor format). Each frame shows every node's remaining dependency count,
label and lifecycle state. The history is validated before it is shown.

Use --plain to print every frame instead, for example when piping.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, ids, err := kio.ImportResult(args[0])
			if err != nil {
				return fmt.Errorf("load history %s: %w", args[0], err)
			}
			c.Logger.Debug("loaded history", "nodes", len(res.History[0]), "steps", res.Steps, "status", res.Status)

			if plain {
				return writeReplay(cmd.OutOrStdout(), res, ids)
			}
			_, err = tea.NewProgram(NewReplayModel(res, ids), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "print every frame instead of opening the viewer")

	return cmd
}

// writeReplay prints every frame of res as a table.
func writeReplay(w io.Writer, res *kahn.Result, ids []string) error {
	frames := replayFrames(res)
	for i, cur := range frames {
		var prev kahn.State
		if i > 0 {
			prev = frames[i-1]
		}
		if _, err := fmt.Fprintf(w, "%s\n%s\n%s\n\n",
			styleTitle.Render(frameTitle(res, i)),
			snapshotTable(ids, prev, cur, 0, len(cur)).Render(),
			styleMuted.Render(stateSummary(cur))); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s %s\n", styleMuted.Render("status:"), styleValue.Render(res.Status.String()))
	return err
}

