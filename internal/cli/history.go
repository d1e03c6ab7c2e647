package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/thumbatlas/pkg/config"
	"github.com/matzehuels/thumbatlas/pkg/history"
	"github.com/matzehuels/thumbatlas/pkg/status"
)

// historyCommand creates the history command.
func (c *CLI) historyCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent atlas generation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := c.settings()
			if cfg.History.Backend == config.BackendNone {
				printInfo("Run history is disabled")
				printDetail("Set [history] backend = %q to record runs", config.BackendMongo)
				return nil
			}

			store, err := openHistoryStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				printInfo("No runs recorded")
				return nil
			}
			fmt.Println(renderRuns(runs, time.Now()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "number of runs to show")
	return cmd
}

// renderRuns formats runs as a table, newest first.
func renderRuns(runs []history.Run, now time.Time) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		size := "—"
		if r.AtlasWidth > 0 {
			size = fmt.Sprintf("%dx%d", r.AtlasWidth, r.AtlasHeight)
		}
		rows = append(rows, []string{
			shortID(r.ID),
			string(r.State),
			formatRelativeTime(r.StartedAt, now),
			r.Duration().Round(time.Millisecond).String(),
			fmt.Sprintf("%d", r.Composited),
			fmt.Sprintf("%d", r.Dropped),
			size,
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Run", "Status", "Started", "Took", "Images", "Skipped", "Size").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if col != 1 || row < 0 || row >= len(runs) {
				return base
			}
			switch runs[row].State {
			case status.StateComplete:
				return base.Foreground(colorGreen)
			case status.StateError:
				return base.Foreground(colorRed)
			default:
				return base.Foreground(colorYellow)
			}
		})
	return t.Render()
}

// shortID trims a run id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
