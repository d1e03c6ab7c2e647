package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/thumbatlas/pkg/status"
)

// defaultWatchInterval is how often --watch polls the status store.
const defaultWatchInterval = 500 * time.Millisecond

// statusCommand creates the status command.
func (c *CLI) statusCommand() *cobra.Command {
	var (
		watch    bool
		asJSON   bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current atlas generation status",
		Long: `Status reads the shared status record. A record left in progress
longer than the stale window is reported as complete when both artifacts
exist, and as failed otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := c.settings()
			if err := cfg.Resolve(); err != nil {
				return err
			}
			store, err := openStatusStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			reader := statusReader(store, cfg, loggerFromContext(ctx))

			if watch {
				model := newWatchModel(ctx, reader.Read, interval)
				final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
				if err != nil {
					return err
				}
				if m, ok := final.(WatchModel); ok && m.Err != nil {
					return m.Err
				}
				return nil
			}

			st, err := reader.Read(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printStatus(st)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "follow the status until the run ends")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw status record")
	cmd.Flags().DurationVar(&interval, "interval", defaultWatchInterval, "poll interval for --watch")

	return cmd
}

// printStatus prints a status record.
func printStatus(st status.Status) {
	switch st.Status {
	case status.StateComplete:
		printSuccess("%s", st.Message)
	case status.StateError:
		printError("%s", st.Message)
	case status.StateInProgress:
		printInfo("%s %s", st.Message, StyleNumber.Render(fmt.Sprintf("%d%%", st.Progress)))
	default:
		printInfo("%s", st.Message)
	}
	if st.Phase != "" {
		printKeyValue("Phase", string(st.Phase))
	}
	if st.RunID != "" {
		printKeyValue("Run", st.RunID)
	}
	if st.LastUpdated != nil {
		printKeyValue("Updated", formatRelativeTime(*st.LastUpdated, time.Now()))
	}
}
