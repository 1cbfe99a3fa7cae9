package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/config"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/state"
)

// StatusCommand prints per-property phase progress from the work-item
// store.
type StatusCommand struct {
	configPath string
}

// NewStatusCommand creates the status command with its flag set.
func NewStatusCommand() *cobra.Command {
	sc := &StatusCommand{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-property phase progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return sc.Execute(cmd)
		},
	}

	cmd.Flags().StringVar(&sc.configPath, "config", "", "config file path (default ./phxhomes.yaml)")

	return cmd
}

// Execute renders the work-item table. Properties are sorted by address
// so successive runs diff cleanly.
func (sc *StatusCommand) Execute(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(sc.configPath)
	if err != nil {
		return err
	}

	store, err := state.Open(cfg.Directories.WorkFile, cfg.Directories.EnrichFile,
		state.WithLockExpiry(cfg.Pipeline.LockExpiry))
	if err != nil {
		return err
	}

	items := store.Items()
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no work items; run `phxhomes run` first")

		return nil
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Address < items[j].Address })

	writeStatusTable(cmd.OutOrStdout(), items)

	return nil
}

func writeStatusTable(w io.Writer, items []*state.WorkItem) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"address", "next phase", "retries", "lock", "updated"})

	for _, item := range items {
		next := "done"

		retries := 0

		phase, pending := item.FirstIncomplete()
		if pending {
			next = string(phase)
			retries = item.Retries(phase)
		}

		lock := ""
		if item.Lock != nil {
			lock = item.Lock.Owner
		}

		t.AppendRow(table.Row{
			item.Address,
			colorPhaseStatus(item, next),
			retries,
			lock,
			item.LastUpdated.Format("2006-01-02 15:04"),
		})
	}

	t.Render()
}

// colorPhaseStatus colors the next-phase cell by how the property is
// doing: green when done, red when the pending phase already failed.
func colorPhaseStatus(item *state.WorkItem, next string) string {
	if next == "done" {
		return color.GreenString(next)
	}

	if item.Status(state.PhaseID(next)) == state.StatusFailed {
		return color.RedString(next)
	}

	return next
}
