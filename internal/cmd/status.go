package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/legaltrack/pjnsync/internal/errors"
	"github.com/legaltrack/pjnsync/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the manager's last status snapshot",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	state, err := rt.store.LoadManagerState(ctx)
	if errors.Is(err, errors.ErrNotFound) {
		fmt.Println("No status snapshot yet. Is the manager running?")
		return nil
	}
	if err != nil {
		return err
	}

	running := "stopped"
	if state.IsRunning {
		running = "running"
	}
	fmt.Printf("Manager: %s (last poll %s)\n", running, state.LastPoll.Format(time.RFC3339))
	fmt.Printf("Enabled: %t  Service available: %t\n", state.Enabled, state.ServiceAvailable)
	if state.MaintenanceMessage != "" {
		fmt.Printf("Maintenance: %s\n", state.MaintenanceMessage)
	}
	fmt.Println()

	kinds := make([]string, 0, len(state.Workers))
	for kind := range state.Workers {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tQUEUE\tRUNNING\tDESIRED\tSCHEDULE\tNOTE")
	for _, kind := range kinds {
		st := state.Workers[model.WorkerKind(kind)]
		within := "outside"
		if st.WithinSchedule {
			within = "within"
		}
		note := st.Reason
		if st.Error != "" {
			note = "error: " + st.Error
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\n",
			kind, st.QueueDepth, st.CurrentInstances, st.DesiredInstances, within, note)
	}
	return w.Flush()
}
