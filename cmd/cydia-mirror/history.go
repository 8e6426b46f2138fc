package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/vertextoedge/cydia-mirror/internal/adapter/sqlite"
	"github.com/vertextoedge/cydia-mirror/internal/config"
	"github.com/vertextoedge/cydia-mirror/internal/domain"
)

const historyHelp = `
This command lists previous mirror runs recorded in the run journal.
Pass --run to list the outcomes of a single run, and --failed to show
only the packages that failed.
`

type historyOptions struct {
	journal string
	limit   int
	runID   string
	failed  bool
}

func newHistoryCmd(out io.Writer) *cobra.Command {
	o := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history [save-dir]",
		Short: "show previous mirror runs",
		Long:  historyHelp,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
				return &usageError{err}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.journal == "" {
				if len(args) == 0 {
					return &usageError{errors.New("either a save directory or --journal is required")}
				}
				cfg := &config.Config{Repository: config.RepositoryConfig{SaveDir: args[0]}}
				o.journal = cfg.JournalPath()
			}
			return o.run(out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.journal, "journal", "", "run journal database (default <save-dir>.journal.db)")
	f.IntVar(&o.limit, "limit", 10, "maximum number of runs to show")
	f.StringVar(&o.runID, "run", "", "show the outcomes of this run")
	f.BoolVar(&o.failed, "failed", false, "with --run, show only failed packages")

	return cmd
}

func (o *historyOptions) run(out io.Writer) error {
	if _, err := os.Stat(o.journal); err != nil {
		return fmt.Errorf("journal %s: %w", o.journal, err)
	}

	store, err := sqlite.Open(o.journal)
	if err != nil {
		return err
	}
	defer store.Close()

	if o.runID != "" {
		return o.printOutcomes(out, store)
	}
	return o.printRuns(out, store)
}

func (o *historyOptions) printRuns(out io.Writer, store *sqlite.Store) error {
	runs, err := store.ListRuns(o.limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return nil
	}

	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("RUN", "STARTED", "STATUS", "TOTAL", "SUCCEEDED", "SKIPPED", "FAILED", "REPOSITORY")
	for _, r := range runs {
		table.AddRow(r.ID, r.StartedAt.Local().Format(time.DateTime), runStatus(r),
			r.Summary.Total, r.Summary.Succeeded, r.Summary.Skipped, r.Summary.Failed, r.RepoURL)
	}
	fmt.Fprintln(out, table)
	return nil
}

func (o *historyOptions) printOutcomes(out io.Writer, store *sqlite.Store) error {
	run, err := store.GetRun(o.runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", o.runID)
	}

	status := ""
	if o.failed {
		status = domain.OutcomeFailed
	}
	outcomes, err := store.ListOutcomes(run.ID, status)
	if err != nil {
		return err
	}

	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true
	table.AddRow("#", "PACKAGE", "FILENAME", "STATUS", "BYTES", "DURATION", "ERROR")
	for _, oc := range outcomes {
		table.AddRow(oc.Index, oc.BundleID, oc.Filename, oc.Status, oc.BytesWritten,
			oc.Duration.Round(time.Millisecond), oc.Error)
	}
	fmt.Fprintln(out, table)
	return nil
}

func runStatus(r *sqlite.RunRecord) string {
	switch {
	case r.FinishedAt == nil:
		return "running"
	case r.Summary.Aborted:
		return "aborted"
	case r.Error != "":
		return "error"
	default:
		return "ok"
	}
}
