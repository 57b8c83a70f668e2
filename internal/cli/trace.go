package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/navqueue/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunToken string
}

// RunTrace is a journaled run read back from the database.
type RunTrace struct {
	Run         journal.Run          `json:"run"`
	Submissions []journal.Submission `json:"submissions"`
	Events      []journal.Record     `json:"events,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect journaled runs",
		Long: `Read router events back from a journal written by "run --db".

Without --run, lists every journaled run. With --run, shows one row per
call: its kind, how many turns and mutations it took, refusals, and how it
ended. --verbose adds the raw event list.

Examples:
  navqueue trace --db ./navqueue.db
  navqueue trace --db ./navqueue.db --run 0192f3a4-...
  navqueue trace --db ./navqueue.db --run run-fifo --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal database path (overrides NAVQUEUE_DB)")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to show")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := withContext(cmd.Context())

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.Config.DB
	}
	if dbPath == "" {
		return NewExitError(ExitCommandError, "no journal: pass --db or set NAVQUEUE_DB")
	}

	j, err := journal.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	if opts.RunToken == "" {
		runs, err := j.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if formatter.JSON() {
			return formatter.Success(runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(formatter.Writer, "No runs recorded.")
			return nil
		}
		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, []string{r.Token, r.Label, r.Policy})
		}
		return formatter.Table([]string{"Run", "Scenario", "Policy"}, rows)
	}

	run, err := j.ReadRunInfo(ctx, opts.RunToken)
	if err != nil {
		if formatter.JSON() {
			if ferr := formatter.Error(CodeNotFound, err.Error(), nil); ferr != nil {
				return ferr
			}
		}
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	subs, err := j.Summaries(ctx, run.Token)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize run", err)
	}
	out := RunTrace{Run: run, Submissions: subs}
	if opts.Verbose {
		out.Events, err = j.ReadRun(ctx, run.Token)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read events", err)
		}
	}

	if formatter.JSON() {
		return formatter.Success(out)
	}
	return outputTraceText(formatter, out)
}

func outputTraceText(f *OutputFormatter, out RunTrace) error {
	w := f.Writer

	fmt.Fprintf(w, "Run: %s\n", out.Run.Token)
	fmt.Fprintf(w, "Scenario: %s\n", out.Run.Label)
	fmt.Fprintf(w, "Policy: %s\n", out.Run.Policy)
	fmt.Fprintln(w)

	if len(out.Submissions) == 0 {
		fmt.Fprintln(w, "  (no events)")
		return nil
	}

	rows := make([][]string, 0, len(out.Submissions))
	for _, s := range out.Submissions {
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.Kind,
			strconv.Itoa(s.Turns),
			strconv.Itoa(s.Mutations),
			strconv.Itoa(s.Refusals),
			outcome(s),
		})
	}
	if err := f.Table([]string{"ID", "Kind", "Turns", "Mutations", "Refusals", "Outcome"}, rows); err != nil {
		return err
	}

	if len(out.Events) > 0 {
		fmt.Fprintln(w)
		rows := make([][]string, 0, len(out.Events))
		for _, ev := range out.Events {
			rows = append(rows, []string{
				strconv.FormatInt(ev.Seq, 10),
				strconv.FormatInt(ev.Submission, 10),
				ev.Type,
				eventDetail(ev),
			})
		}
		if err := f.Table([]string{"Seq", "Submission", "Event", "Detail"}, rows); err != nil {
			return err
		}
	}
	return nil
}

// outcome summarizes how a submission ended.
func outcome(s journal.Submission) string {
	var text string
	switch {
	case !s.Completed:
		text = "pending"
	case s.OK:
		text = "true"
	case s.Error != "":
		text = "false: " + s.Error
	default:
		text = "false"
	}
	if s.Interrupted {
		text += " (interrupted)"
	}
	if s.Cancelled {
		text += " (cancelled)"
	}
	return text
}

func eventDetail(rec journal.Record) string {
	switch rec.Type {
	case "submitted":
		return "kind=" + rec.Kind
	case "executed":
		return "mutations=" + strconv.Itoa(rec.Mutations)
	case "resolved", "completed":
		if rec.Error != "" {
			return "ok=" + strconv.FormatBool(rec.OK) + " error=" + rec.Error
		}
		return "ok=" + strconv.FormatBool(rec.OK)
	case "refused":
		return "policy=" + rec.Policy
	}
	return ""
}
