package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"github.com/roach88/navqueue/internal/harness"
	"github.com/roach88/navqueue/internal/journal"
	"github.com/roach88/navqueue/internal/router"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Policy   string
	Metrics  bool

	// TokenGenerator names journaled runs without a run_token. Defaults to
	// UUIDv7Generator.
	TokenGenerator router.TokenGenerator
}

// RunResult is the output of the run command.
type RunResult struct {
	Scenario string `json:"scenario"`
	Policy   string `json:"policy"`
	harness.Result
	Metrics []MetricValue `json:"metrics,omitempty"`
	Journal string        `json:"journal,omitempty"`
}

// MetricValue is one sample of a router metric.
type MetricValue struct {
	Name   string `json:"name"`
	Labels string `json:"labels,omitempty"`
	Value  string `json:"value"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and print its trace",
		Long: `Run a scenario against a fresh router and in-memory host.

Prints every step, host operation and router event in order, followed by
the result of each call and the final host stack. With --db, router events
are also written to a SQLite journal that the trace command can read back.

Exit codes:
  0 - Scenario ran and every assertion held
  1 - One or more assertions failed
  2 - Command error (unreadable scenario, bad policy, journal error)

Examples:
  navqueue run ./scenarios/login.yaml
  navqueue run ./scenarios/login.yaml --policy ignore
  navqueue run ./scenarios/login.yaml --db ./navqueue.db --metrics
  navqueue run ./scenarios/login.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal database path (overrides NAVQUEUE_DB)")
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "state-loss policy, overriding the scenario's (postpone|ignore|error)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print router metrics after the run")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	log := opts.logger()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	if err := applyPolicy(scenario, opts.Policy, opts.Config.Policy); err != nil {
		return WrapExitError(ExitCommandError, "invalid policy", err)
	}

	ctx, stop := signal.NotifyContext(withContext(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runOpts := []harness.Option{
		harness.WithLogger(log),
		harness.WithSettleTimeout(opts.settleTimeout()),
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.Config.DB
	}
	var recorder *journal.Recorder
	if dbPath != "" {
		if scenario.RunToken == "" {
			gen := opts.TokenGenerator
			if gen == nil {
				gen = router.UUIDv7Generator{}
			}
			scenario.RunToken = gen.Generate()
		}

		j, err := journal.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()

		recorder, err = j.Recorder(ctx, journal.Run{
			Token:  scenario.RunToken,
			Label:  scenario.Name,
			Policy: scenario.Policy,
		}, log)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start journal run", err)
		}
		runOpts = append(runOpts, harness.WithObserver(recorder))
		formatter.VerboseLog("Journaling run %s to %s", scenario.RunToken, dbPath)
	}

	var registry *prometheus.Registry
	if opts.Metrics || opts.Config.Metrics {
		registry = prometheus.NewRegistry()
		runOpts = append(runOpts, harness.WithMetrics(router.NewMetrics(registry)))
	}

	log.Debug("running scenario", "scenario", scenario.Name, "policy", scenario.Policy, "steps", len(scenario.Steps))
	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}
	if recorder != nil {
		if err := recorder.Err(); err != nil {
			return WrapExitError(ExitCommandError, "journal write failed", err)
		}
	}

	out := RunResult{
		Scenario: scenario.Name,
		Policy:   scenario.Policy,
		Result:   *result,
	}
	if dbPath != "" {
		out.Journal = dbPath
	}
	if registry != nil {
		out.Metrics, err = gatherMetrics(registry)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to gather metrics", err)
		}
	}

	if formatter.JSON() {
		if !result.Pass {
			if err := formatter.Failure(out, CodeScenarioFailed, "scenario failed"); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "scenario failed")
		}
		return formatter.Success(out)
	}

	if err := outputRunText(formatter, out); err != nil {
		return err
	}
	if !result.Pass {
		return NewExitError(ExitFailure, "scenario failed")
	}
	return nil
}

// applyPolicy sets the scenario's policy: the override when given, else the
// scenario's own, else def.
func applyPolicy(s *harness.Scenario, override string, def router.StateLossPolicy) error {
	switch {
	case override != "":
		p, err := router.ParsePolicy(override)
		if err != nil {
			return err
		}
		s.Policy = p.String()
	case s.Policy == "":
		s.Policy = def.String()
	}
	return nil
}

func gatherMetrics(reg *prometheus.Registry) ([]MetricValue, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}

	var values []MetricValue
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}

			var value string
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				value = formatFloat(m.GetCounter().GetValue())
			case dto.MetricType_GAUGE:
				value = formatFloat(m.GetGauge().GetValue())
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				value = fmt.Sprintf("count=%d sum=%s", h.GetSampleCount(), formatFloat(h.GetSampleSum()))
			default:
				continue
			}

			values = append(values, MetricValue{
				Name:   mf.GetName(),
				Labels: strings.Join(labels, ","),
				Value:  value,
			})
		}
	}
	return values, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func outputRunText(f *OutputFormatter, out RunResult) error {
	w := f.Writer

	fmt.Fprintf(w, "Scenario: %s (policy %s, run %s)\n", out.Scenario, out.Policy, out.RunToken)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Trace ===")
	for i, rec := range out.Trace {
		fmt.Fprintf(w, "  [%d] %s\n", i+1, traceLine(rec))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Results ===")
	if len(out.Labels) == 0 {
		fmt.Fprintln(w, "  (no calls)")
	} else {
		rows := make([][]string, 0, len(out.Labels))
		for _, label := range out.Labels {
			rows = append(rows, []string{label, out.Results[label]})
		}
		if err := f.Table([]string{"Call", "Result"}, rows); err != nil {
			return err
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Host ===")
	fmt.Fprintf(w, "  Stack:   %s\n", joinOrNone(out.Stack, " > "))
	fmt.Fprintf(w, "  Dialogs: %s\n", joinOrNone(out.Dialogs, ", "))

	if len(out.Metrics) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Metrics ===")
		rows := make([][]string, 0, len(out.Metrics))
		for _, m := range out.Metrics {
			rows = append(rows, []string{m.Name, m.Labels, m.Value})
		}
		if err := f.Table([]string{"Metric", "Labels", "Value"}, rows); err != nil {
			return err
		}
	}
	if out.Journal != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Journal: %s (run %s)\n", out.Journal, out.RunToken)
	}

	fmt.Fprintln(w)
	writeVerdict(w, out.Scenario, &out.Result)
	return nil
}

// traceLine renders a record with the fields that matter for its kind.
func traceLine(rec harness.Record) string {
	line := rec.String()
	if rec.Event == "" {
		return line
	}

	switch router.EventType(rec.Event) {
	case router.EventSubmitted:
		line += " kind=" + rec.Kind
	case router.EventExecuted:
		line += " mutations=" + strconv.Itoa(rec.Mutations)
	case router.EventResolved, router.EventCompleted:
		line += " ok=" + strconv.FormatBool(rec.OK)
	case router.EventRefused:
		line += " policy=" + rec.Policy
	}
	if rec.Error != "" {
		line += " error=" + strconv.Quote(rec.Error)
	}
	return line
}

func writeVerdict(w io.Writer, name string, result *harness.Result) {
	if result.Pass {
		fmt.Fprintf(w, "✓ %s\n", name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", name)
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func joinOrNone(items []string, sep string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, sep)
}

// withContext returns ctx, or Background when a command runs without one.
func withContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
