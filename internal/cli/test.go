package cli

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/navqueue/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // defaults to <scenarios-dir>/golden
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden"` // "match", "mismatch", "updated" or "none"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run every scenario in a directory",
		Long: `Run all scenario files in a directory and check them.

A scenario passes when all of its assertions hold and, if a golden file
exists for it, its trace snapshot matches the golden file byte for byte.
Golden files are named <scenario name>.golden.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  navqueue test ./scenarios
  navqueue test ./scenarios --filter "postpone_*"
  navqueue test ./scenarios --golden ./golden --update
  navqueue test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default <scenarios-dir>/golden)")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if info, err := os.Stat(scenariosDir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}
	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(scenariosDir, "golden")
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	formatter.VerboseLog("Found %d scenario file(s) in %s", len(files), scenariosDir)

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	if len(files) == 0 {
		if formatter.JSON() {
			return formatter.Success(result)
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	for _, file := range files {
		sr := runOne(opts, file, goldenDir, cmd)
		if !formatter.JSON() {
			writeScenarioLine(formatter, sr)
		}
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if formatter.JSON() {
		if result.Failed > 0 {
			msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
			if err := formatter.Failure(result, CodeScenarioFailed, msg); err != nil {
				return err
			}
			return NewExitError(ExitFailure, msg)
		}
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}

// findScenarioFiles returns the YAML files under dir, sorted by path.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

func runOne(opts *TestOptions, file, goldenDir string, cmd *cobra.Command) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file, Golden: "none"}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("load: %v", err)}
		return sr
	}
	sr.Name = scenario.Name
	if err := applyPolicy(scenario, "", opts.Config.Policy); err != nil {
		sr.Errors = []string{fmt.Sprintf("policy: %v", err)}
		return sr
	}

	result, err := harness.Run(withContext(cmd.Context()), scenario,
		harness.WithLogger(opts.logger()),
		harness.WithSettleTimeout(opts.settleTimeout()),
	)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution: %v", err)}
		return sr
	}
	sr.Errors = append(sr.Errors, result.Errors...)

	snapshot, err := harness.Snapshot(scenario.Name, result)
	if err != nil {
		sr.Errors = append(sr.Errors, fmt.Sprintf("snapshot: %v", err))
		return sr
	}

	goldenPath := filepath.Join(goldenDir, scenario.Name+".golden")
	switch {
	case opts.Update:
		if err := os.MkdirAll(goldenDir, 0o755); err != nil {
			sr.Errors = append(sr.Errors, fmt.Sprintf("golden: %v", err))
			return sr
		}
		if err := os.WriteFile(goldenPath, snapshot, 0o644); err != nil {
			sr.Errors = append(sr.Errors, fmt.Sprintf("golden: %v", err))
			return sr
		}
		sr.Golden = "updated"

	default:
		want, err := os.ReadFile(goldenPath)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			sr.Errors = append(sr.Errors, fmt.Sprintf("golden: %v", err))
			return sr
		}
		if bytes.Equal(want, snapshot) {
			sr.Golden = "match"
		} else {
			sr.Golden = "mismatch"
			sr.Errors = append(sr.Errors, "golden mismatch (run with --update to regenerate): "+firstDiff(want, snapshot))
		}
	}

	sr.Pass = len(sr.Errors) == 0
	return sr
}

// firstDiff describes the first line where want and got differ.
func firstDiff(want, got []byte) string {
	wl := strings.Split(string(want), "\n")
	gl := strings.Split(string(got), "\n")
	for i := 0; i < len(wl) || i < len(gl); i++ {
		var w, g string
		if i < len(wl) {
			w = wl[i]
		}
		if i < len(gl) {
			g = gl[i]
		}
		if w != g {
			return fmt.Sprintf("line %d: want %s, got %s", i+1, w, g)
		}
	}
	return "identical"
}

func writeScenarioLine(f *OutputFormatter, sr ScenarioResult) {
	w := f.Writer
	if !sr.Pass {
		fmt.Fprintf(w, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return
	}
	switch sr.Golden {
	case "updated":
		fmt.Fprintf(w, "✓ %s (golden updated)\n", sr.Name)
	default:
		fmt.Fprintf(w, "✓ %s\n", sr.Name)
	}
	f.VerboseLog("  %s: golden %s", sr.File, sr.Golden)
}
