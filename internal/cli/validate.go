package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/navqueue/internal/harness"
)

// FileValidation is the validation outcome of one scenario file.
type FileValidation struct {
	File  string `json:"file"`
	Name  string `json:"name,omitempty"`
	Steps int    `json:"steps,omitempty"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml>...",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario files against the scenario schema.

Checks each file against the CUE schema, then decodes it strictly and
checks cross-references such as unique call labels and cancel targets.
Nothing is executed.

Exit codes:
  0 - All files are valid
  1 - One or more files are invalid
  2 - Command error (unreadable file)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read scenario", err)
		}

		fv := FileValidation{File: file, Valid: true}
		scenario, err := harness.ParseScenario(data)
		if err != nil {
			fv.Valid = false
			fv.Error = err.Error()
			result.Valid = false
		} else {
			fv.Name = scenario.Name
			fv.Steps = len(scenario.Steps)
			formatter.VerboseLog("%s: scenario %s, %d step(s), %d assertion(s)", file, scenario.Name, len(scenario.Steps), len(scenario.Assertions))
		}
		result.Files = append(result.Files, fv)
	}

	invalid := 0
	for _, fv := range result.Files {
		if !fv.Valid {
			invalid++
		}
	}

	if formatter.JSON() {
		if invalid > 0 {
			msg := fmt.Sprintf("%d file(s) invalid", invalid)
			if err := formatter.Failure(result, CodeInvalid, msg); err != nil {
				return err
			}
			return NewExitError(ExitFailure, msg)
		}
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, fv := range result.Files {
		if fv.Valid {
			fmt.Fprintf(w, "✓ %s (%s, %d steps)\n", fv.File, fv.Name, fv.Steps)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n  %s\n", fv.File, fv.Error)
	}
	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d file(s) invalid", invalid))
	}
	return nil
}
