package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/scopeprobe/internal/config"
	"github.com/roach88/scopeprobe/internal/harness"
)

// ValidationError is one problem found in a file.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	File   string            `json:"file"`
	Kind   string            `json:"kind"` // "config" or "scenario"
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a config or scenario file",
		Long: `Validate a CUE config file (.cue) or a YAML scenario file (.yaml, .yml)
without running anything.

Config files are checked against the embedded schema and report the line
of the first problem.

Examples:
  scopeprobe validate ./scopeprobe.cue
  scopeprobe validate ./testdata/scenarios/cart_totals.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if _, err := os.Stat(path); err != nil {
		return outputValidateError(formatter, ErrCodeNotFound, fmt.Sprintf("file not found: %s", path))
	}

	result := ValidationResult{File: path, Valid: true}
	switch filepath.Ext(path) {
	case ".cue":
		result.Kind = "config"
		formatter.VerboseLog("Validating config: %s", path)
		if _, err := config.Load(path); err != nil {
			result.Errors = append(result.Errors, configValidationError(err))
		}
	case ".yaml", ".yml":
		result.Kind = "scenario"
		formatter.VerboseLog("Validating scenario: %s", path)
		if _, err := harness.LoadScenario(path); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Code:    ErrCodeInvalidScenario,
				Message: err.Error(),
			})
		}
	default:
		return outputValidateError(formatter, ErrCodeUnknownKind,
			fmt.Sprintf("unknown file kind %q: expected .cue, .yaml or .yml", filepath.Ext(path)))
	}

	if len(result.Errors) > 0 {
		result.Valid = false
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// configValidationError maps a config load error to a validation error,
// keeping the field and line of schema violations.
func configValidationError(err error) ValidationError {
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		ve := ValidationError{
			Code:    ErrCodeInvalidConfig,
			Field:   cfgErr.Field,
			Message: cfgErr.Message,
		}
		if cfgErr.Pos.IsValid() {
			ve.Line = cfgErr.Pos.Line()
		}
		return ve
	}
	return ValidationError{Code: ErrCodeInvalidConfig, Message: err.Error()}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %s valid\n", result.Kind)
	return nil
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs the problems found in a file.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))

	if formatter.Format == "json" {
		first := result.Errors[0]
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: first.Code, Message: first.Message},
		}); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range result.Errors {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return exitErr
}
