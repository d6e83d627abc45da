package cli

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/rootsolve/internal/problem"
	"github.com/roach88/rootsolve/internal/rootfinder"
	"github.com/roach88/rootsolve/internal/testutil"
)

// LoadMode controls how errors are handled while validating a directory.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	FailFast bool
}

// ValidationError is one problem file that failed validation.
type ValidationError struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"` // residual source line, when known
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <problem-file-or-dir>",
		Short: "Validate problem files without solving",
		Long: `Validate problem files without solving them.

Each file is decoded, its CUE residual is compiled and evaluated at zero
inputs, and a rootfinder is built from its solver and options. Faster than
solve for development feedback, and nothing is iterated.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "stop at the first invalid file")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	files, err := findYAMLFiles(path, "")
	if err != nil {
		if os.IsNotExist(err) {
			return outputValidateError(formatter, ErrCodeNotFound, fmt.Sprintf("path not found: %s", path), nil)
		}
		return outputValidateError(formatter, ErrCodeScanError, err.Error(), nil)
	}
	if len(files) == 0 {
		return outputValidateError(formatter, ErrCodeNoFiles, fmt.Sprintf("no problem files found in %s", path), nil)
	}
	formatter.VerboseLog("Found %d problem file(s) in %s", len(files), path)

	mode := LoadModeCollectAll
	if opts.FailFast {
		mode = LoadModeFailFast
	}
	errs := ValidateProblems(files, mode, formatter)
	if len(errs) > 0 {
		return outputValidationErrors(formatter, len(files), errs)
	}
	return outputValidateSuccess(formatter, len(files))
}

// ValidateProblems validates each problem file in turn.
func ValidateProblems(files []string, mode LoadMode, formatter *OutputFormatter) []ValidationError {
	var errs []ValidationError
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		if err := validateProblem(file); err != nil {
			errs = append(errs, ValidationError{
				File:    file,
				Code:    ErrorCode(err),
				Message: err.Error(),
				Line:    residualLine(err),
			})
			if mode == LoadModeFailFast {
				break
			}
		}
	}
	return errs
}

// validateProblem loads a problem and builds, without solving, the
// rootfinder it describes.
func validateProblem(path string) error {
	p, err := problem.Load(path)
	if err != nil {
		return err
	}
	f, err := p.Function()
	if err != nil {
		return err
	}
	opts, err := p.OptionDict()
	if err != nil {
		return err
	}
	rf, err := rootfinder.New(p.Name, p.Solver, f, opts, rootfinder.WithLogger(testutil.DiscardLogger()))
	if err != nil {
		return err
	}
	defer rf.Close()
	return rf.Init()
}

// residualLine extracts the CUE source line of a residual error.
func residualLine(err error) int {
	for _, pos := range cueerrors.Positions(err) {
		if pos.IsValid() {
			return pos.Line()
		}
	}
	return 0
}

// findYAMLFiles returns path itself if it is a file, or every .yaml/.yml
// file below it whose base name matches filter.
func findYAMLFiles(path, filter string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := d.Name()[:len(d.Name())-len(ext)]
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	return files, err
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, files int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Files: files})
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d problem file(s) valid\n", files)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Validation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, files int, errs []ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Files: files, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s: residual line %d\n", err.File, err.Line)
		} else {
			fmt.Fprintf(formatter.Writer, "%s\n", err.File)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
