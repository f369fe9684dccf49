package main

import (
	"fmt"
	"io"

	"testops/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	validateFormat    string
	validatePolicy    string
	validateNamespace string
	validateJobs      int
	validateStrict    bool
)

// validateCmd checks files (or stdin) against the Allure conventions
var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate drafted test files against the Allure conventions",
	Long: `Runs the structural checks over each file. With no files the candidate is
read from stdin and, for json and yaml output, printed as the bare report.

Examples:
  testops validate tests/test_cart.py
  cat draft.py | testops validate --format json
  testops validate --strict --jobs 8 tests/*.py`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", formatText, "Output format: text, json, yaml, markdown")
	validateCmd.Flags().StringVar(&validatePolicy, "decorator-policy", "", "Decorator policy: attribute_or_call, call_only")
	validateCmd.Flags().StringVar(&validateNamespace, "namespace", "", "Reporting framework identifier (default from config)")
	validateCmd.Flags().IntVarP(&validateJobs, "jobs", "j", 0, "Files validated concurrently (default from config)")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Exit non-zero when any candidate fails")
}

func runValidate(cmd *cobra.Command, args []string) error {
	if err := validFormat(validateFormat); err != nil {
		return err
	}

	c := currentConfig()
	if validatePolicy != "" {
		c.Validator.DecoratorPolicy = validatePolicy
	}
	if validateNamespace != "" {
		c.Validator.Namespace = validateNamespace
	}
	jobs := c.Validator.Jobs
	if validateJobs > 0 {
		jobs = validateJobs
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, closeStore, err := openStore(false)
	if err != nil {
		return err
	}
	defer closeStore()

	p, err := buildPipeline(ctx, false, st)
	if err != nil {
		return err
	}

	var results []pipeline.FileResult
	bare := len(args) == 0
	if bare {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		report, _, err := p.ValidateSource(ctx, "<stdin>", string(data))
		if err != nil {
			return err
		}
		results = []pipeline.FileResult{{Path: "<stdin>", Report: report}}
	} else {
		results, err = p.ValidateFiles(ctx, args, jobs)
		if err != nil {
			return err
		}
	}

	if err := writeResults(cmd.OutOrStdout(), validateFormat, results, bare); err != nil {
		return err
	}

	if n := failures(results); validateStrict && n > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d candidates failed\n", n, len(results))
		return errChecksFailed
	}
	return nil
}
