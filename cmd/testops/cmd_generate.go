package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"testops/internal/complexity"
	"testops/internal/pipeline"
	"testops/internal/requirements"

	"github.com/spf13/cobra"
)

var generateJSON bool

// generateCmd drafts a test for a requirement and validates it
var generateCmd = &cobra.Command{
	Use:   "generate [requirement]",
	Short: "Draft an Allure test for a requirement and validate it",
	Long: `Sends the requirement to the configured model, extracts the code from the
reply and runs the structural checks over it.

Requirements may be written as "type: description".

Example:
  testops generate "login: user can sign in with email"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

var complexityJSON bool

// complexityCmd estimates how hard a drafted test is
var complexityCmd = &cobra.Command{
	Use:   "complexity [file]",
	Short: "Estimate the complexity of a test file (stdin when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runComplexity,
}

// coverageCmd computes requirement coverage
var coverageCmd = &cobra.Command{
	Use:   "coverage [tested] [total]",
	Short: "Print tested/total as a percentage",
	Args:  cobra.ExactArgs(2),
	RunE:  runCoverage,
}

func init() {
	generateCmd.Flags().BoolVar(&generateJSON, "json", false, "Print the result as JSON")
	complexityCmd.Flags().BoolVar(&complexityJSON, "json", false, "Print the estimate as JSON")
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	text := joinArgs(args)
	req, err := requirements.Parse(text)
	if err != nil {
		return err
	}
	logger.Sugar().Debugw("generating test", "type", req.Type, "desc", req.Description)

	ctx, cancel := signalContext()
	defer cancel()

	st, closeStore, err := openStore(false)
	if err != nil {
		return err
	}
	defer closeStore()

	p, err := buildPipeline(ctx, true, st)
	if err != nil {
		return err
	}

	res, err := p.GenerateAndValidate(ctx, text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if generateJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintln(out, mutedStyle.Render("# "+req.Type+descSuffix(req)))
	fmt.Fprintln(out, res.Code)
	fmt.Fprint(out, textReport(pipeline.FileResult{
		Path:       "validation",
		Report:     res.Validation,
		Complexity: complexity.Estimate(res.Code),
	}))
	return nil
}

func descSuffix(req requirements.Requirement) string {
	if req.Description == "" {
		return ""
	}
	return ": " + req.Description
}

func runComplexity(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return err
	}

	res := complexity.Estimate(string(data))
	out := cmd.OutOrStdout()
	if complexityJSON {
		return json.NewEncoder(out).Encode(res)
	}

	fmt.Fprintf(out, "%s (score %d)\n", titleStyle.Render(string(res.Level)), res.Score)
	for _, f := range res.Factors {
		fmt.Fprintf(out, "  - %s\n", f)
	}
	return nil
}

func runCoverage(cmd *cobra.Command, args []string) error {
	tested, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("tested must be an integer: %w", err)
	}
	total, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("total must be an integer: %w", err)
	}
	if tested < 0 || total < 0 {
		return fmt.Errorf("counts must not be negative")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%.1f%%\n", requirements.Coverage(tested, total))
	return nil
}
