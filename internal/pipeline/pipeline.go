// Package pipeline wires generation, validation and run history together.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"testops/internal/complexity"
	"testops/internal/generator"
	"testops/internal/logging"
	"testops/internal/store"
	"testops/internal/validator"

	"golang.org/x/sync/errgroup"
)

// Recorder persists runs. *store.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, run *store.Run) (string, error)
}

// Result is the outcome of GenerateAndValidate.
type Result struct {
	Code       string           `json:"code"`
	Validation validator.Report `json:"validation"`
	RunID      string           `json:"run_id,omitempty"`
}

// FileResult is the outcome for one file in ValidateFiles.
type FileResult struct {
	Path       string            `json:"path"`
	Report     validator.Report  `json:"validation"`
	Complexity complexity.Result `json:"complexity"`
	Err        error             `json:"-"`
}

// Config holds the pipeline collaborators.
type Config struct {
	Generator    *generator.Generator
	Validator    *validator.Validator
	Recorder     Recorder      // optional
	ParseTimeout time.Duration // zero means unbounded
}

// Pipeline runs generate-then-validate and batch validation.
type Pipeline struct {
	gen          *generator.Generator
	val          *validator.Validator
	rec          Recorder
	parseTimeout time.Duration
}

// New creates a Pipeline. A nil Validator means default options.
func New(cfg Config) *Pipeline {
	val := cfg.Validator
	if val == nil {
		val = validator.New(validator.DefaultOptions())
	}
	return &Pipeline{
		gen:          cfg.Generator,
		val:          val,
		rec:          cfg.Recorder,
		parseTimeout: cfg.ParseTimeout,
	}
}

// Validator returns the validator in use.
func (p *Pipeline) Validator() *validator.Validator {
	return p.val
}

// GenerateAndValidate drafts a test for req and validates it. Failing checks
// are logged, not returned as errors; the caller gets the report either way.
func (p *Pipeline) GenerateAndValidate(ctx context.Context, req string) (Result, error) {
	if p.gen == nil {
		return Result{}, fmt.Errorf("pipeline has no generator")
	}

	code, err := p.gen.GenerateTest(ctx, req)
	if err != nil {
		return Result{}, err
	}

	report, err := p.validate(ctx, code)
	if err != nil {
		return Result{}, err
	}
	if !report.Passed() {
		logging.PipelineWarn("Generated test failed validation: %s", report)
	}

	res := Result{Code: code, Validation: report}
	res.RunID = p.record(ctx, &store.Run{
		Kind:       store.KindGenerated,
		Source:     req,
		Code:       code,
		Report:     report,
		Complexity: string(complexity.Estimate(code).Level),
	})
	return res, nil
}

// ValidateSource validates inline code and records it under name.
func (p *Pipeline) ValidateSource(ctx context.Context, name, code string) (validator.Report, string, error) {
	report, err := p.validate(ctx, code)
	if err != nil {
		return validator.Report{}, "", err
	}
	id := p.record(ctx, &store.Run{
		Kind:       store.KindInline,
		Source:     name,
		Code:       code,
		Report:     report,
		Complexity: string(complexity.Estimate(code).Level),
	})
	return report, id, nil
}

// ValidateFiles validates paths with at most limit files in flight.
// Results keep the order of paths. Unreadable files carry Err and do not
// stop the batch; only ctx ending does.
func (p *Pipeline) ValidateFiles(ctx context.Context, paths []string, limit int) ([]FileResult, error) {
	results := make([]FileResult, len(paths))

	eg, egCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		eg.SetLimit(limit)
	}

	for i, path := range paths {
		i, path := i, path
		eg.Go(func() error {
			results[i] = FileResult{Path: path}

			data, err := os.ReadFile(path)
			if err != nil {
				results[i].Err = err
				logging.PipelineWarn("Skipping %s: %v", path, err)
				return nil
			}

			code := string(data)
			report, err := p.validate(egCtx, code)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i].Report = report
			results[i].Complexity = complexity.Estimate(code)

			p.record(egCtx, &store.Run{
				Kind:       store.KindFile,
				Source:     path,
				Code:       code,
				Report:     report,
				Complexity: string(results[i].Complexity.Level),
			})
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	logging.Pipeline("Validated %d files", len(paths))
	return results, nil
}

func (p *Pipeline) validate(ctx context.Context, code string) (validator.Report, error) {
	if p.parseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.parseTimeout)
		defer cancel()
	}
	return p.val.ValidateContext(ctx, code)
}

// record stores run when a recorder is configured. Failures are logged only.
func (p *Pipeline) record(ctx context.Context, run *store.Run) string {
	if p.rec == nil {
		return ""
	}
	id, err := p.rec.Record(ctx, run)
	if err != nil {
		logging.PipelineWarn("Failed to record run: %v", err)
		return ""
	}
	return id
}
