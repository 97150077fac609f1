// =============================================================================
// Sales ETL - Pipeline Orchestrator
// =============================================================================
//
// The pipeline runs the three stages in sequence as a small state machine:
//
//   pending --extract--> extracted --transform--> transformed --load--> loaded
//       \___________________\______________________\________________> failed
//
// Any stage failure moves the run to the absorbing failed state and the
// remaining stages are not run. A run succeeds only when it reaches loaded
// (or transformed, for a dry run).
//
// Each run gets a UUID. The run id is attached to the logger carried in the
// context, so every stage logs with it. A plain-text run summary is written
// when a summary directory is configured, together with a validation error
// log when the transform stage rejects the dataset.
//
// =============================================================================

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/sales-etl/internal/loader"
	"github.com/ginjaninja78/sales-etl/internal/logger"
	"github.com/ginjaninja78/sales-etl/internal/transformer"
	"github.com/ginjaninja78/sales-etl/internal/types"
	"github.com/ginjaninja78/sales-etl/internal/validation"
	"github.com/ginjaninja78/sales-etl/pkg/utils"
)

// ErrStageFailed wraps the error of whichever stage stopped the run.
var ErrStageFailed = errors.New("pipeline stage failed")

// =============================================================================
// STAGE INTERFACES
// =============================================================================

// Extractor produces the unified dataset.
type Extractor interface {
	Extract(ctx context.Context) (*types.RawDataset, error)
}

// Transformer normalizes the unified dataset.
type Transformer interface {
	Transform(ctx context.Context, raw *types.RawDataset) (*types.SalesDataset, error)
}

// Loader persists the normalized dataset.
type Loader interface {
	Load(ctx context.Context, ds *types.SalesDataset) (loader.Result, error)
}

// =============================================================================
// REPORT
// =============================================================================

// Stage names.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
)

// Stage statuses.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// StageOutcome records how one stage ended.
type StageOutcome struct {
	Stage    string
	Status   string
	Rows     int
	Duration time.Duration
	Err      error
}

// Report describes a finished run.
type Report struct {
	RunID      string
	DryRun     bool
	State      State
	StartedAt  time.Time
	FinishedAt time.Time

	// Sources lists the extracted sources in merge order.
	Sources []types.SourceInfo

	// Stages lists the stages that ran, in order.
	Stages []StageOutcome

	// Stats counts the transformer's outcome tags.
	Stats transformer.Stats

	// Load is the loader's result; zero for dry runs.
	Load loader.Result

	// SummaryPath is the run summary file, empty when none was written.
	SummaryPath string

	// ErrorLogPath lists the validation findings of a rejected transform;
	// empty unless the transform failed validation and a summary directory
	// is configured.
	ErrorLogPath string
}

// Succeeded reports whether every stage the run attempted succeeded.
func (r *Report) Succeeded() bool {
	if r.DryRun {
		return r.State == StateTransformed
	}
	return r.State == StateLoaded
}

// =============================================================================
// PIPELINE
// =============================================================================

// Options control a run.
type Options struct {
	// DryRun stops after the transform stage; nothing is written to the
	// database.
	DryRun bool

	// SummaryDir receives the run summary. Empty disables it.
	SummaryDir string
}

// Pipeline wires the three stages together.
type Pipeline struct {
	extractor   Extractor
	transformer Transformer
	loader      Loader
	opts        Options
}

// New creates a Pipeline.
func New(e Extractor, t Transformer, l Loader, opts Options) *Pipeline {
	return &Pipeline{extractor: e, transformer: t, loader: l, opts: opts}
}

// Run executes Extract, Transform and Load in sequence.
//
// RETURNS:
//   - The run report. It is returned even when the run fails.
//   - An error wrapping ErrStageFailed and the stage's own error.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		DryRun:    p.opts.DryRun,
		StartedAt: time.Now(),
	}

	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{"run_id": report.RunID})
	ctx = logger.WithContext(ctx, log)

	log.Info().Bool("dry_run", p.opts.DryRun).Msg("pipeline started")

	m := &machine{state: StatePending}
	runErr := p.execute(ctx, m, report)

	report.State = m.state
	report.FinishedAt = time.Now()

	var invariant *transformer.InvariantError
	if p.opts.SummaryDir != "" && errors.As(runErr, &invariant) {
		path, err := writeErrorLog(invariant, report.RunID, p.opts.SummaryDir)
		if err != nil {
			log.Warn().Err(err).Msg("failed to write validation error log")
		} else {
			report.ErrorLogPath = path
		}
	}

	if p.opts.SummaryDir != "" {
		path, err := utils.WriteSummaryLog(summaryOf(report), p.opts.SummaryDir)
		if err != nil {
			log.Warn().Err(err).Msg("failed to write run summary")
		} else {
			report.SummaryPath = path
		}
	}

	event := log.Info()
	if runErr != nil {
		event = log.Error().Err(runErr)
	}
	event.
		Str("state", report.State.String()).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("pipeline finished")

	return report, runErr
}

// step is one stage of the run.
type step struct {
	name    string
	message string
	run     func(ctx context.Context) (rows int, err error)
}

// execute runs the stages, stopping at the first failure.
func (p *Pipeline) execute(ctx context.Context, m *machine, report *Report) error {
	log := logger.FromContext(ctx)

	var raw *types.RawDataset
	var sales *types.SalesDataset

	steps := []step{
		{StageExtract, "extracting data", func(ctx context.Context) (int, error) {
			var err error
			if raw, err = p.extractor.Extract(ctx); err != nil {
				return 0, err
			}
			report.Sources = raw.Sources
			return raw.Len(), nil
		}},
		{StageTransform, "transforming data", func(ctx context.Context) (int, error) {
			var err error
			if sales, err = p.transformer.Transform(ctx, raw); err != nil {
				return 0, err
			}
			report.Stats = transformer.Summarize(sales)
			return sales.Len(), nil
		}},
		{StageLoad, "loading data", func(ctx context.Context) (int, error) {
			res, err := p.loader.Load(ctx, sales)
			report.Load = res
			return res.Inserted, err
		}},
	}
	if p.opts.DryRun {
		steps = steps[:2]
	}

	for _, s := range steps {
		start := time.Now()
		rows, err := 0, ctx.Err()
		if err == nil {
			log.Info().Str("stage", s.name).Msg(s.message)
			rows, err = s.run(ctx)
		}
		if err == nil {
			err = m.advance()
		}

		outcome := StageOutcome{
			Stage:    s.name,
			Status:   StatusOK,
			Rows:     rows,
			Duration: time.Since(start),
			Err:      err,
		}

		if err != nil {
			outcome.Status = StatusFailed
			if errors.Is(err, loader.ErrNothingToLoad) {
				outcome.Status = StatusSkipped
			}
			report.Stages = append(report.Stages, outcome)
			m.fail()
			log.Error().Err(err).Str("stage", s.name).Msg("stage failed")
			return fmt.Errorf("%w: %s: %w", ErrStageFailed, s.name, err)
		}

		report.Stages = append(report.Stages, outcome)
		log.Info().
			Str("stage", s.name).
			Int("rows", rows).
			Dur("duration", outcome.Duration).
			Msg("stage finished")
	}

	return nil
}

// writeErrorLog writes the findings of a rejected transform next to the run
// summary.
func writeErrorLog(ie *transformer.InvariantError, runID, dir string) (string, error) {
	if err := utils.EnsureDirectories(dir); err != nil {
		return "", err
	}
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	name := utils.GenerateOutputFileName("validation_errors_{date}_{run}", map[string]string{"run": short}, ".log")
	path := filepath.Join(dir, name)
	if err := validation.WriteErrorLog(ie.Result.Errors, path); err != nil {
		return "", err
	}
	return path, nil
}

// summaryOf converts a report for the run summary file.
func summaryOf(r *Report) utils.RunSummary {
	s := utils.RunSummary{
		RunID:      r.RunID,
		StartTime:  r.StartedAt,
		EndTime:    r.FinishedAt,
		DryRun:     r.DryRun,
		Succeeded:  r.Succeeded(),
		FinalState: r.State.String(),
		ErrorLog:   r.ErrorLogPath,
	}

	for _, src := range r.Sources {
		s.Sources = append(s.Sources, utils.SourceSummary{Name: src.Name, Path: src.Path, Rows: src.Rows})
	}

	for _, st := range r.Stages {
		ss := utils.StageSummary{Name: st.Stage, Status: st.Status, Rows: st.Rows, Duration: st.Duration}
		if st.Err != nil {
			ss.Error = st.Err.Error()
		}
		s.Stages = append(s.Stages, ss)
	}

	if r.Stats.Records > 0 {
		s.Counters = []utils.Counter{
			{Label: "quantity defaulted", Value: r.Stats.QuantityDefaulted},
			{Label: "quantity coerced", Value: r.Stats.QuantityCoerced},
			{Label: "price defaulted", Value: r.Stats.PriceDefaulted},
			{Label: "price coerced", Value: r.Stats.PriceCoerced},
			{Label: "dates missing", Value: r.Stats.DatesMissing},
			{Label: "dates unparseable", Value: r.Stats.DatesUnparseable},
			{Label: "invalid ids", Value: r.Stats.InvalidIDs},
			{Label: "unknown currency", Value: r.Stats.UnknownCurrency},
		}
	}

	return s
}
