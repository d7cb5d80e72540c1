package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
	"github.com/fyrsmithlabs/foundryd/internal/retrieval"
)

const instrumentationName = "foundryd.pipeline"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)
)

// Runner executes generation runs. The stage topology, including the
// conditional repair edge, is fixed here; handlers supply stage semantics.
type Runner struct {
	config   Config
	handlers map[Stage]StageHandler
	progress ProgressCallback
	logger   *zap.Logger

	runCounter    metric.Int64Counter
	repairCounter metric.Int64Counter
	stageDuration metric.Float64Histogram
}

// NewRunner creates a runner. Every stage must be covered by exactly one
// handler.
func NewRunner(cfg Config, logger *zap.Logger, handlers ...StageHandler) (*Runner, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	byStage := make(map[Stage]StageHandler, len(handlers))
	for _, h := range handlers {
		if _, dup := byStage[h.Stage()]; dup {
			return nil, fmt.Errorf("duplicate handler for stage %s", h.Stage())
		}
		byStage[h.Stage()] = h
	}
	for _, stage := range Stages() {
		if _, ok := byStage[stage]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingHandler, stage)
		}
	}

	r := &Runner{
		config:   cfg,
		handlers: byStage,
		logger:   logger,
	}
	r.initMetrics()
	return r, nil
}

func (r *Runner) initMetrics() {
	var err error
	r.runCounter, err = meter.Int64Counter("foundryd.pipeline.runs",
		metric.WithDescription("Completed generation runs by outcome"))
	if err != nil {
		r.logger.Warn("failed to create run counter", zap.Error(err))
	}
	r.repairCounter, err = meter.Int64Counter("foundryd.pipeline.repair_cycles",
		metric.WithDescription("Repair cycles executed"))
	if err != nil {
		r.logger.Warn("failed to create repair counter", zap.Error(err))
	}
	r.stageDuration, err = meter.Float64Histogram("foundryd.pipeline.stage.duration",
		metric.WithDescription("Stage execution duration"),
		metric.WithUnit("s"))
	if err != nil {
		r.logger.Warn("failed to create stage histogram", zap.Error(err))
	}
}

// OnProgress sets the progress callback.
func (r *Runner) OnProgress(callback ProgressCallback) {
	r.progress = callback
}

// MaxAttempts returns the configured repair bound.
func (r *Runner) MaxAttempts() int {
	return r.config.MaxAttempts
}

// Run executes one generation run. The returned state always records the
// faithful outcome; the error mirrors the state's fatal condition (nil on a
// completed run, including best-effort completions with residual failures).
func (r *Runner) Run(ctx context.Context, req generation.Request) (*generation.State, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", req.ID))
	start := time.Now()

	state := generation.NewState(req)
	if strings.TrimSpace(req.Text) == "" {
		return r.fail(ctx, span, state, StageIntake, ErrEmptyRequest)
	}

	linear := []Stage{
		StageIntake,
		StageRetrieval,
		StageArchitecture,
		StageDesign,
		StageToolPlanning,
		StageComposition,
	}
	for _, stage := range linear {
		if err := r.executeStage(ctx, stage, state); err != nil {
			return r.fail(ctx, span, state, stage, err)
		}
	}

	// Validate, then repair and re-validate while the branch allows. The
	// runner owns the attempt counter, so the loop is bounded regardless of
	// handler behavior.
	for {
		if err := r.executeStage(ctx, StageStaticValidation, state); err != nil {
			return r.fail(ctx, span, state, StageStaticValidation, err)
		}
		if err := r.executeStage(ctx, StageRuntimeValidation, state); err != nil {
			return r.fail(ctx, span, state, StageRuntimeValidation, err)
		}

		if Decide(state.Reports, state.RepairAttempts, r.config.MaxAttempts) == DecisionPackage {
			break
		}

		if err := r.executeStage(ctx, StageRepair, state); err != nil {
			return r.fail(ctx, span, state, StageRepair, err)
		}
		attempts := state.RepairAttempts + 1
		if err := state.Apply(generation.Update{RepairAttempts: &attempts}); err != nil {
			return r.fail(ctx, span, state, StageRepair, err)
		}
		if r.repairCounter != nil {
			r.repairCounter.Add(ctx, 1)
		}
	}

	if err := r.executeStage(ctx, StagePackaging, state); err != nil {
		return r.fail(ctx, span, state, StagePackaging, err)
	}

	complete := true
	if err := state.Apply(generation.Update{GenerationComplete: &complete}); err != nil {
		return r.fail(ctx, span, state, StagePackaging, err)
	}

	if r.runCounter != nil {
		r.runCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "complete")))
	}
	span.SetAttributes(
		attribute.Int("repair_attempts", state.RepairAttempts),
		attribute.Int("units", len(state.Units)),
	)
	span.SetStatus(codes.Ok, "success")

	r.logger.Info("generation run complete",
		zap.String("request_id", req.ID),
		zap.Int("units", len(state.Units)),
		zap.Int("repair_attempts", state.RepairAttempts),
		zap.Duration("duration", time.Since(start)))
	return state, nil
}

// executeStage runs one stage and merges its update. Handler panics are
// recovered and surfaced as stage failures, never re-raised.
func (r *Runner) executeStage(ctx context.Context, stage Stage, state *generation.State) (err error) {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: run abandoned before stage %s: %v", ErrStageFailure, stage, ctx.Err())
	default:
	}

	ctx, span := tracer.Start(ctx, "pipeline.stage."+string(stage))
	defer span.End()
	start := time.Now()

	r.reportProgress(StageProgress{
		Stage:      stage,
		Status:     StatusRunning,
		Message:    fmt.Sprintf("running stage %s", stage),
		Percentage: stagePercent(stage, false),
	})

	defer func() {
		if r.stageDuration != nil {
			r.stageDuration.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(attribute.String("stage", string(stage))))
		}
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic in stage %s: %v", ErrStageFailure, stage, rec)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	update, err := r.handlers[stage].Execute(ctx, state)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("stage %s: %w", stage, err)
	}
	if err := state.Apply(update); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("stage %s: merging update: %w", stage, err)
	}

	span.SetStatus(codes.Ok, "success")
	r.reportProgress(StageProgress{
		Stage:      stage,
		Status:     StatusCompleted,
		Message:    fmt.Sprintf("completed stage %s", stage),
		Percentage: stagePercent(stage, true),
	})
	return nil
}

// fail records a fatal condition into the state and terminates the run. The
// state becomes terminal with GenerationComplete=false; the error is
// returned for errors.Is mapping at the API boundary.
func (r *Runner) fail(ctx context.Context, span trace.Span, state *generation.State, stage Stage, err error) (*generation.State, error) {
	msg := fmt.Sprintf("%s: %v", taxonomy(err), err)
	if applyErr := state.Apply(generation.Update{ErrorMessage: &msg}); applyErr != nil {
		r.logger.Error("failed to record fatal error", zap.Error(applyErr))
	}

	if r.runCounter != nil {
		r.runCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
	}
	span.SetStatus(codes.Error, msg)

	r.reportProgress(StageProgress{
		Stage:   stage,
		Status:  StatusFailed,
		Message: msg,
	})
	r.logger.Error("generation run failed",
		zap.String("request_id", state.Request.ID),
		zap.String("stage", string(stage)),
		zap.Error(err))
	return state, err
}

// taxonomy names the fatal condition class for the error message.
func taxonomy(err error) string {
	switch {
	case errors.Is(err, ErrEmptyRequest):
		return "input error"
	case errors.Is(err, retrieval.ErrIndexUnavailable):
		return "retrieval unavailable"
	default:
		return "stage failure"
	}
}

func (r *Runner) reportProgress(progress StageProgress) {
	if r.progress != nil {
		r.progress(progress)
	}
}

// stagePercent maps a stage to its completion percentage in the nominal
// (no-repair) sequence.
func stagePercent(stage Stage, completed bool) int {
	stages := Stages()
	for i, s := range stages {
		if s == stage {
			if completed {
				i++
			}
			return (i * 100) / len(stages)
		}
	}
	return 0
}
