package validation

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

var runnerTracer = otel.Tracer("foundryd.validation.runner")

// DefaultMaxParallel bounds the check fan-out.
const DefaultMaxParallel = 4

// foundational is the optional marker for checks that gate their round.
type foundational interface {
	Foundational() bool
}

// Runner executes a check list. Checks run concurrently up to maxParallel,
// each writing its report into an index-addressed slot, so the report order
// and content are identical to sequential execution.
type Runner struct {
	checks      []Check
	maxParallel int
	logger      *zap.Logger
}

// NewRunner creates a runner over a fixed check list.
func NewRunner(checks []Check, maxParallel int, logger *zap.Logger) *Runner {
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{checks: checks, maxParallel: maxParallel, logger: logger}
}

// Run inspects the units with every check and returns one report per check
// in list order. A failing foundational check short-circuits the round: the
// remaining checks are reported as skipped, never silently passed.
func (r *Runner) Run(ctx context.Context, units []generation.Unit) []generation.Report {
	_, span := runnerTracer.Start(ctx, "validation.run")
	defer span.End()
	span.SetAttributes(attribute.Int("checks.count", len(r.checks)))

	start := time.Now()
	reports := make([]generation.Report, len(r.checks))
	begin := 0

	if len(r.checks) > 0 {
		if f, ok := r.checks[0].(foundational); ok && f.Foundational() {
			reports[0] = r.checks[0].Inspect(units)
			begin = 1
			if reports[0].Failed() {
				for i := 1; i < len(r.checks); i++ {
					reports[i] = generation.Report{
						Check:   r.checks[i].Name(),
						Skipped: true,
						Message: "skipped: " + r.checks[0].Name() + " failed",
					}
				}
				r.logRound(span, reports, time.Since(start))
				return reports
			}
		}
	}

	sem := make(chan struct{}, r.maxParallel)
	var wg sync.WaitGroup
	for i := begin; i < len(r.checks); i++ {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				reports[i] = generation.Report{
					Check:   check.Name(),
					Message: "check cancelled: " + ctx.Err().Error(),
				}
				return
			}

			reports[i] = check.Inspect(units)
		}(i, r.checks[i])
	}
	wg.Wait()

	r.logRound(span, reports, time.Since(start))
	return reports
}

func (r *Runner) logRound(span trace.Span, reports []generation.Report, elapsed time.Duration) {
	passed, failed := 0, 0
	for _, rep := range reports {
		switch {
		case rep.Passed:
			passed++
		case !rep.Skipped:
			failed++
		}
	}
	span.SetAttributes(
		attribute.Int("checks.passed", passed),
		attribute.Int("checks.failed", failed),
	)
	r.logger.Debug("validation round complete",
		zap.Int("checks", len(reports)),
		zap.Int("passed", passed),
		zap.Int("failed", failed),
		zap.Duration("duration", elapsed))
}
