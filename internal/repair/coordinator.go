package repair

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
	"github.com/fyrsmithlabs/foundryd/internal/validation"
)

const instrumentationName = "foundryd.repair"

var tracer = otel.Tracer(instrumentationName)

// DefaultMaxAttempts bounds the repair loop when the pipeline config does
// not override it.
const DefaultMaxAttempts = 3

// Patch fixes one category of validation failure. Apply must be idempotent:
// applying it to an already-patched artifact changes nothing.
type Patch interface {
	// Check names the report category this patch repairs.
	Check() string

	// Apply returns the patched unit list and whether anything changed.
	Apply(units []generation.Unit, report generation.Report) ([]generation.Unit, bool)
}

// Coordinator applies the registered patches to a failing artifact. Patches
// run in a fixed severity order (structural absence first), independent of
// the order reports arrive in.
type Coordinator struct {
	patches []Patch
	logger  *zap.Logger
}

// NewCoordinator creates a coordinator with the standard patch set derived
// from the validation rules. Severity order: sections, imports, scaffold,
// placeholders.
func NewCoordinator(rules validation.Rules, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		patches: []Patch{
			sectionsPatch{sections: rules.RequiredSections},
			importsPatch{imports: rules.RequiredImports},
			scaffoldPatch{},
			placeholdersPatch{},
		},
		logger: logger,
	}
}

// Repair applies every patch whose check category appears among the failing
// reports and returns the patched units plus the names of the patches that
// changed something. Failures with no registered patch are left for the
// manifest. The input unit list is never mutated.
func (c *Coordinator) Repair(ctx context.Context, units []generation.Unit, reports []generation.Report) ([]generation.Unit, []string) {
	_, span := tracer.Start(ctx, "repair.Repair")
	defer span.End()
	start := time.Now()

	failing := make(map[string]generation.Report, len(reports))
	for _, r := range reports {
		if r.Failed() {
			failing[r.Check] = r
		}
	}
	span.SetAttributes(attribute.Int("failing_checks", len(failing)))

	patched := cloneUnits(units)
	var applied []string
	for _, p := range c.patches {
		report, ok := failing[p.Check()]
		if !ok {
			continue
		}
		var changed bool
		patched, changed = p.Apply(patched, report)
		if changed {
			applied = append(applied, p.Check())
		}
	}

	span.SetAttributes(attribute.Int("patches_applied", len(applied)))
	c.logger.Info("repair cycle complete",
		zap.Int("failing_checks", len(failing)),
		zap.Strings("patches_applied", applied),
		zap.Duration("duration", time.Since(start)))
	return patched, applied
}

// ShouldRetry is the loop termination predicate: another cycle runs only
// while a genuine failure remains and attempts are left. It bounds the loop
// regardless of whether repairs succeed.
func ShouldRetry(reports []generation.Report, attempts, max int) bool {
	if attempts >= max {
		return false
	}
	for _, r := range reports {
		if r.Failed() {
			return true
		}
	}
	return false
}

func cloneUnits(units []generation.Unit) []generation.Unit {
	out := make([]generation.Unit, len(units))
	for i, u := range units {
		out[i] = u
		if u.Metadata != nil {
			out[i].Metadata = make(map[string]string, len(u.Metadata))
			for k, v := range u.Metadata {
				out[i].Metadata[k] = v
			}
		}
	}
	return out
}
