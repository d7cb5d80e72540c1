package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
)

// Stage is one step in the fixed execution sequence.
type Stage string

const (
	// StageIntake validates the request and extracts constraints.
	StageIntake Stage = "intake"

	// StageRetrieval grounds the run in documentation snippets.
	StageRetrieval Stage = "retrieval"

	// StageArchitecture selects the workflow pattern.
	StageArchitecture Stage = "architecture_selection"

	// StageDesign expands the pattern into a workflow design.
	StageDesign Stage = "design"

	// StageToolPlanning derives tools and imports from the design.
	StageToolPlanning Stage = "tool_planning"

	// StageComposition renders the design into artifact units.
	StageComposition Stage = "composition"

	// StageStaticValidation runs the structural check round.
	StageStaticValidation Stage = "static_validation"

	// StageRuntimeValidation runs the wiring and execution check round.
	StageRuntimeValidation Stage = "runtime_validation"

	// StageRepair patches the artifact; reached only through the
	// conditional edge after runtime validation.
	StageRepair Stage = "repair"

	// StagePackaging renders and writes the final artifact package.
	StagePackaging Stage = "packaging"
)

// Stages returns the full sequence in execution order. StageRepair appears
// in sequence position but executes only when Decide selects it.
func Stages() []Stage {
	return []Stage{
		StageIntake,
		StageRetrieval,
		StageArchitecture,
		StageDesign,
		StageToolPlanning,
		StageComposition,
		StageStaticValidation,
		StageRuntimeValidation,
		StageRepair,
		StagePackaging,
	}
}

// StageHandler executes the work of one stage.
type StageHandler interface {
	// Stage returns the stage this handler covers.
	Stage() Stage

	// Execute inspects the state and returns a partial update. The state
	// is read-only from the handler's perspective; all writes go through
	// the returned update.
	Execute(ctx context.Context, state *generation.State) (generation.Update, error)
}

// StageStatus is the progress status of a stage.
type StageStatus string

const (
	StatusRunning   StageStatus = "running"
	StatusCompleted StageStatus = "completed"
	StatusFailed    StageStatus = "failed"
)

// StageProgress is one progress event emitted during a run.
type StageProgress struct {
	Stage      Stage       `json:"stage"`
	Status     StageStatus `json:"status"`
	Message    string      `json:"message"`
	Percentage int         `json:"percentage"`
}

// ProgressCallback receives progress events during a run.
type ProgressCallback func(progress StageProgress)

// Decision is the branch outcome after runtime validation.
type Decision string

const (
	// DecisionRepair loops back through the repair coordinator.
	DecisionRepair Decision = "repair"

	// DecisionPackage proceeds to packaging, with any residual failures
	// attached to the manifest.
	DecisionPackage Decision = "package"
)

// Decide evaluates the repair branch. Skipped reports do not trigger repair
// on their own; the failing prerequisite that caused them does.
func Decide(reports []generation.Report, attempts, max int) Decision {
	anyFailed := false
	for _, r := range reports {
		if r.Failed() {
			anyFailed = true
			break
		}
	}
	if anyFailed && attempts < max {
		return DecisionRepair
	}
	return DecisionPackage
}

// Fatal conditions. ValidationFailure and repair exhaustion are not errors:
// they flow through reports and the manifest.
var (
	// ErrEmptyRequest indicates a request with no text (InputError).
	ErrEmptyRequest = errors.New("request text is empty")

	// ErrStageFailure wraps an error raised inside a stage handler.
	ErrStageFailure = errors.New("stage failure")

	// ErrMissingHandler indicates a runner built without full stage cover.
	ErrMissingHandler = errors.New("missing stage handler")
)

// Config configures the pipeline runner.
type Config struct {
	// MaxAttempts bounds the repair loop. Default: 3.
	MaxAttempts int `koanf:"max_attempts" json:"max_attempts"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 0, got %d", c.MaxAttempts)
	}
	return nil
}
