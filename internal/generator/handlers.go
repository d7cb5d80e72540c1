package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/foundryd/internal/composer"
	"github.com/fyrsmithlabs/foundryd/internal/generation"
	"github.com/fyrsmithlabs/foundryd/internal/pipeline"
	"github.com/fyrsmithlabs/foundryd/internal/validation"
)

// stageFunc adapts a function to pipeline.StageHandler.
type stageFunc struct {
	stage   pipeline.Stage
	execute func(ctx context.Context, state *generation.State) (generation.Update, error)
}

func (h stageFunc) Stage() pipeline.Stage { return h.stage }

func (h stageFunc) Execute(ctx context.Context, state *generation.State) (generation.Update, error) {
	return h.execute(ctx, state)
}

// handlers returns the full stage cover. Stage semantics live here; the
// pipeline runner owns only the topology.
func (s *Service) handlers() []pipeline.StageHandler {
	return []pipeline.StageHandler{
		stageFunc{pipeline.StageIntake, s.intake},
		stageFunc{pipeline.StageRetrieval, s.retrieve},
		stageFunc{pipeline.StageArchitecture, s.selectArchitecture},
		stageFunc{pipeline.StageDesign, s.design},
		stageFunc{pipeline.StageToolPlanning, s.planTools},
		stageFunc{pipeline.StageComposition, s.compose},
		stageFunc{pipeline.StageStaticValidation, s.validateStatic},
		stageFunc{pipeline.StageRuntimeValidation, s.validateRuntime},
		stageFunc{pipeline.StageRepair, s.repairArtifact},
		stageFunc{pipeline.StagePackaging, s.packageRun},
	}
}

func (s *Service) intake(ctx context.Context, state *generation.State) (generation.Update, error) {
	constraints, err := s.extractor.Extract(ctx, state.Request.Text, state.Request.Hints)
	if err != nil {
		return generation.Update{}, fmt.Errorf("extracting constraints: %w", err)
	}
	return generation.Update{Constraints: constraints}, nil
}

// retrieve issues one sub-query per candidate pattern plus the base query,
// all against the same immutable snapshot, and merges the hits in query
// order with per-chunk deduplication.
func (s *Service) retrieve(ctx context.Context, state *generation.State) (generation.Update, error) {
	queries := []string{state.Request.Text}
	for _, p := range generation.Patterns() {
		queries = append(queries, fmt.Sprintf("%s %s agent workflow", state.Request.Text, p))
	}

	results, err := s.index.RetrieveMany(ctx, queries, s.config.RetrieveK)
	if err != nil {
		return generation.Update{}, err
	}

	seen := make(map[string]bool)
	var snippets []generation.Snippet
	for _, hits := range results {
		for _, hit := range hits {
			if seen[hit.ID] {
				continue
			}
			seen[hit.ID] = true
			snippets = append(snippets, generation.Snippet{
				Content: hit.Content,
				Source:  hit.Source,
				Heading: hit.Heading,
				Score:   hit.Score,
			})
		}
	}
	return generation.Update{Snippets: snippets}, nil
}

func (s *Service) selectArchitecture(_ context.Context, state *generation.State) (generation.Update, error) {
	if hint, ok := state.Request.Hints["architecture"]; ok {
		pattern := generation.ArchitecturePattern(hint)
		if !pattern.Valid() {
			return generation.Update{}, fmt.Errorf("architecture hint %q outside the closed pattern set", hint)
		}
		selection := generation.ArchitectureSelection{
			Pattern:       pattern,
			Justification: "requested by caller hint",
		}
		return generation.Update{Architecture: &selection}, nil
	}

	selection := composer.SelectArchitecture(state.Constraints, state.Snippets)
	return generation.Update{Architecture: &selection}, nil
}

func (s *Service) design(_ context.Context, state *generation.State) (generation.Update, error) {
	design := composer.DesignWorkflow(state.Request, state.Architecture, state.Constraints)
	return generation.Update{Design: &design}, nil
}

func (s *Service) planTools(_ context.Context, state *generation.State) (generation.Update, error) {
	if state.Design == nil {
		return generation.Update{}, errors.New("no design to plan tools for")
	}
	plan := composer.PlanTools(*state.Design, state.Constraints)
	return generation.Update{ToolPlan: &plan}, nil
}

func (s *Service) compose(_ context.Context, state *generation.State) (generation.Update, error) {
	if state.Design == nil || state.ToolPlan == nil {
		return generation.Update{}, errors.New("composition requires a design and a tool plan")
	}
	units := composer.Compose(state.Request, *state.Design, *state.ToolPlan, state.Snippets)
	return generation.Update{Units: units}, nil
}

func (s *Service) validateStatic(ctx context.Context, state *generation.State) (generation.Update, error) {
	reports := s.static.Run(ctx, state.Units)
	return generation.Update{Reports: reports}, nil
}

// validateRuntime extends the static round's reports with the runtime
// checks. When the foundational format check failed, the runtime checks are
// reported as skipped rather than evaluated against a malformed artifact.
func (s *Service) validateRuntime(ctx context.Context, state *generation.State) (generation.Update, error) {
	formatFailed := false
	for _, r := range state.Reports {
		if r.Check == validation.CheckNotebookFormat && r.Failed() {
			formatFailed = true
			break
		}
	}

	var runtimeReports []generation.Report
	if formatFailed {
		for _, check := range validation.Runtime() {
			runtimeReports = append(runtimeReports, generation.Report{
				Check:   check.Name(),
				Skipped: true,
				Message: "skipped: " + validation.CheckNotebookFormat + " failed",
			})
		}
	} else {
		runtimeReports = s.runtime.Run(ctx, state.Units)
	}

	combined := append(append([]generation.Report(nil), state.Reports...), runtimeReports...)
	return generation.Update{Reports: combined}, nil
}

func (s *Service) repairArtifact(ctx context.Context, state *generation.State) (generation.Update, error) {
	patched, applied := s.coordinator.Repair(ctx, state.Units, state.Reports)
	if len(applied) == 0 {
		// Nothing changed; let the attempt counter advance toward the bound.
		return generation.Update{}, nil
	}
	return generation.Update{RepairedUnits: patched}, nil
}

// packageRun writes the artifact package. Reaching this stage means the run
// completed (fatal failures never package), so the manifest is built against
// a completion-marked snapshot; the runner flips the live state's flag as
// its final merge.
func (s *Service) packageRun(ctx context.Context, state *generation.State) (generation.Update, error) {
	snapshot := state.Clone()
	snapshot.GenerationComplete = true

	manifest, err := s.writer.Package(ctx, snapshot, "")
	if err != nil {
		return generation.Update{}, fmt.Errorf("packaging run: %w", err)
	}
	return generation.Update{Manifest: &manifest}, nil
}
