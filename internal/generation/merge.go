package generation

import "fmt"

// MergeStrategy names how one state field absorbs a stage update.
type MergeStrategy string

const (
	// MergeAppend concatenates the update onto the existing slice. Append
	// fields are never replaced by a stage update.
	MergeAppend MergeStrategy = "append"

	// MergeOverwrite replaces the field when the update carries a value.
	MergeOverwrite MergeStrategy = "overwrite"
)

// Update is one stage's partial output. The zero value changes nothing;
// each populated field merges per the schema.
type Update struct {
	Constraints []Constraint
	Snippets    []Snippet

	// Units is composition output and appends to the artifact.
	Units []Unit

	// RepairedUnits is reserved for the repair coordinator: it replaces the
	// artifact wholesale with the patched unit list. Stages other than
	// repair must leave it nil.
	RepairedUnits []Unit

	// Reports replaces the report list for the current validation round.
	Reports []Report

	Architecture *ArchitectureSelection
	Design       *DesignSpec
	ToolPlan     *ToolPlan
	Manifest     *Manifest

	// RepairAttempts overwrites the counter; the merge rejects decreases.
	RepairAttempts *int

	// GenerationComplete may be set exactly once across a run.
	GenerationComplete *bool

	ErrorMessage *string
}

// FieldRule documents one field's merge strategy.
type FieldRule struct {
	Field    string
	Strategy MergeStrategy
	Note     string
}

// schema is the per-field merge declaration. Apply walks it in order; it is
// the single place merge behavior is defined.
var schema = []struct {
	FieldRule
	apply func(*State, *Update) error
}{
	{FieldRule{"constraints", MergeAppend, ""}, func(s *State, u *Update) error {
		s.Constraints = append(s.Constraints, u.Constraints...)
		return nil
	}},
	{FieldRule{"snippets", MergeAppend, ""}, func(s *State, u *Update) error {
		s.Snippets = append(s.Snippets, u.Snippets...)
		return nil
	}},
	{FieldRule{"units", MergeAppend, "composition output"}, func(s *State, u *Update) error {
		s.Units = append(s.Units, u.Units...)
		return nil
	}},
	{FieldRule{"units", MergeOverwrite, "repair coordinator only; replaces the artifact with the patched units"}, func(s *State, u *Update) error {
		if u.RepairedUnits == nil {
			return nil
		}
		if len(u.RepairedUnits) < len(s.Units) {
			return fmt.Errorf("%w: repaired artifact dropped units (%d -> %d)", ErrInvalidUpdate, len(s.Units), len(u.RepairedUnits))
		}
		s.Units = u.RepairedUnits
		return nil
	}},
	{FieldRule{"reports", MergeOverwrite, "one validation round replaces the last"}, func(s *State, u *Update) error {
		if u.Reports != nil {
			s.Reports = u.Reports
		}
		return nil
	}},
	{FieldRule{"architecture", MergeOverwrite, ""}, func(s *State, u *Update) error {
		if u.Architecture == nil {
			return nil
		}
		if !u.Architecture.Pattern.Valid() {
			return fmt.Errorf("%w: architecture pattern %q outside the closed set", ErrInvalidUpdate, u.Architecture.Pattern)
		}
		s.Architecture = *u.Architecture
		return nil
	}},
	{FieldRule{"design", MergeOverwrite, ""}, func(s *State, u *Update) error {
		if u.Design != nil {
			s.Design = u.Design
		}
		return nil
	}},
	{FieldRule{"tool_plan", MergeOverwrite, ""}, func(s *State, u *Update) error {
		if u.ToolPlan != nil {
			s.ToolPlan = u.ToolPlan
		}
		return nil
	}},
	{FieldRule{"manifest", MergeOverwrite, ""}, func(s *State, u *Update) error {
		if u.Manifest != nil {
			s.Manifest = u.Manifest
		}
		return nil
	}},
	{FieldRule{"repair_attempts", MergeOverwrite, "monotonic; decreases rejected"}, func(s *State, u *Update) error {
		if u.RepairAttempts == nil {
			return nil
		}
		if *u.RepairAttempts < s.RepairAttempts {
			return fmt.Errorf("%w: repair_attempts decreased (%d -> %d)", ErrInvalidUpdate, s.RepairAttempts, *u.RepairAttempts)
		}
		s.RepairAttempts = *u.RepairAttempts
		return nil
	}},
	{FieldRule{"error_message", MergeOverwrite, ""}, func(s *State, u *Update) error {
		if u.ErrorMessage != nil {
			s.ErrorMessage = *u.ErrorMessage
		}
		return nil
	}},
	{FieldRule{"generation_complete", MergeOverwrite, "set once"}, func(s *State, u *Update) error {
		if u.GenerationComplete == nil {
			return nil
		}
		if s.GenerationComplete {
			return fmt.Errorf("%w: generation_complete already set", ErrInvalidUpdate)
		}
		s.GenerationComplete = *u.GenerationComplete
		return nil
	}},
}

// Schema returns the declared merge rules in application order.
func Schema() []FieldRule {
	rules := make([]FieldRule, len(schema))
	for i, entry := range schema {
		rules[i] = entry.FieldRule
	}
	return rules
}

// Apply merges a stage update into the state. Once the state is final any
// further update is rejected with ErrStateFinal; updates that violate a
// field guard are rejected without partial effect.
func (s *State) Apply(u Update) error {
	if s.Final() {
		return ErrStateFinal
	}
	// Validate guards against a scratch copy so a rejected update leaves
	// the state untouched.
	scratch := s.Clone()
	for _, entry := range schema {
		if err := entry.apply(scratch, &u); err != nil {
			return err
		}
	}
	*s = *scratch
	return nil
}
