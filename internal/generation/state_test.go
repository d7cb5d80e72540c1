package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest_AssignsRunID(t *testing.T) {
	a := NewRequest("first")
	b := NewRequest("second")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestState_Clone_Independent(t *testing.T) {
	s := NewState(NewRequest("clone me"))
	require.NoError(t, s.Apply(Update{
		Constraints: []Constraint{{Kind: ConstraintGoal, Value: "original", Priority: 3}},
		Units: []Unit{{
			Kind: UnitCode, Content: "x = 1", Section: SectionSetup,
			Metadata: map[string]string{"section": SectionSetup},
		}},
	}))

	c := s.Clone()
	c.Constraints[0].Value = "mutated"
	c.Units[0].Metadata["section"] = "other"
	c.Units = append(c.Units, Unit{Kind: UnitMarkdown, Content: "extra", Section: SectionGraph})

	assert.Equal(t, "original", s.Constraints[0].Value)
	assert.Equal(t, SectionSetup, s.Units[0].Metadata["section"])
	assert.Len(t, s.Units, 1)
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name     string
		reports  []Report
		attempts int
		want     RepairSummary
	}{
		{
			name: "all passed",
			reports: []Report{
				{Check: "notebook_format", Passed: true},
				{Check: "required_sections", Passed: true},
			},
			attempts: 1,
			want:     RepairSummary{TotalChecks: 2, Passed: 2, SuccessRate: 1, AttemptsUsed: 1, AllPassed: true},
		},
		{
			name: "failures counted",
			reports: []Report{
				{Check: "notebook_format", Passed: true},
				{Check: "no_placeholders", Passed: false},
				{Check: "required_imports", Passed: false},
				{Check: "graph_scaffold", Passed: true},
			},
			attempts: 3,
			want:     RepairSummary{TotalChecks: 4, Passed: 2, Failed: 2, SuccessRate: 0.5, AttemptsUsed: 3},
		},
		{
			name: "skips are neither passed nor failed",
			reports: []Report{
				{Check: "notebook_format", Passed: false},
				{Check: "no_placeholders", Skipped: true},
			},
			attempts: 0,
			want:     RepairSummary{TotalChecks: 2, Failed: 1, AttemptsUsed: 0},
		},
		{
			name:     "empty reports",
			reports:  nil,
			attempts: 0,
			want:     RepairSummary{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.reports, tt.attempts))
		})
	}
}

func TestReport_Failed(t *testing.T) {
	assert.True(t, Report{Passed: false}.Failed())
	assert.False(t, Report{Passed: true}.Failed())
	assert.False(t, Report{Passed: false, Skipped: true}.Failed(), "a skip is not a failure")
}

func TestArchitecturePattern_ClosedSet(t *testing.T) {
	for _, p := range Patterns() {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, ArchitecturePattern("pipeline").Valid())
	assert.False(t, ArchitecturePattern("").Valid())
}

func TestConstraintKind_Valid(t *testing.T) {
	valid := []ConstraintKind{ConstraintGoal, ConstraintTone, ConstraintLength, ConstraintStructure, ConstraintRuntime, ConstraintEnvironment}
	for _, k := range valid {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, ConstraintKind("vibe").Valid())
}
