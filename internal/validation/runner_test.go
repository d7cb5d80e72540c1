package validation_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foundryd/internal/generation"
	"github.com/fyrsmithlabs/foundryd/internal/validation"
)

type stubCheck struct {
	name   string
	report generation.Report
	delay  time.Duration
	calls  *int32
}

func (s stubCheck) Name() string { return s.name }

func (s stubCheck) Inspect(units []generation.Unit) generation.Report {
	if s.calls != nil {
		atomic.AddInt32(s.calls, 1)
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.report
}

// gateCheck is a stub that gates its round like notebook_format does.
type gateCheck struct {
	stubCheck
}

func (gateCheck) Foundational() bool { return true }

func passing(name string) stubCheck {
	return stubCheck{name: name, report: generation.Report{Check: name, Passed: true, Message: "ok"}}
}

func failing(name string) stubCheck {
	return stubCheck{name: name, report: generation.Report{Check: name, Passed: false, Message: "broken"}}
}

func TestRunner_ReportsInListOrder(t *testing.T) {
	// The slowest check comes first; index addressing keeps list order.
	slow := passing("slow")
	slow.delay = 30 * time.Millisecond
	mid := passing("mid")
	mid.delay = 10 * time.Millisecond
	fast := passing("fast")

	runner := validation.NewRunner([]validation.Check{slow, mid, fast}, 3, zap.NewNop())
	reports := runner.Run(context.Background(), nil)

	require.Len(t, reports, 3)
	assert.Equal(t, "slow", reports[0].Check)
	assert.Equal(t, "mid", reports[1].Check)
	assert.Equal(t, "fast", reports[2].Check)
}

func TestRunner_FoundationalFailureSkipsDependents(t *testing.T) {
	var calls int32
	dependent := passing("dependent_a")
	dependent.calls = &calls
	other := passing("dependent_b")
	other.calls = &calls

	gate := gateCheck{failing("gate")}
	runner := validation.NewRunner([]validation.Check{gate, dependent, other}, 2, zap.NewNop())

	reports := runner.Run(context.Background(), nil)

	require.Len(t, reports, 3)
	assert.True(t, reports[0].Failed())

	for _, r := range reports[1:] {
		assert.True(t, r.Skipped)
		assert.False(t, r.Passed)
		assert.Contains(t, r.Message, "gate failed")
	}
	assert.Zero(t, atomic.LoadInt32(&calls), "dependent checks must not run")
}

func TestRunner_FoundationalPassRunsAll(t *testing.T) {
	var calls int32
	dependent := passing("dependent")
	dependent.calls = &calls

	gate := gateCheck{passing("gate")}
	runner := validation.NewRunner([]validation.Check{gate, dependent}, 2, zap.NewNop())

	reports := runner.Run(context.Background(), nil)

	require.Len(t, reports, 2)
	assert.True(t, reports[0].Passed)
	assert.True(t, reports[1].Passed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRunner_ConcurrentMatchesSequential(t *testing.T) {
	units := composedUnits(t)
	checks := validation.Static(validation.DefaultRules())

	sequential := validation.NewRunner(checks, 1, zap.NewNop()).Run(context.Background(), units)
	concurrent := validation.NewRunner(checks, 4, zap.NewNop()).Run(context.Background(), units)

	assert.Equal(t, sequential, concurrent)
}

func TestRunner_StaticRound_SkipsAfterFormatFailure(t *testing.T) {
	runner := validation.NewRunner(validation.Static(validation.DefaultRules()), 4, zap.NewNop())

	reports := runner.Run(context.Background(), nil)

	require.Len(t, reports, 5)
	assert.Equal(t, validation.CheckNotebookFormat, reports[0].Check)
	assert.True(t, reports[0].Failed())
	for _, r := range reports[1:] {
		assert.True(t, r.Skipped)
	}
}

func TestRunner_EmptyCheckList(t *testing.T) {
	runner := validation.NewRunner(nil, 4, zap.NewNop())

	reports := runner.Run(context.Background(), nil)
	assert.Empty(t, reports)
}

func TestRunner_CancelledContextFillsEverySlot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checks := []validation.Check{passing("a"), passing("b"), passing("c")}
	runner := validation.NewRunner(checks, 1, zap.NewNop())

	reports := runner.Run(ctx, nil)

	require.Len(t, reports, 3)
	for i, r := range reports {
		assert.Equal(t, checks[i].Name(), r.Check)
	}
}
