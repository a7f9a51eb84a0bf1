package workflows

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.temporal.io/sdk/testsuite"

	"github.com/fyrsmithlabs/mathrag/internal/logging"
	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
)

type MockSolver struct {
	mock.Mock
}

func (m *MockSolver) Solve(ctx context.Context, q string) pipeline.Result {
	return m.Called(ctx, q).Get(0).(pipeline.Result)
}

func result(input, output bool, solution string) pipeline.Result {
	st := pipeline.NewState("q")
	st.InputAccepted = input
	st.OutputAccepted = output
	st.FinalSolution = solution
	st.AttemptsUsed = 1
	return pipeline.Result{State: st, SessionID: "s"}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeAccepted, Classify(result(true, true, "x")))
	assert.Equal(t, OutcomeFallback, Classify(result(true, false, "x")))
	assert.Equal(t, OutcomeRejected, Classify(result(false, false, "")))
	assert.Equal(t, OutcomeFailed, Classify(pipeline.Result{FirstErrorKind: pipeline.KindOrchestratorFault}))
}

func TestBatchSolveWorkflow(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	solver := &MockSolver{}
	solver.On("Solve", mock.Anything, "What is 2+2?").Return(result(true, true, "Therefore, the answer is 4."))
	solver.On("Solve", mock.Anything, "Integrate x^2").Return(result(true, false, "fallback"))
	solver.On("Solve", mock.Anything, "Who won the 1998 World Cup?").Return(result(false, false, ""))
	Register(env, &Activities{Solver: solver})

	env.ExecuteWorkflow(BatchSolveWorkflow, BatchSolveInput{
		Questions:   []string{"What is 2+2?", "Integrate x^2", "Who won the 1998 World Cup?"},
		Parallelism: 2,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res BatchSolveResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, 1, res.Fallback)
	assert.Equal(t, 1, res.Rejected)
	assert.Zero(t, res.Failed)
	assert.Empty(t, res.Errors)

	require.Len(t, res.Outcomes, 3)
	for i, o := range res.Outcomes {
		assert.Equal(t, i, o.Index, "outcomes keep input order")
	}
	assert.Equal(t, "Therefore, the answer is 4.", res.Outcomes[0].Solution)
}

func TestBatchSolveWorkflow_FailedActivity(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	var a *Activities
	Register(env, &Activities{})
	env.OnActivity(a.SolveQuestion, mock.Anything, SolveQuestionInput{Index: 0, Question: "What is 2+2?"}).
		Return(SolveOutcome{Index: 0, Question: "What is 2+2?", Outcome: OutcomeAccepted}, nil)
	env.OnActivity(a.SolveQuestion, mock.Anything, SolveQuestionInput{Index: 1, Question: "Solve 2x = 4"}).
		Return(SolveOutcome{}, errors.New("Workflow error: boom"))

	env.ExecuteWorkflow(BatchSolveWorkflow, BatchSolveInput{Questions: []string{"What is 2+2?", "Solve 2x = 4"}})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res BatchSolveResult
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "failed to solve question 1")
	assert.Equal(t, OutcomeFailed, res.Outcomes[1].Outcome)
}

func TestBatchSolveWorkflow_EmptyInput(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	Register(env, &Activities{})

	env.ExecuteWorkflow(BatchSolveWorkflow, BatchSolveInput{})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrNoQuestions.Error())
}

func TestSolveQuestionActivity(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}

	t.Run("accepted", func(t *testing.T) {
		env := testSuite.NewTestActivityEnvironment()
		solver := &MockSolver{}
		solver.On("Solve", mock.Anything, "What is 2+2?").Return(result(true, true, "4"))
		logger := logging.NewTestLogger()
		env.RegisterActivity(&Activities{Solver: solver, Logger: logger.Logger})

		var a *Activities
		val, err := env.ExecuteActivity(a.SolveQuestion, SolveQuestionInput{Index: 7, Question: "What is 2+2?"})
		require.NoError(t, err)

		var out SolveOutcome
		require.NoError(t, val.Get(&out))
		assert.Equal(t, OutcomeAccepted, out.Outcome)
		assert.Equal(t, 7, out.Index)
		logger.AssertField(t, "question solved", "outcome", "accepted")
	})

	t.Run("orchestrator fault is retryable", func(t *testing.T) {
		env := testSuite.NewTestActivityEnvironment()
		solver := &MockSolver{}
		solver.On("Solve", mock.Anything, mock.Anything).Return(pipeline.Result{
			State:          pipeline.State{ErrorMessage: "Workflow error: boom"},
			FirstErrorKind: pipeline.KindOrchestratorFault,
		})
		env.RegisterActivity(&Activities{Solver: solver})

		var a *Activities
		_, err := env.ExecuteActivity(a.SolveQuestion, SolveQuestionInput{Question: "What is 2+2?"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Workflow error: boom")
	})

	t.Run("blank question is not retryable", func(t *testing.T) {
		env := testSuite.NewTestActivityEnvironment()
		env.RegisterActivity(&Activities{Solver: &MockSolver{}})

		var a *Activities
		_, err := env.ExecuteActivity(a.SolveQuestion, SolveQuestionInput{Question: "   "})
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "question is empty"))
	})
}

func TestMetrics(t *testing.T) {
	reader := metric.NewManualReader()
	m, err := newMetrics(metric.NewMeterProvider(metric.WithReader(reader)).Meter(instrumentationName))
	require.NoError(t, err)

	m.recordActivity(context.Background(), OutcomeFallback, 0)
	var nilMetrics *Metrics
	nilMetrics.recordActivity(context.Background(), OutcomeAccepted, 0)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var names []string
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			names = append(names, md.Name)
		}
	}
	assert.ElementsMatch(t, []string{"mathrag.workflows.solve.outcomes", "mathrag.workflows.solve.duration"}, names)
}

func TestWorkflowError(t *testing.T) {
	base := errors.New("connection refused")
	err := NewWorkflowError("solve question 3", ErrorSeverityHigh, base, "attempt 3")

	assert.Equal(t, "solve question 3 failed: connection refused (attempt 3)", err.Error())
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "solve question 3 failed: connection refused", NewWorkflowError("solve question 3", ErrorSeverityCritical, base, "").Error())
}
