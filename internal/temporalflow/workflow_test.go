package temporalflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/antigravity-dev/lex-pr-runner/internal/autopilot"
	"github.com/antigravity-dev/lex-pr-runner/internal/plan"
	"github.com/antigravity-dev/lex-pr-runner/internal/weave"
)

func stubReportAndDeliverables(env *testsuite.TestWorkflowEnvironment) {
	var a *Activities
	env.OnActivity(a.ReportActivity, mock.Anything, mock.Anything).Return(&ReportResponse{
		Levels:          [][]string{{"PR-1"}},
		Recommendations: []autopilot.ItemRecommendation{{Name: "PR-1", Eligibility: "eligible", Recommendation: "ready to weave"}},
	}, nil)
	env.OnActivity(a.WriteDeliverablesActivity, mock.Anything, mock.Anything).Return(&DeliverablesResponse{
		Dir: "/tmp/deliverables/weave-1",
	}, nil)
}

func workflowRequest(maxLevel int) AutopilotWorkflowRequest {
	return AutopilotWorkflowRequest{
		Plan:             &plan.Plan{SchemaVersion: "1.0.0", Target: "main", Items: []plan.PlanItem{{Name: "PR-1"}}},
		Workspace:        "/tmp/repo",
		DeliverablesRoot: "/tmp/deliverables",
		BranchPrefix:     "integration/",
		MaxLevel:         maxLevel,
		Now:              time.Unix(0, 0).UTC(),
	}
}

func TestAutopilotWorkflow_L0StopsAfterReport(t *testing.T) {
	s := testsuite.WorkflowTestSuite{}
	env := s.NewTestWorkflowEnvironment()
	var a *Activities
	env.OnActivity(a.ReportActivity, mock.Anything, mock.Anything).Return(&ReportResponse{
		Levels:          [][]string{{"PR-1"}},
		Recommendations: []autopilot.ItemRecommendation{{Name: "PR-1"}},
	}, nil)

	env.ExecuteWorkflow(AutopilotWorkflow, workflowRequest(autopilot.LevelReportOnly))

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result autopilot.Result
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, autopilot.LevelReportOnly, result.LevelReached)
	require.Empty(t, result.DeliverablesDir)
}

func TestAutopilotWorkflow_L1WritesDeliverables(t *testing.T) {
	s := testsuite.WorkflowTestSuite{}
	env := s.NewTestWorkflowEnvironment()
	stubReportAndDeliverables(env)

	env.ExecuteWorkflow(AutopilotWorkflow, workflowRequest(autopilot.LevelArtifacts))

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result autopilot.Result
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, autopilot.LevelArtifacts, result.LevelReached)
	require.Equal(t, "/tmp/deliverables/weave-1", result.DeliverablesDir)
}

func TestAutopilotWorkflow_L2AbortsOnAnnotateFailure(t *testing.T) {
	s := testsuite.WorkflowTestSuite{}
	env := s.NewTestWorkflowEnvironment()
	var a *Activities
	stubReportAndDeliverables(env)
	env.OnActivity(a.AnnotateActivity, mock.Anything, mock.Anything).Return(errAnnotateFailed)

	env.ExecuteWorkflow(AutopilotWorkflow, workflowRequest(autopilot.LevelAnnotate))

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result autopilot.Result
	require.NoError(t, env.GetWorkflowResult(&result))
	require.True(t, result.Aborted)
	require.Equal(t, autopilot.LevelArtifacts, result.LevelReached)
}

func TestAutopilotWorkflow_L3AbortsOnDirtyWorkingTree(t *testing.T) {
	s := testsuite.WorkflowTestSuite{}
	env := s.NewTestWorkflowEnvironment()
	var a *Activities
	stubReportAndDeliverables(env)
	env.OnActivity(a.AnnotateActivity, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(a.CheckWorkingTreeActivity, mock.Anything, mock.Anything).Return(false, nil)

	env.ExecuteWorkflow(AutopilotWorkflow, workflowRequest(autopilot.LevelWeave))

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result autopilot.Result
	require.NoError(t, env.GetWorkflowResult(&result))
	require.True(t, result.Aborted)
	require.Equal(t, autopilot.LevelAnnotate, result.LevelReached)
}

func TestAutopilotWorkflow_L4WaitsForApprovalSignal(t *testing.T) {
	s := testsuite.WorkflowTestSuite{}
	env := s.NewTestWorkflowEnvironment()
	var a *Activities
	stubReportAndDeliverables(env)
	env.OnActivity(a.AnnotateActivity, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(a.CheckWorkingTreeActivity, mock.Anything, mock.Anything).Return(true, nil)
	env.OnActivity(a.WeaveActivity, mock.Anything, mock.Anything).Return(&WeaveResponse{
		Results:           []weave.Result{{Item: "PR-1", Success: true}},
		IntegrationBranch: "integration/main/abc",
	}, nil)
	env.OnActivity(a.FinalizeActivity, mock.Anything, mock.Anything).Return(nil)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow("autopilot-approval", "APPROVED")
	}, 0)

	req := workflowRequest(autopilot.LevelFinalize)
	req.RequireApproval = true
	env.ExecuteWorkflow(AutopilotWorkflow, req)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result autopilot.Result
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, autopilot.LevelFinalize, result.LevelReached)
	require.False(t, result.Aborted)
}

func TestAutopilotWorkflow_L4RejectedApprovalAborts(t *testing.T) {
	s := testsuite.WorkflowTestSuite{}
	env := s.NewTestWorkflowEnvironment()
	var a *Activities
	stubReportAndDeliverables(env)
	env.OnActivity(a.AnnotateActivity, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(a.CheckWorkingTreeActivity, mock.Anything, mock.Anything).Return(true, nil)
	env.OnActivity(a.WeaveActivity, mock.Anything, mock.Anything).Return(&WeaveResponse{
		Results:           []weave.Result{{Item: "PR-1", Success: true}},
		IntegrationBranch: "integration/main/abc",
	}, nil)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow("autopilot-approval", "REJECTED")
	}, 0)

	req := workflowRequest(autopilot.LevelFinalize)
	req.RequireApproval = true
	env.ExecuteWorkflow(AutopilotWorkflow, req)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result autopilot.Result
	require.NoError(t, env.GetWorkflowResult(&result))
	require.True(t, result.Aborted)
	require.Equal(t, autopilot.LevelWeave, result.LevelReached)
	// FinalizeActivity has no mock.On stub registered; if the workflow had
	// called it despite the rejected signal, env would report a workflow
	// task failure instead of the clean completion asserted above.
}

var errAnnotateFailed = &annotateTestError{}

type annotateTestError struct{}

func (e *annotateTestError) Error() string { return "annotate activity failed" }
