package tutor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casetutor/casetutor/pkg/core"
	"github.com/casetutor/casetutor/pkg/errors"
	"github.com/casetutor/casetutor/pkg/feedback"
	"github.com/casetutor/casetutor/pkg/tools"
)

// routingLLM replays scripted function-call results, one per turn.
type routingLLM struct {
	results []map[string]any
	errs    []error
	calls   int
}

func (l *routingLLM) Name() string    { return "scripted" }
func (l *routingLLM) ModelID() string { return "scripted-model" }

func (l *routingLLM) Generate(context.Context, string, ...core.GenerateOption) (*core.LLMResponse, error) {
	return &core.LLMResponse{}, nil
}

func (l *routingLLM) GenerateWithFunctions(_ context.Context, _ string, _ []map[string]any, _ ...core.GenerateOption) (map[string]any, error) {
	i := l.calls
	l.calls++
	if i < len(l.errs) && l.errs[i] != nil {
		return nil, l.errs[i]
	}
	if i < len(l.results) {
		return l.results[i], nil
	}
	return map[string]any{core.FunctionKeyContent: "fallthrough"}, nil
}

// scriptedTool replays canned outputs and records the args it was given.
type scriptedTool struct {
	name    string
	outputs []string
	err     error
	calls   int
	lastArg map[string]any
}

func (s *scriptedTool) Name() string { return s.name }

func (s *scriptedTool) Execute(_ context.Context, args map[string]any) (string, error) {
	s.lastArg = args
	if s.err != nil {
		return "", s.err
	}
	i := s.calls
	s.calls++
	if i >= len(s.outputs) {
		i = len(s.outputs) - 1
	}
	return s.outputs[i], nil
}

func testHarness(t *testing.T, llm core.LLM, tool *scriptedTool, opts ...Option) *TutorService {
	t.Helper()
	cfg := core.NewConfig().WithDefaultLLM(llm)
	registry := tools.NewRegistry(cfg)
	require.NoError(t, registry.RegisterConstructor("scripted", func(core.ToolDescriptor, *core.Config) (core.Tool, error) {
		return tool, nil
	}))
	require.NoError(t, registry.RegisterDescriptor(core.ToolDescriptor{
		Name:        tool.name,
		Description: "scripted test agent",
		Type:        "scripted",
		ParameterSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}))

	svc, err := NewTutorService(cfg, registry, tools.NewEngine(registry), opts...)
	require.NoError(t, err)
	return svc
}

func toolCall(name string) map[string]any {
	return map[string]any{
		core.FunctionKeyTool:      name,
		core.FunctionKeyArguments: map[string]any{},
	}
}

func TestProcessTurnEndToEnd(t *testing.T) {
	tool := &scriptedTool{name: "ask_patient", outputs: []string{
		"The pain started two hours ago.",
		"I think you have what you need. [PHASE_COMPLETE: information_gathering]",
	}}
	llm := &routingLLM{results: []map[string]any{toolCall("ask_patient"), toolCall("ask_patient")}}
	svc := testHarness(t, llm, tool)

	session := core.NewSession("A 54-year-old man with chest pain.", "m")
	ctx := context.Background()

	res, err := svc.ProcessTurn(ctx, session, "When did the pain start?")
	require.NoError(t, err)
	assert.Equal(t, "The pain started two hours ago.", res.Reply)
	assert.Equal(t, core.PhaseInformationGathering, res.PhaseAfter)
	assert.Equal(t, core.PhaseInformationGathering, session.Phase)

	res, err = svc.ProcessTurn(ctx, session, "Anything else I should ask?")
	require.NoError(t, err)
	assert.Equal(t, core.PhaseInformationGathering, res.PhaseBefore)
	assert.Equal(t, core.PhaseDifferentialDiagnosis, res.PhaseAfter)
	assert.Equal(t, core.PhaseDifferentialDiagnosis, session.Phase)
	assert.NotContains(t, res.Reply, "PHASE_COMPLETE", "marker never reaches the learner")

	// History holds both turns: user and assistant messages in order.
	require.Len(t, session.History, 4)
	assert.Equal(t, core.RoleUser, session.History[0].Role)
	assert.Equal(t, core.RoleAssistant, session.History[1].Role)

	// The tool saw the standard arguments.
	assert.Equal(t, session.CaseText, tool.lastArg[core.ArgCase])
	assert.Equal(t, "Anything else I should ask?", tool.lastArg[core.ArgMessage])
}

func TestProcessTurnToolFailureApologizes(t *testing.T) {
	tool := &scriptedTool{name: "ask_patient", err: errors.New(errors.Provider, "model host unreachable")}
	llm := &routingLLM{results: []map[string]any{toolCall("ask_patient")}}
	svc := testHarness(t, llm, tool)

	session := core.NewSession("case", "m")
	res, err := svc.ProcessTurn(context.Background(), session, "hello")
	require.NoError(t, err)

	assert.Equal(t, ApologyReply, res.Reply)
	assert.NotContains(t, res.Reply, "unreachable", "internal details never leak")
	assert.Equal(t, core.PhaseInformationGathering, session.Phase)
	assert.Equal(t, res.PhaseBefore, res.PhaseAfter)
}

func TestProcessTurnRoutingFailureApologizes(t *testing.T) {
	tool := &scriptedTool{name: "ask_patient", outputs: []string{"unused"}}
	llm := &routingLLM{errs: []error{errors.New(errors.Provider, "rate limited")}}
	svc := testHarness(t, llm, tool)

	session := core.NewSession("case", "m")
	res, err := svc.ProcessTurn(context.Background(), session, "hello")
	require.NoError(t, err)
	assert.Equal(t, ApologyReply, res.Reply)
	assert.Zero(t, tool.calls)
}

func TestProcessTurnDirectReplyAdvancesPhase(t *testing.T) {
	tool := &scriptedTool{name: "ask_patient", outputs: []string{"unused"}}
	llm := &routingLLM{results: []map[string]any{
		{core.FunctionKeyContent: "Good summary. [PHASE_COMPLETE: information_gathering]"},
	}}
	svc := testHarness(t, llm, tool)

	session := core.NewSession("case", "m")
	res, err := svc.ProcessTurn(context.Background(), session, "here is my summary")
	require.NoError(t, err)
	assert.Equal(t, "Good summary.", res.Reply)
	assert.Equal(t, core.PhaseDifferentialDiagnosis, session.Phase)
	assert.Empty(t, res.ToolUsed)
}

func TestProcessTurnCanceledBeforeStart(t *testing.T) {
	tool := &scriptedTool{name: "ask_patient", outputs: []string{"x"}}
	svc := testHarness(t, &routingLLM{}, tool)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := core.NewSession("case", "m")
	_, err := svc.ProcessTurn(ctx, session, "hello")
	require.Error(t, err)
	assert.Equal(t, errors.Provider, errors.CodeOf(err))
	assert.Empty(t, session.History, "a canceled turn leaves the session untouched")
	assert.Equal(t, core.PhaseInformationGathering, session.Phase)
}

func TestProcessTurnExemplarEnrichment(t *testing.T) {
	retrieval := feedback.NewRetrievalService(feedback.SliceSource{
		{ID: "a", Rating: 5, RatedText: "Asked about onset before anything else"},
	}, constEmbedder{})
	require.NoError(t, retrieval.Rebuild(context.Background()))

	tool := &scriptedTool{name: "ask_patient", outputs: []string{"reply"}}
	llm := &routingLLM{results: []map[string]any{toolCall("ask_patient")}}
	svc := testHarness(t, llm, tool, WithRetrieval(retrieval, 2))

	session := core.NewSession("case", "m")
	_, err := svc.ProcessTurn(context.Background(), session, "hello")
	require.NoError(t, err)

	exemplars, ok := tool.lastArg[core.ArgExemplars].([]string)
	require.True(t, ok, "exemplars passed to the tool")
	require.Len(t, exemplars, 1)
	assert.Contains(t, exemplars[0], "Asked about onset")
}

func TestOverridePhase(t *testing.T) {
	tool := &scriptedTool{name: "ask_patient", outputs: []string{"x"}}
	svc := testHarness(t, &routingLLM{}, tool)

	session := core.NewSession("case", "m")
	require.NoError(t, svc.OverridePhase(session, core.PhaseTestsAndManagement))
	assert.Equal(t, core.PhaseTestsAndManagement, session.Phase)

	err := svc.OverridePhase(session, core.Phase(99))
	require.Error(t, err)
	assert.Equal(t, errors.Validation, errors.CodeOf(err))
	assert.Equal(t, core.PhaseTestsAndManagement, session.Phase)
}

func TestRebuildIndexWithoutRetrieval(t *testing.T) {
	tool := &scriptedTool{name: "ask_patient", outputs: []string{"x"}}
	svc := testHarness(t, &routingLLM{}, tool)
	assert.NoError(t, svc.RebuildIndex(context.Background()))
}

func TestNewTutorServiceRequiresLLM(t *testing.T) {
	registry := tools.NewRegistry(core.NewConfig())
	_, err := NewTutorService(core.NewConfig(), registry, tools.NewEngine(registry))
	require.Error(t, err)
	assert.Equal(t, errors.Config, errors.CodeOf(err))
}

// constEmbedder embeds every text to the same vector.
type constEmbedder struct{}

func (constEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
