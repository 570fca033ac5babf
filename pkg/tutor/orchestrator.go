package tutor

import (
	"context"
	"log/slog"

	"github.com/casetutor/casetutor/pkg/core"
	"github.com/casetutor/casetutor/pkg/errors"
	"github.com/casetutor/casetutor/pkg/feedback"
	"github.com/casetutor/casetutor/pkg/tools"
)

// ApologyReply is the learner-visible reply when a turn fails internally.
// Error details go to logs only, never to the learner.
const ApologyReply = "Sorry, I ran into a problem handling that. Please try again."

// exemplarContextWindow is how many recent messages feed the exemplar
// retrieval query.
const exemplarContextWindow = 4

// TutorService coordinates one tutoring turn at a time per session: route
// the learner's message, run the chosen tool, advance the phase from the
// agent's reply. Distinct sessions may be processed concurrently; the
// registry, engine and retrieval index are the only shared state.
type TutorService struct {
	llm       core.LLM
	registry  *tools.Registry
	engine    *tools.Engine
	retrieval *feedback.RetrievalService
	exemplarK int
	logger    *slog.Logger
}

// Option configures a TutorService.
type Option func(*TutorService)

// WithRetrieval enables exemplar enrichment: up to k exemplars retrieved
// per tool call from the rated-feedback index.
func WithRetrieval(svc *feedback.RetrievalService, k int) Option {
	return func(t *TutorService) {
		t.retrieval = svc
		t.exemplarK = k
	}
}

// WithTutorLogger sets the service's structured logger.
func WithTutorLogger(l *slog.Logger) Option {
	return func(t *TutorService) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTutorService creates the orchestrator. The routing model comes from
// the config's default LLM.
func NewTutorService(cfg *core.Config, registry *tools.Registry, engine *tools.Engine, opts ...Option) (*TutorService, error) {
	if cfg == nil || cfg.DefaultLLM == nil {
		return nil, errors.New(errors.Config, "tutor service requires a default LLM")
	}
	if registry == nil || engine == nil {
		return nil, errors.New(errors.Config, "tutor service requires a registry and engine")
	}
	t := &TutorService{
		llm:      cfg.DefaultLLM,
		registry: registry,
		engine:   engine,
		logger:   cfg.Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// TurnResult is the outcome of one processed turn.
type TurnResult struct {
	Reply       string
	ToolUsed    string
	PhaseBefore core.Phase
	PhaseAfter  core.Phase
}

// ProcessTurn runs one tutoring turn: append the learner's message, obtain
// a routing decision, execute the chosen tool (with optional exemplar
// enrichment), then advance the phase from the raw agent output and strip
// completion markers from the visible reply.
//
// A failed tool run yields the generic apology with the phase unchanged. A
// canceled context returns an error before any reply is appended or any
// phase transition applied.
func (t *TutorService) ProcessTurn(ctx context.Context, session *core.Session, learnerMessage string) (*TurnResult, error) {
	if session == nil {
		return nil, errors.New(errors.Validation, "session is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.Provider, "turn canceled")
	}

	phaseBefore := session.Phase
	session.Append(core.RoleUser, learnerMessage)

	prompt := buildRoutingPrompt(session, learnerMessage)
	result, err := t.llm.GenerateWithFunctions(ctx, prompt, ToolSpecs(t.registry.Descriptors()))
	if err != nil {
		t.logger.Error("routing decision failed", "session", session.ID, "err", err)
		return &TurnResult{
			Reply:       ApologyReply,
			PhaseBefore: phaseBefore,
			PhaseAfter:  phaseBefore,
		}, nil
	}
	decision := ParseDecision(result)

	reply := decision.Reply
	if decision.IsToolCall() {
		res := t.runTool(ctx, session, decision, learnerMessage)
		if !res.Success {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, errors.Provider, "turn canceled")
			}
			t.logTurnFailure(session, res)
			return &TurnResult{
				Reply:       ApologyReply,
				ToolUsed:    decision.ToolName,
				PhaseBefore: phaseBefore,
				PhaseAfter:  phaseBefore,
			}, nil
		}
		reply = res.Result
	}

	// Disconnect guard: a canceled turn leaves no reply and no transition.
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.Provider, "turn canceled")
	}

	session.Phase = core.Advance(session.Phase, reply, nil)
	visible := core.StripMarkers(reply)
	session.Append(core.RoleAssistant, visible)

	if session.Phase != phaseBefore {
		t.logger.Info("phase advanced", "session", session.ID,
			"from", phaseBefore, "to", session.Phase)
	}
	return &TurnResult{
		Reply:       visible,
		ToolUsed:    decision.ToolName,
		PhaseBefore: phaseBefore,
		PhaseAfter:  session.Phase,
	}, nil
}

func (t *TutorService) runTool(ctx context.Context, session *core.Session, decision Decision, learnerMessage string) tools.InvocationResult {
	args := make(map[string]any, len(decision.Arguments)+4)
	for k, v := range decision.Arguments {
		args[k] = v
	}
	args[core.ArgCase] = session.CaseText
	args[core.ArgHistory] = session.History
	args[core.ArgMessage] = learnerMessage

	if t.retrieval != nil {
		contextText := session.History.Recent(exemplarContextWindow).Render()
		if exemplars := t.retrieval.Query(ctx, contextText, t.exemplarK); len(exemplars) > 0 {
			args[core.ArgExemplars] = exemplars
		}
	}
	return t.engine.Execute(ctx, decision.ToolName, args)
}

func (t *TutorService) logTurnFailure(session *core.Session, res tools.InvocationResult) {
	attrs := []any{"session", session.ID, "tool", res.ToolName}
	if res.Error != nil {
		attrs = append(attrs, "kind", res.Error.Kind, "err", res.Error.Message)
	}
	t.logger.Error("tool execution failed", attrs...)
}

// OverridePhase forces the session into the given phase, the instructor's
// escape hatch around marker-driven transitions.
func (t *TutorService) OverridePhase(session *core.Session, phase core.Phase) error {
	if session == nil {
		return errors.New(errors.Validation, "session is required")
	}
	if !phase.Valid() {
		return errors.WithFields(
			errors.New(errors.Validation, "unknown phase"),
			errors.Fields{"phase": int(phase)})
	}
	session.Phase = phase
	return nil
}

// RebuildIndex refreshes the exemplar index from its log source. Without a
// retrieval service configured it is a no-op.
func (t *TutorService) RebuildIndex(ctx context.Context) error {
	if t.retrieval == nil {
		return nil
	}
	return t.retrieval.Rebuild(ctx)
}
