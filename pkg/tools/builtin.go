package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/casetutor/casetutor/pkg/core"
	"github.com/casetutor/casetutor/pkg/errors"
)

// Builtin sub-agent names and the constructor type tag they share.
const (
	ToolPatient         = "patient"
	ToolSocratic        = "socratic"
	ToolInvestigations  = "investigations"
	ToolFeedbackSummary = "feedback_summary"

	TypePromptAgent = "prompt_agent"
)

// PromptAgentArgs are the arguments accepted by every builtin sub-agent.
type PromptAgentArgs struct {
	Case      string         `json:"case" jsonschema:"required,description=Full clinical case text the session is based on"`
	History   []core.Message `json:"history,omitempty" jsonschema:"description=Conversation so far as ordered role/content pairs"`
	Message   string         `json:"message,omitempty" jsonschema:"description=The learner's latest message"`
	Exemplars []string       `json:"exemplars,omitempty" jsonschema:"description=Rated exemplar responses to condition the reply"`
}

var agentPrompts = map[string]struct {
	phase  core.Phase
	system string
}{
	ToolPatient: {
		phase: core.PhaseInformationGathering,
		system: "You are a simulated patient in a clinical tutoring session. " +
			"Answer the medical student's questions in first person, revealing only " +
			"what the case supports and only when asked. Stay in character. When the " +
			"student has gathered a full history and examination picture, append the " +
			"marker %s at the end of your reply.",
	},
	ToolSocratic: {
		phase: core.PhaseDifferentialDiagnosis,
		system: "You are a Socratic clinical tutor. Never state the diagnosis. Probe " +
			"the student's differential with short questions that expose gaps in their " +
			"reasoning and push them to commit to a ranked differential. When their " +
			"differential is complete and justified, append the marker %s at the end " +
			"of your reply.",
	},
	ToolInvestigations: {
		phase: core.PhaseTestsAndManagement,
		system: "You are a clinical tutor coaching on investigations and management. " +
			"Ask the student to justify each test they order and each treatment step, " +
			"and correct unsafe choices. When a sound investigation and management " +
			"plan is in place, append the marker %s at the end of your reply.",
	},
	ToolFeedbackSummary: {
		phase: core.PhaseFeedback,
		system: "You are a clinical tutor delivering end-of-case feedback. Summarize " +
			"what the student did well and what to improve across history taking, " +
			"differential reasoning, and management, with specific examples from the " +
			"transcript. Finish with the marker %s.",
	},
}

// promptAgent is an LLM-backed sub-agent: it assembles a prompt from the
// case, the transcript, and any retrieved exemplars, and returns the model
// output verbatim (markers included; the orchestrator strips them).
type promptAgent struct {
	desc   core.ToolDescriptor
	llm    core.LLM
	system string
}

var _ core.Tool = (*promptAgent)(nil)

// NewPromptAgent constructs a builtin sub-agent from its descriptor. It is
// registered under TypePromptAgent.
func NewPromptAgent(desc core.ToolDescriptor, cfg *core.Config) (core.Tool, error) {
	spec, ok := agentPrompts[desc.Name]
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.Config, "no prompt defined for builtin agent"),
			errors.Fields{"tool": desc.Name},
		)
	}
	if cfg.DefaultLLM == nil {
		return nil, errors.New(errors.Config, "prompt agent requires a default LLM")
	}
	return &promptAgent{
		desc:   desc,
		llm:    cfg.DefaultLLM,
		system: fmt.Sprintf(spec.system, spec.phase.Marker()),
	}, nil
}

func (a *promptAgent) Name() string { return a.desc.Name }

func (a *promptAgent) Execute(ctx context.Context, args map[string]any) (string, error) {
	caseText, ok := args[core.ArgCase].(string)
	if !ok || strings.TrimSpace(caseText) == "" {
		return "", errors.WithFields(
			errors.New(errors.Execution, "case text is required"),
			errors.Fields{"tool": a.desc.Name},
		)
	}

	var b strings.Builder
	b.WriteString(a.system)
	b.WriteString("\n\n## Case\n")
	b.WriteString(caseText)

	if history := coerceHistory(args[core.ArgHistory]); len(history) > 0 {
		b.WriteString("\n\n## Conversation so far\n")
		b.WriteString(history.Render())
	}
	if exemplars := coerceStrings(args[core.ArgExemplars]); len(exemplars) > 0 {
		b.WriteString("\n\n## Examples of rated tutor responses\n")
		b.WriteString("Use these to calibrate tone and quality; do not copy them.\n")
		for i, ex := range exemplars {
			fmt.Fprintf(&b, "\n### Example %d\n%s\n", i+1, ex)
		}
	}
	if msg, _ := args[core.ArgMessage].(string); msg != "" {
		b.WriteString("\n\n## Student's latest message\n")
		b.WriteString(msg)
	}
	b.WriteString("\n\nReply now as instructed.")

	resp, err := a.llm.Generate(ctx, b.String())
	if err != nil {
		if _, ok := err.(*errors.Error); ok {
			return "", err
		}
		return "", errors.Wrap(err, errors.Provider, "generation failed")
	}
	return resp.Content, nil
}

// coerceHistory accepts the typed form used in-process and the decoded-JSON
// form arriving from a routing model.
func coerceHistory(v any) core.History {
	switch h := v.(type) {
	case core.History:
		return h
	case []core.Message:
		return core.History(h)
	case []any:
		out := make(core.History, 0, len(h))
		for _, item := range h {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			role, _ := m["role"].(string)
			content, _ := m["content"].(string)
			if content != "" {
				out = append(out, core.Message{Role: core.Role(role), Content: content})
			}
		}
		return out
	default:
		return nil
	}
}

func coerceStrings(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// BuiltinDescriptors returns the descriptors for the four builtin
// sub-agents. Patient replies are deterministic given identical arguments,
// so the patient tool is cacheable; the coaching agents are not, since a
// repeated question deserves a fresh reply.
func BuiltinDescriptors() []core.ToolDescriptor {
	schema := MustReflectSchema[PromptAgentArgs]()
	return []core.ToolDescriptor{
		{
			Name:            ToolPatient,
			Description:     "Simulated patient: answers history and examination questions in character.",
			Type:            TypePromptAgent,
			Cacheable:       true,
			ParameterSchema: schema,
			Metadata:        map[string]string{"phase": core.PhaseInformationGathering.String()},
		},
		{
			Name:            ToolSocratic,
			Description:     "Socratic questioner: probes the student's differential diagnosis without revealing answers.",
			Type:            TypePromptAgent,
			ParameterSchema: schema,
			Metadata:        map[string]string{"phase": core.PhaseDifferentialDiagnosis.String()},
		},
		{
			Name:            ToolInvestigations,
			Description:     "Investigations and management coach: reviews ordered tests and treatment plans.",
			Type:            TypePromptAgent,
			ParameterSchema: schema,
			Metadata:        map[string]string{"phase": core.PhaseTestsAndManagement.String()},
		},
		{
			Name:            ToolFeedbackSummary,
			Description:     "Feedback summarizer: delivers structured end-of-case feedback on the student's performance.",
			Type:            TypePromptAgent,
			ParameterSchema: schema,
			Metadata:        map[string]string{"phase": core.PhaseFeedback.String()},
		},
	}
}

// RegisterBuiltins wires the builtin constructor and descriptors into r.
func RegisterBuiltins(r *Registry) error {
	if err := r.RegisterConstructor(TypePromptAgent, NewPromptAgent); err != nil {
		return err
	}
	for _, desc := range BuiltinDescriptors() {
		if err := r.RegisterDescriptor(desc); err != nil {
			return err
		}
	}
	return nil
}
