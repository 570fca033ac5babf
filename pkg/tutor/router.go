package tutor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/casetutor/casetutor/pkg/core"
	"github.com/casetutor/casetutor/pkg/utils"
)

// Decision is the routing model's verdict for one turn: either a tool call
// or a direct reply to the learner.
type Decision struct {
	ToolName  string
	Arguments map[string]any
	Reply     string
}

// IsToolCall reports whether the decision selects a tool.
func (d Decision) IsToolCall() bool { return d.ToolName != "" }

// ToolSpecs converts registry descriptors to the function-call schema shape
// providers expect.
func ToolSpecs(descriptors []core.ToolDescriptor) []map[string]any {
	specs := make([]map[string]any, len(descriptors))
	for i, desc := range descriptors {
		specs[i] = map[string]any{
			"name":        desc.Name,
			"description": desc.Description,
			"parameters":  desc.ParameterSchema,
		}
	}
	return specs
}

// ParseDecision maps a provider function-call result onto a Decision. A
// result naming a tool wins over any accompanying text; arguments arrive as
// a map or, from looser providers, a JSON string. A result with neither a
// tool nor content yields the zero Decision.
func ParseDecision(result map[string]any) Decision {
	if name, ok := result[core.FunctionKeyTool].(string); ok && name != "" {
		return Decision{
			ToolName:  name,
			Arguments: decisionArguments(result[core.FunctionKeyArguments]),
		}
	}
	if content, ok := result[core.FunctionKeyContent].(string); ok {
		return Decision{Reply: content}
	}
	return Decision{}
}

// DecisionFromText parses a raw provider reply: strict JSON first, then the
// first balanced object embedded in prose, and failing both the text stands
// as a direct reply.
func DecisionFromText(text string) Decision {
	if parsed, err := utils.ParseJSONResponse(text); err == nil {
		return ParseDecision(parsed)
	}
	if parsed, err := utils.ExtractJSONObject(text); err == nil {
		return ParseDecision(parsed)
	}
	return Decision{Reply: text}
}

func decisionArguments(raw any) map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		return v
	case string:
		var args map[string]any
		if err := json.Unmarshal([]byte(v), &args); err == nil {
			return args
		}
	}
	return map[string]any{}
}

// buildRoutingPrompt assembles the prompt the routing model decides from.
func buildRoutingPrompt(session *core.Session, learnerMessage string) string {
	var b strings.Builder
	b.WriteString("You are coordinating a clinical tutoring session. ")
	b.WriteString("Decide which tool should handle the student's latest message, or answer directly.\n\n")
	fmt.Fprintf(&b, "Current phase: %s\n\n", session.Phase)
	fmt.Fprintf(&b, "## Case\n%s\n\n", session.CaseText)
	if rendered := session.History.Render(); rendered != "" {
		fmt.Fprintf(&b, "## Conversation so far\n%s\n", rendered)
	}
	fmt.Fprintf(&b, "## Student's latest message\n%s\n", learnerMessage)
	return b.String()
}
