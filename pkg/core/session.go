package core

import "github.com/google/uuid"

// Session holds the state of one tutoring session. It is owned exclusively
// by the orchestrator processing that session and must not be shared across
// sessions; distinct sessions may be processed concurrently.
type Session struct {
	ID        string  `json:"id"`
	CaseText  string  `json:"case_text"`
	History   History `json:"history"`
	Phase     Phase   `json:"phase"`
	ModelName string  `json:"model_name"`
}

// NewSession starts a session over the given case text at the first phase.
func NewSession(caseText, modelName string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CaseText:  caseText,
		Phase:     PhaseInformationGathering,
		ModelName: modelName,
	}
}

// Append records one message at the end of the session transcript.
func (s *Session) Append(role Role, content string) {
	s.History = append(s.History, Message{Role: role, Content: content})
}
