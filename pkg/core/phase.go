package core

import (
	"regexp"
	"strings"

	"github.com/casetutor/casetutor/pkg/errors"
)

// Phase is a pedagogical stage of a tutoring session. Phases are totally
// ordered and only ever advance forward, except through an explicit
// override.
type Phase int

const (
	PhaseInformationGathering Phase = iota
	PhaseDifferentialDiagnosis
	PhaseTestsAndManagement
	PhaseFeedback
	PhaseCompleted
)

var phaseIDs = map[Phase]string{
	PhaseInformationGathering:  "information_gathering",
	PhaseDifferentialDiagnosis: "differential_diagnosis",
	PhaseTestsAndManagement:    "tests_and_management",
	PhaseFeedback:              "feedback",
	PhaseCompleted:             "completed",
}

// String returns the snake_case phase id used in completion markers.
func (p Phase) String() string {
	if id, ok := phaseIDs[p]; ok {
		return id
	}
	return "unknown"
}

// Valid reports whether p is a defined phase.
func (p Phase) Valid() bool {
	_, ok := phaseIDs[p]
	return ok
}

// Terminal reports whether p is the final phase.
func (p Phase) Terminal() bool { return p == PhaseCompleted }

// Next returns the phase that follows p in the fixed order. The terminal
// phase is its own successor.
func (p Phase) Next() Phase {
	if p >= PhaseCompleted {
		return PhaseCompleted
	}
	return p + 1
}

// Marker returns the completion marker a sub-agent emits to signal that
// phase p's goals are met.
func (p Phase) Marker() string {
	return "[PHASE_COMPLETE: " + p.String() + "]"
}

// ParsePhase maps a phase id back to its Phase.
func ParsePhase(s string) (Phase, error) {
	id := strings.ToLower(strings.TrimSpace(s))
	for p, name := range phaseIDs {
		if name == id {
			return p, nil
		}
	}
	return PhaseInformationGathering, errors.WithFields(
		errors.New(errors.Validation, "unknown phase"),
		errors.Fields{"phase": s},
	)
}

// markerPattern matches completion markers embedded in agent text. This is
// the only place in the library that reads control meaning out of agent
// output; everything else treats that output as opaque display text.
var markerPattern = regexp.MustCompile(`(?i)\[\s*PHASE_COMPLETE\s*:\s*([a-z_]+)\s*\]`)

// Advance computes the phase that follows agentOutput being produced while
// the session is in current. It is pure and total: it always returns a
// valid phase and never fails.
//
// An override naming a valid phase wins unconditionally; this is the escape
// hatch for "let's move on" or "go back". Otherwise the output is scanned
// for a completion marker matching current; markers for any other phase are
// ignored, so an agent hallucinating a future-phase marker cannot skip
// stages.
func Advance(current Phase, agentOutput string, override *Phase) Phase {
	if !current.Valid() {
		current = PhaseInformationGathering
	}
	if override != nil && override.Valid() {
		return *override
	}
	for _, m := range markerPattern.FindAllStringSubmatch(agentOutput, -1) {
		if strings.EqualFold(m[1], current.String()) {
			return current.Next()
		}
	}
	return current
}

// StripMarkers removes every completion marker from s so learners never see
// control tokens. Other bracketed text is left alone.
func StripMarkers(s string) string {
	return strings.TrimSpace(markerPattern.ReplaceAllString(s, ""))
}
