// Package workflow implements the authoritative workflow graph: participants,
// steps, flows, metadata, and version history, together with the entity
// resolver that maps spoken or transcribed names onto stable identifiers.
//
// The graph is the single source of truth for both the canvas projection and
// the generated documentation. All mutations go through [Store], which
// guarantees stable identifier assignment and append-only history semantics.
package workflow

// ParticipantType classifies a participant relative to the organisation
// whose process is being captured.
type ParticipantType string

const (
	// ParticipantInternal marks employees, teams, and departments.
	ParticipantInternal ParticipantType = "internal"

	// ParticipantExternal marks customers, vendors, and other third parties.
	ParticipantExternal ParticipantType = "external"
)

// IsValid reports whether t is a recognised participant type.
func (t ParticipantType) IsValid() bool {
	return t == ParticipantInternal || t == ParticipantExternal
}

// StepType distinguishes plain activities from conditional branch points.
type StepType string

const (
	// StepAction is a normal process activity.
	StepAction StepType = "action"

	// StepDecision is a conditional branch point carrying outcome conditions.
	StepDecision StepType = "decision"
)

// IsValid reports whether t is a recognised step type.
func (t StepType) IsValid() bool {
	return t == StepAction || t == StepDecision
}

// Participant is a person, team, or external party taking part in the
// workflow. Participants are created only through the resolver and are
// immutable once created — a later duplicate mention never mutates the
// original (first-writer-wins for type and role).
type Participant struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Type ParticipantType `json:"type"`
	Role string          `json:"role"`
}

// StepConditions maps an outcome label to human-readable condition text,
// e.g. {"approved": "Inventory available AND payment valid"}. Meaningful
// only on decision steps.
type StepConditions map[string]string

// Step is a single process step. Sequence numbers are monotonic and never
// reused; the identifier is derived from the sequence (step_<n>).
type Step struct {
	ID       string `json:"id"`
	Sequence int    `json:"sequence"`
	Action   string `json:"action"`

	// Actor is the participant ID of whoever performs this step. The store
	// does not hard-fail on a dangling actor reference — the projection
	// simply places the step in the leftmost column and the document falls
	// back to the raw identifier.
	Actor string `json:"actor"`

	Type       StepType       `json:"type"`
	Inputs     []string       `json:"inputs,omitempty"`
	Outputs    []string       `json:"outputs,omitempty"`
	Conditions StepConditions `json:"conditions,omitempty"`
}

// Flow is a directed edge between two steps. Flows carry no identifier and
// are never deduplicated: parallel conditional edges between the same pair
// of steps are legal.
type Flow struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Condition string `json:"condition,omitempty"`
}

// Metadata holds session-level context captured alongside the graph.
type Metadata struct {
	SessionDate string   `json:"sessionDate"`
	SessionWith string   `json:"sessionWith"`
	Notes       []string `json:"notes"`
}

// VersionEntry is a single line of the workflow's version history.
type VersionEntry struct {
	Version string `json:"version"`
	Date    string `json:"date"`
	Changes string `json:"changes"`
	Session string `json:"session"`
}

// Workflow is the aggregate root. It serialises to JSON with the exact field
// names consumed by saved sessions and file exports.
type Workflow struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Created      string    `json:"created"`
	LastModified string    `json:"lastModified"`

	Participants []Participant `json:"participants"`
	Steps        []Step        `json:"steps"`
	Flows        []Flow        `json:"flows"`

	Metadata       Metadata       `json:"metadata"`
	VersionHistory []VersionEntry `json:"versionHistory,omitempty"`
}

// Participant returns the participant with the given ID, or false when no
// such participant exists.
func (w *Workflow) Participant(id string) (Participant, bool) {
	for _, p := range w.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// ParticipantIndex returns the position of the participant with the given ID
// in creation order, or -1 when no such participant exists.
func (w *Workflow) ParticipantIndex(id string) int {
	for i, p := range w.Participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Step returns the step with the given ID, or false when no such step exists.
func (w *Workflow) Step(id string) (Step, bool) {
	for _, s := range w.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// Empty reports whether the workflow carries no captured content. Empty
// workflows are not worth persisting on disconnect.
func (w *Workflow) Empty() bool {
	return len(w.Participants) == 0 && len(w.Steps) == 0 &&
		len(w.Flows) == 0 && len(w.Metadata.Notes) == 0
}
