package workflow

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// defaultName is the name a freshly created workflow starts with until the
// caller issues a set_workflow_name operation.
const defaultName = "Untitled Workflow"

// Store owns a single in-memory [Workflow] and applies all mutations to it.
//
// All operations are synchronous and perform no I/O. The store itself is not
// safe for concurrent use — the dispatch layer serialises every mutation
// (tool invocations must observe the side effects of earlier invocations in
// the same turn), and a multi-threaded host must wrap the whole
// dispatch → resolve → mutate → project chain in one critical section.
type Store struct {
	wf *Workflow

	// now is stubbed in tests to pin lastModified stamps.
	now func() time.Time
}

// NewStore returns a Store holding a fresh empty workflow.
func NewStore() *Store {
	s := &Store{now: time.Now}
	s.wf = s.newEmptyWorkflow()
	return s
}

// newEmptyWorkflow builds a blank workflow with today's dates and a
// time-derived identifier.
func (s *Store) newEmptyWorkflow() *Workflow {
	today := s.today()
	return &Workflow{
		ID:           "wf_" + strconv.FormatInt(s.now().UnixMilli(), 36),
		Name:         defaultName,
		Version:      "1.0",
		Created:      today,
		LastModified: today,
		Participants: []Participant{},
		Steps:        []Step{},
		Flows:        []Flow{},
		Metadata: Metadata{
			SessionDate: today,
			Notes:       []string{},
		},
	}
}

// today formats the current date as YYYY-MM-DD, the date granularity used
// throughout the workflow document.
func (s *Store) today() string {
	return s.now().Format("2006-01-02")
}

// touch stamps the workflow as modified today. Called by every mutation.
func (s *Store) touch() {
	s.wf.LastModified = s.today()
}

// Workflow returns the live workflow. Callers must treat the result as
// read-only; use [Store.Snapshot] for an independent copy.
func (s *Store) Workflow() *Workflow {
	return s.wf
}

// Snapshot returns a deep copy of the current workflow, safe to hand to
// persistence or export code while mutations continue.
func (s *Store) Snapshot() Workflow {
	cp := *s.wf
	cp.Participants = append([]Participant(nil), s.wf.Participants...)
	cp.Steps = make([]Step, len(s.wf.Steps))
	for i, st := range s.wf.Steps {
		cp.Steps[i] = st
		cp.Steps[i].Inputs = append([]string(nil), st.Inputs...)
		cp.Steps[i].Outputs = append([]string(nil), st.Outputs...)
		if st.Conditions != nil {
			cond := make(StepConditions, len(st.Conditions))
			for k, v := range st.Conditions {
				cond[k] = v
			}
			cp.Steps[i].Conditions = cond
		}
	}
	cp.Flows = append([]Flow(nil), s.wf.Flows...)
	cp.Metadata.Notes = append([]string(nil), s.wf.Metadata.Notes...)
	cp.VersionHistory = append([]VersionEntry(nil), s.wf.VersionHistory...)
	return cp
}

// AddParticipant appends a participant unless one with the same derived ID or
// case-insensitively equal name already exists, in which case the existing
// participant's ID is returned unchanged and the supplied type and role are
// discarded. Spoken input re-mentions the same entities constantly; without
// this the graph would fill with duplicates.
func (s *Store) AddParticipant(name string, ptype ParticipantType, role string) string {
	id := NormalizeID(name)

	for _, p := range s.wf.Participants {
		if p.ID == id || strings.EqualFold(p.Name, name) {
			return p.ID
		}
	}

	s.wf.Participants = append(s.wf.Participants, Participant{
		ID:   id,
		Name: name,
		Type: ptype,
		Role: role,
	})
	s.touch()
	return id
}

// AddStep always appends: each call represents a distinct process step even
// when the action text repeats. The sequence number is the count of steps
// ever created and is never reused.
func (s *Store) AddStep(action, actorID string, stype StepType, conditions StepConditions, inputs, outputs []string) string {
	seq := len(s.wf.Steps) + 1
	id := StepID(seq)

	if _, ok := s.wf.Participant(actorID); !ok {
		slog.Warn("step actor does not resolve to a participant", "step", id, "actor", actorID)
	}

	s.wf.Steps = append(s.wf.Steps, Step{
		ID:         id,
		Sequence:   seq,
		Action:     action,
		Actor:      actorID,
		Type:       stype,
		Inputs:     inputs,
		Outputs:    outputs,
		Conditions: conditions,
	})
	s.touch()
	return id
}

// AddFlow appends a directed edge unconditionally. Duplicate flows are not
// deduplicated — parallel conditional edges are permitted. Dangling step
// references are tolerated (the projection skips the connector) but warned
// about, since they usually indicate the model invented a step identifier.
func (s *Store) AddFlow(fromID, toID, condition string) {
	if _, ok := s.wf.Step(fromID); !ok {
		slog.Warn("flow source does not resolve to a step", "from", fromID)
	}
	if _, ok := s.wf.Step(toID); !ok {
		slog.Warn("flow target does not resolve to a step", "to", toID)
	}

	s.wf.Flows = append(s.wf.Flows, Flow{From: fromID, To: toID, Condition: condition})
	s.touch()
}

// SetName overwrites the workflow name.
func (s *Store) SetName(name string) {
	s.wf.Name = name
	s.touch()
}

// MetadataUpdate carries a partial metadata update; nil fields are left
// untouched (shallow merge).
type MetadataUpdate struct {
	SessionDate *string
	SessionWith *string
	Notes       []string
}

// UpdateMetadata shallow-merges upd into the workflow metadata.
func (s *Store) UpdateMetadata(upd MetadataUpdate) {
	if upd.SessionDate != nil {
		s.wf.Metadata.SessionDate = *upd.SessionDate
	}
	if upd.SessionWith != nil {
		s.wf.Metadata.SessionWith = *upd.SessionWith
	}
	if upd.Notes != nil {
		s.wf.Metadata.Notes = upd.Notes
	}
	s.touch()
}

// AddNote appends a session note.
func (s *Store) AddNote(note string) {
	s.wf.Metadata.Notes = append(s.wf.Metadata.Notes, note)
	s.touch()
}

// Reset replaces the whole workflow with a fresh empty one (new ID, today's
// dates, empty collections).
func (s *Store) Reset() {
	s.wf = s.newEmptyWorkflow()
}

// Load replaces the in-memory workflow wholesale with wf, bumps the minor
// version component, and appends a "Continued session" history entry. Used
// when reopening a saved session.
func (s *Store) Load(wf Workflow) {
	bumped := bumpMinor(wf.Version)
	wf.VersionHistory = append(wf.VersionHistory, VersionEntry{
		Version: bumped,
		Date:    s.today(),
		Changes: "Continued session",
		Session: s.today(),
	})
	wf.Version = bumped
	s.wf = &wf
	s.touch()
}

// bumpMinor increments the minor component of a "major.minor" version
// string. Malformed versions restart at "1.1" rather than failing — saved
// documents from older sessions are always loadable.
func bumpMinor(version string) string {
	major, minorStr, ok := strings.Cut(version, ".")
	if !ok {
		return "1.1"
	}
	minor, err := strconv.Atoi(minorStr)
	if err != nil {
		return "1.1"
	}
	return fmt.Sprintf("%s.%d", major, minor+1)
}
