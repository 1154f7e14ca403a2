package workflow_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/topology-ai/topology/internal/workflow"
)

func TestStoreAddParticipant(t *testing.T) {
	t.Parallel()

	t.Run("assigns normalized id", func(t *testing.T) {
		t.Parallel()
		s := workflow.NewStore()

		id := s.AddParticipant("Sales Team", workflow.ParticipantInternal, "sales")
		if id != "sales_team" {
			t.Fatalf("id = %q, want %q", id, "sales_team")
		}
		p, ok := s.Workflow().Participant("sales_team")
		if !ok {
			t.Fatal("participant not stored")
		}
		if p.Name != "Sales Team" || p.Type != workflow.ParticipantInternal || p.Role != "sales" {
			t.Fatalf("stored participant = %+v", p)
		}
	})

	t.Run("duplicate mention is first-writer-wins", func(t *testing.T) {
		t.Parallel()
		s := workflow.NewStore()

		first := s.AddParticipant("Sarah", workflow.ParticipantInternal, "approver")
		second := s.AddParticipant("sarah", workflow.ParticipantExternal, "customer")

		if first != second {
			t.Fatalf("duplicate mention produced new id: %q vs %q", first, second)
		}
		if got := len(s.Workflow().Participants); got != 1 {
			t.Fatalf("participants = %d, want 1", got)
		}
		p, _ := s.Workflow().Participant(first)
		if p.Type != workflow.ParticipantInternal || p.Role != "approver" {
			t.Fatalf("later mention mutated the original: %+v", p)
		}
	})

	t.Run("same normalized id collides", func(t *testing.T) {
		t.Parallel()
		s := workflow.NewStore()

		a := s.AddParticipant("Sales-Team", workflow.ParticipantInternal, "")
		b := s.AddParticipant("sales team", workflow.ParticipantExternal, "")
		if a != b {
			t.Fatalf("ids differ: %q vs %q", a, b)
		}
	})
}

func TestStoreAddStep(t *testing.T) {
	t.Parallel()

	t.Run("sequences are monotonic and ids derived", func(t *testing.T) {
		t.Parallel()
		s := workflow.NewStore()
		actor := s.AddParticipant("Ops", workflow.ParticipantInternal, "")

		first := s.AddStep("Receive order", actor, workflow.StepAction, nil, nil, nil)
		second := s.AddStep("Receive order", actor, workflow.StepAction, nil, nil, nil)

		if first != "step_1" || second != "step_2" {
			t.Fatalf("ids = %q, %q", first, second)
		}
		steps := s.Workflow().Steps
		if steps[0].Sequence != 1 || steps[1].Sequence != 2 {
			t.Fatalf("sequences = %d, %d", steps[0].Sequence, steps[1].Sequence)
		}
	})

	t.Run("identical actions stay distinct steps", func(t *testing.T) {
		t.Parallel()
		s := workflow.NewStore()
		actor := s.AddParticipant("Ops", workflow.ParticipantInternal, "")

		s.AddStep("Review", actor, workflow.StepAction, nil, nil, nil)
		s.AddStep("Review", actor, workflow.StepAction, nil, nil, nil)
		if got := len(s.Workflow().Steps); got != 2 {
			t.Fatalf("steps = %d, want 2", got)
		}
	})

	t.Run("dangling actor is tolerated", func(t *testing.T) {
		t.Parallel()
		s := workflow.NewStore()

		id := s.AddStep("Check stock", "warehouse", workflow.StepAction, nil, nil, nil)
		st, ok := s.Workflow().Step(id)
		if !ok {
			t.Fatal("step not stored")
		}
		if st.Actor != "warehouse" {
			t.Fatalf("actor = %q", st.Actor)
		}
	})
}

func TestStoreAddFlow(t *testing.T) {
	t.Parallel()

	t.Run("parallel conditional edges are kept", func(t *testing.T) {
		t.Parallel()
		s := workflow.NewStore()
		actor := s.AddParticipant("Ops", workflow.ParticipantInternal, "")
		a := s.AddStep("Decide", actor, workflow.StepDecision, workflow.StepConditions{
			"approved": "stock available",
			"rejected": "out of stock",
		}, nil, nil)
		b := s.AddStep("Ship", actor, workflow.StepAction, nil, nil, nil)

		s.AddFlow(a, b, "approved")
		s.AddFlow(a, b, "rejected")
		s.AddFlow(a, b, "approved") // exact duplicate, still kept

		if got := len(s.Workflow().Flows); got != 3 {
			t.Fatalf("flows = %d, want 3", got)
		}
	})

	t.Run("dangling references are kept", func(t *testing.T) {
		t.Parallel()
		s := workflow.NewStore()
		s.AddFlow("step_9", "step_10", "")
		if got := len(s.Workflow().Flows); got != 1 {
			t.Fatalf("flows = %d, want 1", got)
		}
	})
}

func TestStoreLoad(t *testing.T) {
	t.Parallel()

	t.Run("bumps minor version and records continuation", func(t *testing.T) {
		t.Parallel()
		s := workflow.NewStore()
		s.Load(workflow.Workflow{
			ID:      "wf_1",
			Name:    "Order Handling",
			Version: "2.3",
		})

		wf := s.Workflow()
		if wf.Version != "2.4" {
			t.Fatalf("version = %q, want %q", wf.Version, "2.4")
		}
		if len(wf.VersionHistory) != 1 {
			t.Fatalf("history entries = %d, want 1", len(wf.VersionHistory))
		}
		entry := wf.VersionHistory[0]
		if entry.Version != "2.4" || entry.Changes != "Continued session" {
			t.Fatalf("history entry = %+v", entry)
		}
	})

	t.Run("malformed version restarts at 1.1", func(t *testing.T) {
		t.Parallel()
		s := workflow.NewStore()
		s.Load(workflow.Workflow{Version: "draft"})
		if got := s.Workflow().Version; got != "1.1" {
			t.Fatalf("version = %q, want %q", got, "1.1")
		}
	})
}

func TestStoreReset(t *testing.T) {
	t.Parallel()

	s := workflow.NewStore()
	s.AddParticipant("Sarah", workflow.ParticipantInternal, "")
	s.SetName("Order Handling")
	oldID := s.Workflow().ID

	s.Reset()

	wf := s.Workflow()
	if !wf.Empty() {
		t.Fatal("workflow not empty after reset")
	}
	if wf.ID == oldID {
		t.Fatal("reset reused the old workflow id")
	}
	if wf.Name != "Untitled Workflow" {
		t.Fatalf("name = %q", wf.Name)
	}
}

func TestStoreSnapshot(t *testing.T) {
	t.Parallel()

	s := workflow.NewStore()
	actor := s.AddParticipant("Sarah", workflow.ParticipantInternal, "approver")
	s.AddStep("Approve", actor, workflow.StepDecision,
		workflow.StepConditions{"approved": "valid"}, []string{"request"}, []string{"decision"})
	s.AddNote("first note")

	snap := s.Snapshot()
	s.AddParticipant("Vendor", workflow.ParticipantExternal, "")
	s.AddNote("second note")
	snap.Steps[0].Conditions["approved"] = "mutated"

	if len(snap.Participants) != 1 || len(snap.Metadata.Notes) != 1 {
		t.Fatal("snapshot observed later mutations")
	}
	if s.Workflow().Steps[0].Conditions["approved"] != "valid" {
		t.Fatal("snapshot shares condition map with the live workflow")
	}
}

func TestWorkflowJSONFieldNames(t *testing.T) {
	t.Parallel()

	s := workflow.NewStore()
	s.AddParticipant("Sarah", workflow.ParticipantInternal, "approver")
	s.Load(s.Snapshot())

	raw, err := json.Marshal(s.Workflow())
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{`"lastModified"`, `"versionHistory"`, `"sessionDate"`, `"sessionWith"`} {
		if !strings.Contains(string(raw), field) {
			t.Errorf("serialized workflow missing field %s", field)
		}
	}
}

func TestStoreDatesAreToday(t *testing.T) {
	t.Parallel()

	today := time.Now().Format("2006-01-02")
	s := workflow.NewStore()
	wf := s.Workflow()
	if wf.Created != today || wf.LastModified != today || wf.Metadata.SessionDate != today {
		t.Fatalf("dates = %q/%q/%q, want %q", wf.Created, wf.LastModified, wf.Metadata.SessionDate, today)
	}
}
