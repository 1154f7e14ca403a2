package canvas_test

import (
	"errors"
	"sort"
	"testing"

	"github.com/topology-ai/topology/internal/canvas"
	"github.com/topology-ai/topology/internal/workflow"
)

func buildScenarioWorkflow(t *testing.T) *workflow.Store {
	t.Helper()

	s := workflow.NewStore()
	r := workflow.NewResolver(s)
	r.ResolveOrCreateParticipant("Sarah", workflow.ParticipantInternal, "Account Manager")
	s.AddStep("Review order", r.ResolveActor("Sarah"), workflow.StepAction, nil, nil, nil)
	s.AddStep("Approve?", r.ResolveActor("Sarah"), workflow.StepDecision,
		workflow.StepConditions{"approved": "Stock available", "rejected": "Out of stock"}, nil, nil)
	s.AddFlow("step_1", "step_2", "")
	return s
}

func TestProjectWorkflowScenario(t *testing.T) {
	t.Parallel()

	s := buildScenarioWorkflow(t)
	surface := canvas.NewMemSurface()
	p := canvas.NewProjector(surface)

	if err := p.ProjectWorkflow(s.Workflow()); err != nil {
		t.Fatal(err)
	}

	part, ok := surface.Node(canvas.ParticipantNodeID("sarah"))
	if !ok {
		t.Fatal("participant node missing")
	}
	if part.X != 200 || part.Y != 50 {
		t.Fatalf("participant at (%v,%v), want (200,50)", part.X, part.Y)
	}

	step1, ok := surface.Node(canvas.StepNodeID("step_1"))
	if !ok {
		t.Fatal("step_1 node missing")
	}
	if step1.X != 200 || step1.Y != 300 {
		t.Fatalf("step_1 at (%v,%v), want (200,300)", step1.X, step1.Y)
	}
	if step1.Height != 80 || step1.Type != canvas.KindStep {
		t.Fatalf("step_1 shape = %v h=%v", step1.Type, step1.Height)
	}

	step2, ok := surface.Node(canvas.StepNodeID("step_2"))
	if !ok {
		t.Fatal("step_2 node missing")
	}
	if step2.X != 200 || step2.Y != 480 {
		t.Fatalf("step_2 at (%v,%v), want (200,480)", step2.X, step2.Y)
	}
	if step2.Type != canvas.KindDecision || step2.Height != 100 {
		t.Fatalf("step_2 shape = %v h=%v, want decision h=100", step2.Type, step2.Height)
	}

	label, ok := surface.Node(canvas.ParticipantLabelID("sarah"))
	if !ok {
		t.Fatal("participant label missing")
	}
	if label.X != 210 || label.Y != 50+part.Height+10 {
		t.Fatalf("label at (%v,%v)", label.X, label.Y)
	}
	if label.Text != "Sarah\n(Account Manager)" {
		t.Fatalf("label text = %q", label.Text)
	}

	if got := len(surface.Connectors()); got != 1 {
		t.Fatalf("connectors = %d, want 1", got)
	}
}

func TestProjectWorkflowDeterministic(t *testing.T) {
	t.Parallel()

	s := buildScenarioWorkflow(t)
	surface := canvas.NewMemSurface()
	p := canvas.NewProjector(surface)

	snapshot := func() []canvas.Node {
		nodes := surface.Nodes()
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
		return nodes
	}

	if err := p.ProjectWorkflow(s.Workflow()); err != nil {
		t.Fatal(err)
	}
	first := snapshot()

	if err := p.ProjectWorkflow(s.Workflow()); err != nil {
		t.Fatal(err)
	}
	second := snapshot()

	if len(first) != len(second) {
		t.Fatalf("node counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("node %d differs:\n%+v\n%+v", i, first[i], second[i])
		}
	}
}

func TestFlowConnectorGeometry(t *testing.T) {
	t.Parallel()

	s := buildScenarioWorkflow(t)
	surface := canvas.NewMemSurface()
	p := canvas.NewProjector(surface)
	if err := p.ProjectWorkflow(s.Workflow()); err != nil {
		t.Fatal(err)
	}

	conns := surface.Connectors()
	if len(conns) != 1 {
		t.Fatalf("connectors = %d, want 1", len(conns))
	}
	c := conns[0]

	step1, _ := surface.Node(canvas.StepNodeID("step_1"))
	step2, _ := surface.Node(canvas.StepNodeID("step_2"))
	wantStart := canvas.Point{X: step1.X + step1.Width/2, Y: step1.Y + step1.Height}
	wantEnd := canvas.Point{X: step2.X + step2.Width/2, Y: step2.Y}

	if c.Start != wantStart || c.End != wantEnd {
		t.Fatalf("connector %+v → %+v, want %+v → %+v", c.Start, c.End, wantStart, wantEnd)
	}
	if c.BindStart == nil || c.BindEnd == nil {
		t.Fatal("connector missing bindings")
	}
	if c.BindStart.AnchorX != 0.5 || c.BindStart.AnchorY != 0.5 || c.BindStart.IsPrecise || c.BindStart.IsExact {
		t.Fatalf("start binding = %+v", c.BindStart)
	}
}

func TestFlowConditionLabel(t *testing.T) {
	t.Parallel()

	s := buildScenarioWorkflow(t)
	s.AddStep("Ship", "sarah", workflow.StepAction, nil, nil, nil)
	s.AddFlow("step_2", "step_3", "approved")

	surface := canvas.NewMemSurface()
	p := canvas.NewProjector(surface)
	if err := p.ProjectWorkflow(s.Workflow()); err != nil {
		t.Fatal(err)
	}

	label, ok := surface.Node(canvas.FlowLabelID(1))
	if !ok {
		t.Fatal("condition label missing")
	}
	if label.Text != "approved" {
		t.Fatalf("label text = %q", label.Text)
	}

	step2, _ := surface.Node(canvas.StepNodeID("step_2"))
	step3, _ := surface.Node(canvas.StepNodeID("step_3"))
	startY := step2.Y + step2.Height
	endY := step3.Y
	wantX := (step2.X+step2.Width/2+step3.X+step3.Width/2)/2 + 10
	wantY := (startY+endY)/2 - 10
	if label.X != wantX || label.Y != wantY {
		t.Fatalf("label at (%v,%v), want (%v,%v)", label.X, label.Y, wantX, wantY)
	}
}

func TestDanglingFlowSkipsConnector(t *testing.T) {
	t.Parallel()

	s := workflow.NewStore()
	s.AddFlow("step_8", "step_9", "")

	surface := canvas.NewMemSurface()
	p := canvas.NewProjector(surface)
	if err := p.ProjectWorkflow(s.Workflow()); err != nil {
		t.Fatal(err)
	}
	if got := len(surface.Connectors()); got != 0 {
		t.Fatalf("connectors = %d, want 0", got)
	}
}

func TestConnect(t *testing.T) {
	t.Parallel()

	t.Run("missing endpoint leaves no connector", func(t *testing.T) {
		t.Parallel()
		surface := canvas.NewMemSurface()
		p := canvas.NewProjector(surface)
		a, err := p.DrawItem(canvas.KindServer, 0, 0)
		if err != nil {
			t.Fatal(err)
		}

		err = p.Connect(a, "b", false)
		if !errors.Is(err, canvas.ErrEntityNotFound) {
			t.Fatalf("err = %v, want ErrEntityNotFound", err)
		}
		if got := len(surface.Connectors()); got != 0 {
			t.Fatalf("connectors = %d, want 0", got)
		}
	})

	t.Run("two-way draws both arrows with edge termination", func(t *testing.T) {
		t.Parallel()
		surface := canvas.NewMemSurface()
		p := canvas.NewProjector(surface)
		server, err := p.DrawItem(canvas.KindServer, 0, 0) // 240x160 rect
		if err != nil {
			t.Fatal(err)
		}
		db, err := p.DrawItem(canvas.KindDatabase, 600, 0) // 160x200 ellipse
		if err != nil {
			t.Fatal(err)
		}

		if err := p.Connect(server, db, true); err != nil {
			t.Fatal(err)
		}
		conns := surface.Connectors()
		if len(conns) != 2 {
			t.Fatalf("connectors = %d, want 2", len(conns))
		}

		for _, c := range conns {
			if c.Type != "arrow" {
				t.Fatalf("connector type = %q", c.Type)
			}
		}

		// The database lies far to the right, so the forward arrow must
		// leave through the server's right edge.
		fwd, ok := surface.Node(server)
		if !ok {
			t.Fatal("server node missing")
		}
		for _, c := range conns {
			if c.BindStart.NodeID == server {
				if c.Start.X != fwd.X+fwd.Width {
					t.Fatalf("start.X = %v, want %v", c.Start.X, fwd.X+fwd.Width)
				}
			}
		}
	})
}

func TestDelete(t *testing.T) {
	t.Parallel()

	surface := canvas.NewMemSurface()
	p := canvas.NewProjector(surface)
	id, err := p.DrawItem(canvas.KindUser, 10, 10)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Delete(id); err != nil {
		t.Fatal(err)
	}
	if _, ok := surface.Node(id); ok {
		t.Fatal("node still present after delete")
	}
	if err := p.Delete(id); !errors.Is(err, canvas.ErrEntityNotFound) {
		t.Fatalf("second delete err = %v, want ErrEntityNotFound", err)
	}
}

func TestNilSurfaceReturnsEngineNotReady(t *testing.T) {
	t.Parallel()

	p := canvas.NewProjector(nil)
	if p.Ready() {
		t.Fatal("Ready() = true with nil surface")
	}
	if _, err := p.DrawItem(canvas.KindServer, 0, 0); !errors.Is(err, canvas.ErrEngineNotReady) {
		t.Fatalf("DrawItem err = %v", err)
	}
	if _, err := p.AddText("note", 0, 0); !errors.Is(err, canvas.ErrEngineNotReady) {
		t.Fatalf("AddText err = %v", err)
	}
	if err := p.Connect("a", "b", false); !errors.Is(err, canvas.ErrEngineNotReady) {
		t.Fatalf("Connect err = %v", err)
	}
	if err := p.ProjectWorkflow(&workflow.Workflow{}); !errors.Is(err, canvas.ErrEngineNotReady) {
		t.Fatalf("ProjectWorkflow err = %v", err)
	}
}

func TestIncrementalAppendMatchesReprojection(t *testing.T) {
	t.Parallel()

	s := workflow.NewStore()
	incSurface := canvas.NewMemSurface()
	inc := canvas.NewProjector(incSurface)

	// Incremental path: draw each entity as it is created.
	idA := s.AddParticipant("Sarah", workflow.ParticipantInternal, "AM")
	pa, _ := s.Workflow().Participant(idA)
	if err := inc.AddParticipantNode(s.Workflow(), pa); err != nil {
		t.Fatal(err)
	}
	idB := s.AddParticipant("Acme", workflow.ParticipantExternal, "Vendor")
	pb, _ := s.Workflow().Participant(idB)
	if err := inc.AddParticipantNode(s.Workflow(), pb); err != nil {
		t.Fatal(err)
	}
	stepID := s.AddStep("Order", idB, workflow.StepAction, nil, nil, nil)
	st, _ := s.Workflow().Step(stepID)
	if err := inc.AddStepNode(s.Workflow(), st); err != nil {
		t.Fatal(err)
	}

	// Full re-projection of the same graph onto a fresh surface.
	fullSurface := canvas.NewMemSurface()
	if err := canvas.NewProjector(fullSurface).ProjectWorkflow(s.Workflow()); err != nil {
		t.Fatal(err)
	}

	for _, n := range fullSurface.Nodes() {
		got, ok := incSurface.Node(n.ID)
		if !ok {
			t.Fatalf("incremental surface missing %s", n.ID)
		}
		if got != n {
			t.Fatalf("node %s differs:\nincremental %+v\nfull        %+v", n.ID, got, n)
		}
	}

	// Second participant sits one column over; its step shares the column.
	second, _ := incSurface.Node(canvas.ParticipantNodeID(idB))
	if second.X != 500 {
		t.Fatalf("second participant X = %v, want 500", second.X)
	}
	stepNode, _ := incSurface.Node(canvas.StepNodeID(stepID))
	if stepNode.X != 500 || stepNode.Y != 300 {
		t.Fatalf("step at (%v,%v), want (500,300)", stepNode.X, stepNode.Y)
	}
}
