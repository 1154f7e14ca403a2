package canvas

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/topology-ai/topology/internal/workflow"
)

// Sentinel errors for the projection boundary.
var (
	// ErrEngineNotReady means a visual operation arrived before a rendering
	// surface was attached. Graph-side effects of the calling operation are
	// preserved; only the visual is skipped.
	ErrEngineNotReady = errors.New("canvas: rendering surface not initialized")

	// ErrEntityNotFound means an operation referenced a visual id with no
	// corresponding node in the scene.
	ErrEntityNotFound = errors.New("canvas: visual entity not found")
)

// Workflow projection layout. Participants form a single row, steps form one
// column per actor, with fixed spacing between columns and rows.
const (
	layoutOriginX    = 200
	columnSpacing    = 300
	participantRowY  = 50
	stepRowY         = 300
	stepRowSpacing   = 180
	labelInsetX      = 10
	labelInsetY      = 10
	conditionOffsetX = 10
	conditionOffsetY = -10

	participantWidth  = 200
	participantHeight = 120
	stepWidth         = 200
	stepHeight        = 80
	decisionHeight    = 100
)

// Projector derives scene-graph state from workflow graph state and handles
// ad hoc architecture drawing. A nil surface is legal (headless extraction);
// every visual operation then returns [ErrEngineNotReady].
type Projector struct {
	surface Surface

	// Counters behind ad hoc item and text ids.
	items int
	texts int
}

// NewProjector returns a Projector drawing onto surface. surface may be nil.
func NewProjector(surface Surface) *Projector {
	return &Projector{surface: surface}
}

// Ready reports whether a rendering surface is attached.
func (p *Projector) Ready() bool {
	return p.surface != nil
}

// Surface returns the attached rendering surface, or nil.
func (p *Projector) Surface() Surface {
	return p.surface
}

// ── Workflow projection ──────────────────────────────────────────────────

// ProjectWorkflow clears the scene and redraws the whole workflow. Because
// all visual ids derive from graph ids, projecting the same workflow twice
// yields identical node sets.
func (p *Projector) ProjectWorkflow(wf *workflow.Workflow) error {
	if p.surface == nil {
		return ErrEngineNotReady
	}

	existing := p.surface.Nodes()
	ids := make([]string, len(existing))
	for i, n := range existing {
		ids[i] = n.ID
	}
	p.surface.DeleteNodes(ids)

	for _, part := range wf.Participants {
		if err := p.AddParticipantNode(wf, part); err != nil {
			return err
		}
	}
	for _, step := range wf.Steps {
		if err := p.AddStepNode(wf, step); err != nil {
			return err
		}
	}
	for i, flow := range wf.Flows {
		p.AddFlowConnector(i, flow)
	}
	return nil
}

// AddParticipantNode draws one participant and its label. The position
// follows from the participant's index in creation order, so incremental
// appends land exactly where a full re-projection would put them.
func (p *Projector) AddParticipantNode(wf *workflow.Workflow, part workflow.Participant) error {
	if p.surface == nil {
		return ErrEngineNotReady
	}

	i := wf.ParticipantIndex(part.ID)
	if i < 0 {
		return fmt.Errorf("%w: participant %q", ErrEntityNotFound, part.ID)
	}

	x := float64(layoutOriginX + i*columnSpacing)
	y := float64(participantRowY)

	p.surface.CreateNodes([]Node{
		{
			ID:     ParticipantNodeID(part.ID),
			Type:   KindParticipant,
			X:      x,
			Y:      y,
			Width:  participantWidth,
			Height: participantHeight,
		},
		{
			ID:   ParticipantLabelID(part.ID),
			Type: KindText,
			X:    x + labelInsetX,
			Y:    y + participantHeight + labelInsetY,
			Text: fmt.Sprintf("%s\n(%s)", part.Name, part.Role),
		},
	})
	return nil
}

// AddStepNode draws one step in its actor's column. Steps are stacked by
// creation order; the row index is the zero-based sequence. An actor that
// does not resolve to a participant puts the step in the leftmost column.
func (p *Projector) AddStepNode(wf *workflow.Workflow, step workflow.Step) error {
	if p.surface == nil {
		return ErrEngineNotReady
	}

	col := wf.ParticipantIndex(step.Actor)
	if col < 0 {
		col = 0
	}
	row := step.Sequence - 1

	kind := KindStep
	height := float64(stepHeight)
	if step.Type == workflow.StepDecision {
		kind = KindDecision
		height = decisionHeight
	}

	p.surface.CreateNodes([]Node{{
		ID:     StepNodeID(step.ID),
		Type:   kind,
		X:      float64(layoutOriginX + col*columnSpacing),
		Y:      float64(stepRowY + row*stepRowSpacing),
		Width:  stepWidth,
		Height: height,
		Text:   step.Action,
	}})
	return nil
}

// AddFlowConnector draws the connector for the index-th flow, from the
// bottom-center of the source step's box to the top-center of the target's.
// A flow whose endpoints have no visual node is skipped with a warning
// rather than drawn dangling.
func (p *Projector) AddFlowConnector(index int, flow workflow.Flow) {
	if p.surface == nil {
		return
	}

	src, srcOK := p.surface.Node(StepNodeID(flow.From))
	dst, dstOK := p.surface.Node(StepNodeID(flow.To))
	if !srcOK || !dstOK {
		slog.Warn("flow endpoints missing from scene, connector skipped",
			"from", flow.From, "to", flow.To)
		return
	}

	start := Point{X: src.X + src.Width/2, Y: src.Y + src.Height}
	end := Point{X: dst.X + dst.Width/2, Y: dst.Y}

	p.surface.CreateConnectors([]Connector{{
		ID:        FlowConnectorID(index),
		Type:      "arrow",
		Start:     start,
		End:       end,
		BindStart: bindTo(src.ID),
		BindEnd:   bindTo(dst.ID),
	}})

	if flow.Condition != "" {
		p.surface.CreateNodes([]Node{{
			ID:   FlowLabelID(index),
			Type: KindText,
			X:    (start.X+end.X)/2 + conditionOffsetX,
			Y:    (start.Y+end.Y)/2 + conditionOffsetY,
			Text: flow.Condition,
		}})
	}
}

// ── Ad hoc architecture ──────────────────────────────────────────────────

// DrawItem places an architecture item of the given kind at (x, y) with the
// kind's default size and returns its visual id.
func (p *Projector) DrawItem(kind Kind, x, y float64) (string, error) {
	if p.surface == nil {
		return "", ErrEngineNotReady
	}

	p.items++
	id := ItemID(kind, p.items)
	w, h := kind.DefaultSize()

	p.surface.CreateNodes([]Node{{
		ID:     id,
		Type:   kind,
		X:      x,
		Y:      y,
		Width:  w,
		Height: h,
		Style:  kind.DefaultColor(),
	}})
	return id, nil
}

// AddText places a free-floating text element at (x, y) and returns its id.
func (p *Projector) AddText(text string, x, y float64) (string, error) {
	if p.surface == nil {
		return "", ErrEngineNotReady
	}

	p.texts++
	id := TextID(p.texts)
	p.surface.CreateNodes([]Node{{ID: id, Type: KindText, X: x, Y: y, Text: text}})
	return id, nil
}

// Connect draws an arrow between two existing visual nodes, terminating on
// each node's boundary via the edge-point geometry for its family. Both
// endpoints must exist; a connect must never leave a dangling connector.
// twoWay additionally draws the reverse arrow.
func (p *Projector) Connect(idA, idB string, twoWay bool) error {
	if p.surface == nil {
		return ErrEngineNotReady
	}

	a, okA := p.surface.Node(idA)
	b, okB := p.surface.Node(idB)
	if !okA {
		return fmt.Errorf("%w: %q", ErrEntityNotFound, idA)
	}
	if !okB {
		return fmt.Errorf("%w: %q", ErrEntityNotFound, idB)
	}

	conns := []Connector{{
		ID:        ConnectionID(idA, idB),
		Type:      "arrow",
		Start:     EdgePoint(a, Center(b)),
		End:       EdgePoint(b, Center(a)),
		BindStart: bindTo(idA),
		BindEnd:   bindTo(idB),
	}}
	if twoWay {
		conns = append(conns, Connector{
			ID:        ConnectionID(idB, idA),
			Type:      "arrow",
			Start:     EdgePoint(b, Center(a)),
			End:       EdgePoint(a, Center(b)),
			BindStart: bindTo(idB),
			BindEnd:   bindTo(idA),
		})
	}
	p.surface.CreateConnectors(conns)
	return nil
}

// Delete removes an ad hoc item or text element from the scene. It is meant
// for ad hoc architecture visuals only: the workflow graph has no
// entity-removal path, and a workflow visual deleted here reappears on the
// next full re-projection.
func (p *Projector) Delete(id string) error {
	if p.surface == nil {
		return ErrEngineNotReady
	}
	if _, ok := p.surface.Node(id); !ok {
		return fmt.Errorf("%w: %q", ErrEntityNotFound, id)
	}
	p.surface.DeleteNodes([]string{id})
	return nil
}
