package canvas

// Family is the boundary curve family of a visual kind. The geometry engine
// dispatches on this closed tag rather than on ad hoc string comparisons.
type Family int

const (
	// FamilyUnknown makes edge-point math fall back to the shape center.
	FamilyUnknown Family = iota
	FamilyRectangular
	FamilyElliptical
)

// Kind is a concrete visual shape kind drawable on the canvas.
type Kind string

const (
	// Ad hoc architecture kinds.
	KindDatabase    Kind = "database"
	KindServer      Kind = "server"
	KindUser        Kind = "user"
	KindLLM         Kind = "llm"
	KindFrontend    Kind = "frontend"
	KindGPTRealtime Kind = "gpt_realtime"

	// Workflow projection kinds.
	KindParticipant Kind = "participant"
	KindStep        Kind = "step"
	KindDecision    Kind = "decision"

	// KindText is a free-floating text element (labels, notes).
	KindText Kind = "text"
)

// shapeSpec carries a kind's boundary family, default size, and fill color.
type shapeSpec struct {
	family        Family
	width, height float64
	color         string
}

var shapeSpecs = map[Kind]shapeSpec{
	KindDatabase:    {FamilyElliptical, 160, 200, "#2f9e44"},
	KindServer:      {FamilyRectangular, 240, 160, "#868e96"},
	KindUser:        {FamilyElliptical, 120, 160, "#1971c2"},
	KindLLM:         {FamilyElliptical, 200, 160, "#9c36b5"},
	KindFrontend:    {FamilyRectangular, 180, 140, "#e03131"},
	KindGPTRealtime: {FamilyRectangular, 220, 120, "#1971c2"},

	KindParticipant: {FamilyRectangular, participantWidth, participantHeight, "#1971c2"},
	KindStep:        {FamilyRectangular, stepWidth, stepHeight, "#f8f9fa"},
	KindDecision:    {FamilyRectangular, stepWidth, decisionHeight, "#fff3bf"},
}

// genericSpec is used for kinds nobody declared; a plain small box.
var genericSpec = shapeSpec{FamilyRectangular, 100, 60, "#adb5bd"}

func specFor(k Kind) shapeSpec {
	if s, ok := shapeSpecs[k]; ok {
		return s
	}
	return genericSpec
}

// Family returns the boundary family of k. Kinds without a declared spec
// (including [KindText]) report [FamilyUnknown].
func (k Kind) Family() Family {
	s, ok := shapeSpecs[k]
	if !ok {
		return FamilyUnknown
	}
	return s.family
}

// DefaultSize returns the default width and height for k.
func (k Kind) DefaultSize() (w, h float64) {
	s := specFor(k)
	return s.width, s.height
}

// DefaultColor returns the default fill color for k.
func (k Kind) DefaultColor() string {
	return specFor(k).color
}
