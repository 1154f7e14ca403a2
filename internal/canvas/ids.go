package canvas

import "strconv"

// Visual identifiers are derived from graph entity identifiers through the
// constructors below, never by inline string concatenation. Deriving them
// from one place keeps graph ids and visual ids from drifting apart and
// makes re-projection of the same graph land on the same visual ids.

// ParticipantNodeID returns the visual id of a participant's shape.
func ParticipantNodeID(participantID string) string {
	return "shape:participant_" + participantID
}

// ParticipantLabelID returns the visual id of a participant's text label.
func ParticipantLabelID(participantID string) string {
	return "shape:label_participant_" + participantID
}

// StepNodeID returns the visual id of a step's shape.
func StepNodeID(stepID string) string {
	return "shape:" + stepID
}

// FlowConnectorID returns the visual id of the connector for the i-th flow
// (0-indexed, in creation order). Flows carry no graph id of their own, so
// the connector id is positional.
func FlowConnectorID(index int) string {
	return "conn:flow_" + strconv.Itoa(index)
}

// FlowLabelID returns the visual id of a flow's condition label.
func FlowLabelID(index int) string {
	return "shape:label_flow_" + strconv.Itoa(index)
}

// ItemID returns the visual id of the n-th ad hoc architecture item.
func ItemID(kind Kind, n int) string {
	return "shape:item_" + string(kind) + "_" + strconv.Itoa(n)
}

// ConnectionID returns the visual id of an ad hoc connector between two
// visual nodes.
func ConnectionID(fromID, toID string) string {
	return "conn:" + fromID + "->" + toID
}

// TextID returns the visual id of the n-th free-floating text element.
func TextID(n int) string {
	return "shape:text_" + strconv.Itoa(n)
}
