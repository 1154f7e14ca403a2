package workflow

import (
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// fuzzySuggestThreshold is the minimum Jaro-Winkler score at which an
// unresolved actor mention is logged as a probable transcription variant of
// an existing participant. Suggestions are log-only: resolution stays
// deterministic.
const fuzzySuggestThreshold = 0.85

// StepID derives a step identifier from its sequence number.
func StepID(sequence int) string {
	return "step_" + strconv.Itoa(sequence)
}

// NormalizeID derives a stable identifier from a free-text name: lowercase,
// runs of non-alphanumeric characters collapsed to a single underscore,
// leading and trailing underscores trimmed.
func NormalizeID(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

// Resolver maps free-text names mentioned by the caller to stable graph
// identifiers with first-writer-wins semantics. It reads the graph through
// the same store it writes to, so within the single serial dispatch path
// there are no lost-update races.
type Resolver struct {
	store *Store
}

// NewResolver returns a Resolver bound to store.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveOrCreateParticipant returns the identifier for the participant
// named name, creating it when no participant with the derived ID or a
// case-insensitively equal name exists. On a duplicate mention the supplied
// type and role are discarded — the first mention wins.
func (r *Resolver) ResolveOrCreateParticipant(name string, ptype ParticipantType, role string) string {
	return r.store.AddParticipant(name, ptype, role)
}

// ResolveActor maps an actor mention (a participant name or identifier) to a
// participant ID. When the mention resolves to nothing, the normalized text
// itself is returned so that a step can reference an actor that has not
// (yet) been introduced as a participant — graceful degradation rather than
// failure.
func (r *Resolver) ResolveActor(nameOrID string) string {
	id := NormalizeID(nameOrID)
	wf := r.store.Workflow()

	for _, p := range wf.Participants {
		if p.ID == id || strings.EqualFold(p.Name, nameOrID) {
			return p.ID
		}
	}

	// Unresolved. Before falling back, check for a close transcription
	// variant ("Sara" vs "Sarah") and surface it for the operator — the
	// outcome is unchanged, per the deterministic resolution contract.
	if best, score := r.closestParticipant(nameOrID); score >= fuzzySuggestThreshold {
		slog.Warn("actor mention did not resolve; close participant exists",
			"mention", nameOrID, "closest", best.Name, "similarity", score)
	}

	return id
}

// closestParticipant returns the participant whose name has the highest
// Jaro-Winkler similarity to mention, case-insensitive.
func (r *Resolver) closestParticipant(mention string) (Participant, float64) {
	var (
		best      Participant
		bestScore float64
	)
	lower := strings.ToLower(mention)
	for _, p := range r.store.Workflow().Participants {
		score := matchr.JaroWinkler(lower, strings.ToLower(p.Name), true)
		if score > bestScore {
			best, bestScore = p, score
		}
	}
	return best, bestScore
}
