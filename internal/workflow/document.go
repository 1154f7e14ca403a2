package workflow

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// GenerateDocument renders a workflow as human-readable Markdown suitable for
// client handoff. The output is deterministic for a given workflow and uses
// only the Markdown subset understood by [Render]: #/##/### headers, pipe
// tables, "- " lists, a lone "---" rule, and **bold** inline spans.
func GenerateDocument(wf *Workflow) string {
	var lines []string

	// Title + version header.
	lines = append(lines, "# "+wf.Name)
	lines = append(lines, fmt.Sprintf("**Version**: %s | **Last Updated**: %s", wf.Version, formatDate(wf.LastModified)))
	lines = append(lines, "")

	// Participants table.
	if len(wf.Participants) > 0 {
		lines = append(lines, "## Participants", "")
		lines = append(lines, "| Role | Name | Type |")
		lines = append(lines, "|------|------|------|")
		for _, p := range wf.Participants {
			typeLabel := "External"
			if p.Type == ParticipantInternal {
				typeLabel = "Internal"
			}
			lines = append(lines, fmt.Sprintf("| %s | %s | %s |", p.Role, p.Name, typeLabel))
		}
		lines = append(lines, "")
	}

	// Process flow: one section per step in sequence order.
	if len(wf.Steps) > 0 {
		lines = append(lines, "## Process Flow", "")
		for _, step := range wf.Steps {
			lines = append(lines, stepSection(wf, step)...)
			lines = append(lines, "")
		}
	}

	// Session notes.
	if len(wf.Metadata.Notes) > 0 || wf.Metadata.SessionWith != "" {
		lines = append(lines, "## Session Notes")
		if wf.Metadata.SessionWith != "" {
			lines = append(lines, "**Session with**: "+wf.Metadata.SessionWith)
		}
		if wf.Metadata.SessionDate != "" {
			lines = append(lines, "**Date**: "+formatDate(wf.Metadata.SessionDate))
		}
		lines = append(lines, "")
		for _, note := range wf.Metadata.Notes {
			lines = append(lines, "- "+note)
		}
		lines = append(lines, "")
	}

	// Version history.
	if len(wf.VersionHistory) > 0 {
		lines = append(lines, "## Version History", "")
		for _, entry := range wf.VersionHistory {
			lines = append(lines, fmt.Sprintf("- **v%s** (%s): %s", entry.Version, formatDate(entry.Date), entry.Changes))
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

// stepSection renders the per-step narrative block.
func stepSection(wf *Workflow, step Step) []string {
	actorLabel := step.Actor
	if p, ok := wf.Participant(step.Actor); ok {
		actorLabel = p.Name
		if p.Role != "" {
			actorLabel += " (" + p.Role + ")"
		}
	}

	lines := []string{
		fmt.Sprintf("### Step %d: %s", step.Sequence, step.Action),
		"**Who**: " + actorLabel,
	}

	if step.Type == StepDecision {
		lines = append(lines, "**Type**: Decision Point")
	} else {
		lines = append(lines, "**Action**: "+step.Action)
	}

	if len(step.Inputs) > 0 {
		lines = append(lines, "**Input**: "+strings.Join(step.Inputs, ", "))
	}
	if len(step.Outputs) > 0 {
		lines = append(lines, "**Output**: "+strings.Join(step.Outputs, ", "))
	}

	if len(step.Conditions) > 0 {
		lines = append(lines, "**Conditions**:")
		for _, key := range sortedConditionKeys(step.Conditions) {
			icon := "✓"
			lowerKey := strings.ToLower(key)
			if strings.Contains(lowerKey, "reject") || strings.Contains(lowerKey, "fail") {
				icon = "✗"
			}
			lines = append(lines, fmt.Sprintf("- %s %s: %s", icon, capitalize(key), step.Conditions[key]))
		}
	}

	// Outgoing flows, labelled by the target step's action when it resolves.
	var targets []string
	for _, f := range wf.Flows {
		if f.From != step.ID {
			continue
		}
		label := f.To
		if target, ok := wf.Step(f.To); ok {
			label = target.Action
		}
		if f.Condition != "" {
			label += " (" + f.Condition + ")"
		}
		targets = append(targets, label)
	}
	if len(targets) > 0 {
		lines = append(lines, "**Next**: "+strings.Join(targets, " | "))
	}

	return lines
}

// sortedConditionKeys returns condition keys in lexical order so the
// generated document is deterministic for the same workflow.
func sortedConditionKeys(c StepConditions) []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatDate renders a YYYY-MM-DD date as "Jan 2, 2006". Unparseable input
// is passed through unchanged.
func formatDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("Jan 2, 2006")
}

// capitalize upper-cases the first byte of s.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
