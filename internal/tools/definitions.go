package tools

import "github.com/topology-ai/topology/pkg/types"

// Tool names making up the dispatch vocabulary. The same vocabulary is
// registered on the live realtime session, offered to the batch extractor,
// and exposed over MCP.
const (
	NameDrawItem        = "draw_item"
	NameConnect         = "connect"
	NameDeleteItem      = "delete_item"
	NameAddText         = "add_text"
	NameAddParticipant  = "add_participant"
	NameAddStep         = "add_step"
	NameAddFlow         = "add_flow"
	NameSetWorkflowName = "set_workflow_name"
	NameAddSessionNote  = "add_session_note"
)

// Definitions returns the LLM-facing schema for every tool in the
// vocabulary, in a stable order.
func Definitions() []types.ToolDefinition {
	return []types.ToolDefinition{
		{
			Name:        NameDrawItem,
			Description: "Draw an architecture item (database, server, user, llm, frontend, gpt_realtime) on the canvas at the given position.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type": map[string]any{
						"type":        "string",
						"description": "Item kind to draw.",
						"enum":        []string{"database", "server", "user", "llm", "frontend", "gpt_realtime"},
					},
					"x": map[string]any{
						"type":        "number",
						"description": "X position of the item's top-left corner.",
					},
					"y": map[string]any{
						"type":        "number",
						"description": "Y position of the item's top-left corner.",
					},
				},
				"required": []string{"type", "x", "y"},
			},
		},
		{
			Name:        NameConnect,
			Description: "Draw an arrow between two existing canvas items. Both ids must come from earlier draw_item results.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"from": map[string]any{
						"type":        "string",
						"description": "Visual id of the source item.",
					},
					"to": map[string]any{
						"type":        "string",
						"description": "Visual id of the target item.",
					},
					"direction": map[string]any{
						"type":        "string",
						"description": "Arrow direction.",
						"enum":        []string{"one_way", "two_way"},
					},
				},
				"required": []string{"from", "to"},
			},
		},
		{
			Name:        NameDeleteItem,
			Description: "Delete an ad hoc canvas item by its visual id. Workflow shapes cannot be deleted.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "Visual id of the item to delete.",
					},
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        NameAddText,
			Description: "Place a free-floating text element on the canvas.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{
						"type":        "string",
						"description": "Text content.",
					},
					"x": map[string]any{
						"type":        "number",
						"description": "X position.",
					},
					"y": map[string]any{
						"type":        "number",
						"description": "Y position.",
					},
				},
				"required": []string{"text", "x", "y"},
			},
		},
		{
			Name:        NameAddParticipant,
			Description: "Add a person, team, or external party to the workflow. Mentioning an existing participant again returns the existing id instead of creating a duplicate.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{
						"type":        "string",
						"description": "Participant name as mentioned (e.g. 'Sarah', 'Sales Team').",
					},
					"type": map[string]any{
						"type":        "string",
						"description": "Whether the participant belongs to the organisation or is a third party.",
						"enum":        []string{"internal", "external"},
					},
					"role": map[string]any{
						"type":        "string",
						"description": "The participant's role in the process (e.g. 'Account Manager').",
					},
				},
				"required": []string{"name", "type"},
			},
		},
		{
			Name:        NameAddStep,
			Description: "Add a process step performed by a participant. Use type 'decision' with conditions for branch points.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"action": map[string]any{
						"type":        "string",
						"description": "What happens in this step.",
					},
					"actor": map[string]any{
						"type":        "string",
						"description": "Name or id of the participant who performs the step.",
					},
					"type": map[string]any{
						"type":        "string",
						"description": "Step kind.",
						"enum":        []string{"action", "decision"},
					},
					"conditions": map[string]any{
						"type":                 "object",
						"description":          "For decisions: outcome label mapped to its condition text.",
						"additionalProperties": map[string]any{"type": "string"},
					},
					"inputs": map[string]any{
						"type":        "array",
						"description": "Artifacts consumed by the step.",
						"items":       map[string]any{"type": "string"},
					},
					"outputs": map[string]any{
						"type":        "array",
						"description": "Artifacts produced by the step.",
						"items":       map[string]any{"type": "string"},
					},
				},
				"required": []string{"action", "actor"},
			},
		},
		{
			Name:        NameAddFlow,
			Description: "Connect two workflow steps with a directed flow, optionally labelled with the branch condition.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"from": map[string]any{
						"type":        "string",
						"description": "Source step id (e.g. 'step_1').",
					},
					"to": map[string]any{
						"type":        "string",
						"description": "Target step id.",
					},
					"condition": map[string]any{
						"type":        "string",
						"description": "Branch condition label, when the source is a decision.",
					},
				},
				"required": []string{"from", "to"},
			},
		},
		{
			Name:        NameSetWorkflowName,
			Description: "Set the workflow's display name.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{
						"type":        "string",
						"description": "New workflow name.",
					},
				},
				"required": []string{"name"},
			},
		},
		{
			Name:        NameAddSessionNote,
			Description: "Record a free-form note about the current session.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"note": map[string]any{
						"type":        "string",
						"description": "Note text.",
					},
				},
				"required": []string{"note"},
			},
		},
	}
}
