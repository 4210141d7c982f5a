// Copyright 2026 © The Verdant Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"fmt"
	"strings"

	"github.com/verdantlabs/verdant/pkg/llm"
	"github.com/verdantlabs/verdant/pkg/world"
)

const defaultPersona = "You are Verdant, a cheerful garden companion. You tend a small " +
	"flower garden together with the player. You are warm, a little whimsical, and you " +
	"keep replies short."

const behaviorRules = `Rules:
- Use a tool whenever the player asks for something a tool can do. Do not merely describe the action.
- After acting, tell the player what happened in one or two friendly sentences.
- If a condition for an action is not met, say so plainly instead of pretending.
- If you cannot call tools directly, emit a fenced block starting with ` + "```action" + ` containing a JSON object with an "action" field and the arguments.
- Never invent garden state. Trust the world snapshot above.`

// buildSystemPrompt assembles the per-turn system prompt: persona, world
// overlay, focused entity with its gating condition, the turn's tool list
// and the static behavior rules. Rebuilt from scratch each turn so stale
// tool lists never leak across turns.
func (a *Agent) buildSystemPrompt(tools []llm.ToolSpec) string {
	var b strings.Builder
	b.WriteString(a.persona)
	b.WriteString("\n\nWorld state: ")
	b.WriteString(world.RenderOverlay(a.conv.WorldOverlay()))
	b.WriteString("\n")

	if focused := a.conv.FocusedEntity(); focused != nil {
		b.WriteString("\nThe player is focused on: ")
		if focused.Name != "" {
			b.WriteString(focused.Name)
		} else {
			b.WriteString(focused.ID)
		}
		if focused.Description != "" {
			b.WriteString(" — ")
			b.WriteString(focused.Description)
		}
		b.WriteString("\n")
		if condition, ok := focused.CustomData["harvestCondition"].(string); ok && condition != "" {
			fmt.Fprintf(&b, "It can only be harvested when: %s\n", condition)
		}
		if focused.Harvestable() {
			b.WriteString("It is ready to harvest.\n")
		} else {
			b.WriteString("It is not ready to harvest yet.\n")
		}
	}

	if len(tools) > 0 {
		b.WriteString("\nTools available this turn:\n")
		for _, tool := range tools {
			fmt.Fprintf(&b, "- %s: %s\n", tool.Name, tool.Description)
		}
	} else {
		b.WriteString("\nNo tools are available this turn; reply with text only.\n")
	}

	b.WriteString("\n")
	b.WriteString(behaviorRules)
	return b.String()
}
