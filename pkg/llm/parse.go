// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"encoding/json"
	"strings"

	"github.com/verdantlabs/verdant/pkg/actionblock"
)

// ParseRaw turns a raw backend payload into a Reply. It understands four
// shapes: an ordered list of typed items (text fragments and tool
// invocations), a single-field result object, a nested content-list object,
// and a bare string. Anything else degrades to the whole payload as literal
// text with zero tool calls. Parsing never fails.
func ParseRaw(raw json.RawMessage) Reply {
	reply := Reply{Raw: raw}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return reply
	}

	// Shape (a): ordered list of typed items.
	var items []rawItem
	if err := json.Unmarshal(raw, &items); err == nil {
		reply.Text, reply.ToolCalls = collectItems(items)
		return reply
	}

	// Object shapes (b) and (c), plus the bridge wire response.
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		if content, ok := obj["content"]; ok {
			if err := json.Unmarshal(content, &items); err == nil {
				reply.Text, reply.ToolCalls = collectItems(items)
				return reply
			}
		}
		if text, ok := stringValue(obj, "text"); ok {
			reply.Text = text
			calls, ok := obj["tool_calls"]
			if !ok {
				calls, ok = obj["toolCalls"]
			}
			if ok {
				var parsed []ToolCall
				if err := json.Unmarshal(calls, &parsed); err == nil {
					reply.ToolCalls = parsed
				}
			}
			return reply
		}
		if result, ok := stringValue(obj, "result"); ok {
			reply.Text = result
			return reply
		}
		reply.Text = trimmed
		return reply
	}

	// Shape (d): bare string, JSON-encoded or not.
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		reply.Text = text
		return reply
	}
	reply.Text = trimmed
	return reply
}

// Finalize runs action-block recovery over the structurally parsed text and
// merges any recovered calls after the structural ones, in appearance order.
// Every adapter's Parse must route through this.
func Finalize(reply Reply) Reply {
	clean, recovered := actionblock.Extract(reply.Text)
	reply.Text = clean
	for _, rc := range recovered {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			Name:      rc.Name,
			Arguments: rc.Arguments,
		})
	}
	return reply
}

type rawItem struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	Arguments json.RawMessage `json:"arguments"`
}

func collectItems(items []rawItem) (string, []ToolCall) {
	var text strings.Builder
	var calls []ToolCall
	for _, item := range items {
		switch item.Type {
		case "text":
			text.WriteString(item.Text)
		case "tool_use", "tool_call":
			if item.Name == "" {
				continue
			}
			args := item.Input
			if len(args) == 0 {
				args = item.Arguments
			}
			calls = append(calls, ToolCall{
				Name:      item.Name,
				Arguments: decodeArguments(args),
			})
		}
	}
	return text.String(), calls
}

// decodeArguments accepts arguments as a JSON object or a JSON string
// containing an object. Undecodable input yields an empty bag.
func decodeArguments(raw json.RawMessage) map[string]any {
	args := map[string]any{}
	if len(raw) == 0 {
		return args
	}
	if err := json.Unmarshal(raw, &args); err == nil {
		return args
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		if err := json.Unmarshal([]byte(encoded), &args); err == nil {
			return args
		}
	}
	return map[string]any{}
}

func stringValue(obj map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
