// Copyright 2026 © The Verdant Authors
// SPDX-License-Identifier: Apache-2.0

// Package actionblock recovers structured tool-call intents from fenced
// blocks embedded in free-form backend text. Backends that cannot emit
// structured tool calls are prompted to write an ```action fence holding a
// JSON object; this package is the single place that absorbs their
// inconsistent vocabulary so every other component can assume canonical
// tool names and argument keys.
package actionblock

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

// ToolCall is a recovered tool-call intent with canonicalized arguments.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

var fencePattern = regexp.MustCompile("(?s)```action\\s*(.*?)```")

// Extract scans text for action fences, parses each block and returns the
// visible text with all fences stripped plus the recovered calls in
// appearance order. Malformed blocks are logged and discarded individually;
// extraction never fails.
func Extract(text string) (string, []ToolCall) {
	matches := fencePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var calls []ToolCall
	var clean strings.Builder
	last := 0
	for _, m := range matches {
		clean.WriteString(text[last:m[0]])
		last = m[1]

		body := strings.TrimSpace(text[m[2]:m[3]])
		call, ok := parseBlock(body)
		if !ok {
			continue
		}
		calls = append(calls, call)
	}
	clean.WriteString(text[last:])

	return strings.TrimSpace(clean.String()), calls
}

func parseBlock(body string) (ToolCall, bool) {
	var args map[string]any
	if err := json.Unmarshal([]byte(body), &args); err != nil {
		slog.Warn("actionblock.parse.discarded", slog.String("error", err.Error()))
		return ToolCall{}, false
	}

	name := stringField(args, "action")
	if name == "" {
		name = stringField(args, "type")
	}
	delete(args, "action")
	delete(args, "type")
	if name == "" {
		slog.Warn("actionblock.parse.discarded", slog.String("error", "missing action/type field"))
		return ToolCall{}, false
	}

	Normalize(name, args)
	return ToolCall{Name: name, Arguments: args}, true
}

// Normalize rewrites an argument bag in place into the canonical shape for
// the named tool. Unknown tools pass through untouched.
func Normalize(tool string, args map[string]any) {
	switch tool {
	case "plant":
		normalizePlant(args)
	case "harvest":
		normalizeHarvest(args)
	}
}

// varietySynonyms maps the model's English or abbreviated flower names to
// canonical catalog keys. Unknown values pass through unchanged so skills
// can report them precisely.
var varietySynonyms = map[string]string{
	"pink":        "粉花",
	"pink flower": "粉花",
	"pink_flower": "粉花",
	"blue":        "蓝花",
	"blue flower": "蓝花",
	"blue_flower": "蓝花",
	"white":        "白花",
	"white flower": "白花",
	"white_flower": "白花",
	"yellow":        "黄花",
	"yellow flower": "黄花",
	"yellow_flower": "黄花",
	"red":        "红花",
	"red flower": "红花",
	"red_flower": "红花",
	"sunflower": "向日葵",
	"sun":       "向日葵",
}

func normalizePlant(args map[string]any) {
	variety := stringField(args, "varietyKey")
	if variety == "" {
		variety = stringField(args, "variety")
	}
	if variety == "" {
		// Compound color/type description, e.g. color:"pink" type was
		// consumed as the block type, so flower/item fields carry it.
		if color := stringField(args, "color"); color != "" {
			variety = color
		}
	}
	if variety == "" {
		variety = stringField(args, "flower")
	}
	if variety == "" {
		variety = stringField(args, "flower_type")
	}
	if variety == "" {
		variety = stringField(args, "flowerType")
	}
	if variety == "" {
		variety = stringField(args, "item")
	}

	if variety != "" {
		args["varietyKey"] = CanonicalVariety(variety)
	}
	delete(args, "variety")
	delete(args, "color")
	delete(args, "flower")
	delete(args, "flower_type")
	delete(args, "flowerType")
	delete(args, "item")

	// Caller-irrelevant free text.
	delete(args, "position")
	delete(args, "notes")

	if _, ok := args["count"]; !ok {
		args["count"] = float64(1)
	}
}

func normalizeHarvest(args map[string]any) {
	if stringField(args, "reason") == "" {
		if msg := stringField(args, "message"); msg != "" {
			args["reason"] = msg
		} else {
			args["reason"] = "the condition has been met"
		}
	}
	delete(args, "message")

	// The caller resolves the concrete target from focus or explicit id.
	delete(args, "target")
}

// CanonicalVariety maps a free-text flower name to its catalog key.
// Unknown names are returned unchanged.
func CanonicalVariety(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := varietySynonyms[key]; ok {
		return canonical
	}
	return name
}

func stringField(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
