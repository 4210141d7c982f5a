// SPDX-License-Identifier: Apache-2.0

package skill

import (
	"context"
	"fmt"
	"strings"

	"github.com/verdantlabs/verdant/pkg/conversation"
	"github.com/verdantlabs/verdant/pkg/llm"
	"github.com/verdantlabs/verdant/pkg/world"
)

// GardenSkill manages the garden: planting, world queries, the variety
// catalog and grid resizing. It is always available.
type GardenSkill struct {
	snapshots world.SnapshotProvider
	mutator   world.Mutator
}

// NewGardenSkill creates the garden-management skill.
func NewGardenSkill(snapshots world.SnapshotProvider, mutator world.Mutator) *GardenSkill {
	return &GardenSkill{snapshots: snapshots, mutator: mutator}
}

// Name implements Skill.
func (s *GardenSkill) Name() string { return "garden" }

// Available implements Skill.
func (s *GardenSkill) Available(_ *conversation.Context) bool { return true }

type plantArgs struct {
	VarietyKey string `json:"varietyKey" jsonschema:"description=Canonical variety key from the catalog"`
	Count      int    `json:"count,omitempty" jsonschema:"description=Number of flowers to plant; defaults to 1"`
}

type resizeArgs struct {
	Size int `json:"size" jsonschema:"description=New square grid size"`
}

// Tools implements Skill.
func (s *GardenSkill) Tools(_ *conversation.Context) []llm.ToolSpec {
	return []llm.ToolSpec{
		{
			Name:        "plant",
			Description: "Plant one or more flowers of a variety into empty garden cells",
			Parameters:  reflectSchema(&plantArgs{}),
		},
		{
			Name:        "query_garden",
			Description: "Look up the current garden state: grid, planted flowers, gold",
			Parameters:  reflectSchema(&struct{}{}),
		},
		{
			Name:        "list_varieties",
			Description: "List the plantable flower varieties and their traits",
			Parameters:  reflectSchema(&struct{}{}),
		},
		{
			Name:        "resize_garden",
			Description: "Resize the garden grid",
			Parameters:  reflectSchema(&resizeArgs{}),
		},
	}
}

// Execute implements Skill.
func (s *GardenSkill) Execute(_ context.Context, tool string, args map[string]any, _ *conversation.Context) ToolResult {
	switch tool {
	case "plant":
		return s.plant(args)
	case "query_garden":
		return s.queryGarden()
	case "list_varieties":
		return s.listVarieties()
	case "resize_garden":
		return s.resizeGarden(args)
	default:
		return Failure("unknown tool: %s", tool)
	}
}

func (s *GardenSkill) plant(args map[string]any) ToolResult {
	variety := stringArg(args, "varietyKey")
	if variety == "" {
		return Failure("missing varietyKey")
	}
	count := intArg(args, "count", 1)

	planted, err := s.mutator.Plant(variety, count)
	if err != nil {
		return Failure("%s", failureMessage(err))
	}

	ids := make([]string, len(planted))
	for i, item := range planted {
		ids[i] = item.ID
	}
	return Success(
		fmt.Sprintf("planted %d %s", len(planted), planted[0].Name),
		map[string]any{"ids": ids, "varietyKey": variety},
	)
}

func (s *GardenSkill) queryGarden() ToolResult {
	snap := s.snapshots.Snapshot()
	return Success(snap.Summary, map[string]any{
		"counters":   snap.Counters,
		"emptyCells": len(s.mutator.EmptyCells()),
	})
}

func (s *GardenSkill) listVarieties() ToolResult {
	varieties := s.snapshots.AvailableVarieties()
	names := make([]string, len(varieties))
	for i, v := range varieties {
		names[i] = fmt.Sprintf("%s (%s, %s)", v.Key, v.DisplayName, v.Trait)
	}
	return Success(strings.Join(names, "; "), map[string]any{"varieties": varieties})
}

func (s *GardenSkill) resizeGarden(args map[string]any) ToolResult {
	size := intArg(args, "size", 0)
	if err := s.mutator.Resize(size); err != nil {
		return Failure("%s", failureMessage(err))
	}
	return Success(fmt.Sprintf("garden resized to %dx%d", size, size), nil)
}

var _ Skill = (*GardenSkill)(nil)
