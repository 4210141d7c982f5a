// SPDX-License-Identifier: Apache-2.0

package skill

import (
	"context"
	"fmt"

	"github.com/verdantlabs/verdant/pkg/conversation"
	"github.com/verdantlabs/verdant/pkg/llm"
	"github.com/verdantlabs/verdant/pkg/world"
)

// goldPerHarvest is the reward credited for each harvested flower.
const goldPerHarvest = 10

// HarvestSkill harvests flowers by explicit id or by current focus. It is
// available while an entity is focused or any world element is
// harvestable; the harvest tool itself is only listed while a harvestable
// target exists.
type HarvestSkill struct {
	snapshots world.SnapshotProvider
	mutator   world.Mutator
	resolver  world.EntityResolver
	garden    *world.Garden
}

// NewHarvestSkill creates the harvesting skill. garden may be nil when the
// gold counter lives elsewhere.
func NewHarvestSkill(snapshots world.SnapshotProvider, mutator world.Mutator, resolver world.EntityResolver, garden *world.Garden) *HarvestSkill {
	return &HarvestSkill{snapshots: snapshots, mutator: mutator, resolver: resolver, garden: garden}
}

// Name implements Skill.
func (s *HarvestSkill) Name() string { return "harvest" }

// Available implements Skill.
func (s *HarvestSkill) Available(conv *conversation.Context) bool {
	if conv.FocusedEntity() != nil {
		return true
	}
	return s.anyHarvestable()
}

type harvestArgs struct {
	ID     string `json:"id,omitempty" jsonschema:"description=Id of the flower to harvest; defaults to the focused flower"`
	Reason string `json:"reason,omitempty" jsonschema:"description=Why the harvest condition is satisfied"`
}

// Tools implements Skill. The list may be empty even when the skill is
// available: the harvest tool only appears while a harvestable target
// exists.
func (s *HarvestSkill) Tools(conv *conversation.Context) []llm.ToolSpec {
	if !conv.FocusedEntity().Harvestable() && !s.anyHarvestable() {
		return nil
	}
	return []llm.ToolSpec{
		{
			Name:        "harvest",
			Description: "Harvest a mature flower, by id or the currently focused one",
			Parameters:  reflectSchema(&harvestArgs{}),
		},
	}
}

// Execute implements Skill.
func (s *HarvestSkill) Execute(_ context.Context, tool string, args map[string]any, conv *conversation.Context) ToolResult {
	if tool != "harvest" {
		return Failure("unknown tool: %s", tool)
	}

	id := stringArg(args, "id")
	if id == "" {
		if focused := conv.FocusedEntity(); focused != nil {
			id = focused.ID
		}
	}
	if id == "" {
		return Failure("no harvest target: provide an id or focus a flower")
	}

	entity, ok := s.resolver.Resolve(id)
	if !ok {
		return Failure("target %s not found", id)
	}
	if harvestable, _ := entity.State["harvestable"].(bool); !harvestable {
		return Failure("%s is not ready to harvest", entity.Name)
	}

	item, err := s.mutator.RemoveByID(id)
	if err != nil {
		return Failure("%s", failureMessage(err))
	}
	if s.garden != nil {
		s.garden.AddGold(goldPerHarvest)
	}

	if focused := conv.FocusedEntity(); focused != nil && focused.ID == id {
		conv.ClearFocusedEntity()
	}

	return Success(
		fmt.Sprintf("harvested %s (+%d gold)", item.Name, goldPerHarvest),
		map[string]any{
			"id":     item.ID,
			"reason": stringArg(args, "reason"),
			"gold":   goldPerHarvest,
		},
	)
}

func (s *HarvestSkill) anyHarvestable() bool {
	snap := s.snapshots.Snapshot()
	for _, item := range snap.ItemsByCell {
		if item.Harvestable {
			return true
		}
	}
	return false
}

var _ Skill = (*HarvestSkill)(nil)
