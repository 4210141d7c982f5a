package skill

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/verdantlabs/verdant/pkg/conversation"
	"github.com/verdantlabs/verdant/pkg/world"
)

func newTestRegistry(t *testing.T) (*Registry, *world.Garden) {
	t.Helper()
	garden := world.NewGarden(3, 100)
	reg := NewRegistry(
		NewGardenSkill(garden, garden),
		NewHarvestSkill(garden, garden, garden, garden),
	)
	return reg, garden
}

func toolNames(reg *Registry, conv *conversation.Context) []string {
	var names []string
	for _, tool := range reg.AvailableTools(conv) {
		names = append(names, tool.Name)
	}
	return names
}

func TestAvailableToolsDeterministic(t *testing.T) {
	reg, garden := newTestRegistry(t)
	conv := conversation.New()
	planted, _ := garden.Plant("粉花", 1)
	garden.MarkHarvestable(planted[0].ID, true)

	first := toolNames(reg, conv)
	for i := 0; i < 5; i++ {
		if got := toolNames(reg, conv); !reflect.DeepEqual(got, first) {
			t.Fatalf("tool list changed between calls: %v vs %v", got, first)
		}
	}
}

func TestToolNamesUniquePerTurn(t *testing.T) {
	reg, _ := newTestRegistry(t)
	conv := conversation.New()
	seen := map[string]bool{}
	for _, name := range toolNames(reg, conv) {
		if seen[name] {
			t.Fatalf("duplicate tool name %q", name)
		}
		seen[name] = true
	}
}

func TestHarvestToolVisibilityFollowsWorldState(t *testing.T) {
	reg, garden := newTestRegistry(t)
	conv := conversation.New()

	for _, name := range toolNames(reg, conv) {
		if name == "harvest" {
			t.Fatal("harvest listed with nothing harvestable")
		}
	}

	planted, _ := garden.Plant("粉花", 1)
	garden.MarkHarvestable(planted[0].ID, true)

	found := false
	for _, name := range toolNames(reg, conv) {
		if name == "harvest" {
			found = true
		}
	}
	if !found {
		t.Fatal("harvest not listed with a harvestable flower present")
	}
}

func TestHarvestSkillAvailableButNoTools(t *testing.T) {
	garden := world.NewGarden(3, 0)
	s := NewHarvestSkill(garden, garden, garden, garden)
	conv := conversation.New()
	conv.SetFocusedEntity(&conversation.FocusedEntity{
		ID:    "flower-x",
		State: map[string]any{"harvestable": false},
	})

	if !s.Available(conv) {
		t.Fatal("skill should be available while an entity is focused")
	}
	if tools := s.Tools(conv); len(tools) != 0 {
		t.Fatalf("expected zero tools, got %d", len(tools))
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	reg, _ := newTestRegistry(t)
	conv := conversation.New()

	exec := reg.ExecuteTool(context.Background(), "teleport", map[string]any{}, conv)
	if exec.SkillName != "unknown" {
		t.Errorf("skill = %q", exec.SkillName)
	}
	if exec.Result.Success {
		t.Error("unknown tool must fail")
	}
	if !strings.Contains(exec.Result.Message, "tool not found") {
		t.Errorf("message = %q", exec.Result.Message)
	}
}

func TestPlantUnknownVarietyFails(t *testing.T) {
	reg, _ := newTestRegistry(t)
	conv := conversation.New()

	exec := reg.ExecuteTool(context.Background(), "plant",
		map[string]any{"varietyKey": "moonflower", "count": float64(1)}, conv)
	if exec.Result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(exec.Result.Message, "moonflower") {
		t.Errorf("message should identify variety: %q", exec.Result.Message)
	}
}

func TestPlantThenQuerySeesSideEffect(t *testing.T) {
	reg, _ := newTestRegistry(t)
	conv := conversation.New()

	plant := reg.ExecuteTool(context.Background(), "plant",
		map[string]any{"varietyKey": "粉花", "count": float64(2)}, conv)
	if !plant.Result.Success {
		t.Fatalf("plant failed: %s", plant.Result.Message)
	}

	query := reg.ExecuteTool(context.Background(), "query_garden", map[string]any{}, conv)
	if !query.Result.Success {
		t.Fatalf("query failed: %s", query.Result.Message)
	}
	if !strings.Contains(query.Result.Message, "2 flowers") {
		t.Errorf("query should see planted flowers: %q", query.Result.Message)
	}
}

func TestResizeOutOfRange(t *testing.T) {
	reg, _ := newTestRegistry(t)
	conv := conversation.New()

	exec := reg.ExecuteTool(context.Background(), "resize_garden",
		map[string]any{"size": float64(50)}, conv)
	if exec.Result.Success {
		t.Fatal("expected out-of-range failure")
	}
	if !strings.Contains(exec.Result.Message, "out of range") {
		t.Errorf("message = %q", exec.Result.Message)
	}
}

func TestHarvestByFocus(t *testing.T) {
	reg, garden := newTestRegistry(t)
	conv := conversation.New()

	planted, _ := garden.Plant("向日葵", 1)
	garden.MarkHarvestable(planted[0].ID, true)
	entity, _ := garden.Resolve(planted[0].ID)
	conv.SetFocusedEntity(&conversation.FocusedEntity{
		ID: entity.ID, Type: entity.Type, Name: entity.Name,
		Description: entity.Description, State: entity.State, CustomData: entity.CustomData,
	})

	exec := reg.ExecuteTool(context.Background(), "harvest",
		map[string]any{"reason": "it told a joke"}, conv)
	if !exec.Result.Success {
		t.Fatalf("harvest failed: %s", exec.Result.Message)
	}
	if exec.Result.Data["reason"] != "it told a joke" {
		t.Errorf("reason = %v", exec.Result.Data["reason"])
	}
	if conv.FocusedEntity() != nil {
		t.Error("focus should clear after harvesting the focused flower")
	}
	if gold := garden.Snapshot().Counters["gold"]; gold != 100+goldPerHarvest {
		t.Errorf("gold = %v", gold)
	}
}

func TestHarvestNotReady(t *testing.T) {
	reg, garden := newTestRegistry(t)
	conv := conversation.New()

	planted, _ := garden.Plant("粉花", 2)
	garden.MarkHarvestable(planted[0].ID, true) // makes the tool visible

	exec := reg.ExecuteTool(context.Background(), "harvest",
		map[string]any{"id": planted[1].ID}, conv)
	if exec.Result.Success {
		t.Fatal("expected not-ready failure")
	}
	if !strings.Contains(exec.Result.Message, "not ready") {
		t.Errorf("message = %q", exec.Result.Message)
	}
}

func TestUnregister(t *testing.T) {
	reg, _ := newTestRegistry(t)
	conv := conversation.New()
	reg.Unregister("garden")
	for _, name := range toolNames(reg, conv) {
		if name == "plant" {
			t.Fatal("garden tools still listed after unregister")
		}
	}
}
