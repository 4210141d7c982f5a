// Copyright 2026 © The Verdant Authors
// SPDX-License-Identifier: Apache-2.0

// Package world defines the interfaces the orchestration layer consumes
// from the simulated garden, plus the in-memory reference implementation.
package world

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verdantlabs/verdant/pkg/errors"
)

// Variety describes a plantable flower variety.
type Variety struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
	Trait       string `json:"trait"`
}

// Item is a planted world element.
type Item struct {
	ID          string         `json:"id"`
	VarietyKey  string         `json:"varietyKey"`
	Name        string         `json:"name"`
	Cell        int            `json:"cell"`
	PlantedAt   time.Time      `json:"plantedAt"`
	Harvestable bool           `json:"harvestable"`
	CustomData  map[string]any `json:"customData,omitempty"`
}

// Snapshot is a cheap, pre-aggregated view of the world, safe to take every
// turn.
type Snapshot struct {
	Counters    map[string]any `json:"countersByKey"`
	ItemsByCell map[int]Item   `json:"itemsByCell"`
	Summary     string         `json:"summary"`
}

// Entity is the canonical snapshot of a world object resolved from a
// UI-level target reference.
type Entity struct {
	ID          string
	Type        string
	Name        string
	Description string
	State       map[string]any
	CustomData  map[string]any
}

// SnapshotProvider serves read-only world views to the orchestrator.
type SnapshotProvider interface {
	Snapshot() Snapshot
	AvailableVarieties() []Variety
}

// Mutator performs world mutations on behalf of skills. Every method
// returns a typed failure instead of panicking.
type Mutator interface {
	Plant(varietyKey string, count int) ([]Item, error)
	RemoveByID(id string) (Item, error)
	EmptyCells() []int
	Resize(size int) error
}

// EntityResolver maps a UI-level target reference to a canonical entity
// snapshot. A missing match means the event is not routed to the agent.
type EntityResolver interface {
	Resolve(targetID string) (Entity, bool)
}

// Grid size bounds for Resize.
const (
	MinGridSize = 2
	MaxGridSize = 12
)

// defaultCatalog lists the plantable varieties, keyed canonically.
var defaultCatalog = []Variety{
	{Key: "粉花", DisplayName: "Pink Bloom", Trait: "cheerful"},
	{Key: "蓝花", DisplayName: "Blue Bell", Trait: "calm"},
	{Key: "白花", DisplayName: "White Petal", Trait: "gentle"},
	{Key: "黄花", DisplayName: "Golden Bud", Trait: "lively"},
	{Key: "红花", DisplayName: "Red Blossom", Trait: "bold"},
	{Key: "向日葵", DisplayName: "Sunflower", Trait: "sunny"},
}

// Garden is the in-memory reference world: a square grid of cells, planted
// items, and a gold counter. It implements SnapshotProvider, Mutator and
// EntityResolver.
type Garden struct {
	mu      sync.Mutex
	size    int
	items   map[string]*Item
	cells   map[int]string // cell index -> item id
	gold    int
	catalog []Variety
}

// NewGarden creates a size x size garden with the default variety catalog.
func NewGarden(size, gold int) *Garden {
	if size < MinGridSize {
		size = MinGridSize
	}
	if size > MaxGridSize {
		size = MaxGridSize
	}
	return &Garden{
		size:    size,
		items:   make(map[string]*Item),
		cells:   make(map[int]string),
		gold:    gold,
		catalog: defaultCatalog,
	}
}

// Snapshot implements SnapshotProvider.
func (g *Garden) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	byCell := make(map[int]Item, len(g.items))
	harvestable := 0
	for _, item := range g.items {
		byCell[item.Cell] = *item
		if item.Harvestable {
			harvestable++
		}
	}
	return Snapshot{
		Counters: map[string]any{
			"gold":        g.gold,
			"flowers":     len(g.items),
			"harvestable": harvestable,
			"gridSize":    g.size,
		},
		ItemsByCell: byCell,
		Summary: fmt.Sprintf("%dx%d garden, %d flowers planted (%d harvestable), %d gold",
			g.size, g.size, len(g.items), harvestable, g.gold),
	}
}

// AvailableVarieties implements SnapshotProvider.
func (g *Garden) AvailableVarieties() []Variety {
	out := make([]Variety, len(g.catalog))
	copy(out, g.catalog)
	return out
}

// Plant places count items of the given variety into the first empty cells.
func (g *Garden) Plant(varietyKey string, count int) ([]Item, error) {
	if count < 1 {
		count = 1
	}
	variety, ok := g.variety(varietyKey)
	if !ok {
		return nil, errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("unknown variety %q", varietyKey), nil)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	empty := g.emptyCellsLocked()
	if len(empty) < count {
		return nil, errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("the garden is full: %d empty cells, need %d", len(empty), count), nil)
	}

	planted := make([]Item, 0, count)
	for i := 0; i < count; i++ {
		item := &Item{
			ID:         "flower-" + uuid.NewString()[:8],
			VarietyKey: variety.Key,
			Name:       variety.DisplayName,
			Cell:       empty[i],
			PlantedAt:  time.Now().UTC(),
			CustomData: map[string]any{"trait": variety.Trait},
		}
		g.items[item.ID] = item
		g.cells[item.Cell] = item.ID
		planted = append(planted, *item)
	}
	return planted, nil
}

// RemoveByID removes a planted item, returning its final state.
func (g *Garden) RemoveByID(id string) (Item, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	item, ok := g.items[id]
	if !ok {
		return Item{}, errors.New(errors.CodeNotFound,
			fmt.Sprintf("no item with id %q", id), nil)
	}
	delete(g.items, id)
	delete(g.cells, item.Cell)
	return *item, nil
}

// EmptyCells returns the indexes of unplanted cells in ascending order.
func (g *Garden) EmptyCells() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.emptyCellsLocked()
}

func (g *Garden) emptyCellsLocked() []int {
	var empty []int
	for cell := 0; cell < g.size*g.size; cell++ {
		if _, occupied := g.cells[cell]; !occupied {
			empty = append(empty, cell)
		}
	}
	sort.Ints(empty)
	return empty
}

// Resize changes the grid to size x size. Shrinking below any occupied cell
// is rejected.
func (g *Garden) Resize(size int) error {
	if size < MinGridSize || size > MaxGridSize {
		return errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("grid size %d out of range [%d, %d]", size, MinGridSize, MaxGridSize), nil)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for cell := range g.cells {
		if cell >= size*size {
			return errors.New(errors.CodeInvalidInput,
				fmt.Sprintf("cannot shrink to %dx%d: cell %d is occupied", size, size, cell), nil)
		}
	}
	g.size = size
	return nil
}

// MarkHarvestable flips an item's harvestable state.
func (g *Garden) MarkHarvestable(id string, harvestable bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	item, ok := g.items[id]
	if !ok {
		return errors.New(errors.CodeNotFound, fmt.Sprintf("no item with id %q", id), nil)
	}
	item.Harvestable = harvestable
	return nil
}

// AddGold adjusts the gold counter.
func (g *Garden) AddGold(delta int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gold += delta
}

// Resolve implements EntityResolver.
func (g *Garden) Resolve(targetID string) (Entity, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	item, ok := g.items[targetID]
	if !ok {
		return Entity{}, false
	}
	return Entity{
		ID:          item.ID,
		Type:        "flower",
		Name:        item.Name,
		Description: fmt.Sprintf("%s (%s) planted at cell %d", item.Name, item.VarietyKey, item.Cell),
		State: map[string]any{
			"harvestable": item.Harvestable,
			"cell":        item.Cell,
		},
		CustomData: item.CustomData,
	}, true
}

func (g *Garden) variety(key string) (Variety, bool) {
	for _, v := range g.catalog {
		if v.Key == key {
			return v, true
		}
	}
	return Variety{}, false
}

var (
	_ SnapshotProvider = (*Garden)(nil)
	_ Mutator          = (*Garden)(nil)
	_ EntityResolver   = (*Garden)(nil)
)
