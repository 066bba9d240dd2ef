package recipe

import (
	"context"
	"fmt"
)

// DuplicateHandle is returned when a handle that must be unique within a
// scope (a PartitionGroup's handle set, a VolumeRegistry) is inserted
// twice.
type DuplicateHandle struct{ Handle string }

func (e *DuplicateHandle) Error() string { return fmt.Sprintf("duplicate handle %q", e.Handle) }

// HandleNotFound is returned when a lookup by handle fails.
type HandleNotFound struct{ Handle string }

func (e *HandleNotFound) Error() string { return fmt.Sprintf("handle %q not found", e.Handle) }

// PartitionGroup (HandledPartitions) aggregates multiple Partitioners and
// owns the composite status flags consumers (volumes) check before
// building.
type PartitionGroup struct {
	partitioners []*Partitioner
	seenHandles  map[string]bool
}

// NewPartitionGroup builds an empty group.
func NewPartitionGroup() *PartitionGroup {
	return &PartitionGroup{seenHandles: map[string]bool{}}
}

// Add registers a Partitioner into the group. Per-PartitionGroup handle
// uniqueness is enforced across every request handle carried by every
// member Partitioner's recipe — a handle may repeat across requests within
// one recipe (that's "one partition per device, replicated"), but not
// across Partitioners in the same group.
func (g *PartitionGroup) Add(p *Partitioner) error {
	seenInThisRecipe := map[string]bool{}
	for _, req := range p.recipe.Requests {
		seenInThisRecipe[req.Handle] = true
	}
	for h := range seenInThisRecipe {
		if g.seenHandles[h] {
			return &DuplicateHandle{Handle: h}
		}
	}
	for h := range seenInThisRecipe {
		g.seenHandles[h] = true
	}
	g.partitioners = append(g.partitioners, p)
	return nil
}

// GetPartitionsByHandle implements §4.E's PartitionGroup.get_partitions_by_handle.
func (g *PartitionGroup) GetPartitionsByHandle(h string) ([]PartitionRecord, error) {
	for _, p := range g.partitioners {
		if records := p.GetPartitionsByHandle(h); len(records) > 0 {
			return records, nil
		}
	}
	return nil, &HandleNotFound{Handle: h}
}

// Planned reports whether every member Partitioner has planned.
func (g *PartitionGroup) Planned() bool {
	for _, p := range g.partitioners {
		if !p.Planned() {
			return false
		}
	}
	return len(g.partitioners) > 0
}

// SavedToDisk reports whether every member Partitioner has committed to its
// devices.
func (g *PartitionGroup) SavedToDisk() bool {
	for _, p := range g.partitioners {
		if !p.SavedToDisk() {
			return false
		}
	}
	return len(g.partitioners) > 0
}

// NotifiedToOS is the memory barrier between partitioning and volume
// construction (§5): volumes refuse to build unless this is true for every
// Partitioner in the group.
func (g *PartitionGroup) NotifiedToOS() bool {
	for _, p := range g.partitioners {
		if !p.NotifiedToOS() {
			return false
		}
	}
	return len(g.partitioners) > 0
}

// Committed implements volume.PartitionSource's precondition check (§7):
// every Partitioner in the group must be both saved_to_disk and
// notified_to_os before any volume is allowed to build atop it.
func (g *PartitionGroup) Committed() bool {
	return g.SavedToDisk() && g.NotifiedToOS()
}

// Commit runs plan->commit_to_devices->commit_to_os on every member
// Partitioner, in insertion order, without interleaving (§5).
func (g *PartitionGroup) Commit(ctx context.Context) error {
	for _, p := range g.partitioners {
		if err := p.Plan(ctx); err != nil {
			return err
		}
		if err := p.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}
