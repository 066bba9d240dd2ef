package volume

import (
	"context"
	"fmt"
)

// DuplicateHandle is returned when a handle that must be unique within the
// registry is inserted twice.
type DuplicateHandle struct{ Handle string }

func (e *DuplicateHandle) Error() string { return fmt.Sprintf("duplicate handle %q", e.Handle) }

// HandleNotFound is returned when a lookup by handle fails.
type HandleNotFound struct{ Handle string }

func (e *HandleNotFound) Error() string { return fmt.Sprintf("handle %q not found", e.Handle) }

// Registry (HandledVolumes) is an ordered handle -> Volume mapping;
// insertion fails on duplicate handle (§3). It also carries the
// PartitionSource it was built against so it can answer Committed() on
// behalf of any volume that resolves sources through it (a VolumeSource).
type Registry struct {
	order      []string
	byName     map[string]Volume
	partitions PartitionSource
}

// NewRegistry builds an empty VolumeRegistry backed by partitions, which may
// be nil if no registered volume will ever need to consult commit state
// through the registry itself.
func NewRegistry(partitions PartitionSource) *Registry {
	return &Registry{byName: map[string]Volume{}, partitions: partitions}
}

// Committed reports whether the registry's backing partitions have both
// been saved to disk and notified to the kernel. A registry with no
// partitions source attached is always considered committed.
func (r *Registry) Committed() bool {
	if r.partitions == nil {
		return true
	}
	return r.partitions.Committed()
}

// Add registers v under its own handle, failing if that handle is already
// taken.
func (r *Registry) Add(v Volume) error {
	h := v.Handle()
	if _, exists := r.byName[h]; exists {
		return &DuplicateHandle{Handle: h}
	}
	r.byName[h] = v
	r.order = append(r.order, h)
	return nil
}

// GetByHandle implements §4.E's VolumeRegistry.get_by_handle.
func (r *Registry) GetByHandle(h string) (Volume, error) {
	v, ok := r.byName[h]
	if !ok {
		return nil, &HandleNotFound{Handle: h}
	}
	return v, nil
}

// Build iterates every registered volume in insertion order and builds it;
// each volume's prerequisites must already be built by the time its turn
// comes, which insertion order is expected to guarantee (§4.E).
func (r *Registry) Build(ctx context.Context) error {
	for _, h := range r.order {
		v := r.byName[h]
		if v.IsBuilt() {
			continue
		}
		if err := v.Build(ctx); err != nil {
			return fmt.Errorf("building volume %q: %w", h, err)
		}
	}
	return nil
}
