package volume

import (
	"context"
	"fmt"

	"github.com/flaurencin/partrecipe/recipe"
)

// PartitionSource is the subset of recipe.PartitionGroup a Volume needs to
// resolve a partition handle. Declared here so tests can substitute a fake
// without constructing a real Partitioner.
type PartitionSource interface {
	GetPartitionsByHandle(h string) ([]recipe.PartitionRecord, error)
	// Committed reports whether the underlying partitions have both been
	// saved to disk and notified to the kernel.
	Committed() bool
}

// Raw reads through to a single partition's device path. It requires
// exactly one partition under its source handle and is built immediately
// (§4.E: "no-op build").
type Raw struct {
	handle                string
	sourcePartitionHandle string
	partitions            PartitionSource

	sysDevice string
}

// NewRaw validates the handles and resolves the source partition eagerly,
// since Raw has no deferred build step.
func NewRaw(h, sourcePartitionHandle string, partitions PartitionSource) (*Raw, error) {
	if err := validateHandle(h); err != nil {
		return nil, err
	}
	if err := validateHandle(sourcePartitionHandle); err != nil {
		return nil, err
	}
	records, err := partitions.GetPartitionsByHandle(sourcePartitionHandle)
	if err != nil {
		return nil, err
	}
	if len(records) != 1 {
		return nil, fmt.Errorf("raw volume %q: handle %q resolves to %d partitions, want exactly 1", h, sourcePartitionHandle, len(records))
	}
	return &Raw{
		handle:                h,
		sourcePartitionHandle: sourcePartitionHandle,
		partitions:            partitions,
		sysDevice:             partitionDevicePath(records[0]),
	}, nil
}

func (r *Raw) Handle() string { return r.handle }

// Build is a no-op: Raw is built the moment it's constructed.
func (r *Raw) Build(ctx context.Context) error { return nil }

func (r *Raw) IsBuilt() bool { return true }

func (r *Raw) SysDevice() (string, error) { return r.sysDevice, nil }

// partitionDevicePath derives a kernel partition path from its parent device
// path and partition number, e.g. /dev/sda + 1 -> /dev/sda1, /dev/nvme0n1 + 1
// -> /dev/nvme0n1p1.
func partitionDevicePath(rec recipe.PartitionRecord) string {
	dev := rec.DevicePath
	if len(dev) > 0 {
		last := dev[len(dev)-1]
		if last >= '0' && last <= '9' {
			return fmt.Sprintf("%sp%d", dev, rec.Number)
		}
	}
	return fmt.Sprintf("%s%d", dev, rec.Number)
}
