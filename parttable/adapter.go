// Package parttable is the narrow adapter contract (§6) the planner drives
// to read and write partition tables. It deliberately says nothing about
// *how* a table is read or written — PartedAdapter is one real
// implementation, built on the parted(8) CLI the way the teacher's
// partition.GetPartitionTable/partedCommand do.
package parttable

import "context"

// TableType is one of the two table formats the planner supports.
type TableType string

const (
	GPT   TableType = "gpt"
	MSDOS TableType = "msdos"
)

// Table describes the disk-level metadata the planner needs before it can
// plan: label, geometry, and existing contents.
type Table struct {
	Type               TableType
	Model              string
	Path               string
	PhysicalSectorSize uint64
	SectorSize         uint64
	LengthSectors      uint64
	Partitions         []Partition
}

// Partition is one existing entry in a table, as read back from disk.
type Partition struct {
	Number int
	Path   string
	Start  uint64 // sectors
	Length uint64 // sectors
	Flags  []string
	Active bool
}

// FreeRegion is a contiguous unallocated extent inside an existing table.
type FreeRegion struct {
	Start  uint64 // sectors
	Length uint64 // sectors
}

// PartitionSpec is an exact-geometry add-partition request: the planner has
// already decided start/length in blocks, the adapter just executes it.
type PartitionSpec struct {
	Number int
	Start  uint64 // blocks, counted in SectorSize units
	Length uint64 // blocks, counted in SectorSize units
	// SectorSize is the byte size of one Start/Length unit — the recipe's
	// common block size, not necessarily the target device's own native
	// sector size. The adapter must use this to convert to bytes, never a
	// hardcoded 512.
	SectorSize uint64
	Type       string // normal, logical, extended, freespace, metadata, protected
	Flags      []string
}

// Adapter is the full external-interface contract of §6: open a device,
// read geometry, create/open a table, enumerate, write, and notify the
// kernel.
type Adapter interface {
	// ReadGeometry returns sector size (bytes) and device length (sectors).
	ReadGeometry(ctx context.Context, devicePath string) (sectorSize uint64, lengthSectors uint64, err error)

	// BeginTable destroys any existing table and creates a fresh, empty one
	// of the given type.
	BeginTable(ctx context.Context, devicePath string, tableType TableType) error

	// OpenExistingTable reads back the current table, including its
	// partitions.
	OpenExistingTable(ctx context.Context, devicePath string) (Table, error)

	// ListFreeRegions enumerates the unallocated extents of an existing
	// table, used by the "keep existing partitions" introspection path.
	ListFreeRegions(ctx context.Context, devicePath string) ([]FreeRegion, error)

	// AddPartition adds one partition at an exact geometry.
	AddPartition(ctx context.Context, devicePath string, spec PartitionSpec) error

	// SetFlag toggles a named flag (raid, esp, boot, lvm, bios_grub, ...) on
	// an existing partition number.
	SetFlag(ctx context.Context, devicePath string, number int, flag string, on bool) error

	// CommitToDevice flushes the in-memory table to the block device.
	CommitToDevice(ctx context.Context, devicePath string) error

	// CommitToOS asks the kernel to rescan the partition table.
	CommitToOS(ctx context.Context, devicePath string) error
}
