// Package recipe normalises a multi-device recipe, computes a common space,
// emits partition geometries, and commits them (§4.D).
package recipe

import (
	"fmt"

	"github.com/flaurencin/partrecipe/chunkalloc"
	"github.com/flaurencin/partrecipe/handle"
	"github.com/flaurencin/partrecipe/parttable"
)

// PartitionType is one of the closed enumeration of partition kinds.
type PartitionType string

const (
	TypeNormal    PartitionType = "normal"
	TypeLogical   PartitionType = "logical"
	TypeExtended  PartitionType = "extended"
	TypeFreespace PartitionType = "freespace"
	TypeMetadata  PartitionType = "metadata"
	TypeProtected PartitionType = "protected"
)

var validPartitionTypes = map[PartitionType]bool{
	TypeNormal: true, TypeLogical: true, TypeExtended: true,
	TypeFreespace: true, TypeMetadata: true, TypeProtected: true,
}

// InvalidPartitionType reports a p_type outside the closed enumeration.
type InvalidPartitionType struct{ Value string }

func (e *InvalidPartitionType) Error() string {
	return fmt.Sprintf("invalid partition type %q", e.Value)
}

// PartitionFlag is one of the closed enumeration of settable flags.
type PartitionFlag string

const (
	FlagRaid     PartitionFlag = "raid"
	FlagESP      PartitionFlag = "esp"
	FlagBoot     PartitionFlag = "boot"
	FlagLVM      PartitionFlag = "lvm"
	FlagBiosGrub PartitionFlag = "bios_grub"
)

var validFlags = map[PartitionFlag]bool{
	FlagRaid: true, FlagESP: true, FlagBoot: true, FlagLVM: true, FlagBiosGrub: true,
}

// InvalidPartitionFlag reports a flag outside the closed enumeration.
type InvalidPartitionFlag struct{ Value string }

func (e *InvalidPartitionFlag) Error() string {
	return fmt.Sprintf("invalid partition flag %q", e.Value)
}

// HeterogeneousTables is returned when keep_partitions devices don't all
// carry the same table type.
type HeterogeneousTables struct{ Details string }

func (e *HeterogeneousTables) Error() string {
	return fmt.Sprintf("heterogeneous partition tables across devices: %s", e.Details)
}

// PartitionRequest is one named partition ask; the same handle may appear on
// multiple requests to denote "one partition per device, replicated".
type PartitionRequest struct {
	Handle   string
	MinSize  uint64
	MaxSize  uint64
	Weight   float64
	PType    PartitionType
	Flags    []PartitionFlag
}

// Validate checks the request's handle, type and flags are well-formed.
func (r PartitionRequest) Validate() error {
	if err := handle.Validate(r.Handle); err != nil {
		return err
	}
	if !validPartitionTypes[r.PType] {
		return &InvalidPartitionType{Value: string(r.PType)}
	}
	for _, f := range r.Flags {
		if !validFlags[f] {
			return &InvalidPartitionFlag{Value: string(f)}
		}
	}
	if r.MinSize == 0 || r.MinSize > r.MaxSize {
		return fmt.Errorf("request %s: invalid bounds [%d,%d]", r.Handle, r.MinSize, r.MaxSize)
	}
	if r.Weight < 0 {
		return fmt.Errorf("request %s: negative weight", r.Handle)
	}
	return nil
}

// Recipe is a declarative description of devices plus partition requests.
type Recipe struct {
	DevicePaths    []string
	Requests       []PartitionRequest
	KeepPartitions bool
	// TableType is the partition-table format used when beginning a fresh
	// table (ignored when KeepPartitions is set, since an existing table is
	// opened instead). Defaults to GPT.
	TableType parttable.TableType

	CommonSpaceBytes uint64
	CommonBlockSize  uint64
}

// PartitionRecord is a single materialised partition on a single device.
type PartitionRecord struct {
	Handle     string
	DevicePath string
	Number     int
	Start      uint64 // blocks
	Length     uint64 // blocks
	Type       PartitionType
	Flags      []PartitionFlag
}

func commonSpace(addressableBytes []uint64, blockSize uint64) uint64 {
	min := addressableBytes[0]
	for _, b := range addressableBytes[1:] {
		if b < min {
			min = b
		}
	}
	return chunkalloc.RoundDown(min, blockSize)
}
