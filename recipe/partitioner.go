package recipe

import (
	"context"
	"fmt"

	"github.com/flaurencin/partrecipe/blockdev"
	"github.com/flaurencin/partrecipe/chunkalloc"
	"github.com/flaurencin/partrecipe/parttable"
	"github.com/flaurencin/partrecipe/telemetry"
)

// PreconditionNotCommitted is returned when a caller asks for committed
// state before the Partitioner has reached it.
type PreconditionNotCommitted struct{ Step string }

func (e *PreconditionNotCommitted) Error() string {
	return fmt.Sprintf("precondition not met: %s has not happened yet", e.Step)
}

// Partitioner is single-use: it transitions empty -> planned -> saved_to_disk
// -> notified_to_os and never backwards (§8 invariant 5).
type Partitioner struct {
	recipe    *Recipe
	devices   []blockdev.BlockDevice
	adapter   parttable.Adapter
	tableType parttable.TableType

	records  []PartitionRecord
	byHandle map[string][]*PartitionRecord
	byDevice map[string][]*PartitionRecord

	planned      bool
	savedToDisk  bool
	notifiedToOS bool
}

// Devices returns the introspected devices backing this Partitioner.
func (p *Partitioner) Devices() []blockdev.BlockDevice { return p.devices }

// Planned reports whether Plan has run.
func (p *Partitioner) Planned() bool { return p.planned }

// SavedToDisk reports whether CommitToDevices has run.
func (p *Partitioner) SavedToDisk() bool { return p.savedToDisk }

// NotifiedToOS reports whether CommitToOS has run.
func (p *Partitioner) NotifiedToOS() bool { return p.notifiedToOS }

// GetPartitionsByHandle returns every materialised partition sharing a
// handle, across every device.
func (p *Partitioner) GetPartitionsByHandle(h string) []PartitionRecord {
	records := p.byHandle[h]
	out := make([]PartitionRecord, len(records))
	for i, r := range records {
		out[i] = *r
	}
	return out
}

// GetPartitionsByDevice returns the partitions planned on one device path.
func (p *Partitioner) GetPartitionsByDevice(devicePath string) []PartitionRecord {
	records := p.byDevice[devicePath]
	out := make([]PartitionRecord, len(records))
	for i, r := range records {
		out[i] = *r
	}
	return out
}

// Plan runs the weighted chunk allocator once against the recipe's common
// space and replicates the resulting geometry across every device (§4.D
// "Plan").
func (p *Partitioner) Plan(ctx context.Context) error {
	_, span := telemetry.GetTracer().Start(ctx, "plan partitions")
	defer span.End()

	if p.planned {
		return nil
	}

	space := chunkalloc.ChunkableSpace{
		Blocks:    p.recipe.CommonSpaceBytes / p.recipe.CommonBlockSize,
		BlockSize: p.recipe.CommonBlockSize,
	}

	chunks, err := chunkalloc.Qualify(space, requestsToChunks(p.recipe.Requests))
	if err != nil {
		return fmt.Errorf("allocating space: %w", err)
	}

	p.records = make([]PartitionRecord, 0, len(p.devices)*len(chunks))

	for _, dev := range p.devices {
		offset := dev.BaseOffsetBlocks
		number := 1
		for i, chunk := range chunks {
			req := p.recipe.Requests[i]
			lengthBlocks := chunk.FinalSize / p.recipe.CommonBlockSize
			record := &PartitionRecord{
				Handle:     req.Handle,
				DevicePath: dev.Path,
				Number:     number,
				Start:      offset,
				Length:     lengthBlocks,
				Type:       req.PType,
				Flags:      req.Flags,
			}
			p.records = append(p.records, *record)
			stored := &p.records[len(p.records)-1]
			p.byHandle[req.Handle] = append(p.byHandle[req.Handle], stored)
			p.byDevice[dev.Path] = append(p.byDevice[dev.Path], stored)

			offset += lengthBlocks
			number++
		}
	}

	p.planned = true
	return nil
}

// CommitToDevices flushes the in-memory table to every device. Idempotent:
// calling it again after success is a no-op.
func (p *Partitioner) CommitToDevices(ctx context.Context) error {
	ctx, span := telemetry.GetTracer().Start(ctx, "commit partitions to devices")
	defer span.End()

	if !p.planned {
		return &PreconditionNotCommitted{Step: "plan"}
	}
	if p.savedToDisk {
		return nil
	}

	for _, dev := range p.devices {
		if !dev.KeepPartitions {
			if err := p.adapter.BeginTable(ctx, dev.Path, p.tableType); err != nil {
				return fmt.Errorf("beginning table on %s: %w", dev.Path, err)
			}
		}
		for _, record := range p.byDevice[dev.Path] {
			spec := parttable.PartitionSpec{
				Number:     record.Number,
				Start:      record.Start,
				Length:     record.Length,
				SectorSize: p.recipe.CommonBlockSize,
				Type:       string(record.Type),
				Flags:      flagStrings(record.Flags),
			}
			if err := p.adapter.AddPartition(ctx, dev.Path, spec); err != nil {
				return fmt.Errorf("adding partition %s on %s: %w", record.Handle, dev.Path, err)
			}
		}
		if err := p.adapter.CommitToDevice(ctx, dev.Path); err != nil {
			return fmt.Errorf("committing table to %s: %w", dev.Path, err)
		}
	}

	p.savedToDisk = true
	return nil
}

// CommitToOS asks the kernel to rescan every device's partition table.
// Idempotent.
func (p *Partitioner) CommitToOS(ctx context.Context) error {
	ctx, span := telemetry.GetTracer().Start(ctx, "commit partitions to os")
	defer span.End()

	if !p.savedToDisk {
		return &PreconditionNotCommitted{Step: "commit_to_devices"}
	}
	if p.notifiedToOS {
		return nil
	}

	for _, dev := range p.devices {
		if err := p.adapter.CommitToOS(ctx, dev.Path); err != nil {
			return fmt.Errorf("notifying kernel about %s: %w", dev.Path, err)
		}
	}

	p.notifiedToOS = true
	return nil
}

// Commit runs CommitToDevices then CommitToOS.
func (p *Partitioner) Commit(ctx context.Context) error {
	if err := p.CommitToDevices(ctx); err != nil {
		return err
	}
	return p.CommitToOS(ctx)
}

func flagStrings(flags []PartitionFlag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}
