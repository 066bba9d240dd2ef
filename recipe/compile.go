package recipe

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/flaurencin/partrecipe/blockdev"
	"github.com/flaurencin/partrecipe/chunkalloc"
	"github.com/flaurencin/partrecipe/parttable"
	"github.com/flaurencin/partrecipe/telemetry"
)

// Compile reduces a heterogeneous set of devices to a common space and
// common block size (§4.D "Compile"). Devices are introspected
// concurrently via errgroup since this phase is read-only and nothing has
// been committed yet — it does not violate §5's single-threaded build
// ordering, which governs commit/build, not discovery.
func Compile(ctx context.Context, fs afero.Fs, adapter parttable.Adapter, r *Recipe) (*Partitioner, error) {
	ctx, span := telemetry.GetTracer().Start(ctx, "compile recipe")
	defer span.End()

	if len(r.DevicePaths) == 0 {
		return nil, fmt.Errorf("recipe has no devices")
	}
	for _, req := range r.Requests {
		if err := req.Validate(); err != nil {
			return nil, err
		}
	}

	devices := make([]blockdev.BlockDevice, len(r.DevicePaths))
	group, gctx := errgroup.WithContext(ctx)
	for i, path := range r.DevicePaths {
		i, path := i, path
		group.Go(func() error {
			dev, err := blockdev.Introspect(gctx, fs, nil, adapter, path, r.KeepPartitions)
			if err != nil {
				return fmt.Errorf("introspecting %s: %w", path, err)
			}
			devices[i] = dev
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if r.KeepPartitions {
		var firstType parttable.TableType
		for i, dev := range devices {
			table, err := adapter.OpenExistingTable(ctx, dev.Path)
			if err != nil {
				return nil, fmt.Errorf("opening existing table on %s: %w", dev.Path, err)
			}
			if i == 0 {
				firstType = table.Type
				continue
			}
			if table.Type != firstType {
				return nil, &HeterogeneousTables{Details: fmt.Sprintf("%s is %s, %s is %s", devices[0].Path, firstType, dev.Path, table.Type)}
			}
		}
	}

	var commonBlockSize uint64
	addressableBytes := make([]uint64, len(devices))
	for i, dev := range devices {
		if dev.Addressable.BlockSize > commonBlockSize {
			commonBlockSize = dev.Addressable.BlockSize
		}
		addressableBytes[i] = dev.Addressable.Bytes()
	}

	r.CommonBlockSize = commonBlockSize
	r.CommonSpaceBytes = commonSpace(addressableBytes, commonBlockSize)

	tableType := r.TableType
	if tableType == "" {
		tableType = parttable.GPT
	}

	return &Partitioner{
		recipe:    r,
		devices:   devices,
		adapter:   adapter,
		tableType: tableType,
		byHandle:  map[string][]*PartitionRecord{},
		byDevice:  map[string][]*PartitionRecord{},
	}, nil
}

// requestsToChunks projects the recipe's requests onto chunkalloc's input
// shape, in request order (order matters: the last chunk absorbs rounding
// residue).
func requestsToChunks(requests []PartitionRequest) []chunkalloc.BlockChunk {
	chunks := make([]chunkalloc.BlockChunk, len(requests))
	for i, req := range requests {
		chunks[i] = chunkalloc.BlockChunk{MinBytes: req.MinSize, MaxBytes: req.MaxSize, Weight: req.Weight}
	}
	return chunks
}
