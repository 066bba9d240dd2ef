// Package blockdev validates a device path, computes its addressable
// region, and (optionally) preserves pre-existing partitions by allocating
// inside the largest free region (§4.C).
package blockdev

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/flaurencin/partrecipe/chunkalloc"
	"github.com/flaurencin/partrecipe/parttable"
)

const (
	// DefaultBaseOffsetBlocks leaves room for the protective MBR + GPT
	// header + alignment.
	DefaultBaseOffsetBlocks uint64 = 2048
	// DefaultFooterBlocks is the GPT secondary header + table reservation.
	DefaultFooterBlocks uint64 = 33

	blockClassDir = "/sys/class/block"
)

// BadDevicePath is returned when path doesn't start with /dev/.
type BadDevicePath struct{ Path string }

func (e *BadDevicePath) Error() string { return fmt.Sprintf("bad device path %q: must start with /dev/", e.Path) }

// DeviceNotFound is returned when the target doesn't exist.
type DeviceNotFound struct{ Path string }

func (e *DeviceNotFound) Error() string { return fmt.Sprintf("device not found: %s", e.Path) }

// NotPartitionable is returned when path names a partition rather than a
// whole, partitionable disk.
type NotPartitionable struct{ Path string }

func (e *NotPartitionable) Error() string {
	return fmt.Sprintf("%s is a partition, not a partitionable whole device", e.Path)
}

// BlockDevice is the immutable result of introspecting a device path.
type BlockDevice struct {
	Path             string
	DevName          string
	SysPath          string
	Addressable      chunkalloc.ChunkableSpace
	BaseOffsetBlocks uint64
	FooterBlocks     uint64
	KeepPartitions   bool
}

// Readlinker abstracts os.Readlink so introspection's symlink-following
// step (device path resolution) can be exercised with a fake in tests
// without real device nodes.
type Readlinker func(path string) (string, error)

// Introspect implements §4.C steps 1-7.
func Introspect(ctx context.Context, fs afero.Fs, readlink Readlinker, adapter parttable.Adapter, path string, keepPartitions bool) (BlockDevice, error) {
	if readlink == nil {
		readlink = os.Readlink
	}

	if !strings.HasPrefix(path, "/dev/") {
		return BlockDevice{}, &BadDevicePath{Path: path}
	}

	if _, err := fs.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return BlockDevice{}, &DeviceNotFound{Path: path}
		}
		return BlockDevice{}, fmt.Errorf("stat %s: %w", path, err)
	}

	resolvedPath := path
	if target, err := readlink(path); err == nil && target != "" {
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		resolvedPath = target
	}

	devName := filepath.Base(resolvedPath)
	sysPath := filepath.Join(blockClassDir, devName)

	if _, err := fs.Stat(sysPath); err != nil {
		if os.IsNotExist(err) {
			return BlockDevice{}, &DeviceNotFound{Path: path}
		}
		return BlockDevice{}, fmt.Errorf("stat %s: %w", sysPath, err)
	}

	// Every partition entry in the kernel's block-device registry carries a
	// "partition" attribute file naming its partition number; whole,
	// partitionable disks don't. That's the parent-entry check of step 5:
	// a partition's "parent" (the whole disk) is never the path the caller
	// asked to introspect.
	if _, err := fs.Stat(filepath.Join(sysPath, "partition")); err == nil {
		return BlockDevice{}, &NotPartitionable{Path: path}
	} else if !os.IsNotExist(err) {
		return BlockDevice{}, fmt.Errorf("stat %s: %w", filepath.Join(sysPath, "partition"), err)
	}

	sectorSize, lengthSectors, err := adapter.ReadGeometry(ctx, resolvedPath)
	if err != nil {
		return BlockDevice{}, fmt.Errorf("reading geometry of %s: %w", resolvedPath, err)
	}

	dev := BlockDevice{
		Path:             resolvedPath,
		DevName:          devName,
		SysPath:          sysPath,
		BaseOffsetBlocks: DefaultBaseOffsetBlocks,
		FooterBlocks:     DefaultFooterBlocks,
		KeepPartitions:   keepPartitions,
	}

	if keepPartitions {
		regions, regionErr := adapter.ListFreeRegions(ctx, resolvedPath)
		if regionErr != nil {
			return BlockDevice{}, fmt.Errorf("enumerating free regions on %s: %w", resolvedPath, regionErr)
		}
		largest, ok := largestRegion(regions)
		if !ok {
			return BlockDevice{}, fmt.Errorf("keep-partitions requested on %s but it has no free regions", resolvedPath)
		}
		dev.BaseOffsetBlocks = largest.Start
		dev.Addressable = chunkalloc.ChunkableSpace{Blocks: largest.Length, BlockSize: sectorSize}
		return dev, nil
	}

	usableBlocks := lengthSectors - dev.BaseOffsetBlocks - dev.FooterBlocks
	dev.Addressable = chunkalloc.ChunkableSpace{Blocks: usableBlocks, BlockSize: sectorSize}
	return dev, nil
}

func largestRegion(regions []parttable.FreeRegion) (parttable.FreeRegion, bool) {
	var best parttable.FreeRegion
	found := false
	for _, r := range regions {
		if !found || r.Length > best.Length {
			best = r
			found = true
		}
	}
	return best, found
}
