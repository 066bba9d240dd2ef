package volume

import (
	"context"
	"fmt"
	"strings"
)

// VolumeSource is the subset of VolumeRegistry a Volume needs to resolve a
// volume handle onto another built Volume.
type VolumeSource interface {
	GetByHandle(h string) (Volume, error)
	// Committed reports whether the partitions backing this registry have
	// both been saved to disk and notified to the kernel.
	Committed() bool
}

// LvmVg composes one or more partitions and/or already-built volumes (most
// commonly Raid arrays) into an LVM volume group (§4.E).
type LvmVg struct {
	handle                 string
	sourcePartitionHandles []string
	sourceVolumeHandles    []string

	partitions PartitionSource
	volumes    VolumeSource
	tool       LvmTool

	sysDevice string
	built     bool
}

// NewLvmVg validates handles and defers source resolution to Build, since
// source volumes (e.g. a Raid) may not be built yet at construction time.
func NewLvmVg(h string, sourcePartitionHandles, sourceVolumeHandles []string, partitions PartitionSource, volumes VolumeSource, tool LvmTool) (*LvmVg, error) {
	if err := validateHandle(h); err != nil {
		return nil, err
	}
	for _, ph := range sourcePartitionHandles {
		if err := validateHandle(ph); err != nil {
			return nil, err
		}
	}
	for _, vh := range sourceVolumeHandles {
		if err := validateHandle(vh); err != nil {
			return nil, err
		}
	}
	if len(sourcePartitionHandles) == 0 && len(sourceVolumeHandles) == 0 {
		return nil, fmt.Errorf("lvm vg %q: no source partitions or volumes configured", h)
	}
	return &LvmVg{
		handle:                 h,
		sourcePartitionHandles: sourcePartitionHandles,
		sourceVolumeHandles:    sourceVolumeHandles,
		partitions:             partitions,
		volumes:                volumes,
		tool:                   tool,
	}, nil
}

func (v *LvmVg) Handle() string { return v.handle }

func (v *LvmVg) IsBuilt() bool { return v.built }

func (v *LvmVg) SysDevice() (string, error) {
	if !v.built {
		return "", &NotBuilt{Handle: v.handle}
	}
	return v.sysDevice, nil
}

// sourceDevicePaths resolves every configured partition and volume handle to
// a concrete device path, failing if any source volume isn't built yet.
func (v *LvmVg) sourceDevicePaths() ([]string, error) {
	var paths []string
	for _, ph := range v.sourcePartitionHandles {
		records, err := v.partitions.GetPartitionsByHandle(ph)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			paths = append(paths, partitionDevicePath(rec))
		}
	}
	for _, vh := range v.sourceVolumeHandles {
		src, err := v.volumes.GetByHandle(vh)
		if err != nil {
			return nil, err
		}
		if !src.IsBuilt() {
			return nil, &NotBuilt{Handle: vh}
		}
		dev, err := src.SysDevice()
		if err != nil {
			return nil, err
		}
		paths = append(paths, dev)
	}
	return paths, nil
}

// committed reports whether every source this volume actually draws from
// (partitions, volumes, or both) has reached saved_to_disk+notified_to_os.
func (v *LvmVg) committed() bool {
	if v.partitions != nil && len(v.sourcePartitionHandles) > 0 && !v.partitions.Committed() {
		return false
	}
	if v.volumes != nil && len(v.sourceVolumeHandles) > 0 && !v.volumes.Committed() {
		return false
	}
	return true
}

// Build ensures every source device is a physical volume not already
// claimed by another VG, then creates the group (§4.E "LvmVg").
func (v *LvmVg) Build(ctx context.Context) error {
	if v.built {
		return nil
	}
	if !v.committed() {
		return &PreconditionNotCommitted{Handle: v.handle}
	}

	devicePaths, err := v.sourceDevicePaths()
	if err != nil {
		return err
	}

	for _, dev := range devicePaths {
		if !v.tool.PVExists(ctx, dev) {
			if err := v.tool.PVCreate(ctx, dev); err != nil {
				return err
			}
		}
		vg, err := v.tool.PVDisplayVG(ctx, dev)
		if err != nil {
			return err
		}
		if strings.TrimSpace(vg) != "" {
			return &PvAlreadyInVg{VG: vg}
		}
	}

	if err := v.tool.VGCreate(ctx, v.handle, devicePaths); err != nil {
		return &VgCreateFailed{Stderr: err.Error()}
	}

	v.sysDevice = "/dev/" + v.handle
	v.built = true
	return nil
}
