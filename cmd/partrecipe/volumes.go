package main

import (
	"fmt"

	"github.com/flaurencin/partrecipe/lvmtool"
	"github.com/flaurencin/partrecipe/raidtool"
	"github.com/flaurencin/partrecipe/volume"
)

// buildRegistry constructs every configured volume in document order and
// registers each into reg; nothing is built here. Construction-time
// validation (§4.E) happens inside the New* constructors. Source volumes are
// looked up only when reg.Build runs: an lvm_vg or lvm_lv listed before its
// source volume fails there with NotBuilt, and one naming an undeclared
// handle fails with HandleNotFound.
func buildRegistry(configs []VolumeConfig, partitions volume.PartitionSource, raidTool *raidtool.Tool, lvmTool *lvmtool.Tool) (*volume.Registry, error) {
	reg := volume.NewRegistry(partitions)

	for _, vc := range configs {
		var v volume.Volume
		var err error

		switch vc.Kind {
		case "raw":
			v, err = volume.NewRaw(vc.Handle, vc.SourcePartition, partitions)
		case "raid":
			v, err = volume.NewRaid(volume.RaidConfig{
				Handle:                vc.Handle,
				MdName:                vc.MdName,
				Level:                 vc.Level,
				DevIndices:            vc.DevIndices,
				SpareIndices:          vc.SpareIndices,
				MetadataVersion:       vc.MetadataVersion,
				SourcePartitionHandle: vc.SourcePartition,
			}, partitions, raidTool)
		case "lvm_vg":
			v, err = volume.NewLvmVg(vc.Handle, vc.SourcePartitions, vc.SourceVolumes, partitions, reg, lvmTool)
		case "lvm_lv":
			v, err = volume.NewLvmLv(vc.Handle, vc.SourceVolume, vc.VgPercent, reg, lvmTool)
		default:
			return nil, fmt.Errorf("volume %s: unknown kind %q", vc.Handle, vc.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("configuring volume %s: %w", vc.Handle, err)
		}
		if err := reg.Add(v); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

// reportHandles returns every volume handle in configuration order, for
// feeding report.Volumes.
func reportHandles(configs []VolumeConfig) []string {
	handles := make([]string, len(configs))
	for i, vc := range configs {
		handles[i] = vc.Handle
	}
	return handles
}
