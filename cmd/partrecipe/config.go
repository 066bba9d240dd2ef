package main

import (
	"fmt"

	"github.com/flaurencin/partrecipe/parttable"
	"github.com/flaurencin/partrecipe/recipe"
	"github.com/flaurencin/partrecipe/sizeparse"
)

// Config is the YAML document a caller hands to this CLI: a recipe plus the
// volumes to compose atop it once partitioning has landed.
type Config struct {
	Devices        []string          `yaml:"devices"`
	KeepPartitions bool              `yaml:"keep_partitions"`
	TableType      string            `yaml:"table_type"`
	Partitions     []PartitionConfig `yaml:"partitions"`
	Volumes        []VolumeConfig    `yaml:"volumes"`
}

// PartitionConfig is one partition request; sizes are size literals parsed
// by sizeparse (§4.A), e.g. "500MB", "2GiB".
type PartitionConfig struct {
	Handle  string   `yaml:"handle"`
	MinSize string   `yaml:"min_size"`
	MaxSize string   `yaml:"max_size"`
	Weight  float64  `yaml:"weight"`
	Type    string   `yaml:"type"`
	Flags   []string `yaml:"flags"`
}

// VolumeConfig is one node of the volume composition DAG. Kind selects
// which fields apply: "raw", "raid", "lvm_vg", "lvm_lv".
type VolumeConfig struct {
	Kind string `yaml:"kind"`
	Handle string `yaml:"handle"`

	// raw
	SourcePartition string `yaml:"source_partition,omitempty"`

	// raid
	MdName          string `yaml:"md_name,omitempty"`
	Level           int    `yaml:"level,omitempty"`
	DevIndices      []int  `yaml:"dev_indices,omitempty"`
	SpareIndices    []int  `yaml:"spare_indices,omitempty"`
	MetadataVersion string `yaml:"metadata_version,omitempty"`

	// lvm_vg
	SourcePartitions []string `yaml:"source_partitions,omitempty"`
	SourceVolumes    []string `yaml:"source_volumes,omitempty"`

	// lvm_lv
	SourceVolume string  `yaml:"source_volume,omitempty"`
	VgPercent    float64 `yaml:"vg_percent,omitempty"`
}

func (c Config) toRecipe() (*recipe.Recipe, error) {
	tableType := parttable.GPT
	switch c.TableType {
	case "", "gpt":
		tableType = parttable.GPT
	case "msdos":
		tableType = parttable.MSDOS
	default:
		return nil, fmt.Errorf("unknown table_type %q", c.TableType)
	}

	requests := make([]recipe.PartitionRequest, 0, len(c.Partitions))
	for _, pc := range c.Partitions {
		minSize, err := sizeparse.ParseSize(pc.MinSize)
		if err != nil {
			return nil, fmt.Errorf("partition %s: %w", pc.Handle, err)
		}
		maxSize, err := sizeparse.ParseSize(pc.MaxSize)
		if err != nil {
			return nil, fmt.Errorf("partition %s: %w", pc.Handle, err)
		}
		flags := make([]recipe.PartitionFlag, len(pc.Flags))
		for i, f := range pc.Flags {
			flags[i] = recipe.PartitionFlag(f)
		}
		requests = append(requests, recipe.PartitionRequest{
			Handle:  pc.Handle,
			MinSize: minSize.Bytes(),
			MaxSize: maxSize.Bytes(),
			Weight:  pc.Weight,
			PType:   recipe.PartitionType(pc.Type),
			Flags:   flags,
		})
	}

	return &recipe.Recipe{
		DevicePaths:    c.Devices,
		Requests:       requests,
		KeepPartitions: c.KeepPartitions,
		TableType:      tableType,
	}, nil
}
