package volume

import (
	"context"
	"errors"
	"fmt"

	"github.com/flaurencin/partrecipe/raidtool"
	"github.com/flaurencin/partrecipe/recipe"
	"github.com/flaurencin/partrecipe/subprocess"
)

// Raid builds a software RAID array atop a set of partitions sharing one
// source handle, selected by index (§4.E).
type Raid struct {
	handle          string
	mdName          string
	level           int
	devIndices      []int
	spareIndices    []int
	metadataVersion string
	sourceHandle    string

	partitions PartitionSource
	tool       RaidTool

	devicePaths  []string
	sparePaths   []string
	built        bool
}

// RaidConfig is the construction-time input for a Raid volume.
type RaidConfig struct {
	Handle          string
	MdName          string
	Level           int
	DevIndices      []int
	SpareIndices    []int
	MetadataVersion string
	SourcePartitionHandle string
}

// NewRaid validates the configuration against every rule in §4.E and
// resolves the source partitions eagerly (deferred only in name: the
// actual mdadm invocation happens in Build).
func NewRaid(cfg RaidConfig, partitions PartitionSource, tool RaidTool) (*Raid, error) {
	if err := validateHandle(cfg.Handle); err != nil {
		return nil, err
	}
	if err := validateHandle(cfg.SourcePartitionHandle); err != nil {
		return nil, err
	}
	if !mdNamePattern.MatchString(cfg.MdName) {
		return nil, &RaidConfigInvalid{Reason: fmt.Sprintf("md_name %q must match ^/dev/md\\d+$", cfg.MdName)}
	}
	if tool.Exists(cfg.MdName) {
		return nil, &RaidDeviceExists{MdName: cfg.MdName}
	}
	if !validRaidLevels[cfg.Level] {
		return nil, &RaidConfigInvalid{Reason: fmt.Sprintf("level %d not in {0,1,4,5,6,10}", cfg.Level)}
	}
	if !validMetadataVersions[cfg.MetadataVersion] {
		return nil, &RaidConfigInvalid{Reason: fmt.Sprintf("metadata_version %q not recognised", cfg.MetadataVersion)}
	}
	if err := checkDisjoint(cfg.DevIndices, cfg.SpareIndices); err != nil {
		return nil, err
	}
	if err := checkLevelDeviceCount(cfg.Level, len(cfg.DevIndices)); err != nil {
		return nil, err
	}

	records, err := partitions.GetPartitionsByHandle(cfg.SourcePartitionHandle)
	if err != nil {
		return nil, err
	}
	if len(cfg.DevIndices)+len(cfg.SpareIndices) != len(records) {
		return nil, &RaidConfigInvalid{Reason: fmt.Sprintf(
			"dev_indices+spare_indices has %d entries but handle %q resolves to %d partitions",
			len(cfg.DevIndices)+len(cfg.SpareIndices), cfg.SourcePartitionHandle, len(records))}
	}

	devicePaths, err := indexPaths(records, cfg.DevIndices)
	if err != nil {
		return nil, err
	}
	sparePaths, err := indexPaths(records, cfg.SpareIndices)
	if err != nil {
		return nil, err
	}

	return &Raid{
		handle:          cfg.Handle,
		mdName:          cfg.MdName,
		level:           cfg.Level,
		devIndices:      cfg.DevIndices,
		spareIndices:    cfg.SpareIndices,
		metadataVersion: cfg.MetadataVersion,
		sourceHandle:    cfg.SourcePartitionHandle,
		partitions:      partitions,
		tool:            tool,
		devicePaths:     devicePaths,
		sparePaths:      sparePaths,
	}, nil
}

// checkLevelDeviceCount implements §9's resolution of the duplicated,
// divergent source module: RAID-1 needs exactly 2, RAID-10 exactly 4,
// RAID-4/5/6 at least 3 (the "|dev_indices| >= 3" reading is authoritative).
func checkLevelDeviceCount(level int, n int) error {
	switch level {
	case 1:
		if n != 2 {
			return &RaidConfigInvalid{Reason: fmt.Sprintf("raid-1 needs exactly 2 data devices, got %d", n)}
		}
	case 10:
		if n != 4 {
			return &RaidConfigInvalid{Reason: fmt.Sprintf("raid-10 needs exactly 4 data devices, got %d", n)}
		}
	case 4, 5, 6:
		if n < 3 {
			return &RaidConfigInvalid{Reason: fmt.Sprintf("raid-%d needs at least 3 data devices, got %d", level, n)}
		}
	}
	return nil
}

func checkDisjoint(a, b []int) error {
	seen := map[int]bool{}
	for _, i := range a {
		seen[i] = true
	}
	for _, i := range b {
		if seen[i] {
			return &RaidConfigInvalid{Reason: fmt.Sprintf("index %d appears in both dev_indices and spare_indices", i)}
		}
	}
	return nil
}

func indexPaths(records []recipe.PartitionRecord, indices []int) ([]string, error) {
	out := make([]string, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(records) {
			return nil, &RaidConfigInvalid{Reason: fmt.Sprintf("index %d out of range for %d partitions", idx, len(records))}
		}
		out[i] = partitionDevicePath(records[idx])
	}
	return out, nil
}

func (r *Raid) Handle() string { return r.handle }

func (r *Raid) IsBuilt() bool { return r.built }

func (r *Raid) SysDevice() (string, error) {
	if !r.built {
		return "", &NotBuilt{Handle: r.handle}
	}
	return r.mdName, nil
}

// Build assembles and executes mdadm --create, then verifies the device
// node appeared (§4.E).
func (r *Raid) Build(ctx context.Context) error {
	if r.built {
		return nil
	}
	if !r.partitions.Committed() {
		return &PreconditionNotCommitted{Handle: r.handle}
	}

	err := r.tool.Create(ctx, raidtool.CreateRequest{
		MdName:          r.mdName,
		Level:           r.level,
		DevicePaths:     r.devicePaths,
		SparePaths:      r.sparePaths,
		MetadataVersion: r.metadataVersion,
	})
	if err != nil {
		var missing *raidtool.DeviceMissingError
		if errors.As(err, &missing) {
			return &RaidDeviceMissing{MdName: r.mdName}
		}
		var cmdErr *subprocess.CommandError
		if errors.As(err, &cmdErr) {
			return &RaidCommandFailed{Stderr: cmdErr.Stderr, ExitCode: cmdErr.ExitCode}
		}
		return err
	}

	r.built = true
	return nil
}
