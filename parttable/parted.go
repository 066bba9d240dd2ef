package parttable

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/flaurencin/partrecipe/subprocess"
)

// PartedAdapter implements Adapter on top of parted(8) and partprobe(8),
// grounded on partition.GetPartitionTable's "parted -j ... print" JSON
// decoding and media.parsePartedOutput's "parted -s -m ... print" machine
// output.
type PartedAdapter struct {
	Runner *subprocess.Runner
}

func NewPartedAdapter(runner *subprocess.Runner) *PartedAdapter {
	return &PartedAdapter{Runner: runner}
}

type partedJSON struct {
	Disk struct {
		Label              string           `json:"label"`
		Model              string           `json:"model"`
		Path               string           `json:"path"`
		LogicalSectorSize  uint64           `json:"logical-sector-size"`
		PhysicalSectorSize uint64           `json:"physical-sector-size"`
		Size               string           `json:"size"`
		Partitions         []partedPartJSON `json:"partitions"`
	} `json:"disk"`
}

type partedPartJSON struct {
	Number int      `json:"number"`
	Start  string   `json:"start"`
	End    string   `json:"end"`
	Size   string   `json:"size"`
	Flags  []string `json:"flags"`
}

func (a *PartedAdapter) runJSON(ctx context.Context, devicePath string) (partedJSON, error) {
	result, err := a.Runner.Run(ctx, "parted", "-j", devicePath, "unit", "B", "print")
	if err != nil {
		return partedJSON{}, fmt.Errorf("reading partition table of %s: %w", devicePath, err)
	}
	var parsed partedJSON
	if err := json.Unmarshal([]byte(result.Stdout), &parsed); err != nil {
		return partedJSON{}, fmt.Errorf("decoding parted output for %s: %w", devicePath, err)
	}
	return parsed, nil
}

func parseByteCount(s string) (uint64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "B")
	return strconv.ParseUint(s, 10, 64)
}

func (a *PartedAdapter) ReadGeometry(ctx context.Context, devicePath string) (uint64, uint64, error) {
	parsed, err := a.runJSON(ctx, devicePath)
	if err != nil {
		return 0, 0, err
	}
	sectorSize := parsed.Disk.LogicalSectorSize
	if sectorSize == 0 {
		sectorSize = 512
	}
	sizeBytes, err := parseByteCount(parsed.Disk.Size)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing device size for %s: %w", devicePath, err)
	}
	return sectorSize, sizeBytes / sectorSize, nil
}

func (a *PartedAdapter) BeginTable(ctx context.Context, devicePath string, tableType TableType) error {
	_, err := a.Runner.Run(ctx, "parted", "-s", devicePath, "mktable", string(tableType))
	if err != nil {
		return fmt.Errorf("creating %s table on %s: %w", tableType, devicePath, err)
	}
	return nil
}

func (a *PartedAdapter) OpenExistingTable(ctx context.Context, devicePath string) (Table, error) {
	parsed, err := a.runJSON(ctx, devicePath)
	if err != nil {
		return Table{}, err
	}

	sectorSize := parsed.Disk.LogicalSectorSize
	if sectorSize == 0 {
		sectorSize = 512
	}
	sizeBytes, err := parseByteCount(parsed.Disk.Size)
	if err != nil {
		return Table{}, fmt.Errorf("parsing device size for %s: %w", devicePath, err)
	}

	table := Table{
		Type:               TableType(parsed.Disk.Label),
		Model:              parsed.Disk.Model,
		Path:               devicePath,
		PhysicalSectorSize: parsed.Disk.PhysicalSectorSize,
		SectorSize:         sectorSize,
		LengthSectors:      sizeBytes / sectorSize,
	}

	for _, p := range parsed.Disk.Partitions {
		start, startErr := parseByteCount(p.Start)
		end, endErr := parseByteCount(p.End)
		if startErr != nil || endErr != nil {
			return Table{}, fmt.Errorf("parsing partition geometry on %s: start=%v end=%v", devicePath, startErr, endErr)
		}
		table.Partitions = append(table.Partitions, Partition{
			Number: p.Number,
			Path:   fmt.Sprintf("%s%d", devicePath, p.Number),
			Start:  start / sectorSize,
			Length: (end - start + 1) / sectorSize,
			Flags:  p.Flags,
			Active: containsFold(p.Flags, "boot"),
		})
	}

	return table, nil
}

func (a *PartedAdapter) ListFreeRegions(ctx context.Context, devicePath string) ([]FreeRegion, error) {
	result, err := a.Runner.Run(ctx, "parted", "-s", "-m", devicePath, "unit", "B", "print", "free")
	if err != nil {
		return nil, fmt.Errorf("listing free regions on %s: %w", devicePath, err)
	}

	sectorSize, _, err := a.ReadGeometry(ctx, devicePath)
	if err != nil {
		return nil, err
	}

	var regions []FreeRegion
	lines := strings.Split(result.Stdout, "\n")
	for _, line := range lines {
		fields := strings.Split(line, ":")
		if len(fields) < 5 || fields[4] != "free;" {
			continue
		}
		start, startErr := parseByteCount(fields[1])
		end, endErr := parseByteCount(fields[2])
		if startErr != nil || endErr != nil {
			continue
		}
		regions = append(regions, FreeRegion{
			Start:  start / sectorSize,
			Length: (end - start + 1) / sectorSize,
		})
	}
	return regions, nil
}

func (a *PartedAdapter) AddPartition(ctx context.Context, devicePath string, spec PartitionSpec) error {
	sectorSize := spec.SectorSize
	if sectorSize == 0 {
		sectorSize = 512
	}
	startArg := fmt.Sprintf("%dB", spec.Start*sectorSize)
	endArg := fmt.Sprintf("%dB", (spec.Start+spec.Length)*sectorSize-1)

	_, err := a.Runner.Run(ctx, "parted", "-s", devicePath, "unit", "B", "mkpart", spec.Type, startArg, endArg)
	if err != nil {
		return fmt.Errorf("adding partition %d on %s: %w", spec.Number, devicePath, err)
	}
	for _, flag := range spec.Flags {
		if err := a.SetFlag(ctx, devicePath, spec.Number, flag, true); err != nil {
			return err
		}
	}
	return nil
}

func (a *PartedAdapter) SetFlag(ctx context.Context, devicePath string, number int, flag string, on bool) error {
	state := "off"
	if on {
		state = "on"
	}
	_, err := a.Runner.Run(ctx, "parted", "-s", devicePath, "set", strconv.Itoa(number), flag, state)
	if err != nil {
		return fmt.Errorf("setting flag %s on %s partition %d: %w", flag, devicePath, number, err)
	}
	return nil
}

func (a *PartedAdapter) CommitToDevice(ctx context.Context, devicePath string) error {
	// parted commits synchronously with each invocation above; a final
	// print round-trips the table to confirm it is readable back.
	_, err := a.runJSON(ctx, devicePath)
	if err != nil {
		return fmt.Errorf("committing table to device %s: %w", devicePath, err)
	}
	return nil
}

func (a *PartedAdapter) CommitToOS(ctx context.Context, devicePath string) error {
	if _, err := a.Runner.Run(ctx, "partprobe", devicePath); err != nil {
		return fmt.Errorf("notifying kernel of new table on %s: %w", devicePath, err)
	}
	if _, err := a.Runner.Run(ctx, "udevadm", "settle"); err != nil {
		return fmt.Errorf("waiting for udev to settle after %s: %w", devicePath, err)
	}
	return nil
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
