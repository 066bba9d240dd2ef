// Package report renders Partitioner and Volume state into the §6 YAML
// report shape, and offers optional archive/upload/notify steps for a CLI
// driving the core library end to end.
package report

import (
	"github.com/c2h5oh/datasize"

	"github.com/flaurencin/partrecipe/recipe"
	"github.com/flaurencin/partrecipe/volume"
)

// PartitionEntry is one materialised partition within a device's report.
// Start/Length are rendered in bytes via datasize.ByteSize rather than the
// raw block count recipe.PartitionRecord carries internally, so the YAML a
// human reads says "512MB" (datasize's String form, binary multiples)
// instead of a block count they'd have to multiply by sector size
// themselves.
type PartitionEntry struct {
	Handle string            `yaml:"handle"`
	Number int               `yaml:"number"`
	Start  datasize.ByteSize `yaml:"start"`
	Length datasize.ByteSize `yaml:"length"`
	Type   string            `yaml:"type"`
	Flags  []string          `yaml:"flags,omitempty"`
}

// Document is one device's report entry, following §6's shape: sector
// geometry plus the partitions planned on it. The spec's "partitions_before"
// is the device's state before this run touched it, which this core never
// reads back after commit; this renders only the set this run produced.
type Document struct {
	Path       string            `yaml:"path"`
	SectorSize datasize.ByteSize `yaml:"sectorSize"`
	Partitions []PartitionEntry  `yaml:"partitions"`
}

// Partitioner renders one Document per device backing p.
func Partitioner(p *recipe.Partitioner) []Document {
	// Record Start/Length count blocks of the recipe's common block size, the
	// largest block size among the devices (as recipe.Compile computes it).
	var commonBlockSize uint64
	for _, dev := range p.Devices() {
		if dev.Addressable.BlockSize > commonBlockSize {
			commonBlockSize = dev.Addressable.BlockSize
		}
	}

	docs := make([]Document, 0, len(p.Devices()))
	for _, dev := range p.Devices() {
		records := p.GetPartitionsByDevice(dev.Path)
		entries := make([]PartitionEntry, 0, len(records))
		for _, rec := range records {
			entries = append(entries, PartitionEntry{
				Handle: rec.Handle,
				Number: rec.Number,
				Start:  datasize.ByteSize(rec.Start * commonBlockSize),
				Length: datasize.ByteSize(rec.Length * commonBlockSize),
				Type:   string(rec.Type),
				Flags:  flagStrings(rec.Flags),
			})
		}
		docs = append(docs, Document{
			Path:       dev.Path,
			SectorSize: datasize.ByteSize(dev.Addressable.BlockSize),
			Partitions: entries,
		})
	}
	return docs
}

func flagStrings(flags []recipe.PartitionFlag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}

// VolumeEntry is one built (or not-yet-built) volume's report line.
type VolumeEntry struct {
	Handle    string `yaml:"handle"`
	Built     bool   `yaml:"built"`
	SysDevice string `yaml:"sysDevice,omitempty"`
}

// Volumes renders one report line per handle in handles, keyed by handle.
// Each line carries the volume's built state and, once built, its sys
// device; the partitions or volumes it was built from are not listed.
func Volumes(handles []string, reg *volume.Registry) (map[string]VolumeEntry, error) {
	out := make(map[string]VolumeEntry, len(handles))
	for _, h := range handles {
		v, err := reg.GetByHandle(h)
		if err != nil {
			return nil, err
		}
		entry := VolumeEntry{Handle: h, Built: v.IsBuilt()}
		if v.IsBuilt() {
			dev, err := v.SysDevice()
			if err != nil {
				return nil, err
			}
			entry.SysDevice = dev
		}
		out[h] = entry
	}
	return out, nil
}

// Full bundles a build's device and volume reports for a single YAML/JSON
// rendering.
type Full struct {
	Devices []Document             `yaml:"devices"`
	Volumes map[string]VolumeEntry `yaml:"volumes,omitempty"`
}
