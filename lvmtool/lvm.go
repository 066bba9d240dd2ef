// Package lvmtool adapts the LVM command-line tools (pvs, pvcreate,
// pvdisplay, vgcreate, vgdisplay, lvcreate, vgremove, pvremove, lvremove)
// behind a narrow Go surface, centralising the colon-separated "-c" report
// parsing per §9's recommendation instead of scattering string indexing.
package lvmtool

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/flaurencin/partrecipe/subprocess"
)

// Tool wraps a subprocess.Runner with the LVM argv this module needs.
type Tool struct {
	Runner *subprocess.Runner
}

func NewTool(runner *subprocess.Runner) *Tool {
	return &Tool{Runner: runner}
}

// PVExists reports whether dev is already registered as a physical volume,
// grounded on the pi-image-builder/arbal-embiggen-disk idiom of probing
// with a read command before mutating.
func (t *Tool) PVExists(ctx context.Context, dev string) bool {
	_, err := t.Runner.Run(ctx, "pvs", dev)
	return err == nil
}

// PVCreate runs `pvcreate -f <dev>`.
func (t *Tool) PVCreate(ctx context.Context, dev string) error {
	_, err := t.Runner.Run(ctx, "pvcreate", "-f", dev)
	if err != nil {
		return fmt.Errorf("pvcreate %s: %w", dev, err)
	}
	return nil
}

// PVDisplayVG parses `pvdisplay -c <dev>` and returns the VG field (the
// colon-separated report's position 2, 1-indexed), empty if the PV isn't in
// a VG yet.
func (t *Tool) PVDisplayVG(ctx context.Context, dev string) (string, error) {
	result, err := t.Runner.Run(ctx, "pvdisplay", "-c", dev)
	if err != nil {
		return "", fmt.Errorf("pvdisplay -c %s: %w", dev, err)
	}
	return ParsePVDisplay(result.Stdout, dev)
}

// ParsePVDisplay extracts the VG field of the first line whose PV path
// matches dev, from `pvdisplay -c` output.
func ParsePVDisplay(output string, dev string) (string, error) {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Split(strings.TrimSpace(line), ":")
		if len(fields) < 2 {
			continue
		}
		if fields[0] != dev {
			continue
		}
		return fields[1], nil
	}
	return "", fmt.Errorf("pvdisplay -c: no report line for %s", dev)
}

// VGCreate runs `vgcreate <name> <dev1> <dev2> ...`.
func (t *Tool) VGCreate(ctx context.Context, name string, devices []string) error {
	args := append([]string{name}, devices...)
	result, err := t.Runner.Run(ctx, "vgcreate", args...)
	if err != nil {
		if cmdErr, ok := err.(*subprocess.CommandError); ok {
			return fmt.Errorf("vgcreate %s: %s", name, strings.TrimSpace(cmdErr.Stderr))
		}
		return fmt.Errorf("vgcreate %s: %w", name, err)
	}
	_ = result
	return nil
}

// VGReport is the free/total extent count parsed out of `vgdisplay -c`.
type VGReport struct {
	FreeExtents  uint64
	TotalExtents uint64
}

// AvailablePercent is the percentage of the VG's total extents that are
// still free.
func (r VGReport) AvailablePercent() float64 {
	if r.TotalExtents == 0 {
		return 0
	}
	return float64(r.FreeExtents) / float64(r.TotalExtents) * 100
}

// VGDisplay parses `vgdisplay -c <vgPath>`: colon-separated, free extent
// count is field -2 (second from the end), total extent count is field -4.
func (t *Tool) VGDisplay(ctx context.Context, vgPath string) (VGReport, error) {
	result, err := t.Runner.Run(ctx, "vgdisplay", "-c", vgPath)
	if err != nil {
		return VGReport{}, fmt.Errorf("vgdisplay -c %s: %w", vgPath, err)
	}
	return ParseVGDisplay(result.Stdout)
}

// ParseVGDisplay implements the exact field-position parsing named in §4.E.
func ParseVGDisplay(output string) (VGReport, error) {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(output), "\n", 2)[0])
	fields := strings.Split(line, ":")
	if len(fields) < 4 {
		return VGReport{}, fmt.Errorf("vgdisplay -c: unexpected report shape: %q", line)
	}
	total, totalErr := strconv.ParseUint(fields[len(fields)-4], 10, 64)
	free, freeErr := strconv.ParseUint(fields[len(fields)-2], 10, 64)
	if totalErr != nil || freeErr != nil {
		return VGReport{}, fmt.Errorf("vgdisplay -c: non-numeric extent counts in %q", line)
	}
	return VGReport{FreeExtents: free, TotalExtents: total}, nil
}

// LVCreate runs `lvcreate -l <percent>%VG -n <name> <vgPath>`.
func (t *Tool) LVCreate(ctx context.Context, percent int, name string, vgPath string) error {
	arg := fmt.Sprintf("%d%%VG", percent)
	result, err := t.Runner.Run(ctx, "lvcreate", "-l", arg, "-n", name, vgPath)
	if err != nil {
		if cmdErr, ok := err.(*subprocess.CommandError); ok {
			return fmt.Errorf("lvcreate -n %s: %s", name, strings.TrimSpace(cmdErr.Stderr))
		}
		return fmt.Errorf("lvcreate -n %s: %w", name, err)
	}
	_ = result
	return nil
}

// VGRemove, PVRemove, LVRemove round out the adapter surface named in §6;
// the planner never calls them itself (no teardown operation is specified)
// but callers composing on top of this module can.
func (t *Tool) VGRemove(ctx context.Context, name string) error {
	_, err := t.Runner.Run(ctx, "vgremove", "-f", name)
	return err
}

func (t *Tool) PVRemove(ctx context.Context, dev string) error {
	_, err := t.Runner.Run(ctx, "pvremove", "-f", dev)
	return err
}

func (t *Tool) LVRemove(ctx context.Context, lvPath string) error {
	_, err := t.Runner.Run(ctx, "lvremove", "-f", lvPath)
	return err
}
