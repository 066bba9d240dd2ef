// Package volume implements the volume composition DAG (§4.E): Raw, Raid,
// LvmVg and LvmLv nodes that resolve their inputs by handle against a
// recipe.PartitionGroup and a VolumeRegistry, and drive a staged build atop
// the RAID and LVM tool adapters.
package volume

import (
	"context"
	"fmt"
	"regexp"

	"github.com/flaurencin/partrecipe/handle"
	"github.com/flaurencin/partrecipe/lvmtool"
	"github.com/flaurencin/partrecipe/raidtool"
)

// Volume is the common capability set shared by every variant (§9
// "Polymorphism of Volume"): build(), is_built(), sys_device(), handle().
type Volume interface {
	Handle() string
	Build(ctx context.Context) error
	IsBuilt() bool
	SysDevice() (string, error)
}

// WrongVolumeKind is returned when a source handle resolves to a Volume of
// an unexpected concrete type (e.g. an LvmLv whose source isn't an LvmVg).
type WrongVolumeKind struct {
	Handle   string
	Expected string
	Got      string
}

func (e *WrongVolumeKind) Error() string {
	return fmt.Sprintf("volume %q: expected kind %s, got %s", e.Handle, e.Expected, e.Got)
}

// NotBuilt is returned when SysDevice is queried before Build has run.
type NotBuilt struct{ Handle string }

func (e *NotBuilt) Error() string {
	return fmt.Sprintf("volume %q is not built yet", e.Handle)
}

// PreconditionNotCommitted is returned when Build is called before the
// partitions it depends on have both been saved to disk and notified to the
// kernel (§7: "volumes refuse to build unless both are true").
type PreconditionNotCommitted struct{ Handle string }

func (e *PreconditionNotCommitted) Error() string {
	return fmt.Sprintf("volume %q: partitions not yet saved to disk and notified to the kernel", e.Handle)
}

// RaidConfigInvalid reports a Raid construction-time validation failure
// (§4.E's list of checked constraints).
type RaidConfigInvalid struct{ Reason string }

func (e *RaidConfigInvalid) Error() string { return "invalid raid configuration: " + e.Reason }

// RaidDeviceExists is returned when md_name already names a device node at
// construction time.
type RaidDeviceExists struct{ MdName string }

func (e *RaidDeviceExists) Error() string {
	return fmt.Sprintf("raid device %s already exists", e.MdName)
}

// RaidCommandFailed carries mdadm's captured stderr and exit code.
type RaidCommandFailed struct {
	Stderr   string
	ExitCode int
}

func (e *RaidCommandFailed) Error() string {
	return fmt.Sprintf("mdadm failed (exit %d): %s", e.ExitCode, e.Stderr)
}

// RaidDeviceMissing is returned when mdadm exits 0 but md_name never
// appears.
type RaidDeviceMissing struct{ MdName string }

func (e *RaidDeviceMissing) Error() string {
	return fmt.Sprintf("raid device %s missing after create", e.MdName)
}

// PvAlreadyInVg is returned when a source device is already a member of any
// volume group.
type PvAlreadyInVg struct{ VG string }

func (e *PvAlreadyInVg) Error() string {
	return fmt.Sprintf("physical volume already belongs to volume group %s", e.VG)
}

// VgCreateFailed carries vgcreate's captured stderr.
type VgCreateFailed struct{ Stderr string }

func (e *VgCreateFailed) Error() string { return "vgcreate failed: " + e.Stderr }

// VgInsufficientSpace is returned when a requested LV percentage exceeds the
// VG's currently free extent percentage.
type VgInsufficientSpace struct{ AvailablePercent float64 }

func (e *VgInsufficientSpace) Error() string {
	return fmt.Sprintf("volume group has only %.2f%% free", e.AvailablePercent)
}

// LvCreateFailed carries lvcreate's captured stderr.
type LvCreateFailed struct{ Stderr string }

func (e *LvCreateFailed) Error() string { return "lvcreate failed: " + e.Stderr }

// RaidTool is the subset of raidtool.Tool a Raid volume needs. Declared as
// an interface so tests can substitute a fake instead of shelling out to
// mdadm.
type RaidTool interface {
	Exists(mdName string) bool
	Create(ctx context.Context, req raidtool.CreateRequest) error
}

// LvmTool is the subset of lvmtool.Tool an LvmVg/LvmLv volume needs.
type LvmTool interface {
	PVExists(ctx context.Context, dev string) bool
	PVCreate(ctx context.Context, dev string) error
	PVDisplayVG(ctx context.Context, dev string) (string, error)
	VGCreate(ctx context.Context, name string, devices []string) error
	VGDisplay(ctx context.Context, vgPath string) (lvmtool.VGReport, error)
	LVCreate(ctx context.Context, percent int, name string, vgPath string) error
}

var mdNamePattern = regexp.MustCompile(`^/dev/md\d+$`)

var validMetadataVersions = map[string]bool{
	"0": true, "0.90": true, "1.0": true, "1": true, "1.2": true,
}

var validRaidLevels = map[int]bool{0: true, 1: true, 4: true, 5: true, 6: true, 10: true}

func validateHandle(h string) error {
	return handle.Validate(h)
}
