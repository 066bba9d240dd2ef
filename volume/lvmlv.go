package volume

import (
	"context"
	"fmt"
	"math"
)

// LvmLv carves a logical volume sized as a percentage of an LvmVg's total
// extents (lvcreate -l N%VG), refusing to build when less than that
// percentage of the group is free (§4.E).
type LvmLv struct {
	handle       string
	sourceHandle string
	vgPercent    float64

	volumes VolumeSource
	tool    LvmTool

	sysDevice string
	built     bool
}

// NewLvmLv validates handles; the source volume's kind is checked lazily in
// Build since the registry may not have resolved it to a concrete *LvmVg
// yet at construction time (handles are looked up, not dereferenced).
func NewLvmLv(h, sourceVgHandle string, vgPercent float64, volumes VolumeSource, tool LvmTool) (*LvmLv, error) {
	if err := validateHandle(h); err != nil {
		return nil, err
	}
	if err := validateHandle(sourceVgHandle); err != nil {
		return nil, err
	}
	if vgPercent <= 0 || vgPercent > 100 {
		return nil, fmt.Errorf("lvm lv %q: vg_percent %.2f out of (0,100]", h, vgPercent)
	}
	return &LvmLv{
		handle:       h,
		sourceHandle: sourceVgHandle,
		vgPercent:    vgPercent,
		volumes:      volumes,
		tool:         tool,
	}, nil
}

func (v *LvmLv) Handle() string { return v.handle }

func (v *LvmLv) IsBuilt() bool { return v.built }

func (v *LvmLv) SysDevice() (string, error) {
	if !v.built {
		return "", &NotBuilt{Handle: v.handle}
	}
	return v.sysDevice, nil
}

// Build requires its source to be a built LvmVg with enough free space
// (§4.E "LvmLv").
func (v *LvmLv) Build(ctx context.Context) error {
	if v.built {
		return nil
	}
	if !v.volumes.Committed() {
		return &PreconditionNotCommitted{Handle: v.handle}
	}

	src, err := v.volumes.GetByHandle(v.sourceHandle)
	if err != nil {
		return err
	}
	vg, ok := src.(*LvmVg)
	if !ok {
		return &WrongVolumeKind{Handle: v.sourceHandle, Expected: "LvmVg", Got: fmt.Sprintf("%T", src)}
	}
	if !vg.IsBuilt() {
		return &NotBuilt{Handle: v.sourceHandle}
	}
	vgDevice, err := vg.SysDevice()
	if err != nil {
		return err
	}

	report, err := v.tool.VGDisplay(ctx, vgDevice)
	if err != nil {
		return err
	}
	available := report.AvailablePercent()
	if available < v.vgPercent {
		return &VgInsufficientSpace{AvailablePercent: available}
	}

	percent := int(math.Round(v.vgPercent))
	if err := v.tool.LVCreate(ctx, percent, v.handle, vgDevice); err != nil {
		return &LvCreateFailed{Stderr: err.Error()}
	}

	v.sysDevice = fmt.Sprintf("%s/%s", vgDevice, v.handle)
	v.built = true
	return nil
}
