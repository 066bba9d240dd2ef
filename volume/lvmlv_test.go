package volume

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaurencin/partrecipe/lvmtool"
	"github.com/flaurencin/partrecipe/recipe"
)

func builtVg(t *testing.T) (*LvmVg, *fakeLvmTool) {
	t.Helper()
	partitions := &fakePartitionSource{byHandle: map[string][]recipe.PartitionRecord{
		"p1": oneRecord("p1", "/dev/sda"),
	}}
	tool := newFakeLvmTool()
	vg, err := NewLvmVg("vgdata", []string{"p1"}, nil, partitions, nil, tool)
	require.NoError(t, err)
	require.NoError(t, vg.Build(context.Background()))
	return vg, tool
}

func TestLvmLvBuildCreatesLogicalVolume(t *testing.T) {
	vg, tool := builtVg(t)
	tool.vgReport = lvmtool.VGReport{FreeExtents: 80, TotalExtents: 100}

	volumes := &fakeVolumeSource{byHandle: map[string]Volume{"vgdata": vg}}
	lv, err := NewLvmLv("lvroot", "vgdata", 50, volumes, tool)
	require.NoError(t, err)

	require.NoError(t, lv.Build(context.Background()))
	assert.True(t, lv.IsBuilt())
	assert.Contains(t, tool.lvCreated, "lvroot")

	dev, err := lv.SysDevice()
	require.NoError(t, err)
	assert.Equal(t, "/dev/vgdata/lvroot", dev)
}

func TestLvmLvBuildRefusesBeforePartitionsCommitted(t *testing.T) {
	vg, tool := builtVg(t)
	tool.vgReport = lvmtool.VGReport{FreeExtents: 80, TotalExtents: 100}

	volumes := &fakeVolumeSource{byHandle: map[string]Volume{"vgdata": vg}, uncommitted: true}
	lv, err := NewLvmLv("lvroot", "vgdata", 50, volumes, tool)
	require.NoError(t, err)

	err = lv.Build(context.Background())
	require.Error(t, err)
	var notCommitted *PreconditionNotCommitted
	require.ErrorAs(t, err, &notCommitted)
	assert.False(t, lv.IsBuilt())
}

func TestLvmLvBuildFailsOnInsufficientSpace(t *testing.T) {
	vg, tool := builtVg(t)
	tool.vgReport = lvmtool.VGReport{FreeExtents: 10, TotalExtents: 100}

	volumes := &fakeVolumeSource{byHandle: map[string]Volume{"vgdata": vg}}
	lv, err := NewLvmLv("lvroot", "vgdata", 50, volumes, tool)
	require.NoError(t, err)

	err = lv.Build(context.Background())
	require.Error(t, err)
	var insufficient *VgInsufficientSpace
	require.ErrorAs(t, err, &insufficient)
	assert.InDelta(t, 10.0, insufficient.AvailablePercent, 0.001)
}

func TestLvmLvRejectsNonVgSource(t *testing.T) {
	raidTool := newFakeRaidTool()
	sources := &fakePartitionSource{byHandle: map[string][]recipe.PartitionRecord{"raidmember": threeRecords("raidmember")}}
	raid, err := NewRaid(baseRaidConfig(), sources, raidTool)
	require.NoError(t, err)
	require.NoError(t, raid.Build(context.Background()))

	volumes := &fakeVolumeSource{byHandle: map[string]Volume{"data-raid": raid}}
	lv, err := NewLvmLv("lvroot", "data-raid", 50, volumes, newFakeLvmTool())
	require.NoError(t, err)

	err = lv.Build(context.Background())
	require.Error(t, err)
	var wrongKind *WrongVolumeKind
	require.ErrorAs(t, err, &wrongKind)
}
