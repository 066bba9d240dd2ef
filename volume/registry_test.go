package volume

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaurencin/partrecipe/recipe"
)

func TestRegistryRejectsDuplicateHandle(t *testing.T) {
	sources := &fakePartitionSource{byHandle: map[string][]recipe.PartitionRecord{
		"boot": oneRecord("boot", "/dev/sda"),
	}}
	raw1, err := NewRaw("shared", "boot", sources)
	require.NoError(t, err)
	raw2, err := NewRaw("shared", "boot", sources)
	require.NoError(t, err)

	reg := NewRegistry(sources)
	require.NoError(t, reg.Add(raw1))

	err = reg.Add(raw2)
	require.Error(t, err)
	var dup *DuplicateHandle
	require.ErrorAs(t, err, &dup)
}

func TestRegistryBuildRunsInInsertionOrderAndResolvesComposition(t *testing.T) {
	partitions := &fakePartitionSource{byHandle: map[string][]recipe.PartitionRecord{
		"raidmember": threeRecords("raidmember"),
	}}
	raidTool := newFakeRaidTool()
	raid, err := NewRaid(baseRaidConfig(), partitions, raidTool)
	require.NoError(t, err)

	reg := NewRegistry(partitions)
	require.NoError(t, reg.Add(raid))

	lvmTool := newFakeLvmTool()
	vg, err := NewLvmVg("vgdata", nil, []string{"data-raid"}, nil, reg, lvmTool)
	require.NoError(t, err)
	require.NoError(t, reg.Add(vg))

	lvmTool.vgReport.FreeExtents, lvmTool.vgReport.TotalExtents = 100, 100
	lv, err := NewLvmLv("lvroot", "vgdata", 100, reg, lvmTool)
	require.NoError(t, err)
	require.NoError(t, reg.Add(lv))

	require.NoError(t, reg.Build(context.Background()))

	assert.True(t, raid.IsBuilt())
	assert.True(t, vg.IsBuilt())
	assert.True(t, lv.IsBuilt())

	got, err := reg.GetByHandle("lvroot")
	require.NoError(t, err)
	assert.Equal(t, lv, got)
}

func TestRegistryGetByHandleMissing(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := reg.GetByHandle("nope")
	require.Error(t, err)
	var notFound *HandleNotFound
	require.ErrorAs(t, err, &notFound)
}
