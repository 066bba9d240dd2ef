package volume

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaurencin/partrecipe/recipe"
)

func TestNewRawResolvesPartitionDevicePath(t *testing.T) {
	sources := &fakePartitionSource{byHandle: map[string][]recipe.PartitionRecord{
		"boot": oneRecord("boot", "/dev/sda"),
	}}

	raw, err := NewRaw("bootraw", "boot", sources)
	require.NoError(t, err)
	assert.True(t, raw.IsBuilt())

	dev, err := raw.SysDevice()
	require.NoError(t, err)
	assert.Equal(t, "/dev/sda1", dev)

	require.NoError(t, raw.Build(context.Background()))
}

func TestNewRawRejectsMultiplePartitions(t *testing.T) {
	sources := &fakePartitionSource{byHandle: map[string][]recipe.PartitionRecord{
		"boot": {
			{Handle: "boot", DevicePath: "/dev/sda", Number: 1},
			{Handle: "boot", DevicePath: "/dev/sdb", Number: 1},
		},
	}}

	_, err := NewRaw("bootraw", "boot", sources)
	require.Error(t, err)
}

func TestPartitionDevicePathHandlesNvmeNaming(t *testing.T) {
	rec := recipe.PartitionRecord{DevicePath: "/dev/nvme0n1", Number: 2}
	assert.Equal(t, "/dev/nvme0n1p2", partitionDevicePath(rec))
}
