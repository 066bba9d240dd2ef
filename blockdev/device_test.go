package blockdev

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaurencin/partrecipe/parttable"
)

type fakeAdapter struct {
	sectorSize    uint64
	lengthSectors uint64
	freeRegions   []parttable.FreeRegion
}

func (f *fakeAdapter) ReadGeometry(ctx context.Context, devicePath string) (uint64, uint64, error) {
	return f.sectorSize, f.lengthSectors, nil
}
func (f *fakeAdapter) BeginTable(ctx context.Context, devicePath string, tableType parttable.TableType) error {
	return errors.New("not implemented")
}
func (f *fakeAdapter) OpenExistingTable(ctx context.Context, devicePath string) (parttable.Table, error) {
	return parttable.Table{}, errors.New("not implemented")
}
func (f *fakeAdapter) ListFreeRegions(ctx context.Context, devicePath string) ([]parttable.FreeRegion, error) {
	return f.freeRegions, nil
}
func (f *fakeAdapter) AddPartition(ctx context.Context, devicePath string, spec parttable.PartitionSpec) error {
	return errors.New("not implemented")
}
func (f *fakeAdapter) SetFlag(ctx context.Context, devicePath string, number int, flag string, on bool) error {
	return errors.New("not implemented")
}
func (f *fakeAdapter) CommitToDevice(ctx context.Context, devicePath string) error { return nil }
func (f *fakeAdapter) CommitToOS(ctx context.Context, devicePath string) error     { return nil }

func fakeFS(t *testing.T, devName string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/sys/class/block/"+devName, 0755))
	require.NoError(t, afero.WriteFile(fs, "/dev/"+devName, []byte{}, 0644))
	return fs
}

func TestIntrospectCleanGPTDefaults(t *testing.T) {
	fs := fakeFS(t, "sdz")
	adapter := &fakeAdapter{sectorSize: 512, lengthSectors: 80_000}

	dev, err := Introspect(context.Background(), fs, nil, adapter, "/dev/sdz", false)
	require.NoError(t, err)
	assert.Equal(t, uint64(77_919), dev.Addressable.Blocks)
	assert.Equal(t, DefaultBaseOffsetBlocks, dev.BaseOffsetBlocks)
	assert.Equal(t, DefaultFooterBlocks, dev.FooterBlocks)
}

func TestIntrospectKeepPartitionsPicksLargestFreeRegion(t *testing.T) {
	fs := fakeFS(t, "sdz")
	adapter := &fakeAdapter{
		sectorSize:    512,
		lengthSectors: 80_000,
		freeRegions: []parttable.FreeRegion{
			{Start: 34, Length: 2000},
			{Start: 2056, Length: 77_911},
		},
	}

	dev, err := Introspect(context.Background(), fs, nil, adapter, "/dev/sdz", true)
	require.NoError(t, err)
	assert.Equal(t, uint64(2056), dev.BaseOffsetBlocks)
	assert.Equal(t, uint64(77_911), dev.Addressable.Blocks)
}

func TestIntrospectRejectsNonDevPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Introspect(context.Background(), fs, nil, &fakeAdapter{}, "/mnt/sdz", false)
	require.Error(t, err)
	var badPath *BadDevicePath
	require.ErrorAs(t, err, &badPath)
}

func TestIntrospectRejectsPartitionPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/sys/class/block/sdz1", 0755))
	require.NoError(t, afero.WriteFile(fs, "/dev/sdz1", []byte{}, 0644))
	require.NoError(t, afero.WriteFile(fs, "/sys/class/block/sdz1/partition", []byte("1\n"), 0644))

	_, err := Introspect(context.Background(), fs, nil, &fakeAdapter{}, "/dev/sdz1", false)
	require.Error(t, err)
	var notPartitionable *NotPartitionable
	require.ErrorAs(t, err, &notPartitionable)
}

func TestIntrospectMissingDevice(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Introspect(context.Background(), fs, nil, &fakeAdapter{}, "/dev/nope", false)
	require.Error(t, err)
	var notFound *DeviceNotFound
	require.ErrorAs(t, err, &notFound)
}
