package recipe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaurencin/partrecipe/blockdev"
	"github.com/flaurencin/partrecipe/parttable"
)

type fakeAdapter struct {
	beginCalls  []string
	addCalls    []parttable.PartitionSpec
	committed   map[string]bool
	notified    map[string]bool
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{committed: map[string]bool{}, notified: map[string]bool{}}
}

func (f *fakeAdapter) ReadGeometry(ctx context.Context, devicePath string) (uint64, uint64, error) {
	return 512, 80_000, nil
}
func (f *fakeAdapter) BeginTable(ctx context.Context, devicePath string, tableType parttable.TableType) error {
	f.beginCalls = append(f.beginCalls, devicePath)
	return nil
}
func (f *fakeAdapter) OpenExistingTable(ctx context.Context, devicePath string) (parttable.Table, error) {
	return parttable.Table{Type: parttable.GPT}, nil
}
func (f *fakeAdapter) ListFreeRegions(ctx context.Context, devicePath string) ([]parttable.FreeRegion, error) {
	return nil, nil
}
func (f *fakeAdapter) AddPartition(ctx context.Context, devicePath string, spec parttable.PartitionSpec) error {
	f.addCalls = append(f.addCalls, spec)
	return nil
}
func (f *fakeAdapter) SetFlag(ctx context.Context, devicePath string, number int, flag string, on bool) error {
	return nil
}
func (f *fakeAdapter) CommitToDevice(ctx context.Context, devicePath string) error {
	f.committed[devicePath] = true
	return nil
}
func (f *fakeAdapter) CommitToOS(ctx context.Context, devicePath string) error {
	f.notified[devicePath] = true
	return nil
}

func twoDeviceRecipe() *Recipe {
	return &Recipe{
		DevicePaths: []string{"/dev/sda", "/dev/sdb"},
		Requests: []PartitionRequest{
			{Handle: "boot", MinSize: 1024, MaxSize: 2048, Weight: 10, PType: TypeNormal},
			{Handle: "root", MinSize: 2048, MaxSize: 8192, Weight: 20, PType: TypeNormal, Flags: []PartitionFlag{FlagLVM}},
		},
		CommonBlockSize:  512,
		CommonSpaceBytes: 512 * 77_919,
	}
}

func newTestPartitioner(adapter *fakeAdapter, r *Recipe, devices []blockdev.BlockDevice) *Partitioner {
	return &Partitioner{
		recipe:    r,
		devices:   devices,
		adapter:   adapter,
		tableType: parttable.GPT,
		byHandle:  map[string][]*PartitionRecord{},
		byDevice:  map[string][]*PartitionRecord{},
	}
}

func twoDevices() []blockdev.BlockDevice {
	return []blockdev.BlockDevice{
		{Path: "/dev/sda", BaseOffsetBlocks: 2048, FooterBlocks: 33},
		{Path: "/dev/sdb", BaseOffsetBlocks: 2048, FooterBlocks: 33},
	}
}

func TestPlanReplicatesGeometryAcrossDevices(t *testing.T) {
	r := twoDeviceRecipe()
	adapter := newFakeAdapter()
	p := newTestPartitioner(adapter, r, twoDevices())

	require.NoError(t, p.Plan(context.Background()))

	bootA := p.GetPartitionsByHandle("boot")
	require.Len(t, bootA, 2)
	assert.Equal(t, bootA[0].Start, bootA[1].Start)
	assert.Equal(t, bootA[0].Length, bootA[1].Length)
	assert.Equal(t, bootA[0].Number, bootA[1].Number)

	rootRecords := p.GetPartitionsByHandle("root")
	require.Len(t, rootRecords, 2)
	assert.Contains(t, rootRecords[0].Flags, FlagLVM)
}

func TestCommitMonotonicity(t *testing.T) {
	r := twoDeviceRecipe()
	adapter := newFakeAdapter()
	p := newTestPartitioner(adapter, r, twoDevices())

	ctx := context.Background()
	require.Error(t, p.CommitToDevices(ctx))

	require.NoError(t, p.Plan(ctx))
	require.NoError(t, p.CommitToDevices(ctx))
	assert.True(t, p.SavedToDisk())
	assert.False(t, p.NotifiedToOS())

	// CommitToOS now succeeds since CommitToDevices already ran.
	require.NoError(t, p.CommitToOS(ctx))
	assert.True(t, p.NotifiedToOS())
}

func TestCommitToOSBeforeDevicesFails(t *testing.T) {
	r := twoDeviceRecipe()
	adapter := newFakeAdapter()
	p := newTestPartitioner(adapter, r, twoDevices())
	ctx := context.Background()

	require.NoError(t, p.Plan(ctx))
	err := p.CommitToOS(ctx)
	require.Error(t, err)
	var precondition *PreconditionNotCommitted
	require.ErrorAs(t, err, &precondition)
}

func TestCommitOrder(t *testing.T) {
	r := twoDeviceRecipe()
	adapter := newFakeAdapter()
	p := newTestPartitioner(adapter, r, twoDevices())
	ctx := context.Background()

	require.NoError(t, p.Plan(ctx))
	require.NoError(t, p.Commit(ctx))

	assert.True(t, p.SavedToDisk())
	assert.True(t, p.NotifiedToOS())
	assert.True(t, adapter.committed["/dev/sda"])
	assert.True(t, adapter.notified["/dev/sdb"])

	// idempotent re-commit.
	require.NoError(t, p.Commit(ctx))
}

func TestPartitionGroupDuplicateHandle(t *testing.T) {
	group := NewPartitionGroup()
	r1 := twoDeviceRecipe()
	adapter := newFakeAdapter()
	p1 := newTestPartitioner(adapter, r1, twoDevices())
	require.NoError(t, group.Add(p1))

	r2 := &Recipe{
		DevicePaths: []string{"/dev/sdc"},
		Requests:    []PartitionRequest{{Handle: "boot", MinSize: 1, MaxSize: 2, Weight: 1, PType: TypeNormal}},
	}
	p2 := newTestPartitioner(adapter, r2, []blockdev.BlockDevice{{Path: "/dev/sdc"}})

	err := group.Add(p2)
	require.Error(t, err)
	var dup *DuplicateHandle
	require.ErrorAs(t, err, &dup)
}
