package chunkalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimalSize(t *testing.T) {
	cases := []struct {
		x, b    uint64
		upward  bool
		want    uint64
	}{
		{2, 10, true, 10},
		{12, 10, true, 20},
		{20, 10, true, 20},
		{2, 10, false, 0},
		{12, 10, false, 10},
	}
	for _, tt := range cases {
		assert.Equal(t, tt.want, OptimalSize(tt.x, tt.b, tt.upward))
	}
}

func TestHasMinimumSpace(t *testing.T) {
	space := ChunkableSpace{Blocks: 200, BlockSize: 10}
	chunks := []BlockChunk{
		{MinBytes: 1000, MaxBytes: 2000, Weight: 20},
		{MinBytes: 1001, MaxBytes: 2000, Weight: 20},
	}
	assert.False(t, HasMinimumSpace(space, chunks))
}

func TestQualifyContested(t *testing.T) {
	space := ChunkableSpace{Blocks: 300, BlockSize: 10}
	chunks := []BlockChunk{
		{MinBytes: 1500, MaxBytes: 2000, Weight: 10},
		{MinBytes: 1000, MaxBytes: 2000, Weight: 20},
	}
	out, err := Qualify(space, chunks)
	require.NoError(t, err)
	assert.Equal(t, uint64(1600), out[0].FinalSize)
	assert.Equal(t, uint64(1400), out[1].FinalSize)
	assertConservation(t, space, out)
}

func TestQualifyUncontested(t *testing.T) {
	space := ChunkableSpace{Blocks: 300, BlockSize: 10}
	chunks := []BlockChunk{
		{MinBytes: 1500, MaxBytes: 1500, Weight: 10},
		{MinBytes: 1000, MaxBytes: 1000, Weight: 20},
	}
	out, err := Qualify(space, chunks)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), out[0].FinalSize)
	assert.Equal(t, uint64(1000), out[1].FinalSize)
}

func TestQualifyLargeContested(t *testing.T) {
	space := ChunkableSpace{Blocks: 300_000, BlockSize: 4096}
	chunks := []BlockChunk{
		{MinBytes: 800_000_000, MaxBytes: 1_000_000_000, Weight: 10},
		{MinBytes: 200_000_000, MaxBytes: 400_000_000, Weight: 20},
	}
	out, err := Qualify(space, chunks)
	require.NoError(t, err)
	assert.Equal(t, uint64(876_265_472), out[0].FinalSize)
	assert.Equal(t, uint64(352_534_528), out[1].FinalSize)
	assertConservation(t, space, out)
}

func TestQualifyInsufficient(t *testing.T) {
	space := ChunkableSpace{Blocks: 200, BlockSize: 10}
	chunks := []BlockChunk{
		{MinBytes: 1000, MaxBytes: 2000, Weight: 20},
		{MinBytes: 1001, MaxBytes: 2000, Weight: 20},
	}
	_, err := Qualify(space, chunks)
	require.Error(t, err)
	var allocErr *AllocError
	require.ErrorAs(t, err, &allocErr)
	assert.Equal(t, Insufficient, allocErr.Kind)
}

func TestQualifySingleChunkTakesAllSpace(t *testing.T) {
	space := ChunkableSpace{Blocks: 100, BlockSize: 10}
	chunks := []BlockChunk{{MinBytes: 10, MaxBytes: 2000, Weight: 1}}
	out, err := Qualify(space, chunks)
	require.NoError(t, err)
	assert.Equal(t, space.Bytes(), out[0].FinalSize)
}

func TestQualifyZeroWeightsFallBackToMinimum(t *testing.T) {
	space := ChunkableSpace{Blocks: 30, BlockSize: 10}
	chunks := []BlockChunk{
		{MinBytes: 100, MaxBytes: 200, Weight: 0},
		{MinBytes: 100, MaxBytes: 200, Weight: 0},
	}
	out, err := Qualify(space, chunks)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), out[0].FinalSize)
	assert.Equal(t, space.Bytes()-out[0].FinalSize, out[1].FinalSize)
}

func TestQualifyBoundsInvariant(t *testing.T) {
	space := ChunkableSpace{Blocks: 300_000, BlockSize: 4096}
	chunks := []BlockChunk{
		{MinBytes: 800_000_000, MaxBytes: 1_000_000_000, Weight: 10},
		{MinBytes: 200_000_000, MaxBytes: 400_000_000, Weight: 20},
	}
	out, err := Qualify(space, chunks)
	require.NoError(t, err)
	for _, c := range out {
		assert.GreaterOrEqual(t, c.FinalSize, c.OptMin)
		assert.LessOrEqual(t, c.FinalSize, c.OptMax)
		assert.Zero(t, c.FinalSize%space.BlockSize)
	}
}

func assertConservation(t *testing.T, space ChunkableSpace, out []BlockChunk) {
	t.Helper()
	var sum uint64
	for _, c := range out {
		sum += c.FinalSize
	}
	assert.Equal(t, space.Bytes(), sum)
}
