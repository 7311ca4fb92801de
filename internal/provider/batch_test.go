package provider

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBatches_RespectsSegmentLimit(t *testing.T) {
	texts := []string{"a", "b", "c", "d", "e"}

	batches := BuildBatches(texts, BatchConfig{MaxSegments: 2})

	require.Len(t, batches, 3)
	assert.Equal(t, []string{"a", "b"}, batches[0].Segments)
	assert.Equal(t, []string{"c", "d"}, batches[1].Segments)
	assert.Equal(t, []string{"e"}, batches[2].Segments)
}

func TestBuildBatches_RespectsCharacterLimit(t *testing.T) {
	texts := []string{"aaaa", "bbbb", "cc"}

	batches := BuildBatches(texts, BatchConfig{MaxCharacters: 8})

	require.Len(t, batches, 2)
	assert.Equal(t, []string{"aaaa", "bbbb"}, batches[0].Segments)
	assert.Equal(t, []string{"cc"}, batches[1].Segments)
}

func TestBuildBatches_RespectsTokenLimit(t *testing.T) {
	// 20 bytes -> 6 estimated tokens each.
	long := strings.Repeat("x", 20)
	texts := []string{long, long, long}

	batches := BuildBatches(texts, BatchConfig{MaxTokens: 12})

	require.Len(t, batches, 2)
	assert.Len(t, batches[0].Segments, 2)
	assert.Len(t, batches[1].Segments, 1)
}

func TestBuildBatches_OversizedSegmentShipsAlone(t *testing.T) {
	texts := []string{"small", strings.Repeat("y", 100), "tiny"}

	batches := BuildBatches(texts, BatchConfig{MaxCharacters: 20})

	require.Len(t, batches, 3)
	assert.Equal(t, []string{"small"}, batches[0].Segments)
	assert.Len(t, batches[1].Segments, 1)
	assert.Equal(t, []string{"tiny"}, batches[2].Segments)
}

func TestBuildBatches_PreservesOrderAndIndexes(t *testing.T) {
	texts := []string{"one", "two", "three", "four"}

	batches := BuildBatches(texts, BatchConfig{MaxSegments: 3})

	require.Len(t, batches, 2)
	assert.Equal(t, 0, batches[0].StartIndex)
	assert.Equal(t, 3, batches[1].StartIndex)

	var flattened []string
	for _, b := range batches {
		flattened = append(flattened, b.Segments...)
	}
	assert.Equal(t, texts, flattened)
}

func TestBuildBatches_EmptyInput(t *testing.T) {
	assert.Nil(t, BuildBatches(nil, BatchConfig{MaxSegments: 5}))
}

func TestBuildBatches_NoLimitsMeansOneBatch(t *testing.T) {
	texts := []string{"a", "b", "c"}

	batches := BuildBatches(texts, BatchConfig{})

	require.Len(t, batches, 1)
	assert.Equal(t, texts, batches[0].Segments)
	assert.Equal(t, 3, batches[0].TotalCharacters)
}

func TestBuildBatches_AccumulatesTotals(t *testing.T) {
	batches := BuildBatches([]string{"abcd", "efgh"}, BatchConfig{MaxSegments: 10})

	require.Len(t, batches, 1)
	assert.Equal(t, 8, batches[0].TotalCharacters)
	assert.Equal(t, 4, batches[0].EstimatedTokens)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, EstimateTokens(""))
	assert.Equal(t, 2, EstimateTokens("abcd"))
	assert.Equal(t, 3, EstimateTokens("abcdefgh"))
}
