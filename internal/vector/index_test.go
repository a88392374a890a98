package vector

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T, dim int) map[string]AnnIndex {
	t.Helper()
	return map[string]AnnIndex{
		"flat": NewFlatIndex(dim),
		"hnsw": NewHNSWIndex(dim),
	}
}

func TestAnnIndex_AddAndSearch(t *testing.T) {
	for name, ix := range backends(t, 3) {
		t.Run(name, func(t *testing.T) {
			_, err := ix.Add([]float32{1, 0, 0}, 0)
			require.NoError(t, err)
			_, err = ix.Add([]float32{0, 1, 0}, 1)
			require.NoError(t, err)
			_, err = ix.Add([]float32{0.9, 0.1, 0}, 2)
			require.NoError(t, err)

			results, err := ix.Search([]float32{1, 0, 0}, 2)
			require.NoError(t, err)
			require.Len(t, results, 2)

			// Nearest first, ascending distance.
			assert.EqualValues(t, 0, results[0].ID)
			assert.EqualValues(t, 2, results[1].ID)
			assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
		})
	}
}

func TestAnnIndex_EmptySearchIsEmptyNotError(t *testing.T) {
	for name, ix := range backends(t, 4) {
		t.Run(name, func(t *testing.T) {
			results, err := ix.Search([]float32{1, 0, 0, 0}, 5)
			require.NoError(t, err)
			assert.Empty(t, results)
		})
	}
}

func TestAnnIndex_DimensionMismatch(t *testing.T) {
	for name, ix := range backends(t, 4) {
		t.Run(name, func(t *testing.T) {
			_, err := ix.Add([]float32{1, 0}, 0)
			assert.Error(t, err)
			_, err = ix.Search([]float32{1, 0}, 1)
			assert.Error(t, err)
		})
	}
}

func TestAnnIndex_DenseAssignment(t *testing.T) {
	for name, ix := range backends(t, 2) {
		t.Run(name, func(t *testing.T) {
			id0, err := ix.Add([]float32{1, 0}, -1)
			require.NoError(t, err)
			id1, err := ix.Add([]float32{0, 1}, -1)
			require.NoError(t, err)
			assert.EqualValues(t, 0, id0)
			assert.EqualValues(t, 1, id1)

			// Explicit ids advance the dense counter.
			_, err = ix.Add([]float32{1, 1}, 9)
			require.NoError(t, err)
			id, err := ix.Add([]float32{1, 0.5}, -1)
			require.NoError(t, err)
			assert.EqualValues(t, 10, id)
		})
	}
}

func TestAnnIndex_SaveLoadRoundTrip(t *testing.T) {
	for name, fresh := range map[string]func(int) AnnIndex{
		"flat": func(d int) AnnIndex { return NewFlatIndex(d) },
		"hnsw": func(d int) AnnIndex { return NewHNSWIndex(d) },
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "faiss_index")

			ix := fresh(3)
			_, err := ix.Add([]float32{1, 0, 0}, 0)
			require.NoError(t, err)
			_, err = ix.Add([]float32{0, 1, 0}, 1)
			require.NoError(t, err)
			require.NoError(t, ix.Save(path))

			loaded := fresh(3)
			require.NoError(t, loaded.Load(path))
			assert.Equal(t, 2, loaded.Count())
			assert.ElementsMatch(t, []int64{0, 1}, loaded.IDs())

			results, err := loaded.Search([]float32{0, 1, 0}, 1)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.EqualValues(t, 1, results[0].ID)
		})
	}
}

func TestStore_Stats(t *testing.T) {
	s := NewStore(NewFlatIndex(8), "/tmp/ix/faiss_index")
	_, err := s.Add(make([]float32, 8), 0)
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, 1, stats.VectorCount)
	assert.Equal(t, 8, stats.VectorDim)
	assert.Equal(t, "/tmp/ix/faiss_index", stats.IndexPath)
}

func TestCompareIDSets(t *testing.T) {
	report := CompareIDSets([]int64{0, 1, 2, 3}, []int64{1, 2, 9}, 10)

	assert.False(t, report.InSync)
	assert.Equal(t, 4, report.StoreCount)
	assert.Equal(t, 3, report.IndexCount)
	assert.Equal(t, 2, report.MissingInIndex)
	assert.Equal(t, 1, report.ExtraInIndex)
	assert.Equal(t, []int64{0, 3}, report.MissingSample)
	assert.Equal(t, []int64{9}, report.ExtraSample)

	inSync := CompareIDSets([]int64{0, 1}, []int64{1, 0}, 10)
	assert.True(t, inSync.InSync)
}
