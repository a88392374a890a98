package vector

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/embed"
)

// FlatIndex is the exact baseline backend: brute-force L2 over unit vectors.
// It is the reference behavior an ANN backend must approximate.
type FlatIndex struct {
	dim     int
	vectors [][]float32
	ids     []int64
	byID    map[int64]int
	nextID  int64
}

var _ AnnIndex = (*FlatIndex)(nil)

// flatSnapshot is the gob persistence form.
type flatSnapshot struct {
	Dim     int
	Vectors [][]float32
	IDs     []int64
}

// NewFlatIndex creates an empty flat index of the given dimension.
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim, byID: make(map[int64]int)}
}

// Add inserts a vector, normalizing to unit L2. A negative id dense-assigns
// the next free id. Re-adding an existing id overwrites its vector.
func (f *FlatIndex) Add(vector []float32, id int64) (int64, error) {
	if len(vector) != f.dim {
		return 0, fmt.Errorf("vector dimension %d, index dimension %d", len(vector), f.dim)
	}
	if id < 0 {
		id = f.nextID
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)
	embed.NormalizeVector(vec)

	if pos, ok := f.byID[id]; ok {
		f.vectors[pos] = vec
	} else {
		f.byID[id] = len(f.vectors)
		f.vectors = append(f.vectors, vec)
		f.ids = append(f.ids, id)
	}
	if id >= f.nextID {
		f.nextID = id + 1
	}
	return id, nil
}

// Search runs exact nearest-neighbor search, ascending L2 distance.
func (f *FlatIndex) Search(query []float32, k int) ([]Result, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), f.dim)
	}
	if k <= 0 || len(f.vectors) == 0 {
		return []Result{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	embed.NormalizeVector(q)

	results := make([]Result, 0, len(f.vectors))
	for i, v := range f.vectors {
		results = append(results, Result{ID: f.ids[i], Distance: l2Distance(q, v)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// IDs returns all external ids in insertion order.
func (f *FlatIndex) IDs() []int64 {
	out := make([]int64, len(f.ids))
	copy(out, f.ids)
	return out
}

// Count returns the number of vectors.
func (f *FlatIndex) Count() int {
	return len(f.vectors)
}

// Dim returns the vector dimension.
func (f *FlatIndex) Dim() int {
	return f.dim
}

// Save writes the index to disk via a temp file and atomic rename.
func (f *FlatIndex) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}

	snap := flatSnapshot{Dim: f.dim, Vectors: f.vectors, IDs: f.ids}
	if err := gob.NewEncoder(file).Encode(snap); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode index: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load restores the index from disk.
func (f *FlatIndex) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	var snap flatSnapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return fmt.Errorf("decode index: %w", err)
	}
	if f.dim != 0 && snap.Dim != f.dim {
		return fmt.Errorf("index dimension %d does not match configured %d", snap.Dim, f.dim)
	}

	f.dim = snap.Dim
	f.vectors = snap.Vectors
	f.ids = snap.IDs
	f.byID = make(map[int64]int, len(snap.IDs))
	f.nextID = 0
	for i, id := range snap.IDs {
		f.byID[id] = i
		if id >= f.nextID {
			f.nextID = id + 1
		}
	}
	return nil
}

func l2Distance(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
