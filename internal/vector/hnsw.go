package vector

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/coder/hnsw"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/embed"
)

// HNSWIndex is the graph-based ANN backend over the same id-mapped contract
// as FlatIndex. External ids are used directly as graph keys.
type HNSWIndex struct {
	dim    int
	graph  *hnsw.Graph[uint64]
	ids    map[int64]struct{}
	nextID int64
}

var _ AnnIndex = (*HNSWIndex)(nil)

// hnswMeta is the sidecar persistence form for the id set.
type hnswMeta struct {
	Dim    int
	IDs    []int64
	NextID int64
}

// NewHNSWIndex creates an empty HNSW index of the given dimension.
func NewHNSWIndex(dim int) *HNSWIndex {
	return &HNSWIndex{dim: dim, graph: newGraph(), ids: make(map[int64]struct{})}
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	// Unit vectors make euclidean distance order-equivalent to cosine.
	g.Distance = hnsw.EuclideanDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25
	return g
}

// Add inserts a vector, normalizing to unit L2.
func (h *HNSWIndex) Add(vector []float32, id int64) (int64, error) {
	if len(vector) != h.dim {
		return 0, fmt.Errorf("vector dimension %d, index dimension %d", len(vector), h.dim)
	}
	if id < 0 {
		id = h.nextID
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)
	embed.NormalizeVector(vec)

	h.graph.Add(hnsw.MakeNode(uint64(id), vec))
	h.ids[id] = struct{}{}
	if id >= h.nextID {
		h.nextID = id + 1
	}
	return id, nil
}

// Search returns up to k neighbors in ascending distance.
func (h *HNSWIndex) Search(query []float32, k int) ([]Result, error) {
	if len(query) != h.dim {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), h.dim)
	}
	if k <= 0 || h.graph.Len() == 0 {
		return []Result{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	embed.NormalizeVector(q)

	nodes := h.graph.Search(q, k)
	results := make([]Result, 0, len(nodes))
	for _, node := range nodes {
		d := h.graph.Distance(q, node.Value)
		results = append(results, Result{ID: int64(node.Key), Distance: d * d})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	return results, nil
}

// IDs returns all external ids, sorted.
func (h *HNSWIndex) IDs() []int64 {
	out := make([]int64, 0, len(h.ids))
	for id := range h.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Count returns the number of vectors.
func (h *HNSWIndex) Count() int {
	return len(h.ids)
}

// Dim returns the vector dimension.
func (h *HNSWIndex) Dim() int {
	return h.dim
}

// Save exports the graph plus an id sidecar, both via atomic rename.
func (h *HNSWIndex) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := h.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}

	metaTmp := path + ".meta.tmp"
	metaFile, err := os.Create(metaTmp)
	if err != nil {
		return fmt.Errorf("create meta file: %w", err)
	}
	meta := hnswMeta{Dim: h.dim, IDs: h.IDs(), NextID: h.nextID}
	if err := gob.NewEncoder(metaFile).Encode(meta); err != nil {
		_ = metaFile.Close()
		_ = os.Remove(metaTmp)
		return fmt.Errorf("encode meta: %w", err)
	}
	if err := metaFile.Close(); err != nil {
		_ = os.Remove(metaTmp)
		return fmt.Errorf("close meta file: %w", err)
	}
	return os.Rename(metaTmp, path+".meta")
}

// Load restores the graph and id sidecar from disk.
func (h *HNSWIndex) Load(path string) error {
	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return fmt.Errorf("open meta file: %w", err)
	}
	defer metaFile.Close()

	var meta hnswMeta
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return fmt.Errorf("decode meta: %w", err)
	}
	if h.dim != 0 && meta.Dim != h.dim {
		return fmt.Errorf("index dimension %d does not match configured %d", meta.Dim, h.dim)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	graph := newGraph()
	// coder/hnsw Import requires an io.ByteReader.
	if err := graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	h.dim = meta.Dim
	h.graph = graph
	h.nextID = meta.NextID
	h.ids = make(map[int64]struct{}, len(meta.IDs))
	for _, id := range meta.IDs {
		h.ids[id] = struct{}{}
	}
	return nil
}
