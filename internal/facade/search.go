package facade

import (
	"context"
	"sort"
	"strings"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/embed"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/store"
)

// SearchClasses finds classes by name pattern in the facade's project.
func (f *Facade) SearchClasses(ctx context.Context, pattern string) ([]*store.ClassHit, error) {
	project, err := f.Project(ctx)
	if err != nil {
		return nil, err
	}
	return f.store.SearchClasses(ctx, project.ID, pattern)
}

// SearchMethods lists methods, optionally for one class.
func (f *Facade) SearchMethods(ctx context.Context, className string) ([]*store.MethodHit, error) {
	project, err := f.Project(ctx)
	if err != nil {
		return nil, err
	}
	return f.store.SearchMethods(ctx, project.ID, className)
}

// FindUsages lists usage sites of a name.
func (f *Facade) FindUsages(ctx context.Context, name string, targetType store.UsageKind, targetClass string) ([]*store.Usage, error) {
	project, err := f.Project(ctx)
	if err != nil {
		return nil, err
	}
	return f.store.FindUsages(ctx, project.ID, name, targetType, targetClass)
}

// FullTextSearch runs the FTS5 query over indexed code content.
func (f *Facade) FullTextSearch(ctx context.Context, query, entityType string, limit int) ([]*store.FullTextHit, error) {
	project, err := f.Project(ctx)
	if err != nil {
		return nil, err
	}
	return f.store.FullTextSearch(ctx, project.ID, query, entityType, limit)
}

// SemanticOptions are the post-filters for semantic search.
type SemanticOptions struct {
	K                 int
	MaxDistance       float64
	SourceType        string
	FilePathSubstring string
	Dataset           string
}

// SemanticHit is one semantic search result.
type SemanticHit struct {
	ChunkUUID    string  `json:"chunk_uuid"`
	Text         string  `json:"text"`
	SourceType   string  `json:"source_type"`
	BindingLevel int     `json:"binding_level"`
	Line         int     `json:"line"`
	FilePath     string  `json:"file_path"`
	Distance     float64 `json:"distance"`
	Model        string  `json:"model"`
	// Approximate marks hits whose vector came from the deterministic
	// fallback rather than the semantic embedder.
	Approximate bool `json:"approximate"`
}

// SemanticSearch embeds the query, runs the ANN lookup and re-hydrates hits
// through the store. An empty index yields an empty result, not an error.
func (f *Facade) SemanticSearch(ctx context.Context, query string, opts SemanticOptions) ([]*SemanticHit, error) {
	if _, err := f.cfg.RequireVectorDim(); err != nil {
		return nil, err
	}
	project, err := f.Project(ctx)
	if err != nil {
		return nil, err
	}
	if opts.K <= 0 {
		opts.K = 10
	}

	embedded, err := f.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := f.vectors.Search(embedded.Vector, opts.K)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return []*SemanticHit{}, nil
	}

	ids := make([]int64, 0, len(results))
	distances := make(map[int64]float64, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
		distances[r.ID] = float64(r.Distance)
	}

	scope := store.Scope{ProjectID: project.ID, DatasetID: opts.Dataset}
	chunks, err := f.store.GetChunksByVectorIDs(ctx, scope, ids)
	if err != nil {
		return nil, err
	}

	fileIDs := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		fileIDs = append(fileIDs, c.FileID)
	}
	paths, err := f.store.FilePaths(ctx, fileIDs)
	if err != nil {
		return nil, err
	}

	hits := make([]*SemanticHit, 0, len(chunks))
	for _, c := range chunks {
		distance := distances[c.VectorID]
		if opts.MaxDistance > 0 && distance > opts.MaxDistance {
			continue
		}
		if opts.SourceType != "" && string(c.SourceType) != opts.SourceType {
			continue
		}
		path := paths[c.FileID]
		if opts.FilePathSubstring != "" && !strings.Contains(path, opts.FilePathSubstring) {
			continue
		}
		hits = append(hits, &SemanticHit{
			ChunkUUID:    c.UUID,
			Text:         c.Text,
			SourceType:   string(c.SourceType),
			BindingLevel: c.BindingLevel,
			Line:         c.Line,
			FilePath:     path,
			Distance:     distance,
			Model:        c.Model,
			Approximate:  c.Model == embed.FallbackModelName,
		})
	}

	// Hydration loses the ANN ordering; restore ascending distance.
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits, nil
}
