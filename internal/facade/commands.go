package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cstpatch"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/store"
)

// Handler executes one named command against JSON parameters.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Registry maps stable command names to handlers. Commands are registered
// once at startup; there is no reflective discovery.
type Registry struct {
	handlers map[string]Handler
}

// Names lists the registered command names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute dispatches a command by name. Unknown names and handler failures
// come back as typed error payloads, never as transport errors.
func (r *Registry) Execute(ctx context.Context, name string, params json.RawMessage) (any, *ErrorPayload) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, &ErrorPayload{Code: "INTERNAL_ERROR", Message: fmt.Sprintf("unknown command: %s", name)}
	}
	result, err := handler(ctx, params)
	if err != nil {
		return nil, AsErrorPayload(err)
	}
	return result, nil
}

func decode[T any](params json.RawMessage) (T, error) {
	var v T
	if len(params) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(params, &v); err != nil {
		return v, fmt.Errorf("invalid parameters: %w", err)
	}
	return v, nil
}

// Command parameter shapes (stable names on the wire).

type analyzeParams struct {
	RootDir string `json:"root_dir,omitempty"`
	Force   bool   `json:"force,omitempty"`
	Dataset string `json:"dataset,omitempty"`
}

type listBlocksParams struct {
	FilePath string `json:"file_path"`
}

type queryCSTParams struct {
	FilePath    string `json:"file_path"`
	Selector    string `json:"selector"`
	IncludeCode bool   `json:"include_code,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
}

type composeParams struct {
	FilePath     string        `json:"file_path"`
	Ops          []cstpatch.Op `json:"ops"`
	Apply        bool          `json:"apply,omitempty"`
	CreateBackup bool          `json:"create_backup,omitempty"`
	ReturnSource bool          `json:"return_source,omitempty"`
	ReturnDiff   bool          `json:"return_diff,omitempty"`
}

type searchClassesParams struct {
	Pattern string `json:"pattern,omitempty"`
}

type searchMethodsParams struct {
	Class string `json:"class,omitempty"`
}

type findUsagesParams struct {
	Name        string `json:"name"`
	TargetType  string `json:"target_type,omitempty"`
	TargetClass string `json:"target_class,omitempty"`
}

type fullTextParams struct {
	Query      string `json:"query"`
	EntityType string `json:"entity_type,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type semanticParams struct {
	Query             string  `json:"query"`
	K                 int     `json:"k,omitempty"`
	MaxDistance       float64 `json:"max_distance,omitempty"`
	SourceType        string  `json:"source_type,omitempty"`
	FilePathSubstring string  `json:"file_path_substring,omitempty"`
	Dataset           string  `json:"dataset,omitempty"`
}

type rebuildParams struct {
	Project string `json:"project,omitempty"`
	Dataset string `json:"dataset,omitempty"`
}

type revectorizeParams struct {
	Paths []string `json:"paths,omitempty"`
}

// Commands builds the startup command registry over the facade.
func (f *Facade) Commands() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}

	r.handlers["analyze"] = func(ctx context.Context, raw json.RawMessage) (any, error) {
		p, err := decode[analyzeParams](raw)
		if err != nil {
			return nil, err
		}
		return f.Analyze(ctx, p.RootDir, AnalyzeOptions{Force: p.Force, Dataset: p.Dataset})
	}
	r.handlers["list_cst_blocks"] = func(ctx context.Context, raw json.RawMessage) (any, error) {
		p, err := decode[listBlocksParams](raw)
		if err != nil {
			return nil, err
		}
		return f.ListCSTBlocks(ctx, p.FilePath)
	}
	r.handlers["query_cst"] = func(ctx context.Context, raw json.RawMessage) (any, error) {
		p, err := decode[queryCSTParams](raw)
		if err != nil {
			return nil, err
		}
		return f.QueryCST(ctx, p.FilePath, p.Selector, p.IncludeCode, p.MaxResults)
	}
	r.handlers["compose_cst_module"] = func(ctx context.Context, raw json.RawMessage) (any, error) {
		p, err := decode[composeParams](raw)
		if err != nil {
			return nil, err
		}
		return f.ComposeCSTModule(ctx, p.FilePath, p.Ops, ComposeOptions{
			Apply:        p.Apply,
			CreateBackup: p.CreateBackup,
			ReturnSource: p.ReturnSource,
			ReturnDiff:   p.ReturnDiff,
		})
	}
	r.handlers["search_find_classes"] = func(ctx context.Context, raw json.RawMessage) (any, error) {
		p, err := decode[searchClassesParams](raw)
		if err != nil {
			return nil, err
		}
		return f.SearchClasses(ctx, p.Pattern)
	}
	r.handlers["search_class_methods"] = func(ctx context.Context, raw json.RawMessage) (any, error) {
		p, err := decode[searchMethodsParams](raw)
		if err != nil {
			return nil, err
		}
		return f.SearchMethods(ctx, p.Class)
	}
	r.handlers["search_find_usages"] = func(ctx context.Context, raw json.RawMessage) (any, error) {
		p, err := decode[findUsagesParams](raw)
		if err != nil {
			return nil, err
		}
		return f.FindUsages(ctx, p.Name, store.UsageKind(p.TargetType), p.TargetClass)
	}
	r.handlers["search_fulltext"] = func(ctx context.Context, raw json.RawMessage) (any, error) {
		p, err := decode[fullTextParams](raw)
		if err != nil {
			return nil, err
		}
		return f.FullTextSearch(ctx, p.Query, p.EntityType, p.Limit)
	}
	r.handlers["search_semantic"] = func(ctx context.Context, raw json.RawMessage) (any, error) {
		p, err := decode[semanticParams](raw)
		if err != nil {
			return nil, err
		}
		return f.SemanticSearch(ctx, p.Query, SemanticOptions{
			K:                 p.K,
			MaxDistance:       p.MaxDistance,
			SourceType:        p.SourceType,
			FilePathSubstring: p.FilePathSubstring,
			Dataset:           p.Dataset,
		})
	}
	r.handlers["rebuild_faiss"] = func(ctx context.Context, raw json.RawMessage) (any, error) {
		p, err := decode[rebuildParams](raw)
		if err != nil {
			return nil, err
		}
		return f.RebuildFaiss(ctx, p.Project, p.Dataset)
	}
	r.handlers["revectorize"] = func(ctx context.Context, raw json.RawMessage) (any, error) {
		p, err := decode[revectorizeParams](raw)
		if err != nil {
			return nil, err
		}
		return f.Revectorize(ctx, p.Paths)
	}

	return r
}
