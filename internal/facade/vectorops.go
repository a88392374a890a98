package facade

import (
	"context"

	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/store"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/vector"
)

// RebuildResult is the rebuild_faiss payload.
type RebuildResult struct {
	Vectors int `json:"vectors"`
	Missing int `json:"missing"`
}

// RebuildFaiss regenerates the vector index from the store. An empty
// projectID selects the facade's project when a root is configured and the
// global scope otherwise.
func (f *Facade) RebuildFaiss(ctx context.Context, projectID, dataset string) (*RebuildResult, error) {
	if _, err := f.cfg.RequireVectorDim(); err != nil {
		return nil, err
	}
	if projectID == "" && f.rootDir != "" {
		project, err := f.Project(ctx)
		if err != nil {
			return nil, err
		}
		projectID = project.ID
	}
	if projectID != "" {
		if p, err := f.store.GetProject(ctx, projectID); err != nil {
			return nil, cerr.Wrap(cerr.CodeRebuildFaissError, err)
		} else if p == nil {
			return nil, cerr.Newf(cerr.CodeProjectNotFound, "project not found: %s", projectID)
		}
	}

	result, err := f.coordinator.Rebuild(ctx, store.Scope{ProjectID: projectID, DatasetID: dataset})
	if err != nil {
		return nil, err
	}
	return &RebuildResult{Vectors: result.Loaded, Missing: result.Missing}, nil
}

// CheckIndexSync reports store↔index id-set consistency for a scope.
func (f *Facade) CheckIndexSync(ctx context.Context, projectID, dataset string) (vector.SyncReport, error) {
	if projectID == "" && f.rootDir != "" {
		project, err := f.Project(ctx)
		if err != nil {
			return vector.SyncReport{}, err
		}
		projectID = project.ID
	}
	return f.coordinator.CheckSync(ctx, store.Scope{ProjectID: projectID, DatasetID: dataset})
}

// RevectorizeResult is the revectorize payload.
type RevectorizeResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// Revectorize re-chunks and re-embeds files. With no paths, every live file
// of the project is redone. Existing chunks for the files are dropped first;
// the worker pass then rebuilds them with fresh embeddings.
func (f *Facade) Revectorize(ctx context.Context, paths []string) (*RevectorizeResult, error) {
	if _, err := f.cfg.RequireVectorDim(); err != nil {
		return nil, err
	}
	project, err := f.Project(ctx)
	if err != nil {
		return nil, err
	}

	for i, p := range paths {
		paths[i] = f.resolvePath(p)
	}

	// Drop existing chunks for the targeted files so the pipeline rebuilds
	// them from scratch.
	marked, err := f.store.MarkFilesNeedChunking(ctx, project.ID, paths)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeRevectorizeError, err)
	}
	if marked == 0 && len(paths) > 0 {
		return nil, cerr.New(cerr.CodeRevectorizeError, "no analyzed files matched the given paths")
	}

	pending, err := f.store.FilesNeedingChunking(ctx, project.ID, int(marked))
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeRevectorizeError, err)
	}
	for _, file := range pending {
		if err := f.store.DeleteChunksByFile(ctx, file.ID); err != nil {
			return nil, cerr.Wrap(cerr.CodeRevectorizeError, err)
		}
	}

	w := f.NewWorker(project.ID)
	result := &RevectorizeResult{}
	for {
		if err := ctx.Err(); err != nil {
			return result, cerr.Wrap(cerr.CodeRevectorizeError, err)
		}
		batch, err := w.ProcessOnce(ctx)
		if err != nil {
			return result, cerr.Wrap(cerr.CodeRevectorizeError, err)
		}
		result.Processed += batch.FilesChunked
		result.Errors += batch.Errors
		if batch.FilesChunked == 0 && batch.ChunksIndexed == 0 && batch.Errors == 0 {
			break
		}
	}
	return result, nil
}
