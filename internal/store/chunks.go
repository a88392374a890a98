package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AddCodeChunk inserts a chunk row, returning its id. A nil vector leaves
// vector_id NULL for the worker or the rebuild protocol to fill in.
func (s *Store) AddCodeChunk(ctx context.Context, c *Chunk) (int64, error) {
	if c.UUID == "" {
		c.UUID = uuid.NewString()
	}
	vec, err := encodeVector(c.Vector)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.locked(func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO code_chunks(chunk_uuid, file_id, project_id, class_id, function_id, method_id,
				line, node_type, source_type, ordinal, text, binding_level,
				embedding_model, embedding_vector, vector_id, bm25_score, dataset_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.UUID, c.FileID, c.ProjectID, c.ClassID, c.FunctionID, c.MethodID,
			c.Line, c.NodeType, c.SourceType, c.Ordinal, c.Text, c.BindingLevel,
			nullString(c.Model), nullString(vec), nullVectorID(c.VectorID), nullFloat(c.BM25Score), c.DatasetID)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	c.ID = id
	return id, nil
}

// UpdateChunkVectorID writes back the index id assigned to a chunk.
func (s *Store) UpdateChunkVectorID(ctx context.Context, chunkID, vectorID int64, model string) error {
	return s.locked(func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE code_chunks SET vector_id = ?, embedding_model = ? WHERE id = ?`,
			vectorID, model, chunkID)
		return err
	})
}

// UpdateChunkVector stores an embedding obtained after the chunk row was
// created (worker fallback path).
func (s *Store) UpdateChunkVector(ctx context.Context, chunkID int64, vector []float32, model string) error {
	vec, err := encodeVector(vector)
	if err != nil {
		return err
	}
	return s.locked(func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE code_chunks SET embedding_vector = ?, embedding_model = ? WHERE id = ?`,
			vec, model, chunkID)
		return err
	})
}

// NonVectorizedChunks lists chunks that carry an embedding vector but no
// vector_id yet (legacy rows or prior add-to-index failures).
func (s *Store) NonVectorizedChunks(ctx context.Context, projectID string, limit int) ([]*Chunk, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.queryChunks(ctx, `
		WHERE project_id = ? AND embedding_vector IS NOT NULL AND vector_id IS NULL
		ORDER BY id LIMIT ?`, projectID, limit)
}

// ChunksForRebuild streams every eligible chunk of a scope in id order.
// Eligible chunks are those with both an embedding model and a vector; the
// rebuild protocol falls back to the provider for chunks without vectors, so
// rows missing only the vector are included when includeMissing is set.
func (s *Store) ChunksForRebuild(ctx context.Context, scope Scope, includeMissing bool) ([]*Chunk, error) {
	where, args := scopeFilter(scope)
	if !includeMissing {
		where += ` AND embedding_model IS NOT NULL AND embedding_vector IS NOT NULL`
	}
	return s.queryChunks(ctx, where+` ORDER BY id`, args...)
}

// GetChunksByVectorIDs hydrates semantic-search hits.
func (s *Store) GetChunksByVectorIDs(ctx context.Context, scope Scope, vectorIDs []int64) ([]*Chunk, error) {
	if len(vectorIDs) == 0 {
		return nil, nil
	}
	where, args := scopeFilter(scope)
	placeholders := make([]string, len(vectorIDs))
	for i, id := range vectorIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	where += ` AND vector_id IN (` + strings.Join(placeholders, ",") + `)`
	return s.queryChunks(ctx, where, args...)
}

// VectorIDs returns the set of assigned vector ids in a scope.
func (s *Store) VectorIDs(ctx context.Context, scope Scope) ([]int64, error) {
	where, args := scopeFilter(scope)
	var out []int64
	err := s.locked(func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT vector_id FROM code_chunks `+where+` AND vector_id IS NOT NULL ORDER BY vector_id`, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			out = append(out, id)
		}
		return rows.Err()
	})
	return out, err
}

// ReassignVectorIDsDense assigns vector_id = 0..N-1 in chunk-id order for
// every chunk in the scope that has both an embedding model and a vector.
// The reassignment is a single statement, so readers never observe a
// partially renumbered scope.
func (s *Store) ReassignVectorIDsDense(ctx context.Context, scope Scope) (int64, error) {
	where, args := scopeFilter(scope)
	eligible := where + ` AND embedding_model IS NOT NULL AND embedding_vector IS NOT NULL`

	stmt := `
		UPDATE code_chunks SET vector_id = (
			SELECT rn - 1 FROM (
				SELECT id, ROW_NUMBER() OVER (ORDER BY id) AS rn
				FROM code_chunks ` + eligible + `
			) ranked WHERE ranked.id = code_chunks.id
		) ` + eligible

	var affected int64
	err := s.locked(func() error {
		res, err := s.db.ExecContext(ctx, stmt, append(append([]any{}, args...), args...)...)
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	return affected, err
}

// ChunkStats reports embedding coverage for a scope.
func (s *Store) ChunkStats(ctx context.Context, scope Scope) (total, withVector, withVectorID int, err error) {
	where, args := scopeFilter(scope)
	err = s.locked(func() error {
		row := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*),
			       COUNT(embedding_vector),
			       COUNT(vector_id)
			FROM code_chunks `+where, args...)
		return row.Scan(&total, &withVector, &withVectorID)
	})
	return
}

func (s *Store) queryChunks(ctx context.Context, whereOrder string, args ...any) ([]*Chunk, error) {
	var out []*Chunk
	err := s.locked(func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, chunk_uuid, file_id, project_id, class_id, function_id, method_id,
			       line, node_type, source_type, ordinal, text, binding_level,
			       embedding_model, embedding_vector, vector_id, bm25_score, dataset_id
			FROM code_chunks `+whereOrder, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanChunk(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

func scanChunk(rows *sql.Rows) (*Chunk, error) {
	var c Chunk
	var model, vec sql.NullString
	var vectorID sql.NullInt64
	var score sql.NullFloat64
	if err := rows.Scan(&c.ID, &c.UUID, &c.FileID, &c.ProjectID, &c.ClassID, &c.FunctionID, &c.MethodID,
		&c.Line, &c.NodeType, &c.SourceType, &c.Ordinal, &c.Text, &c.BindingLevel,
		&model, &vec, &vectorID, &score, &c.DatasetID); err != nil {
		return nil, err
	}
	c.Model = model.String
	c.BM25Score = score.Float64
	c.VectorID = -1
	if vectorID.Valid {
		c.VectorID = vectorID.Int64
	}
	if vec.Valid {
		v, err := decodeVector(vec.String)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", c.ID, err)
		}
		c.Vector = v
	}
	return &c, nil
}

// scopeFilter builds the WHERE clause for a scope. The zero scope is global.
func scopeFilter(scope Scope) (string, []any) {
	where := `WHERE 1=1`
	var args []any
	if scope.ProjectID != "" {
		where += ` AND project_id = ?`
		args = append(args, scope.ProjectID)
	}
	if scope.DatasetID != "" {
		where += ` AND dataset_id = ?`
		args = append(args, scope.DatasetID)
	}
	return where, args
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}

func nullVectorID(id int64) any {
	if id < 0 {
		return nil
	}
	return id
}

// FilePaths resolves file ids to project-relative paths.
func (s *Store) FilePaths(ctx context.Context, fileIDs []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(fileIDs))
	if len(fileIDs) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(fileIDs))
	args := make([]any, len(fileIDs))
	for i, id := range fileIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	err := s.locked(func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, path FROM files WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var path string
			if err := rows.Scan(&id, &path); err != nil {
				return err
			}
			out[id] = path
		}
		return rows.Err()
	})
	return out, err
}

// DeleteChunksByFile removes all chunks of a file (revectorize path).
func (s *Store) DeleteChunksByFile(ctx context.Context, fileID int64) error {
	return s.locked(func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM code_chunks WHERE file_id = ?`, fileID)
		return err
	})
}

// Touch updates a file's mtime column, used by tests and the watcher.
func (s *Store) Touch(ctx context.Context, fileID int64, mtime time.Time) error {
	return s.locked(func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE files SET mtime = ? WHERE id = ?`, mtime, fileID)
		return err
	})
}
