package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// GetOrCreateProject resolves the project for a root path, creating it with
// a fresh UUID on first analysis. The label is only written on creation.
func (s *Store) GetOrCreateProject(ctx context.Context, rootPath, name string) (*Project, error) {
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = filepath.Base(abs)
	}

	var p Project
	err = s.locked(func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT id, root_path, name, created_at FROM projects WHERE root_path = ?`, abs)
		if scanErr := row.Scan(&p.ID, &p.RootPath, &p.Name, &p.CreatedAt); scanErr == nil {
			return nil
		} else if !errors.Is(scanErr, sql.ErrNoRows) {
			return scanErr
		}

		p = Project{ID: uuid.NewString(), RootPath: abs, Name: name, CreatedAt: time.Now().UTC()}
		_, insErr := s.db.ExecContext(ctx,
			`INSERT INTO projects(id, root_path, name, created_at) VALUES (?, ?, ?, ?)`,
			p.ID, p.RootPath, p.Name, p.CreatedAt)
		return insErr
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProject fetches a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	err := s.locked(func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT id, root_path, name, created_at FROM projects WHERE id = ?`, id)
		return row.Scan(&p.ID, &p.RootPath, &p.Name, &p.CreatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertFile inserts or updates a file row, returning its id.
func (s *Store) UpsertFile(ctx context.Context, f *File) (int64, error) {
	var id int64
	err := s.locked(func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO files(project_id, path, abs_path, line_count, mtime, has_docstring, deleted, dataset_id, needs_chunking)
			VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
			ON CONFLICT(project_id, path) DO UPDATE SET
				abs_path = excluded.abs_path,
				line_count = excluded.line_count,
				mtime = excluded.mtime,
				has_docstring = excluded.has_docstring,
				deleted = 0,
				dataset_id = excluded.dataset_id,
				needs_chunking = excluded.needs_chunking`,
			f.ProjectID, f.Path, f.AbsPath, f.LineCount, f.ModTime, f.HasDocstring, f.DatasetID, f.NeedsChunk)
		if err != nil {
			return err
		}
		if lastID, err := res.LastInsertId(); err == nil && lastID != 0 {
			id = lastID
		}
		// The upsert path does not report an id; fetch it.
		return s.db.QueryRowContext(ctx,
			`SELECT id FROM files WHERE project_id = ? AND path = ?`, f.ProjectID, f.Path).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	f.ID = id
	return id, nil
}

// GetFileByPath fetches a file row by project-relative path.
func (s *Store) GetFileByPath(ctx context.Context, projectID, path string) (*File, error) {
	var f File
	err := s.locked(func() error {
		row := s.db.QueryRowContext(ctx, `
			SELECT id, project_id, path, abs_path, line_count, mtime, has_docstring, deleted, dataset_id, needs_chunking
			FROM files WHERE project_id = ? AND path = ?`, projectID, path)
		return row.Scan(&f.ID, &f.ProjectID, &f.Path, &f.AbsPath, &f.LineCount, &f.ModTime,
			&f.HasDocstring, &f.Deleted, &f.DatasetID, &f.NeedsChunk)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// SoftDeleteFile marks a file deleted without purging its rows.
func (s *Store) SoftDeleteFile(ctx context.Context, fileID int64) error {
	return s.locked(func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE files SET deleted = 1 WHERE id = ?`, fileID)
		return err
	})
}

// ClearFileData purges all per-file dependent rows before re-ingest:
// classes (cascading methods), functions, imports, usages, chunks, issues,
// code content and the AST snapshot.
func (s *Store) ClearFileData(ctx context.Context, fileID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return clearFileDataTx(ctx, tx, fileID)
	})
}

func clearFileDataTx(ctx context.Context, tx *sql.Tx, fileID int64) error {
	for _, stmt := range []string{
		`DELETE FROM methods WHERE file_id = ?`,
		`DELETE FROM classes WHERE file_id = ?`,
		`DELETE FROM functions WHERE file_id = ?`,
		`DELETE FROM imports WHERE file_id = ?`,
		`DELETE FROM usages WHERE file_id = ?`,
		`DELETE FROM code_chunks WHERE file_id = ?`,
		`DELETE FROM issues WHERE file_id = ?`,
		`DELETE FROM code_content WHERE file_id = ?`,
		`DELETE FROM ast_snapshots WHERE file_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, fileID); err != nil {
			return fmt.Errorf("clear file data: %w", err)
		}
	}
	return nil
}

// FileBatch groups one file's structural rows so analysis lands atomically.
type FileBatch struct {
	FileID    int64
	ProjectID string
	Classes   []*Class
	Functions []*Function
	Methods   []*Method // Methods[i].ClassID indexes into Classes by position when ClassID < 0
	Imports   []*Import
	Usages    []*Usage
	Issues    []*Issue
	Contents  []*CodeContent

	// Snapshot fields.
	TreeJSON string
	TreeHash string
	ModTime  time.Time

	// ReplaceExisting purges prior rows for the file first.
	ReplaceExisting bool
}

// SaveFileBatch persists a file's analysis results in one transaction.
// Method rows whose ClassID is negative are bound to Classes[-ClassID-1].
func (s *Store) SaveFileBatch(ctx context.Context, batch *FileBatch) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if batch.ReplaceExisting {
			if err := clearFileDataTx(ctx, tx, batch.FileID); err != nil {
				return err
			}
		}

		classIDs := make([]int64, len(batch.Classes))
		for i, c := range batch.Classes {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO classes(file_id, project_id, name, line, docstring, bases)
				VALUES (?, ?, ?, ?, ?, ?)`,
				batch.FileID, batch.ProjectID, c.Name, c.Line, c.Docstring, encodeStrings(c.Bases))
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			classIDs[i] = id
			c.ID = id
		}

		for _, fn := range batch.Functions {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO functions(file_id, project_id, name, line, args, docstring)
				VALUES (?, ?, ?, ?, ?, ?)`,
				batch.FileID, batch.ProjectID, fn.Name, fn.Line, encodeStrings(fn.Args), fn.Docstring)
			if err != nil {
				return err
			}
			fn.ID, _ = res.LastInsertId()
		}

		for _, m := range batch.Methods {
			classID := m.ClassID
			if classID < 0 {
				idx := int(-classID) - 1
				if idx < 0 || idx >= len(classIDs) {
					return fmt.Errorf("method %s references unknown class index %d", m.Name, idx)
				}
				classID = classIDs[idx]
			}
			res, err := tx.ExecContext(ctx, `
				INSERT INTO methods(class_id, file_id, project_id, name, line, args, docstring, is_abstract, body_is_noop, raises_not_implemented)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				classID, batch.FileID, batch.ProjectID, m.Name, m.Line, encodeStrings(m.Args),
				m.Docstring, m.IsAbstract, m.BodyIsNoOp, m.RaisesNotImplemented)
			if err != nil {
				return err
			}
			m.ID, _ = res.LastInsertId()
			m.ClassID = classID
		}

		for _, imp := range batch.Imports {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO imports(file_id, project_id, name, module, kind, line)
				VALUES (?, ?, ?, ?, ?, ?)`,
				batch.FileID, batch.ProjectID, imp.Name, imp.Module, imp.Kind, imp.Line); err != nil {
				return err
			}
		}

		for _, u := range batch.Usages {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO usages(file_id, project_id, line, kind, target_name, target_class, context)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				batch.FileID, batch.ProjectID, u.Line, u.Kind, u.TargetName, u.TargetClass, u.Context); err != nil {
				return err
			}
		}

		for _, issue := range batch.Issues {
			if err := addIssueTx(ctx, tx, batch.FileID, batch.ProjectID, issue); err != nil {
				return err
			}
		}

		for _, cc := range batch.Contents {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO code_content(file_id, project_id, entity_kind, entity_name, entity_id, content, docstring)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				batch.FileID, batch.ProjectID, cc.EntityKind, cc.EntityName, cc.EntityID, cc.Content, cc.Docstring); err != nil {
				return err
			}
		}

		if batch.TreeJSON != "" {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO ast_snapshots(file_id, project_id, tree, hash, mtime)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(file_id) DO UPDATE SET
					project_id = excluded.project_id,
					tree = excluded.tree,
					hash = excluded.hash,
					mtime = excluded.mtime`,
				batch.FileID, batch.ProjectID, batch.TreeJSON, batch.TreeHash, batch.ModTime); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddIssue records a single quality issue outside a batch.
func (s *Store) AddIssue(ctx context.Context, fileID int64, projectID string, issue *Issue) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return addIssueTx(ctx, tx, fileID, projectID, issue)
	})
}

func addIssueTx(ctx context.Context, tx *sql.Tx, fileID int64, projectID string, issue *Issue) error {
	meta := "{}"
	if len(issue.Metadata) > 0 {
		data, err := json.Marshal(issue.Metadata)
		if err != nil {
			return err
		}
		meta = string(data)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO issues(file_id, project_id, class_id, method_id, function_id, kind, message, line, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fileID, projectID, issue.ClassID, issue.MethodID, issue.FunctionID,
		issue.Kind, issue.Message, issue.Line, meta)
	return err
}

// IsASTOutdated reports whether a file needs re-analysis: no snapshot, or a
// snapshot older than the given mtime.
func (s *Store) IsASTOutdated(ctx context.Context, fileID int64, mtime time.Time) (bool, error) {
	var stored time.Time
	err := s.locked(func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT mtime FROM ast_snapshots WHERE file_id = ?`, fileID).Scan(&stored)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return mtime.After(stored), nil
}

// FileRowCounts returns per-table row counts for a file, used to verify
// analysis idempotence.
func (s *Store) FileRowCounts(ctx context.Context, fileID int64) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.locked(func() error {
		for _, table := range []string{"classes", "functions", "methods", "imports", "usages", "issues", "code_content", "code_chunks"} {
			var n int
			if err := s.db.QueryRowContext(ctx,
				fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE file_id = ?`, table), fileID).Scan(&n); err != nil {
				return err
			}
			counts[table] = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// FilesNeedingChunking lists files flagged for the chunking pass.
func (s *Store) FilesNeedingChunking(ctx context.Context, projectID string, limit int) ([]*File, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []*File
	err := s.locked(func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, project_id, path, abs_path, line_count, mtime, has_docstring, deleted, dataset_id, needs_chunking
			FROM files
			WHERE project_id = ? AND deleted = 0 AND needs_chunking = 1
			ORDER BY id LIMIT ?`, projectID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var f File
			if err := rows.Scan(&f.ID, &f.ProjectID, &f.Path, &f.AbsPath, &f.LineCount, &f.ModTime,
				&f.HasDocstring, &f.Deleted, &f.DatasetID, &f.NeedsChunk); err != nil {
				return err
			}
			out = append(out, &f)
		}
		return rows.Err()
	})
	return out, err
}

// MarkFileChunked clears the needs-chunking flag.
func (s *Store) MarkFileChunked(ctx context.Context, fileID int64) error {
	return s.locked(func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE files SET needs_chunking = 0 WHERE id = ?`, fileID)
		return err
	})
}

// MarkFilesNeedChunking flags files for (re)chunking by path. Empty paths
// flags every live file in the project.
func (s *Store) MarkFilesNeedChunking(ctx context.Context, projectID string, paths []string) (int64, error) {
	var affected int64
	err := s.locked(func() error {
		if len(paths) == 0 {
			res, err := s.db.ExecContext(ctx,
				`UPDATE files SET needs_chunking = 1 WHERE project_id = ? AND deleted = 0`, projectID)
			if err != nil {
				return err
			}
			affected, _ = res.RowsAffected()
			return nil
		}
		for _, p := range paths {
			res, err := s.db.ExecContext(ctx,
				`UPDATE files SET needs_chunking = 1 WHERE project_id = ? AND deleted = 0 AND (path = ? OR abs_path = ?)`,
				projectID, p, p)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			affected += n
		}
		return nil
	})
	return affected, err
}
