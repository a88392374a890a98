package store

import (
	"context"
	"strings"
)

// ClassHit is a structural search result for classes.
type ClassHit struct {
	Class    Class
	FilePath string
}

// MethodHit is a structural search result for methods.
type MethodHit struct {
	Method    Method
	ClassName string
	FilePath  string
}

// FullTextHit is a full-text search result.
type FullTextHit struct {
	EntityKind string
	EntityName string
	FilePath   string
	Snippet    string
	Score      float64
}

// SearchClasses finds classes whose name matches the pattern (SQL LIKE with
// `*` wildcards translated, case-insensitive). Empty pattern lists all.
func (s *Store) SearchClasses(ctx context.Context, projectID, pattern string) ([]*ClassHit, error) {
	like := likePattern(pattern)
	var out []*ClassHit
	err := s.locked(func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT c.id, c.file_id, c.project_id, c.name, c.line, c.docstring, c.bases, f.path
			FROM classes c JOIN files f ON f.id = c.file_id
			WHERE c.project_id = ? AND f.deleted = 0 AND c.name LIKE ? ESCAPE '\'
			ORDER BY c.name, c.line`, projectID, like)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var h ClassHit
			var bases string
			if err := rows.Scan(&h.Class.ID, &h.Class.FileID, &h.Class.ProjectID, &h.Class.Name,
				&h.Class.Line, &h.Class.Docstring, &bases, &h.FilePath); err != nil {
				return err
			}
			h.Class.Bases = decodeStrings(bases)
			out = append(out, &h)
		}
		return rows.Err()
	})
	return out, err
}

// SearchMethods lists methods, optionally restricted to one class name.
func (s *Store) SearchMethods(ctx context.Context, projectID, className string) ([]*MethodHit, error) {
	query := `
		SELECT m.id, m.class_id, m.file_id, m.project_id, m.name, m.line, m.args, m.docstring,
		       m.is_abstract, m.body_is_noop, m.raises_not_implemented, c.name, f.path
		FROM methods m
		JOIN classes c ON c.id = m.class_id
		JOIN files f ON f.id = m.file_id
		WHERE m.project_id = ? AND f.deleted = 0`
	args := []any{projectID}
	if className != "" {
		query += ` AND c.name = ?`
		args = append(args, className)
	}
	query += ` ORDER BY c.name, m.line`

	var out []*MethodHit
	err := s.locked(func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var h MethodHit
			var margs string
			if err := rows.Scan(&h.Method.ID, &h.Method.ClassID, &h.Method.FileID, &h.Method.ProjectID,
				&h.Method.Name, &h.Method.Line, &margs, &h.Method.Docstring,
				&h.Method.IsAbstract, &h.Method.BodyIsNoOp, &h.Method.RaisesNotImplemented,
				&h.ClassName, &h.FilePath); err != nil {
				return err
			}
			h.Method.Args = decodeStrings(margs)
			out = append(out, &h)
		}
		return rows.Err()
	})
	return out, err
}

// FindUsages lists usage sites of a name, optionally filtered by usage kind
// and target class.
func (s *Store) FindUsages(ctx context.Context, projectID, name string, kind UsageKind, targetClass string) ([]*Usage, error) {
	query := `
		SELECT u.id, u.file_id, u.project_id, u.line, u.kind, u.target_name, u.target_class, u.context
		FROM usages u JOIN files f ON f.id = u.file_id
		WHERE u.project_id = ? AND f.deleted = 0 AND u.target_name = ?`
	args := []any{projectID, name}
	if kind != "" {
		query += ` AND u.kind = ?`
		args = append(args, kind)
	}
	if targetClass != "" {
		query += ` AND u.target_class = ?`
		args = append(args, targetClass)
	}
	query += ` ORDER BY u.file_id, u.line`

	var out []*Usage
	err := s.locked(func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var u Usage
			if err := rows.Scan(&u.ID, &u.FileID, &u.ProjectID, &u.Line, &u.Kind,
				&u.TargetName, &u.TargetClass, &u.Context); err != nil {
				return err
			}
			out = append(out, &u)
		}
		return rows.Err()
	})
	return out, err
}

// FullTextSearch runs an FTS5 match over indexed code content with an
// optional entity-kind filter. Results are BM25-ranked (best first).
func (s *Store) FullTextSearch(ctx context.Context, projectID, query, entityKind string, limit int) ([]*FullTextHit, error) {
	if limit <= 0 {
		limit = 20
	}

	sqlQuery := `
		SELECT cc.entity_kind, cc.entity_name, f.path,
		       snippet(code_content_fts, 1, '', '', ' … ', 12),
		       bm25(code_content_fts)
		FROM code_content_fts
		JOIN code_content cc ON cc.id = code_content_fts.rowid
		JOIN files f ON f.id = cc.file_id
		WHERE code_content_fts MATCH ? AND cc.project_id = ? AND f.deleted = 0`
	args := []any{ftsQuery(query), projectID}
	if entityKind != "" {
		sqlQuery += ` AND cc.entity_kind = ?`
		args = append(args, entityKind)
	}
	sqlQuery += ` ORDER BY bm25(code_content_fts) LIMIT ?`
	args = append(args, limit)

	var out []*FullTextHit
	err := s.locked(func() error {
		rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var h FullTextHit
			if err := rows.Scan(&h.EntityKind, &h.EntityName, &h.FilePath, &h.Snippet, &h.Score); err != nil {
				return err
			}
			out = append(out, &h)
		}
		return rows.Err()
	})
	return out, err
}

// likePattern converts a `*`-wildcard pattern to SQL LIKE syntax.
func likePattern(pattern string) string {
	if pattern == "" {
		return "%"
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(pattern)
	like := strings.ReplaceAll(escaped, "*", "%")
	if !strings.Contains(like, "%") {
		like = "%" + like + "%"
	}
	return like
}

// ftsQuery quotes each term so punctuation in user queries cannot break the
// FTS5 query syntax.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return `""`
	}
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(fields, " ")
}
