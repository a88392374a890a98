package store

import "context"

// EntityIndex maps entity names of one file to their row ids, letting the
// chunker attribute chunks to owners without joins at query time.
type EntityIndex struct {
	Classes   map[string]int64 // class name -> id
	Functions map[string]int64 // function name -> id
	Methods   map[string]int64 // "Class.method" -> id
}

// FileEntityIndex loads the entity name→id maps for a file.
func (s *Store) FileEntityIndex(ctx context.Context, fileID int64) (*EntityIndex, error) {
	ix := &EntityIndex{
		Classes:   make(map[string]int64),
		Functions: make(map[string]int64),
		Methods:   make(map[string]int64),
	}
	err := s.locked(func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM classes WHERE file_id = ?`, fileID)
		if err != nil {
			return err
		}
		classNames := make(map[int64]string)
		for rows.Next() {
			var id int64
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				rows.Close()
				return err
			}
			ix.Classes[name] = id
			classNames[id] = name
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		rows, err = s.db.QueryContext(ctx, `SELECT id, name FROM functions WHERE file_id = ?`, fileID)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id int64
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				rows.Close()
				return err
			}
			ix.Functions[name] = id
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		rows, err = s.db.QueryContext(ctx, `SELECT id, class_id, name FROM methods WHERE file_id = ?`, fileID)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id, classID int64
			var name string
			if err := rows.Scan(&id, &classID, &name); err != nil {
				rows.Close()
				return err
			}
			if className, ok := classNames[classID]; ok {
				ix.Methods[className+"."+name] = id
			}
		}
		rows.Close()
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ix, nil
}
