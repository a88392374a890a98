// Package scanner discovers Python source files under a project root,
// honoring .gitignore and skipping well-known junk directories.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// skipDirs are directories never worth descending into.
var skipDirs = map[string]struct{}{
	".git":            {},
	".hg":             {},
	".svn":            {},
	"__pycache__":     {},
	".venv":           {},
	"venv":            {},
	".tox":            {},
	".mypy_cache":     {},
	".pytest_cache":   {},
	"node_modules":    {},
	".idea":           {},
	".vscode":         {},
	".ruff_cache":     {},
	".eggs":           {},
	"build":           {},
	"dist":            {},
	".code_mapper_backups": {},
}

// SourceFile is one discovered file.
type SourceFile struct {
	AbsPath string
	RelPath string
}

// Scan lists *.py files under root in deterministic order.
func Scan(root string) ([]SourceFile, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var ignorer *gitignore.GitIgnore
	if matcher, err := gitignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		ignorer = matcher
	}

	var files []SourceFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			name := d.Name()
			if _, skip := skipDirs[name]; skip {
				return filepath.SkipDir
			}
			if strings.HasPrefix(name, ".") && name != "." {
				return filepath.SkipDir
			}
			if ignorer != nil && ignorer.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !IsPythonFile(path) {
			return nil
		}
		if ignorer != nil && ignorer.MatchesPath(rel) {
			return nil
		}
		files = append(files, SourceFile{AbsPath: path, RelPath: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// IsPythonFile reports whether a path names a Python source file.
func IsPythonFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".py")
}

// Exists reports whether a path exists on disk.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
