package cstpatch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	udiff "github.com/aymanbagabas/go-udiff"
	"github.com/natefinch/atomic"

	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
)

// BackupDirName is the hidden per-directory backup area for edited files.
const BackupDirName = ".code_mapper_backups"

// Op is a single patch operation of any kind. Exactly one of Replace,
// Insert, Create must be set.
type Op struct {
	Replace *ReplaceOp `json:"replace,omitempty"`
	Insert  *InsertOp  `json:"insert,omitempty"`
	Create  *CreateOp  `json:"create,omitempty"`
}

// Compose applies a mixed op list to source: replaces first, then inserts,
// then creates. Span-based selectors always address the source as it stood
// when the group started; node ids must be refreshed after a successful
// compose.
func Compose(ctx context.Context, source []byte, ops []Op) ([]byte, Stats, error) {
	var replaces []ReplaceOp
	var inserts []InsertOp
	var creates []CreateOp
	for i, op := range ops {
		switch {
		case op.Replace != nil:
			replaces = append(replaces, *op.Replace)
		case op.Insert != nil:
			inserts = append(inserts, *op.Insert)
		case op.Create != nil:
			creates = append(creates, *op.Create)
		default:
			return nil, Stats{}, cerr.Newf(cerr.CodeCSTModulePatchError, "op %d has no operation body", i)
		}
	}

	var total Stats
	current := source

	if len(replaces) > 0 {
		next, stats, err := ApplyReplaceOps(ctx, current, replaces)
		if err != nil {
			return nil, total, err
		}
		total.merge(stats)
		current = next
	}
	if len(inserts) > 0 {
		next, stats, err := ApplyInsertOps(ctx, current, inserts)
		if err != nil {
			return nil, total, err
		}
		total.merge(stats)
		current = next
	}
	if len(creates) > 0 {
		next, stats, err := ApplyCreateOps(ctx, current, creates)
		if err != nil {
			return nil, total, err
		}
		total.merge(stats)
		current = next
	}

	return current, total, nil
}

// WriteWithBackup writes newSource to path with an atomic replace. When
// createBackup is set and the file exists, the previous content is copied to
// .code_mapper_backups/<name>.backup next to the file first. Returns the
// backup path, if one was made.
func WriteWithBackup(path string, newSource []byte, createBackup bool) (string, error) {
	backupPath := ""
	if createBackup {
		if prev, err := os.ReadFile(path); err == nil {
			dir := filepath.Join(filepath.Dir(path), BackupDirName)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("create backup directory: %w", err)
			}
			backupPath = filepath.Join(dir, filepath.Base(path)+".backup")
			if err := os.WriteFile(backupPath, prev, 0o644); err != nil {
				return "", fmt.Errorf("write backup: %w", err)
			}
		}
	}

	if err := atomic.WriteFile(path, bytes.NewReader(newSource)); err != nil {
		return backupPath, fmt.Errorf("write file: %w", err)
	}
	return backupPath, nil
}

// UnifiedDiff renders a unified diff between the old and new source.
func UnifiedDiff(path string, oldSource, newSource []byte) string {
	return udiff.Unified(path+" (before)", path+" (after)", string(oldSource), string(newSource))
}
