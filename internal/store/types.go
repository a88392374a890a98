// Package store is the persistence layer: a single-file SQLite database
// holding projects, files, structural entities, prose chunks, quality issues
// and AST snapshots, plus the FTS5 full-text index over code content.
//
// All writes are serialized by a process-level mutex; multi-row mutations run
// in transactions so per-file analysis is atomic.
package store

import (
	"encoding/json"
	"time"
)

// Project is an analyzed source tree identified by a stable UUID.
type Project struct {
	ID        string
	RootPath  string
	Name      string
	CreatedAt time.Time
}

// File is a tracked source file owned by a project.
type File struct {
	ID           int64
	ProjectID    string
	Path         string // project-relative
	AbsPath      string
	LineCount    int
	ModTime      time.Time
	HasDocstring bool
	Deleted      bool
	DatasetID    string
	NeedsChunk   bool
}

// Class is a class definition row.
type Class struct {
	ID        int64
	FileID    int64
	ProjectID string
	Name      string
	Line      int
	Docstring string
	Bases     []string
}

// Function is a top-level function row.
type Function struct {
	ID        int64
	FileID    int64
	ProjectID string
	Name      string
	Line      int
	Args      []string
	Docstring string
}

// Method is a class method row.
type Method struct {
	ID                   int64
	ClassID              int64
	FileID               int64
	ProjectID            string
	Name                 string
	Line                 int
	Args                 []string
	Docstring            string
	IsAbstract           bool
	BodyIsNoOp           bool
	RaisesNotImplemented bool
}

// ImportKind distinguishes `import x` from `from m import x`.
type ImportKind string

const (
	ImportDirect     ImportKind = "direct"
	ImportFromModule ImportKind = "from-module"
)

// Import is an import statement row.
type Import struct {
	ID        int64
	FileID    int64
	ProjectID string
	Name      string
	Module    string
	Kind      ImportKind
	Line      int
}

// UsageKind classifies a usage site.
type UsageKind string

const (
	UsageMethodCall      UsageKind = "method-call"
	UsageAttributeAccess UsageKind = "attribute-access"
	UsageFunctionCall    UsageKind = "function-call"
)

// Usage is a resolved call/attribute usage row.
type Usage struct {
	ID          int64
	FileID      int64
	ProjectID   string
	Line        int
	Kind        UsageKind
	TargetName  string
	TargetClass string
	Context     string
}

// CodeContent is a verbatim source segment feeding the full-text index.
type CodeContent struct {
	ID         int64
	FileID     int64
	ProjectID  string
	EntityKind string // class, method, function
	EntityName string
	EntityID   int64
	Content    string
	Docstring  string
}

// Issue is a quality issue recorded during analysis.
type Issue struct {
	ID         int64
	FileID     int64
	ProjectID  string
	ClassID    int64
	MethodID   int64
	FunctionID int64
	Kind       string
	Message    string
	Line       int
	Metadata   map[string]string
}

// Known issue kinds.
const (
	IssueSyntaxError          = "syntax_error"
	IssueFileTooLong          = "file_too_long"
	IssueMissingFileDocstring = "missing_file_docstring"
	IssueMissingDocstring     = "missing_docstring"
	IssueNoOpMethod           = "noop_method"
	IssueNotImplemented       = "not_implemented_not_abstract"
	IssueInvalidImport        = "invalid_import"
)

// SourceType classifies where a chunk's prose came from.
type SourceType string

const (
	SourceFileDocstring     SourceType = "file_docstring"
	SourceClassDocstring    SourceType = "class_docstring"
	SourceMethodDocstring   SourceType = "method_docstring"
	SourceFunctionDocstring SourceType = "function_docstring"
	SourceComment           SourceType = "comment"
	SourceMethodComment     SourceType = "method_comment"
	SourceClassComment      SourceType = "class_comment"
	SourceFunctionComment   SourceType = "function_comment"
)

// Binding levels: the granularity a chunk is attributed at.
const (
	BindingFile     = 1
	BindingClass    = 2
	BindingFunction = 3
	BindingNode     = 4
	BindingLine     = 5
)

// Chunk is a unit of prose with provenance and an optional embedding.
type Chunk struct {
	ID           int64
	UUID         string
	FileID       int64
	ProjectID    string
	ClassID      int64
	FunctionID   int64
	MethodID     int64
	Line         int
	NodeType     string
	SourceType   SourceType
	Ordinal      int
	Text         string
	BindingLevel int
	Model        string
	Vector       []float32
	VectorID     int64 // -1 when unassigned
	BM25Score    float64
	DatasetID    string
}

// Scope selects rows by project and optional dataset. The zero value is the
// global scope.
type Scope struct {
	ProjectID string
	DatasetID string
}

// encodeVector serializes an embedding vector for storage.
func encodeVector(v []float32) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeVector deserializes a stored embedding vector.
func decodeVector(s string) ([]float32, error) {
	if s == "" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// encodeStrings serializes a string list column (argument names, bases).
func encodeStrings(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(v)
	return string(data)
}

// decodeStrings deserializes a string list column.
func decodeStrings(s string) []string {
	if s == "" {
		return nil
	}
	var v []string
	_ = json.Unmarshal([]byte(s), &v)
	return v
}
