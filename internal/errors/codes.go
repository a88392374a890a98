// Package errors provides structured error handling for the code-analysis
// service.
//
// Every operation exposed by the facade either succeeds or returns a
// *CodeError carrying one of the stable wire codes below. The codes are part
// of the external contract and must not be renamed.
package errors

// Stable wire-level error codes.
const (
	// CodeInvalidFile indicates the target is not a Python source file.
	CodeInvalidFile = "INVALID_FILE"
	// CodeFileNotFound indicates the target path is absent.
	CodeFileNotFound = "FILE_NOT_FOUND"
	// CodeProjectNotFound indicates the project id cannot be resolved.
	CodeProjectNotFound = "PROJECT_NOT_FOUND"
	// CodeInvalidConfig indicates required configuration is missing or malformed.
	CodeInvalidConfig = "INVALID_CONFIG"

	// CodeCSTListError indicates a parse or traversal failure while listing blocks.
	CodeCSTListError = "CST_LIST_ERROR"
	// CodeCSTQueryError indicates a parse or traversal failure while querying.
	CodeCSTQueryError = "CST_QUERY_ERROR"
	// CodeCSTQueryParseError indicates a syntactically invalid selector.
	CodeCSTQueryParseError = "CST_QUERY_PARSE_ERROR"
	// CodeCSTQueryNoMatch indicates a replace-variant query matched zero nodes.
	CodeCSTQueryNoMatch = "CST_QUERY_NO_MATCH"
	// CodeCSTQueryMatchIndex indicates match_index is out of range.
	CodeCSTQueryMatchIndex = "CST_QUERY_MATCH_INDEX"
	// CodeCSTModulePatchError indicates a patch could not be applied.
	CodeCSTModulePatchError = "CST_MODULE_PATCH_ERROR"

	// CodeRebuildFaissError indicates a vector index rebuild failure.
	CodeRebuildFaissError = "REBUILD_FAISS_ERROR"
	// CodeRevectorizeError indicates a revectorization failure.
	CodeRevectorizeError = "REVECTORIZE_ERROR"
)
