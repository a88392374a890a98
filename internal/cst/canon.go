package cst

import "strings"

// canonicalTypes maps tree-sitter node types to the canonical names exposed
// on the wire. The canonical names are part of the node-id contract.
var canonicalTypes = map[string]string{
	"module":                  "Module",
	"class_definition":        "ClassDef",
	"function_definition":     "FunctionDef",
	"decorated_definition":    "DecoratedDef",
	"import_statement":        "Import",
	"import_from_statement":   "ImportFrom",
	"future_import_statement": "ImportFrom",
	"return_statement":        "Return",
	"pass_statement":          "Pass",
	"raise_statement":         "Raise",
	"assert_statement":        "Assert",
	"delete_statement":        "Delete",
	"global_statement":        "Global",
	"nonlocal_statement":      "Nonlocal",
	"break_statement":         "Break",
	"continue_statement":      "Continue",
	"if_statement":            "If",
	"for_statement":           "For",
	"while_statement":         "While",
	"try_statement":           "Try",
	"with_statement":          "With",
	"match_statement":         "Match",
	"assignment":              "Assign",
	"augmented_assignment":    "AugAssign",
	"call":                    "Call",
	"attribute":               "Attribute",
	"identifier":              "Name",
	"comment":                 "Comment",
	"string":                  "SimpleString",
	"block":                   "IndentedBlock",
	"lambda":                  "Lambda",
	"await":                   "Await",
	"yield":                   "Yield",
}

// smallStmtTypes are tree-sitter types classified as atomic statements.
var smallStmtTypes = map[string]struct{}{
	"expression_statement":    {},
	"return_statement":        {},
	"pass_statement":          {},
	"raise_statement":         {},
	"assert_statement":        {},
	"delete_statement":        {},
	"global_statement":        {},
	"nonlocal_statement":      {},
	"break_statement":         {},
	"continue_statement":      {},
	"import_statement":        {},
	"import_from_statement":   {},
	"future_import_statement": {},
	"exec_statement":          {},
	"print_statement":         {},
}

// compoundStmtTypes are tree-sitter types classified as compound statements.
var compoundStmtTypes = map[string]struct{}{
	"if_statement":         {},
	"for_statement":        {},
	"while_statement":      {},
	"try_statement":        {},
	"with_statement":       {},
	"match_statement":      {},
	"decorated_definition": {},
}

// importTypes are tree-sitter types classified as imports.
var importTypes = map[string]struct{}{
	"import_statement":        {},
	"import_from_statement":   {},
	"future_import_statement": {},
}

// canonicalType returns the wire-level node type name for a tree-sitter type.
// Unknown types are converted from snake_case to CamelCase.
func canonicalType(tsType string) string {
	if c, ok := canonicalTypes[tsType]; ok {
		return c
	}
	parts := strings.Split(tsType, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// IsImportType reports whether a tree-sitter type is an import statement.
func IsImportType(tsType string) bool {
	_, ok := importTypes[tsType]
	return ok
}

// IsStatementType reports whether a tree-sitter type is a statement (simple
// or compound, including defs).
func IsStatementType(tsType string) bool {
	if _, ok := smallStmtTypes[tsType]; ok {
		return true
	}
	if _, ok := compoundStmtTypes[tsType]; ok {
		return true
	}
	return tsType == "class_definition" || tsType == "function_definition"
}
