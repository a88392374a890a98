package cstpatch

import (
	"context"
	"fmt"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cst"
	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
)

// blockID formats the coarse line-range identifier:
//
//	{kind}:{qualname}:{start_line}-{end_line}
//
// If code moves the id goes stale; callers refresh via ListBlocks.
func blockID(kind, qualname string, startLine, endLine int) string {
	return fmt.Sprintf("%s:%s:%d-%d", kind, qualname, startLine, endLine)
}

// ListBlocks lists replaceable logical blocks: top-level classes and
// functions plus class methods. Decorated definitions span their decorators.
func ListBlocks(ctx context.Context, source []byte) ([]BlockInfo, error) {
	tree, err := cst.Parse(ctx, source)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeCSTListError, err)
	}
	return listBlocksFromTree(tree), nil
}

func listBlocksFromTree(tree *cst.Tree) []BlockInfo {
	var blocks []BlockInfo

	for _, stmt := range tree.TopLevel() {
		def := tree.Unwrap(stmt)
		sl, _, el, _ := stmt.Span()

		switch def.Kind {
		case cst.KindFunction:
			blocks = append(blocks, BlockInfo{
				BlockID:   blockID("function", def.Name, sl, el),
				Kind:      "function",
				QualName:  def.Name,
				StartLine: sl,
				EndLine:   el,
			})
		case cst.KindClass:
			blocks = append(blocks, BlockInfo{
				BlockID:   blockID("class", def.Name, sl, el),
				Kind:      "class",
				QualName:  def.Name,
				StartLine: sl,
				EndLine:   el,
			})
			for _, cstmt := range tree.BodyOf(def) {
				mdef := tree.Unwrap(cstmt)
				if mdef.Kind != cst.KindMethod {
					continue
				}
				msl, _, mel, _ := cstmt.Span()
				qual := def.Name + "." + mdef.Name
				blocks = append(blocks, BlockInfo{
					BlockID:   blockID("method", qual, msl, mel),
					Kind:      "method",
					QualName:  qual,
					StartLine: msl,
					EndLine:   mel,
				})
			}
		}
	}
	return blocks
}

// blockIndex provides the lookups the patch ops need.
type blockIndex struct {
	byID       map[string]BlockInfo
	byKindName map[[2]string]BlockInfo
}

func indexBlocks(blocks []BlockInfo) *blockIndex {
	ix := &blockIndex{
		byID:       make(map[string]BlockInfo, len(blocks)),
		byKindName: make(map[[2]string]BlockInfo, len(blocks)),
	}
	for _, b := range blocks {
		ix.byID[b.BlockID] = b
		ix.byKindName[[2]string{b.Kind, b.QualName}] = b
	}
	return ix
}
