// Package chunker extracts prose from parsed modules — docstrings and
// comments — and turns it into embeddable chunks with level-adaptive
// grouping.
package chunker

import (
	"context"
	"log/slog"
	"strings"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cst"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/embed"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/store"
)

// DefaultMinChunkLength is L_min: prose shorter than this is grouped before
// being sent to the embedder.
const DefaultMinChunkLength = 30

// Chunker turns a parsed module's prose into chunk rows.
type Chunker struct {
	minLen   int
	embedder *embed.Resilient
	external embed.Chunker // optional external chunking service
	logger   *slog.Logger
}

// New creates a chunker. external may be nil, in which case whole items are
// embedded as single chunks.
func New(minLen int, embedder *embed.Resilient, external embed.Chunker, logger *slog.Logger) *Chunker {
	if minLen <= 0 {
		minLen = DefaultMinChunkLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{minLen: minLen, embedder: embedder, external: external, logger: logger}
}

// item is one extracted prose unit with its context.
type item struct {
	text       string
	line       int
	nodeType   string
	sourceType store.SourceType
	level      int
	class      string
	function   string // function or method name (unqualified)
}

// ProcessFile extracts prose from the tree and returns chunk rows ready for
// persistence. Owners are resolved through the entity index when provided.
func (c *Chunker) ProcessFile(ctx context.Context, tree *cst.Tree, fileID int64, projectID, datasetID string, owners *store.EntityIndex) ([]*store.Chunk, error) {
	items := extractItems(tree)
	if len(items) == 0 {
		return nil, nil
	}

	var long []item
	var short []item
	for _, it := range items {
		if len(it.text) >= c.minLen {
			long = append(long, it)
		} else {
			short = append(short, it)
		}
	}

	var chunks []*store.Chunk

	// Long items go to the chunker/embedder individually.
	for _, it := range long {
		if ctx.Err() != nil {
			return chunks, ctx.Err()
		}
		cs, err := c.chunkItem(ctx, it, it.level, fileID, projectID, datasetID, owners)
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, cs...)
	}

	// Short items group method -> class -> file; a whole file whose prose is
	// still under L_min is skipped.
	grouped := c.groupShortItems(short)
	for _, g := range grouped {
		if ctx.Err() != nil {
			return chunks, ctx.Err()
		}
		cs, err := c.chunkItem(ctx, g.item, g.level, fileID, projectID, datasetID, owners)
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, cs...)
	}

	return chunks, nil
}

type groupedItem struct {
	item  item
	level int
}

// groupShortItems applies the level-adaptive promotion: (class, method)
// groups that stay under L_min merge into (class) groups, then into the
// (file) group, which is dropped when still too short.
func (c *Chunker) groupShortItems(short []item) []groupedItem {
	if len(short) == 0 {
		return nil
	}

	type key struct{ class, function string }
	methodGroups := make(map[key][]item)
	var order []key
	for _, it := range short {
		k := key{class: it.class, function: it.function}
		if _, seen := methodGroups[k]; !seen {
			order = append(order, k)
		}
		methodGroups[k] = append(methodGroups[k], it)
	}

	classGroups := make(map[string][]item)
	var classOrder []string
	var fileGroup []item
	var out []groupedItem

	appendClass := func(class string, items []item) {
		if _, seen := classGroups[class]; !seen {
			classOrder = append(classOrder, class)
		}
		classGroups[class] = append(classGroups[class], items...)
	}

	for _, k := range order {
		items := methodGroups[k]
		switch {
		case k.function != "" && groupLen(items) >= c.minLen:
			out = append(out, groupedItem{item: mergeItems(items), level: store.BindingFunction})
		case k.function != "":
			appendClass(k.class, items)
		case k.class != "":
			appendClass(k.class, items)
		default:
			fileGroup = append(fileGroup, items...)
		}
	}

	for _, class := range classOrder {
		items := classGroups[class]
		if class != "" && groupLen(items) >= c.minLen {
			out = append(out, groupedItem{item: mergeItems(items), level: store.BindingClass})
			continue
		}
		fileGroup = append(fileGroup, items...)
	}

	if len(fileGroup) > 0 {
		if groupLen(fileGroup) >= c.minLen {
			out = append(out, groupedItem{item: mergeItems(fileGroup), level: store.BindingFile})
		} else {
			c.logger.Debug("chunking_skipped_short_scope",
				slog.Int("items", len(fileGroup)), slog.Int("total_len", groupLen(fileGroup)))
		}
	}
	return out
}

// mergeItems concatenates a group with blank-line separators, keeping the
// first item's context.
func mergeItems(items []item) item {
	texts := make([]string, 0, len(items))
	for _, it := range items {
		texts = append(texts, it.text)
	}
	merged := items[0]
	merged.text = strings.Join(texts, "\n\n")
	return merged
}

func groupLen(items []item) int {
	total := 0
	for _, it := range items {
		total += len(it.text)
	}
	return total
}

// chunkItem sends one item (or merged group) to the external chunker when
// configured, otherwise embeds it whole.
func (c *Chunker) chunkItem(ctx context.Context, it item, level int, fileID int64, projectID, datasetID string, owners *store.EntityIndex) ([]*store.Chunk, error) {
	proto := store.Chunk{
		FileID:       fileID,
		ProjectID:    projectID,
		Line:         it.line,
		NodeType:     it.nodeType,
		SourceType:   it.sourceType,
		BindingLevel: level,
		DatasetID:    datasetID,
		VectorID:     -1,
	}
	if owners != nil {
		if it.class != "" {
			proto.ClassID = owners.Classes[it.class]
		}
		if it.function != "" && it.class != "" {
			proto.MethodID = owners.Methods[it.class+"."+it.function]
		} else if it.function != "" {
			proto.FunctionID = owners.Functions[it.function]
		}
	}

	if c.external != nil {
		pieces, err := c.external.ChunkText(ctx, it.text)
		if err == nil && len(pieces) > 0 {
			chunks := make([]*store.Chunk, 0, len(pieces))
			for i, piece := range pieces {
				chunk := proto
				chunk.Ordinal = i
				chunk.Text = piece.Text
				chunk.Vector = piece.Vector
				chunk.Model = piece.Model
				chunk.BM25Score = piece.Score
				chunks = append(chunks, &chunk)
			}
			return chunks, nil
		}
		if err != nil {
			c.logger.Warn("external_chunker_failed", slog.String("error", err.Error()))
		}
	}

	chunk := proto
	chunk.Text = it.text
	if c.embedder != nil {
		res, err := c.embedder.Embed(ctx, it.text)
		if err != nil {
			return nil, err
		}
		chunk.Vector = res.Vector
		chunk.Model = res.Model
	}
	return []*store.Chunk{&chunk}, nil
}
