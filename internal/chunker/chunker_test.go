package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/cst"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/embed"
	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/store"
)

const chunkedSource = `"""Top level module documentation, long enough to stand alone as a chunk."""


class Worker:
    """Processes queued jobs with retry support and failure accounting."""

    def run(self):
        """Drain the queue."""
        # fast path
        return self.drain()


def helper():
    # tiny
    return 1
`

func testEmbedder(t *testing.T) *embed.Resilient {
	t.Helper()
	breaker := cerr.NewCircuitBreaker("test", cerr.DefaultBreakerConfig())
	return embed.NewResilient(nil, 16, breaker, nil)
}

func parseChunked(t *testing.T, source string) *cst.Tree {
	t.Helper()
	tree, err := cst.Parse(context.Background(), []byte(source))
	require.NoError(t, err)
	return tree
}

func TestExtractItems_SourceTypesAndContext(t *testing.T) {
	items := extractItems(parseChunked(t, chunkedSource))

	bySource := map[store.SourceType][]item{}
	for _, it := range items {
		bySource[it.sourceType] = append(bySource[it.sourceType], it)
	}

	require.Len(t, bySource[store.SourceFileDocstring], 1)
	require.Len(t, bySource[store.SourceClassDocstring], 1)
	assert.Equal(t, "Worker", bySource[store.SourceClassDocstring][0].class)

	require.Len(t, bySource[store.SourceMethodDocstring], 1)
	assert.Equal(t, "run", bySource[store.SourceMethodDocstring][0].function)

	require.Len(t, bySource[store.SourceMethodComment], 1)
	assert.Equal(t, "fast path", bySource[store.SourceMethodComment][0].text)

	require.Len(t, bySource[store.SourceFunctionComment], 1)
	assert.Equal(t, "tiny", bySource[store.SourceFunctionComment][0].text)
}

func TestProcessFile_LongItemsChunkedIndividually(t *testing.T) {
	c := New(30, testEmbedder(t), nil, nil)
	tree := parseChunked(t, chunkedSource)

	chunks, err := c.ProcessFile(context.Background(), tree, 1, "proj", "", nil)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var fileDoc, classDoc *store.Chunk
	for _, ch := range chunks {
		switch ch.SourceType {
		case store.SourceFileDocstring:
			fileDoc = ch
		case store.SourceClassDocstring:
			classDoc = ch
		}
	}
	require.NotNil(t, fileDoc)
	assert.Equal(t, store.BindingFile, fileDoc.BindingLevel)
	assert.NotNil(t, fileDoc.Vector)
	assert.EqualValues(t, -1, fileDoc.VectorID, "index id is assigned later")

	require.NotNil(t, classDoc)
	assert.Equal(t, store.BindingClass, classDoc.BindingLevel)
}

func TestProcessFile_ShortItemsGrouped(t *testing.T) {
	// All prose is short; method-level groups promote upward.
	source := `class A:
    def m(self):
        # retry once quickly
        # then stop
        return 1

    def n(self):
        # fall back to defaults
        return 2
`
	c := New(30, testEmbedder(t), nil, nil)
	chunks, err := c.ProcessFile(context.Background(), parseChunked(t, source), 1, "proj", "", nil)
	require.NoError(t, err)

	// Each method group stays under 30 chars and merges into the class group,
	// which passes L_min combined and is emitted at class level.
	require.Len(t, chunks, 1)
	assert.Equal(t, store.BindingClass, chunks[0].BindingLevel)
	assert.Contains(t, chunks[0].Text, "retry once quickly")
	assert.Contains(t, chunks[0].Text, "fall back to defaults")
	assert.True(t, strings.Contains(chunks[0].Text, "\n\n"), "grouped items join with blank lines")
}

func TestProcessFile_WholeFileTooShortIsSkipped(t *testing.T) {
	source := "def f():\n    # hi\n    return 1\n"
	c := New(30, testEmbedder(t), nil, nil)
	chunks, err := c.ProcessFile(context.Background(), parseChunked(t, source), 1, "proj", "", nil)
	require.NoError(t, err)
	assert.Empty(t, chunks, "prose below L_min at file scope is skipped")
}

type fakeChunkerSvc struct{}

func (fakeChunkerSvc) ChunkText(_ context.Context, text string) ([]embed.Piece, error) {
	half := len(text) / 2
	return []embed.Piece{
		{Text: text[:half], Vector: []float32{1, 0}, Model: "svc-model", Score: 0.9},
		{Text: text[half:], Vector: []float32{0, 1}, Model: "svc-model", Score: 0.8},
	}, nil
}

func TestProcessFile_ExternalChunkerInlineEmbeddings(t *testing.T) {
	c := New(30, testEmbedder(t), fakeChunkerSvc{}, nil)
	tree := parseChunked(t, chunkedSource)

	chunks, err := c.ProcessFile(context.Background(), tree, 1, "proj", "ds1", nil)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var fileChunks []*store.Chunk
	for _, ch := range chunks {
		if ch.SourceType == store.SourceFileDocstring {
			fileChunks = append(fileChunks, ch)
		}
	}
	require.Len(t, fileChunks, 2, "external chunker split the docstring")
	assert.Equal(t, 0, fileChunks[0].Ordinal)
	assert.Equal(t, 1, fileChunks[1].Ordinal)
	assert.Equal(t, "svc-model", fileChunks[0].Model)
	assert.NotNil(t, fileChunks[0].Vector)
	assert.Equal(t, "ds1", fileChunks[0].DatasetID)
}
