package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
	"unicode"
)

// StaticProvider generates deterministic hash-based embeddings without any
// external dependency. The same text always produces the same unit vector,
// which keeps the vector index dense during embedder outages at the cost of
// semantic quality.
type StaticProvider struct {
	dims int
}

// Verify interface implementation at compile time.
var _ Provider = (*StaticProvider)(nil)

// programmingStopWords are common keywords filtered out before hashing.
var programmingStopWords = map[string]bool{
	"func": true, "function": true, "def": true, "class": true,
	"return": true, "import": true, "const": true, "var": true,
	"let": true, "int": true, "string": true, "bool": true,
	"void": true, "true": true, "false": true, "nil": true,
	"null": true, "this": true, "self": true, "new": true,
}

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// NewStaticProvider creates a hash-based provider of the given dimension.
func NewStaticProvider(dims int) *StaticProvider {
	return &StaticProvider{dims: dims}
}

// Embed generates the deterministic embedding for a single text.
func (p *StaticProvider) Embed(_ context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, p.dims), nil
	}

	vector := make([]float32, p.dims)

	for _, token := range filterStopWords(tokenize(trimmed)) {
		vector[hashToIndex(token, p.dims)] += tokenWeight
	}
	for _, ngram := range extractNgrams(normalizeForNgrams(trimmed), ngramSize) {
		vector[hashToIndex(ngram, p.dims)] += ngramWeight
	}

	return NormalizeVector(vector), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (p *StaticProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (p *StaticProvider) Dimensions() int {
	return p.dims
}

// ModelName returns the fallback model marker.
func (p *StaticProvider) ModelName() string {
	return FallbackModelName
}

// tokenize splits text into lowercase code-aware tokens.
func tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, t := range splitCodeToken(word) {
			if lower := strings.ToLower(t); lower != "" {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

// splitCodeToken splits camelCase and snake_case identifiers.
func splitCodeToken(token string) []string {
	if strings.Contains(token, "_") {
		return strings.Split(token, "_")
	}

	var result []string
	var current []rune
	runes := []rune(token)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && !unicode.IsUpper(runes[i-1]) {
			result = append(result, string(current))
			current = current[:0]
		}
		current = append(current, r)
	}
	if len(current) > 0 {
		result = append(result, string(current))
	}
	return result
}

func filterStopWords(tokens []string) []string {
	out := tokens[:0]
	for _, t := range tokens {
		if !programmingStopWords[t] {
			out = append(out, t)
		}
	}
	return out
}

// normalizeForNgrams lowercases and strips non-alphanumerics.
func normalizeForNgrams(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractNgrams(text string, n int) []string {
	runes := []rune(text)
	if len(runes) < n {
		return nil
	}
	out := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		out = append(out, string(runes[i:i+n]))
	}
	return out
}

func hashToIndex(s string, dims int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(dims))
}
