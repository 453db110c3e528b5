package semindex

import (
	"context"
	"fmt"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"nugget/internal/catalog"
	"nugget/internal/shared/logging"
)

// Match is one semantic lookup hit against the registry.
type Match struct {
	Key   string
	Kind  catalog.Kind
	Score float32
}

// Index answers fuzzy lookups over the registry's Korean semantics.
// It is built once at startup and is read-only afterwards.
type Index struct {
	collection *chromem.Collection
	counts     map[catalog.Kind]int
	logger     logging.Logger
}

// New indexes every registry entry that declares kr_semantics. The
// document for an entry is its kr_semantics joined by spaces; display
// names and aliases stay out so explicit matching and semantic matching
// do not overlap.
func New(reg *catalog.Registry, logger logging.Logger) (*Index, error) {
	logger = logging.OrNop(logger)

	type doc struct {
		key  string
		kind catalog.Kind
		text string
	}
	var docs []doc
	for _, m := range reg.MetricDefs() {
		if len(m.KRSemantics) == 0 {
			continue
		}
		docs = append(docs, doc{m.Key, catalog.KindMetric, strings.Join(m.KRSemantics, " ")})
	}
	for _, d := range reg.DimensionDefs() {
		if len(d.KRSemantics) == 0 {
			continue
		}
		docs = append(docs, doc{d.Key, catalog.KindDimension, strings.Join(d.KRSemantics, " ")})
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("registry has no semantic entries")
	}

	corpus := make([]string, len(docs))
	for i, d := range docs {
		corpus[i] = d.text
	}
	embedder := NewBagOfWordsEmbedder(corpus)

	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}

	db := chromem.NewDB()
	collection, err := db.GetOrCreateCollection("registry-semantics", nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	counts := map[catalog.Kind]int{}
	ctx := context.Background()
	for _, d := range docs {
		err := collection.AddDocument(ctx, chromem.Document{
			ID:      string(d.kind) + ":" + d.key,
			Content: d.text,
			Metadata: map[string]string{
				"key":  d.key,
				"kind": string(d.kind),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", d.key, err)
		}
		counts[d.kind]++
	}

	logger.Debug("Semantic index built: %d metrics, %d dimensions, %d dims vocab",
		counts[catalog.KindMetric], counts[catalog.KindDimension], embedder.Dimensions())

	return &Index{collection: collection, counts: counts, logger: logger}, nil
}

// Lookup returns the closest registry entries of the given kind by cosine
// similarity, best first. Threshold policy belongs to the caller.
func (ix *Index) Lookup(ctx context.Context, text string, kind catalog.Kind, topK int) ([]Match, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if len(Tokenize(text)) == 0 {
		return nil, nil
	}

	max := ix.counts[kind]
	if max == 0 {
		return nil, nil
	}
	if topK <= 0 || topK > max {
		topK = max
	}

	results, err := ix.collection.Query(ctx, text, topK, map[string]string{"kind": string(kind)}, nil)
	if err != nil {
		return nil, fmt.Errorf("query semantic index: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			Key:   r.Metadata["key"],
			Kind:  kind,
			Score: r.Similarity,
		})
	}
	return matches, nil
}

// Best returns the single closest entry of the given kind, or ok=false
// when the index holds nothing of that kind.
func (ix *Index) Best(ctx context.Context, text string, kind catalog.Kind) (Match, bool, error) {
	matches, err := ix.Lookup(ctx, text, kind, 1)
	if err != nil || len(matches) == 0 {
		return Match{}, false, err
	}
	return matches[0], true, nil
}
