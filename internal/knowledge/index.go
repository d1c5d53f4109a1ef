package knowledge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/platform/qdrant"
)

// Knowledge base categories. Theory generated during a run is re-indexed
// under CategoryTheory so later modules can build on earlier ones.
const (
	CategoryMaterials   = "materials"
	CategoryWebResearch = "web_research"
	CategoryTheory      = "theory"
)

const (
	chunkSize    = 1200
	chunkOverlap = 200
	embedBatch   = 64
)

// Embedder is the slice of the model client the index needs.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Chunk is one retrievable piece of source material.
type Chunk struct {
	ID       string
	Text     string
	Category string
	Source   string
	Score    float64
}

// Index embeds text into the per-tenant vector namespace and searches it.
// Writes for the same tenant are serialized so concurrent module pipelines
// cannot interleave partial batches.
type Index struct {
	log      *logger.Logger
	embedder Embedder
	store    qdrant.VectorStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewIndex(log *logger.Logger, embedder Embedder, store qdrant.VectorStore) *Index {
	return &Index{
		log:      log.With("service", "KnowledgeIndex"),
		embedder: embedder,
		store:    store,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (ix *Index) tenantLock(namespace string) *sync.Mutex {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	l, ok := ix.locks[namespace]
	if !ok {
		l = &sync.Mutex{}
		ix.locks[namespace] = l
	}
	return l
}

// IndexText chunks, embeds and stores one document under the category.
// Source is a free-form origin marker (file name, URL, module title).
func (ix *Index) IndexText(ctx context.Context, tenantID uuid.UUID, category, source, text string) (int, error) {
	if !validCategory(category) {
		return 0, fmt.Errorf("unknown knowledge category %q", category)
	}
	chunks := SplitText(text, chunkSize, chunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}
	namespace := tenantID.String()

	lock := ix.tenantLock(namespace)
	lock.Lock()
	defer lock.Unlock()

	total := 0
	for start := 0; start < len(chunks); start += embedBatch {
		end := start + embedBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		vectors, err := ix.embedder.Embed(ctx, batch)
		if err != nil {
			return total, fmt.Errorf("embed batch: %w", err)
		}
		points := make([]qdrant.Vector, 0, len(batch))
		for i, chunkText := range batch {
			points = append(points, qdrant.Vector{
				ID:     chunkID(source, start+i),
				Values: vectors[i],
				Payload: map[string]any{
					"text":     chunkText,
					"category": category,
					"source":   source,
					"position": start + i,
				},
			})
		}
		if err := ix.store.Upsert(ctx, namespace, points); err != nil {
			return total, fmt.Errorf("upsert batch: %w", err)
		}
		total += len(points)
	}

	ix.log.Info("document indexed",
		"tenant_id", namespace, "category", category, "source", source, "chunks", total)
	return total, nil
}

// IndexMaterials stores a set of uploaded teacher materials.
func (ix *Index) IndexMaterials(ctx context.Context, tenantID uuid.UUID, materials map[string]string) (int, error) {
	total := 0
	for source, text := range materials {
		n, err := ix.IndexText(ctx, tenantID, CategoryMaterials, source, text)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Search returns the best matching chunks for the query. Category is
// optional; empty searches the whole tenant namespace.
func (ix *Index) Search(ctx context.Context, tenantID uuid.UUID, query, category string, topK int) ([]Chunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if category != "" && !validCategory(category) {
		return nil, fmt.Errorf("unknown knowledge category %q", category)
	}

	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	var filter map[string]any
	if category != "" {
		filter = map[string]any{"category": category}
	}
	matches, err := ix.store.Query(ctx, tenantID.String(), vectors[0], topK, filter)
	if err != nil {
		return nil, err
	}

	out := make([]Chunk, 0, len(matches))
	for _, m := range matches {
		text, _ := m.Payload["text"].(string)
		if text == "" {
			continue
		}
		cat, _ := m.Payload["category"].(string)
		src, _ := m.Payload["source"].(string)
		out = append(out, Chunk{ID: m.ID, Text: text, Category: cat, Source: src, Score: m.Score})
	}
	return out, nil
}

// Purge drops the whole tenant namespace.
func (ix *Index) Purge(ctx context.Context, tenantID uuid.UUID) error {
	return ix.store.DeleteNamespace(ctx, tenantID.String())
}

func validCategory(category string) bool {
	switch category {
	case CategoryMaterials, CategoryWebResearch, CategoryTheory:
		return true
	}
	return false
}

func chunkID(source string, position int) string {
	return fmt.Sprintf("%s#%d", source, position)
}

// SplitText cuts text into overlapping chunks, preferring to break at
// paragraph and sentence boundaries near the chunk edge.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = chunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunk := strings.TrimSpace(string(runes[start:]))
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}
		cut := breakPoint(runes, start, end)
		chunk := strings.TrimSpace(string(runes[start:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// breakPoint looks backwards from end for a paragraph break, then a
// sentence end, then a space. Falls back to a hard cut.
func breakPoint(runes []rune, start, end int) int {
	floor := start + (end-start)/2
	for i := end; i > floor; i-- {
		if i < len(runes) && runes[i] == '\n' && i > 0 && runes[i-1] == '\n' {
			return i
		}
	}
	for i := end; i > floor; i-- {
		if i < len(runes) && (runes[i-1] == '.' || runes[i-1] == '!' || runes[i-1] == '?') {
			return i
		}
	}
	for i := end; i > floor; i-- {
		if i < len(runes) && runes[i] == ' ' {
			return i
		}
	}
	return end
}
