package knowledge

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/platform/qdrant"
)

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{float32(len(inputs[i])), 1, 2}
	}
	return out, nil
}

type fakeStore struct {
	upserts map[string][]qdrant.Vector
	queries []map[string]any
	matches []qdrant.Match
}

func newFakeStore() *fakeStore {
	return &fakeStore{upserts: make(map[string][]qdrant.Vector)}
}

func (f *fakeStore) Upsert(ctx context.Context, namespace string, vectors []qdrant.Vector) error {
	f.upserts[namespace] = append(f.upserts[namespace], vectors...)
	return nil
}

func (f *fakeStore) Query(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]qdrant.Match, error) {
	f.queries = append(f.queries, filter)
	return f.matches, nil
}

func (f *fakeStore) DeleteNamespace(ctx context.Context, namespace string) error {
	delete(f.upserts, namespace)
	return nil
}

func TestIndexTextChunksAndStoresPayload(t *testing.T) {
	store := newFakeStore()
	ix := NewIndex(logger.NewNop(), &fakeEmbedder{}, store)
	tenant := uuid.New()

	text := strings.Repeat("Relational databases store data in tables. ", 100)
	n, err := ix.IndexText(context.Background(), tenant, CategoryMaterials, "databases.md", text)
	if err != nil {
		t.Fatalf("IndexText: %v", err)
	}
	if n < 2 {
		t.Fatalf("expected multiple chunks, got=%d", n)
	}

	stored := store.upserts[tenant.String()]
	if len(stored) != n {
		t.Fatalf("stored: want=%d got=%d", n, len(stored))
	}
	first := stored[0]
	if first.Payload["category"] != CategoryMaterials {
		t.Fatalf("category: got=%v", first.Payload["category"])
	}
	if first.Payload["source"] != "databases.md" {
		t.Fatalf("source: got=%v", first.Payload["source"])
	}
	if text, _ := first.Payload["text"].(string); text == "" {
		t.Fatal("chunk text not stored in payload")
	}
}

func TestIndexTextRejectsUnknownCategory(t *testing.T) {
	ix := NewIndex(logger.NewNop(), &fakeEmbedder{}, newFakeStore())
	if _, err := ix.IndexText(context.Background(), uuid.New(), "gossip", "src", "text"); err == nil {
		t.Fatal("expected unknown category to be rejected")
	}
}

func TestIndexMaterialsIndexesEverySource(t *testing.T) {
	store := newFakeStore()
	ix := NewIndex(logger.NewNop(), &fakeEmbedder{}, store)
	tenant := uuid.New()

	n, err := ix.IndexMaterials(context.Background(), tenant, map[string]string{
		"syllabus.md": "Week one covers the relational model.",
		"notes.md":    "Indexes speed up lookups.",
	})
	if err != nil {
		t.Fatalf("IndexMaterials: %v", err)
	}
	if n != 2 {
		t.Fatalf("chunks: want=2 got=%d", n)
	}
	sources := map[string]bool{}
	for _, v := range store.upserts[tenant.String()] {
		sources[v.Payload["source"].(string)] = true
	}
	if !sources["syllabus.md"] || !sources["notes.md"] {
		t.Fatalf("sources missing: %v", sources)
	}
}

func TestSearchAppliesCategoryFilterAndDropsEmptyPayloads(t *testing.T) {
	store := newFakeStore()
	store.matches = []qdrant.Match{
		{ID: "a#0", Score: 0.9, Payload: map[string]any{"text": "theory text", "category": CategoryTheory, "source": "m1"}},
		{ID: "b#0", Score: 0.5, Payload: map[string]any{"category": CategoryTheory}},
	}
	ix := NewIndex(logger.NewNop(), &fakeEmbedder{}, store)

	chunks, err := ix.Search(context.Background(), uuid.New(), "normal forms", CategoryTheory, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks: want=1 got=%d", len(chunks))
	}
	if chunks[0].Text != "theory text" || chunks[0].Category != CategoryTheory {
		t.Fatalf("chunk: %+v", chunks[0])
	}
	if len(store.queries) != 1 || store.queries[0]["category"] != CategoryTheory {
		t.Fatalf("filter not applied: %v", store.queries)
	}
}

func TestSearchWithoutCategorySendsNoFilter(t *testing.T) {
	store := newFakeStore()
	ix := NewIndex(logger.NewNop(), &fakeEmbedder{}, store)
	if _, err := ix.Search(context.Background(), uuid.New(), "anything", "", 5); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if store.queries[0] != nil {
		t.Fatalf("filter: want=nil got=%v", store.queries[0])
	}
}

func TestSplitTextOverlapAndBounds(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60)
	chunks := SplitText(text, 400, 100)
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got=%d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 400 {
			t.Fatalf("chunk %d exceeds size: %d", i, len([]rune(c)))
		}
	}
	// Overlap means the tail of one chunk reappears at the head of the next.
	tail := chunks[0][len(chunks[0])-20:]
	if !strings.Contains(chunks[1], strings.TrimSpace(tail)) {
		t.Fatalf("no overlap between chunks: tail=%q next=%q", tail, chunks[1][:60])
	}
}

func TestSplitTextShortInputSingleChunk(t *testing.T) {
	chunks := SplitText("short note", 1200, 200)
	if len(chunks) != 1 || chunks[0] != "short note" {
		t.Fatalf("chunks: %v", chunks)
	}
}

func TestSplitTextEmptyInput(t *testing.T) {
	if chunks := SplitText("   ", 1200, 200); chunks != nil {
		t.Fatalf("chunks: want=nil got=%v", chunks)
	}
}
