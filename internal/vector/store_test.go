package vector

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/orbitblue/nitamono/internal/embedding"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(embedding.NewStub(32))
}

func TestStore_BuildAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	chunks := []string{
		"这是一款黑色的运动鞋 [SKU:SKU001]",
		"这是一款红色的连衣裙 [SKU:SKU002]",
		"这是一款蓝色的牛仔裤 [SKU:SKU003]",
	}
	if err := s.Build(ctx, chunks); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if !s.Loaded() {
		t.Fatal("store should be loaded after Build")
	}

	results, err := s.Search(ctx, "这是一款黑色的运动鞋 [SKU:SKU001]", 2)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// The stub embeds identical text to the identical vector.
	if results[0].Chunk != chunks[0] {
		t.Errorf("first result = %q", results[0].Chunk)
	}
	if results[0].Distance > 1e-6 {
		t.Errorf("identical text should have ~0 distance, got %f", results[0].Distance)
	}
	if results[0].Distance > results[1].Distance {
		t.Error("results not ordered by ascending distance")
	}
}

func TestStore_BuildEmptyIsNoOp(t *testing.T) {
	s := newTestStore(t)
	if err := s.Build(context.Background(), nil); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if s.Loaded() {
		t.Error("store should stay unloaded after empty build")
	}

	// A prior index survives an empty rebuild.
	if err := s.Build(context.Background(), []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Build(context.Background(), []string{}); err != nil {
		t.Fatal(err)
	}
	if !s.Loaded() {
		t.Error("existing index should be unchanged by empty build")
	}
}

func TestStore_SearchUnloaded(t *testing.T) {
	s := newTestStore(t)
	results, err := s.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestStore_SearchBlankQuery(t *testing.T) {
	s := newTestStore(t)
	if err := s.Build(context.Background(), []string{"some chunk", "another chunk"}); err != nil {
		t.Fatal(err)
	}
	for _, query := range []string{"", "   ", " \t\n "} {
		results, err := s.Search(context.Background(), query, 5)
		if err != nil {
			t.Fatalf("Search(%q) error: %v", query, err)
		}
		if len(results) != 0 {
			t.Errorf("blank query %q should yield no results, got %d", query, len(results))
		}
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	chunks := []string{"黑色运动鞋 [SKU:A]", "红色连衣裙 [SKU:B]"}

	s := newTestStore(t)
	if err := s.Build(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(dir); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	for _, name := range []string{IndexFileName, ChunksFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
	}

	fresh := newTestStore(t)
	ok, err := fresh.Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !ok {
		t.Fatal("Load returned false")
	}
	if !fresh.Loaded() {
		t.Fatal("store should be loaded")
	}

	want, err := s.Search(ctx, "黑色运动鞋 [SKU:A]", 2)
	if err != nil {
		t.Fatal(err)
	}
	got, err := fresh.Search(ctx, "黑色运动鞋 [SKU:A]", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) || got[0].Chunk != want[0].Chunk || got[0].Distance != want[0].Distance {
		t.Errorf("search after reload differs: got %+v, want %+v", got, want)
	}
}

func TestStore_SaveNilIndex(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(t.TempDir()); err != nil {
		t.Errorf("saving an empty store should be a no-op, got %v", err)
	}
}

func TestStore_LoadMissingFiles(t *testing.T) {
	s := newTestStore(t)
	ok, err := s.Load(t.TempDir())
	if err != nil {
		t.Fatalf("missing files should not error: %v", err)
	}
	if ok {
		t.Error("Load should return false for missing files")
	}
}

func TestStore_LoadCorruptIndex(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, IndexFileName), []byte("corrupt"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ChunksFileName), []byte(`["a"]`), 0644); err != nil {
		t.Fatal(err)
	}
	s := newTestStore(t)
	ok, err := s.Load(dir)
	if err == nil {
		t.Error("expected error for corrupt index file")
	}
	if ok {
		t.Error("Load should return false for corrupt index file")
	}
}

func TestStore_LoadToleratesCountMismatch(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := newTestStore(t)
	if err := s.Build(ctx, []string{"chunk one", "chunk two"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(dir); err != nil {
		t.Fatal(err)
	}

	// Rewrite the chunks file with an extra entry.
	data, _ := json.Marshal([]string{"chunk one", "chunk two", "orphan chunk"})
	if err := os.WriteFile(filepath.Join(dir, ChunksFileName), data, 0644); err != nil {
		t.Fatal(err)
	}

	fresh := newTestStore(t)
	ok, err := fresh.Load(dir)
	if err != nil {
		t.Fatalf("count mismatch should be tolerated: %v", err)
	}
	if !ok {
		t.Fatal("Load should succeed despite count mismatch")
	}
	// Rows beyond the vector count are never returned; rows within it are.
	results, err := fresh.Search(ctx, "chunk one", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results (vectors bound the search), got %d", len(results))
	}
}

func TestStore_Stats(t *testing.T) {
	s := newTestStore(t)
	st := s.Stats()
	if st.Loaded || st.Vectors != 0 || st.Chunks != 0 || st.Dimensions != 0 {
		t.Errorf("empty store stats: %+v", st)
	}

	if err := s.Build(context.Background(), []string{"a", "b", "c"}); err != nil {
		t.Fatal(err)
	}
	st = s.Stats()
	if !st.Loaded || st.Vectors != 3 || st.Chunks != 3 || st.Dimensions != 32 {
		t.Errorf("built store stats: %+v", st)
	}
}

func TestStore_Swap(t *testing.T) {
	ctx := context.Background()
	serving := newTestStore(t)
	fresh := newTestStore(t)
	if err := fresh.Build(ctx, []string{"new chunk [SKU:N1]"}); err != nil {
		t.Fatal(err)
	}

	serving.Swap(fresh)
	if !serving.Loaded() {
		t.Error("serving store should hold the fresh contents")
	}
	if fresh.Loaded() {
		t.Error("fresh store should hold the old empty contents")
	}

	results, err := serving.Search(ctx, "new chunk [SKU:N1]", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk != "new chunk [SKU:N1]" {
		t.Errorf("unexpected results after swap: %+v", results)
	}
}

func TestStore_SwapOppositeDirections(t *testing.T) {
	ctx := context.Background()
	a := newTestStore(t)
	b := newTestStore(t)
	if err := a.Build(ctx, []string{"chunk a [SKU:A1]"}); err != nil {
		t.Fatal(err)
	}

	// Two goroutines swapping the same pair in opposite directions must
	// both finish; each holds one store's lock while taking the other's.
	const rounds = 200
	done := make(chan struct{}, 2)
	go func() {
		for i := 0; i < rounds; i++ {
			a.Swap(b)
		}
		done <- struct{}{}
	}()
	go func() {
		for i := 0; i < rounds; i++ {
			b.Swap(a)
		}
		done <- struct{}{}
	}()
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("opposite-direction swaps did not finish")
		}
	}

	// An even number of swaps in total leaves the contents where they started.
	if !a.Loaded() || b.Loaded() {
		t.Errorf("contents misplaced: a loaded=%v, b loaded=%v", a.Loaded(), b.Loaded())
	}
}
