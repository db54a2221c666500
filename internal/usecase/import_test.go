package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dialogue/internal/adapter/embedding"
	"dialogue/internal/adapter/fs"
	"dialogue/internal/adapter/memstore"
)

func TestImport(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	files := map[string]string{
		"single.json": `{"conversation_id":"u1","character_a":{"id":"1","name":"Rick"},"character_b":{"id":"2","name":"Morty"},"dialogue":"Rick: Morty!"}`,
		"batch/many.json": `[
			{"conversation_id":"u2","character_a":{"id":"1","name":"Rick"},"character_b":{"id":"3","name":"Summer"},"dialogue":"Summer: Grandpa!"},
			{"conversation_id":"u1","character_a":{"id":"1","name":"Rick"},"character_b":{"id":"2","name":"Morty"},"dialogue":"Rick: Morty!"},
			{"conversation_id":"u3","character_a":{"id":"1","name":"Rick"},"character_b":{"id":"4","name":"Beth"},"dialogue":""}
		]`,
		"batch/broken.json": `{"dialogue": `,
		"batch/empty.json":  ``,
		"ignored.txt":       `not json`,
	}
	for name, body := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}

	st := memstore.NewMemoryStore()
	emb := embedding.NewHashEmbedder(32)
	save := NewSaveUseCase(st, emb, NewEvaluator(emb, CombineMean), nil)
	uc := NewImportUseCase(save, fs.NewWalker(nil))

	var progressed int
	result, err := uc.Import(ctx, root, []string{"**/*.json"}, func(done, total int, file string) {
		progressed = done
	})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}

	if result.Files != 4 {
		t.Errorf("expected 4 files, got %d", result.Files)
	}
	if result.Saved != 2 {
		t.Errorf("expected 2 saved, got %d", result.Saved)
	}
	if result.Duplicates != 1 {
		t.Errorf("expected 1 duplicate, got %d", result.Duplicates)
	}
	// broken JSON and the empty dialogue
	if len(result.Errors) != 2 {
		t.Errorf("expected 2 errors, got %v", result.Errors)
	}
	if progressed != 4 {
		t.Errorf("expected progress to reach 4, got %d", progressed)
	}

	if n, _ := st.Count(ctx); n != 2 {
		t.Errorf("expected 2 stored conversations, got %d", n)
	}

	// importing again only finds duplicates
	again, err := uc.Import(ctx, root, []string{"**/*.json"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if again.Saved != 0 || again.Duplicates != 3 {
		t.Errorf("expected a re-import to be all duplicates, got %+v", again)
	}
}
