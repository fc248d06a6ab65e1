package searchknowledgebase

import (
	"context"
	"fmt"
	"os"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// VectorBackend searches a chromem-go collection by embedding similarity.
type VectorBackend struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection string
	embed      chromem.EmbeddingFunc
}

// OpenVectorBackend opens (or creates) the persistent store under dir.
func OpenVectorBackend(dir, collection string, embed chromem.EmbeddingFunc) (*VectorBackend, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create knowledge dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open knowledge store: %w", err)
	}
	return NewVectorBackend(db, collection, embed), nil
}

func NewVectorBackend(db *chromem.DB, collection string, embed chromem.EmbeddingFunc) *VectorBackend {
	return &VectorBackend{db: db, collection: collection, embed: embed}
}

// EmbeddingFunc returns an OpenAI-compatible embedding function, or chromem's
// default OpenAI function when no endpoint is configured.
func EmbeddingFunc(baseURL, apiKey, model string) chromem.EmbeddingFunc {
	if baseURL == "" {
		return chromem.NewEmbeddingFuncDefault()
	}
	return chromem.NewEmbeddingFuncOpenAICompat(baseURL, apiKey, model, nil)
}

func (b *VectorBackend) Name() string { return "chromem" }

func (b *VectorBackend) getOrCreate() (*chromem.Collection, error) {
	col := b.db.GetCollection(b.collection, b.embed)
	if col != nil {
		return col, nil
	}
	return b.db.CreateCollection(b.collection, nil, b.embed)
}

// Add indexes passages; existing ids are overwritten.
func (b *VectorBackend) Add(ctx context.Context, passages ...Passage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	col, err := b.getOrCreate()
	if err != nil {
		return err
	}
	for _, p := range passages {
		doc := chromem.Document{
			ID:       p.ID,
			Content:  p.Content,
			Metadata: map[string]string{"title": p.Title},
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("index passage %s: %w", p.ID, err)
		}
	}
	return nil
}

func (b *VectorBackend) Search(ctx context.Context, query string, k int) ([]Passage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	col := b.db.GetCollection(b.collection, b.embed)
	if col == nil {
		return nil, nil
	}
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	var (
		results []chromem.Result
		err     error
	)
	// Query can still reject k right after concurrent deletes; step down.
	for attempt := k; attempt > 0; attempt-- {
		results, err = col.Query(ctx, query, attempt, nil, nil)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	out := make([]Passage, 0, len(results))
	for _, r := range results {
		out = append(out, Passage{
			ID:      r.ID,
			Title:   r.Metadata["title"],
			Content: r.Content,
			Score:   r.Similarity,
		})
	}
	return out, nil
}
