package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"
)

// ChromemIndex keeps embeddings in an in-process chromem-go collection.
// It is the pure-Go alternative to sqlite-vec: no cgo, rebuilt from the
// store on restart (the daemon re-adds observations at startup).
type ChromemIndex struct {
	collection *chromem.Collection
	embedder   Embedder
	logger     zerolog.Logger

	mu    sync.RWMutex
	count int
}

// NewChromemIndex creates the in-memory collection.
func NewChromemIndex(embedder Embedder, logger zerolog.Logger) (*ChromemIndex, error) {
	db := chromem.NewDB()
	collection, err := db.CreateCollection("observations", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create chromem collection: %w", err)
	}

	return &ChromemIndex{
		collection: collection,
		embedder:   embedder,
		logger:     logger,
	}, nil
}

// Add embeds the document and stores it with filterable metadata.
func (i *ChromemIndex) Add(ctx context.Context, doc Document) error {
	vectors, err := i.embedder.Embed(ctx, []string{doc.Text})
	if err != nil {
		return fmt.Errorf("failed to embed document: %w", err)
	}

	err = i.collection.AddDocument(ctx, chromem.Document{
		ID:        strconv.FormatInt(doc.ObservationID, 10),
		Content:   doc.Text,
		Embedding: vectors[0],
		Metadata: map[string]string{
			"project":    doc.Project,
			"type":       doc.Type,
			"created_at": doc.CreatedAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}

	i.mu.Lock()
	i.count++
	i.mu.Unlock()
	return nil
}

// Query runs a similarity search. Project and type use chromem's metadata
// where-filter; date bounds are applied as a post-filter since chromem only
// matches metadata exactly. Cosine similarity in [-1,1] is mapped to [0,1].
func (i *ChromemIndex) Query(ctx context.Context, text string, k int, f Filter) ([]Match, error) {
	if k <= 0 {
		k = 20
	}

	i.mu.RLock()
	size := i.count
	i.mu.RUnlock()
	if size == 0 {
		return nil, nil
	}
	if k > size {
		k = size
	}

	vectors, err := i.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	where := map[string]string{}
	if f.Project != "" {
		where["project"] = f.Project
	}
	if f.Type != "" {
		where["type"] = f.Type
	}

	results, err := i.collection.QueryEmbedding(ctx, vectors[0], k, where, nil)
	if err != nil {
		// chromem rejects nResults larger than the post-filter candidate
		// set; an over-ask on a small filtered collection is not an error
		if strings.Contains(err.Error(), "nResults") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query chromem: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		createdAt, _ := time.Parse(time.RFC3339, r.Metadata["created_at"])
		if !f.matches(r.Metadata["project"], r.Metadata["type"], createdAt) {
			continue
		}

		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			continue
		}
		matches = append(matches, Match{
			ObservationID: id,
			Similarity:    clamp01((float64(r.Similarity) + 1) / 2),
			CreatedAt:     createdAt,
		})
	}
	return matches, nil
}

// Count returns the number of indexed documents.
func (i *ChromemIndex) Count(_ context.Context) (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.count, nil
}

// Close is a no-op; chromem keeps everything in memory.
func (i *ChromemIndex) Close() error {
	return nil
}

var _ Index = (*ChromemIndex)(nil)
