// Package vector provides the similarity index behind the vector search
// strategy: an Index interface with sqlite-vec, chromem and noop
// implementations, and an Embedder with an OpenAI provider plus a
// ristretto-backed cache.
package vector

import (
	"context"
	"time"
)

// Document is one observation's embeddable projection.
type Document struct {
	ObservationID int64
	SessionID     string
	Project       string
	Type          string
	Text          string
	CreatedAt     time.Time
}

// Filter restricts a similarity query. Zero values mean unfiltered.
type Filter struct {
	Project  string
	Type     string
	DateFrom *time.Time
	DateTo   *time.Time
}

// Match is one similarity hit. Similarity is normalized to [0,1], higher
// is closer. CreatedAt is the observation's timestamp so downstream
// ranking can tie-break on recency without a store round-trip.
type Match struct {
	ObservationID int64
	Similarity    float64
	CreatedAt     time.Time
}

// Index is a similarity index over observation documents.
type Index interface {
	Add(ctx context.Context, doc Document) error
	Query(ctx context.Context, text string, k int, f Filter) ([]Match, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

func (f Filter) matches(project, typ string, createdAt time.Time) bool {
	if f.Project != "" && project != f.Project {
		return false
	}
	if f.Type != "" && typ != f.Type {
		return false
	}
	if f.DateFrom != nil && createdAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && createdAt.After(*f.DateTo) {
		return false
	}
	return true
}
