package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// StoredEmbedding is a cached enrollment image embedding.
// HasFace false means the image was processed and no face was found.
type StoredEmbedding struct {
	Path      string
	Model     string
	Size      int64
	ModTime   time.Time
	Identity  string
	HasFace   bool
	Embedding []float32
}

// EmbeddingRepository caches enrollment embeddings so unchanged images are
// not run through the detector again.
type EmbeddingRepository struct {
	pool *Pool
}

func NewEmbeddingRepository(pool *Pool) *EmbeddingRepository {
	return &EmbeddingRepository{pool: pool}
}

// Get returns the cached embedding for path and model, nil if not cached.
func (r *EmbeddingRepository) Get(ctx context.Context, path, model string) (*StoredEmbedding, error) {
	query := `
		SELECT path, model, size, mod_time, identity, has_face, embedding
		FROM face_embeddings
		WHERE path = $1 AND model = $2
	`

	var emb StoredEmbedding
	var vec sql.Null[pgvector.Vector]

	err := r.pool.QueryRow(ctx, query, path, model).Scan(
		&emb.Path,
		&emb.Model,
		&emb.Size,
		&emb.ModTime,
		&emb.Identity,
		&emb.HasFace,
		&vec,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query face embedding: %w", err)
	}

	if vec.Valid {
		emb.Embedding = vec.V.Slice()
	}
	return &emb, nil
}

// Save upserts a cache entry.
func (r *EmbeddingRepository) Save(ctx context.Context, emb StoredEmbedding) error {
	var vec any
	if emb.HasFace {
		vec = pgvector.NewVector(emb.Embedding)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO face_embeddings (path, model, size, mod_time, identity, has_face, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (path, model) DO UPDATE SET
			size = EXCLUDED.size,
			mod_time = EXCLUDED.mod_time,
			identity = EXCLUDED.identity,
			has_face = EXCLUDED.has_face,
			embedding = EXCLUDED.embedding,
			created_at = NOW()
	`, emb.Path, emb.Model, emb.Size, emb.ModTime, emb.Identity, emb.HasFace, vec)
	if err != nil {
		return fmt.Errorf("save face embedding: %w", err)
	}
	return nil
}

// Prune removes cache rows for images that are no longer enrolled.
func (r *EmbeddingRepository) Prune(ctx context.Context, model string, keep []string) (int64, error) {
	result, err := r.pool.Exec(ctx,
		"DELETE FROM face_embeddings WHERE model = $1 AND NOT (path = ANY($2))",
		model, pq.Array(keep),
	)
	if err != nil {
		return 0, fmt.Errorf("prune face embeddings: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune face embeddings: %w", err)
	}
	return n, nil
}

// Count returns the number of cached rows for model.
func (r *EmbeddingRepository) Count(ctx context.Context, model string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM face_embeddings WHERE model = $1", model).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count face embeddings: %w", err)
	}
	return count, nil
}
