package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/gitsage/gitsage/internal/domain"
)

// VectorStore handles pgvector operations for source code embeddings.
type VectorStore struct {
	store     *PostgresStore
	dimension int
}

// NewVectorStore creates a vector store backed by the given Postgres store.
func NewVectorStore(store *PostgresStore, dimension int) *VectorStore {
	return &VectorStore{store: store, dimension: dimension}
}

// Insert persists one embedding record. A nil vector is stored as NULL; such
// rows are excluded from retrieval but kept for tracking. A non-nil vector
// must match the configured dimensionality.
func (v *VectorStore) Insert(ctx context.Context, e *domain.SourceCodeEmbedding) error {
	query := `INSERT INTO source_code_embeddings (project_id, file_name, source_code, summary, summary_embedding)
	          VALUES ($1, $2, $3, $4, $5::vector)`

	var vec interface{}
	if e.Vector != nil {
		if len(e.Vector) != v.dimension {
			return fmt.Errorf("insert embedding: vector has %d dimensions, store expects %d", len(e.Vector), v.dimension)
		}
		vec = vectorToString(e.Vector)
	}

	_, err := v.store.db.ExecContext(ctx, query,
		e.ProjectID, e.FileName, e.SourceCode, e.Summary, vec,
	)
	if err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}

// DeleteByProject removes all embeddings for a project. Used by reindexing,
// which deletes everything before re-crawling.
func (v *VectorStore) DeleteByProject(ctx context.Context, projectID string) error {
	query := `DELETE FROM source_code_embeddings WHERE project_id = $1`
	_, err := v.store.db.ExecContext(ctx, query, projectID)
	return err
}

// CountByProject returns the number of embedding rows for a project.
func (v *VectorStore) CountByProject(ctx context.Context, projectID string) (int, error) {
	var count int
	err := v.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM source_code_embeddings WHERE project_id = $1`, projectID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// Search performs a cosine similarity search scoped to one project. Rows with
// NULL vectors are excluded, similarity must be strictly greater than
// minSimilarity, and results are ordered by similarity descending with file
// name as the deterministic tiebreak, capped at k.
func (v *VectorStore) Search(ctx context.Context, projectID string, queryVector []float32, k int, minSimilarity float64) ([]domain.FileReference, error) {
	vectorStr := vectorToString(queryVector)
	query := `SELECT file_name, source_code, summary,
	                 1 - (summary_embedding <=> $1::vector) AS similarity
	          FROM source_code_embeddings
	          WHERE project_id = $2
	            AND summary_embedding IS NOT NULL
	            AND 1 - (summary_embedding <=> $1::vector) > $3
	          ORDER BY similarity DESC, file_name ASC
	          LIMIT $4`

	rows, err := v.store.db.QueryContext(ctx, query, vectorStr, projectID, minSimilarity, k)
	if err != nil {
		return nil, fmt.Errorf("search embeddings: %w", err)
	}
	defer rows.Close()

	var results []domain.FileReference
	for rows.Next() {
		var ref domain.FileReference
		if err := rows.Scan(&ref.FileName, &ref.SourceCode, &ref.Summary, &ref.Similarity); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, ref)
	}
	return results, rows.Err()
}

// vectorToString converts a float32 slice to pgvector string format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = fmt.Sprintf("%g", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
