package domain

import "time"

// SourceCodeEmbedding represents one indexed file with its AI summary and
// summary vector stored in pgvector. Vector is nil when embedding generation
// failed; such rows are kept for tracking but excluded from retrieval.
type SourceCodeEmbedding struct {
	ID         string    `json:"id"          db:"id"`
	ProjectID  string    `json:"project_id"  db:"project_id"`
	FileName   string    `json:"file_name"   db:"file_name"`
	SourceCode string    `json:"source_code" db:"source_code"`
	Summary    string    `json:"summary"     db:"summary"`
	Vector     []float32 `json:"-"           db:"summary_embedding"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
}

// FileReference is returned by semantic search, including similarity score.
type FileReference struct {
	FileName   string  `json:"file_name"`
	SourceCode string  `json:"source_code"`
	Summary    string  `json:"summary"`
	Similarity float64 `json:"similarity"`
}
