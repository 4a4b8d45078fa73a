package domain

import "time"

// Question is a saved Q&A turn: the question, the generated answer and the
// file references the answer was grounded in. Created only on explicit save.
type Question struct {
	ID             string          `json:"id"              db:"id"`
	ProjectID      string          `json:"project_id"      db:"project_id"`
	UserID         string          `json:"user_id"         db:"user_id"`
	Question       string          `json:"question"        db:"question"`
	Answer         string          `json:"answer"          db:"answer"`
	FileReferences []FileReference `json:"file_references" db:"file_references"`
	CreatedAt      time.Time       `json:"created_at"      db:"created_at"`
}
