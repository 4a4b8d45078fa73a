package domain

import "time"

// GithubCommit is one processed commit for a project. The (project_id,
// commit_hash) pair is unique; duplicate inserts are silently skipped.
type GithubCommit struct {
	ID           string    `json:"id"            db:"id"`
	ProjectID    string    `json:"project_id"    db:"project_id"`
	CommitHash   string    `json:"commit_hash"   db:"commit_hash"`
	Message      string    `json:"message"       db:"message"`
	AuthorName   string    `json:"author_name"   db:"author_name"`
	AuthorAvatar string    `json:"author_avatar" db:"author_avatar"`
	CommitDate   time.Time `json:"commit_date"   db:"commit_date"`
	Summary      string    `json:"summary"       db:"summary"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
}

// CommitInfo is a lightweight commit as returned by the repository host,
// before any summarization.
type CommitInfo struct {
	Hash         string    `json:"hash"`
	Message      string    `json:"message"`
	AuthorName   string    `json:"author_name"`
	AuthorAvatar string    `json:"author_avatar"`
	Date         time.Time `json:"date"`
}
