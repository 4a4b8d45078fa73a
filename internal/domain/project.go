package domain

import "time"

// Project represents one indexed GitHub repository.
type Project struct {
	ID          string     `json:"id"           db:"id"`
	Name        string     `json:"name"         db:"name"`
	GithubURL   string     `json:"github_url"   db:"github_url"`
	GithubToken string     `json:"-"            db:"github_token"` // never serialized to JSON
	DeletedAt   *time.Time `json:"deleted_at"   db:"deleted_at"`   // nil = active
	CreatedAt   time.Time  `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"   db:"updated_at"`
}

// SourceFile is a single file fetched by the repository crawler.
type SourceFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Size    int    `json:"size"`
}
