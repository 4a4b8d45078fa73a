package port

import (
	"context"

	"github.com/gitsage/gitsage/internal/domain"
)

// RepoEntry is one entry in a repository directory listing.
type RepoEntry struct {
	Path string
	Type string // "file" or "dir"
}

// RepoHost abstracts the repository hosting provider's REST API.
// All methods accept an optional bearer token; an empty token implies
// public-repository access only.
type RepoHost interface {
	// ListDirectory lists the entries of a directory. Path "" is the repo root.
	ListDirectory(ctx context.Context, owner, repo, path, token string) ([]RepoEntry, error)

	// GetFileContent fetches a file's raw bytes.
	GetFileContent(ctx context.Context, owner, repo, path, token string) ([]byte, error)

	// ListCommits returns the most recent commits, newest first.
	ListCommits(ctx context.Context, owner, repo, token string, limit int) ([]domain.CommitInfo, error)

	// GetCommitDiff fetches a commit's unified diff as text.
	GetCommitDiff(ctx context.Context, owner, repo, hash, token string) (string, error)
}
