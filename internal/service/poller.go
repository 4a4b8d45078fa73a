package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gitsage/gitsage/internal/domain"
	"github.com/gitsage/gitsage/internal/port"
)

// commitStore is the slice of the relational store the poller uses.
type commitStore interface {
	GetProjectByID(ctx context.Context, id string) (*domain.Project, error)
	ListCommitHashes(ctx context.Context, projectID string) (map[string]bool, error)
	InsertCommits(ctx context.Context, commits []domain.GithubCommit) ([]domain.GithubCommit, error)
}

// CommitPoller fetches a project's recent commits, summarizes the diff of
// each unprocessed one, and persists the results. Duplicate hashes are
// skipped at insert time, so overlapping polls of the same project are safe.
type CommitPoller struct {
	host    port.RepoHost
	ai      port.AIProvider
	store   commitStore
	limit   int
	workers int
}

// NewCommitPoller creates a poller that examines at most limit recent commits
// per run.
func NewCommitPoller(host port.RepoHost, ai port.AIProvider, store commitStore, limit int) *CommitPoller {
	if limit <= 0 {
		limit = 10
	}
	return &CommitPoller{host: host, ai: ai, store: store, limit: limit, workers: 5}
}

// Poll processes the project's unprocessed commits and returns the newly
// persisted records. Per-commit summarization failures degrade to a
// placeholder summary; the commit row is still persisted.
func (p *CommitPoller) Poll(ctx context.Context, projectID string) ([]domain.GithubCommit, error) {
	project, err := p.store.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	owner, repo, err := ParseRepoURL(project.GithubURL)
	if err != nil {
		return nil, err
	}

	commits, err := p.host.ListCommits(ctx, owner, repo, project.GithubToken, p.limit)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}

	processed, err := p.store.ListCommitHashes(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list processed hashes: %w", err)
	}

	var unprocessed []domain.CommitInfo
	for _, c := range commits {
		if !processed[c.Hash] {
			unprocessed = append(unprocessed, c)
		}
	}
	if len(unprocessed) == 0 {
		slog.Info("no new commits to process", "project_id", projectID)
		return nil, nil
	}

	slog.Info("processing new commits", "project_id", projectID, "count", len(unprocessed))

	summaries := make([]string, len(unprocessed))
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.workers)
	for i, commit := range unprocessed {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			summaries[i] = p.summarizeCommit(ctx, owner, repo, project.GithubToken, commit.Hash)
		}()
	}
	wg.Wait()

	records := make([]domain.GithubCommit, len(unprocessed))
	for i, commit := range unprocessed {
		records[i] = domain.GithubCommit{
			ProjectID:    projectID,
			CommitHash:   commit.Hash,
			Message:      commit.Message,
			AuthorName:   commit.AuthorName,
			AuthorAvatar: commit.AuthorAvatar,
			CommitDate:   commit.Date,
			Summary:      summaries[i],
		}
	}

	inserted, err := p.store.InsertCommits(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("persist commits: %w", err)
	}
	return inserted, nil
}

// summarizeCommit fetches a commit's diff and asks the AI for a summary,
// degrading to the placeholder on any failure.
func (p *CommitPoller) summarizeCommit(ctx context.Context, owner, repo, token, hash string) string {
	diff, err := p.host.GetCommitDiff(ctx, owner, repo, hash, token)
	if err != nil {
		slog.Warn("fetch diff failed", "commit", hash, "error", err)
		return commitSummaryPlaceholder
	}

	summary, err := p.ai.Generate(ctx, summarizeDiffPrompt(diff))
	if err != nil || summary == "" {
		slog.Warn("summarize commit failed", "commit", hash, "error", err)
		return commitSummaryPlaceholder
	}
	return summary
}
