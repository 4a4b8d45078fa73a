package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gitsage/gitsage/internal/domain"
	"github.com/gitsage/gitsage/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pollerFixture(t *testing.T, host *fakeRepoHost, ai *fakeAI) (*CommitPoller, *fakeProjectStore, string) {
	t.Helper()
	store := newFakeProjectStore()
	project, err := store.CreateProject(context.Background(), &domain.Project{
		Name:      "widgets",
		GithubURL: "https://github.com/acme/widgets",
	}, "user-1")
	require.NoError(t, err)
	return NewCommitPoller(host, ai, store, 10), store, project.ID
}

func commitAt(hash string, offset time.Duration) domain.CommitInfo {
	return domain.CommitInfo{
		Hash:       hash,
		Message:    "commit " + hash,
		AuthorName: "dev",
		Date:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).Add(offset),
	}
}

func TestPollSummarizesAndPersistsNewCommits(t *testing.T) {
	host := &fakeRepoHost{
		commits: []domain.CommitInfo{commitAt("abc", time.Hour), commitAt("def", 0)},
		diffs:   map[string]string{"abc": "+added line", "def": "-removed line"},
	}
	ai := &fakeAI{generateFn: func(prompt string) (string, error) { return "did things", nil }}

	poller, _, projectID := pollerFixture(t, host, ai)
	inserted, err := poller.Poll(context.Background(), projectID)
	require.NoError(t, err)

	require.Len(t, inserted, 2)
	for _, c := range inserted {
		assert.Equal(t, projectID, c.ProjectID)
		assert.Equal(t, "did things", c.Summary)
	}
}

func TestPollSkipsAlreadyProcessedCommits(t *testing.T) {
	host := &fakeRepoHost{
		commits: []domain.CommitInfo{commitAt("old", 0), commitAt("new", time.Hour)},
		diffs:   map[string]string{"old": "+x", "new": "+y"},
	}

	poller, store, projectID := pollerFixture(t, host, &fakeAI{})
	store.hashes[projectID] = map[string]bool{"old": true}

	inserted, err := poller.Poll(context.Background(), projectID)
	require.NoError(t, err)

	require.Len(t, inserted, 1)
	assert.Equal(t, "new", inserted[0].CommitHash)
}

func TestPollSecondRunInsertsNothing(t *testing.T) {
	host := &fakeRepoHost{
		commits: []domain.CommitInfo{commitAt("abc", 0)},
		diffs:   map[string]string{"abc": "+x"},
	}

	poller, _, projectID := pollerFixture(t, host, &fakeAI{})

	first, err := poller.Poll(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := poller.Poll(context.Background(), projectID)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestPollDiffFetchFailureDegradesToPlaceholder(t *testing.T) {
	host := &fakeRepoHost{
		commits: []domain.CommitInfo{commitAt("abc", 0)},
		diffErr: map[string]error{"abc": errors.New("gone")},
	}

	poller, _, projectID := pollerFixture(t, host, &fakeAI{})
	inserted, err := poller.Poll(context.Background(), projectID)
	require.NoError(t, err)

	require.Len(t, inserted, 1)
	assert.Equal(t, "No summary generated", inserted[0].Summary)
}

func TestPollSummarizeFailureDegradesToPlaceholder(t *testing.T) {
	host := &fakeRepoHost{
		commits: []domain.CommitInfo{commitAt("abc", 0)},
		diffs:   map[string]string{"abc": "+x"},
	}
	ai := &fakeAI{generateFn: func(prompt string) (string, error) { return "", errors.New("overloaded") }}

	poller, _, projectID := pollerFixture(t, host, ai)
	inserted, err := poller.Poll(context.Background(), projectID)
	require.NoError(t, err)

	require.Len(t, inserted, 1)
	assert.Equal(t, "No summary generated", inserted[0].Summary)
}

func TestPollUnknownProject(t *testing.T) {
	poller := NewCommitPoller(&fakeRepoHost{}, &fakeAI{}, newFakeProjectStore(), 10)
	_, err := poller.Poll(context.Background(), "missing")
	assert.ErrorIs(t, err, port.ErrProjectNotFound)
}
