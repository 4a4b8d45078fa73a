package service

import (
	"context"
	"errors"
	"testing"

	"github.com/gitsage/gitsage/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateFileCountRecursesAllDirectories(t *testing.T) {
	host := &fakeRepoHost{
		dirs: map[string][]port.RepoEntry{
			"": {
				{Path: "README.md", Type: "file"},
				{Path: "src", Type: "dir"},
				{Path: "docs", Type: "dir"},
			},
			"src": {
				{Path: "src/main.go", Type: "file"},
				{Path: "src/util", Type: "dir"},
			},
			"src/util": {
				{Path: "src/util/a.go", Type: "file"},
				{Path: "src/util/b.go", Type: "file"},
			},
			"docs": {
				{Path: "docs/guide.md", Type: "file"},
			},
		},
	}

	estimator := NewCreditEstimator(host, 2)
	count, err := estimator.EstimateFileCount(context.Background(), "https://github.com/acme/widgets", "")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestEstimateFileCountEmptyRepo(t *testing.T) {
	host := &fakeRepoHost{dirs: map[string][]port.RepoEntry{"": {}}}

	estimator := NewCreditEstimator(host, 2)
	count, err := estimator.EstimateFileCount(context.Background(), "https://github.com/acme/empty", "")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestEstimateFileCountInvalidURLYieldsZero(t *testing.T) {
	estimator := NewCreditEstimator(&fakeRepoHost{}, 2)
	count, err := estimator.EstimateFileCount(context.Background(), "https://github.com/just-an-owner", "")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestEstimateFileCountFailsOnAnyListingError(t *testing.T) {
	boom := errors.New("rate limited")
	host := &fakeRepoHost{
		dirs: map[string][]port.RepoEntry{
			"": {
				{Path: "a.go", Type: "file"},
				{Path: "src", Type: "dir"},
			},
		},
		listErr: map[string]error{"src": boom},
	}

	estimator := NewCreditEstimator(host, 2)
	_, err := estimator.EstimateFileCount(context.Background(), "https://github.com/acme/widgets", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
