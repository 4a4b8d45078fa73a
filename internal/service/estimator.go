package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gitsage/gitsage/internal/port"
	"golang.org/x/sync/errgroup"
)

// CreditEstimator counts the files of a repository without fetching content.
// The count is the admission cost of indexing: one credit per file.
type CreditEstimator struct {
	host        port.RepoHost
	maxInFlight int
}

// NewCreditEstimator creates an estimator with the given cap on concurrent
// directory-listing calls.
func NewCreditEstimator(host port.RepoHost, maxInFlight int) *CreditEstimator {
	if maxInFlight <= 0 {
		maxInFlight = 10
	}
	return &CreditEstimator{host: host, maxInFlight: maxInFlight}
}

// EstimateFileCount returns the total number of files in the repository,
// recursing into all subdirectories. Sibling directories are listed
// concurrently under the in-flight cap. An unparseable URL yields 0 without
// error. Any listing failure fails the whole estimate; a partial count is
// never returned.
func (e *CreditEstimator) EstimateFileCount(ctx context.Context, repoURL, token string) (int, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		if errors.Is(err, port.ErrInvalidRepoURL) {
			return 0, nil
		}
		return 0, err
	}

	sem := make(chan struct{}, e.maxInFlight)
	return e.countDir(ctx, owner, repo, "", token, sem)
}

func (e *CreditEstimator) countDir(ctx context.Context, owner, repo, path, token string, sem chan struct{}) (int, error) {
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	entries, err := e.host.ListDirectory(ctx, owner, repo, path, token)
	<-sem
	if err != nil {
		return 0, fmt.Errorf("count files in %q: %w", path, err)
	}

	count := 0
	var dirs []string
	for _, entry := range entries {
		if entry.Type == "dir" {
			dirs = append(dirs, entry.Path)
		} else {
			count++
		}
	}

	if len(dirs) == 0 {
		return count, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, dir := range dirs {
		g.Go(func() error {
			n, err := e.countDir(gctx, owner, repo, dir, token, sem)
			if err != nil {
				return err
			}
			mu.Lock()
			count += n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return count, nil
}
