package service

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gitsage/gitsage/internal/domain"
	"github.com/gitsage/gitsage/internal/port"
	"golang.org/x/sync/errgroup"
)

// DefaultIgnoredFiles are dependency lockfiles that are never worth indexing.
var DefaultIgnoredFiles = []string{
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"bun.lockb",
}

// RepoCrawler fetches every non-excluded file of a repository, recursively.
type RepoCrawler struct {
	host        port.RepoHost
	ignored     map[string]bool
	maxInFlight int
}

// NewRepoCrawler creates a crawler with the given ignore list and cap on
// concurrent repository-host calls. A nil ignore list uses the defaults.
func NewRepoCrawler(host port.RepoHost, ignoredFiles []string, maxInFlight int) *RepoCrawler {
	if ignoredFiles == nil {
		ignoredFiles = DefaultIgnoredFiles
	}
	if maxInFlight <= 0 {
		maxInFlight = 5
	}
	ignored := make(map[string]bool, len(ignoredFiles))
	for _, name := range ignoredFiles {
		ignored[name] = true
	}
	return &RepoCrawler{host: host, ignored: ignored, maxInFlight: maxInFlight}
}

// Load crawls the repository from its root and returns all readable text
// files. Binary or undecodable files are skipped with a warning; any listing
// or fetch error fails the crawl. Output order is not guaranteed; consumers
// key by file path.
func (c *RepoCrawler) Load(ctx context.Context, repoURL, token string) ([]domain.SourceFile, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		files []domain.SourceFile
	)
	sem := make(chan struct{}, c.maxInFlight)

	if err := c.crawlDir(ctx, owner, repo, "", token, sem, func(f domain.SourceFile) {
		mu.Lock()
		files = append(files, f)
		mu.Unlock()
	}); err != nil {
		return nil, err
	}

	slog.Info("repository crawl complete", "repo", owner+"/"+repo, "files", len(files))
	return files, nil
}

func (c *RepoCrawler) crawlDir(ctx context.Context, owner, repo, dirPath, token string, sem chan struct{}, emit func(domain.SourceFile)) error {
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	entries, err := c.host.ListDirectory(ctx, owner, repo, dirPath, token)
	<-sem
	if err != nil {
		return fmt.Errorf("crawl %q: %w", dirPath, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, entry := range entries {
		switch entry.Type {
		case "dir":
			g.Go(func() error {
				return c.crawlDir(gctx, owner, repo, entry.Path, token, sem, emit)
			})
		case "file":
			if c.ignored[path.Base(entry.Path)] {
				continue
			}
			g.Go(func() error {
				return c.fetchFile(gctx, owner, repo, entry.Path, token, sem, emit)
			})
		}
	}
	return g.Wait()
}

func (c *RepoCrawler) fetchFile(ctx context.Context, owner, repo, filePath, token string, sem chan struct{}, emit func(domain.SourceFile)) error {
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	content, err := c.host.GetFileContent(ctx, owner, repo, filePath, token)
	<-sem
	if err != nil {
		return fmt.Errorf("fetch %q: %w", filePath, err)
	}

	if !isText(content) {
		slog.Warn("skipping undecodable file", "path", filePath)
		return nil
	}

	emit(domain.SourceFile{
		Path:    filePath,
		Content: string(content),
		Size:    len(content),
	})
	return nil
}

// isText reports whether content decodes as text: valid UTF-8 with no NUL
// bytes.
func isText(content []byte) bool {
	if !utf8.Valid(content) {
		return false
	}
	return !strings.ContainsRune(string(content), '\x00')
}
