package service

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/gitsage/gitsage/internal/domain"
	"github.com/gitsage/gitsage/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedPaths(files []domain.SourceFile) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	sort.Strings(paths)
	return paths
}

func TestCrawlerLoadsNestedTree(t *testing.T) {
	host := &fakeRepoHost{
		dirs: map[string][]port.RepoEntry{
			"": {
				{Path: "main.go", Type: "file"},
				{Path: "internal", Type: "dir"},
			},
			"internal": {
				{Path: "internal/app.go", Type: "file"},
			},
		},
		files: map[string][]byte{
			"main.go":         []byte("package main"),
			"internal/app.go": []byte("package internal"),
		},
	}

	crawler := NewRepoCrawler(host, nil, 2)
	files, err := crawler.Load(context.Background(), "https://github.com/acme/widgets", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"internal/app.go", "main.go"}, loadedPaths(files))

	for _, f := range files {
		assert.Equal(t, len(f.Content), f.Size)
	}
}

func TestCrawlerSkipsIgnoredLockfiles(t *testing.T) {
	host := flatRepo(map[string]string{
		"package.json": "{}",
		"index.js":     "console.log(1)",
	})
	host.dirs[""] = append(host.dirs[""],
		port.RepoEntry{Path: "package-lock.json", Type: "file"},
		port.RepoEntry{Path: "yarn.lock", Type: "file"},
	)

	crawler := NewRepoCrawler(host, nil, 2)
	files, err := crawler.Load(context.Background(), "https://github.com/acme/widgets", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"index.js", "package.json"}, loadedPaths(files))
}

func TestCrawlerIgnoresNestedLockfiles(t *testing.T) {
	host := &fakeRepoHost{
		dirs: map[string][]port.RepoEntry{
			"": {
				{Path: "app", Type: "dir"},
			},
			"app": {
				{Path: "app/pnpm-lock.yaml", Type: "file"},
				{Path: "app/index.ts", Type: "file"},
			},
		},
		files: map[string][]byte{
			"app/index.ts": []byte("export {}"),
		},
	}

	crawler := NewRepoCrawler(host, nil, 2)
	files, err := crawler.Load(context.Background(), "https://github.com/acme/widgets", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"app/index.ts"}, loadedPaths(files))
}

func TestCrawlerSkipsBinaryFiles(t *testing.T) {
	host := flatRepo(map[string]string{"main.go": "package main"})
	host.dirs[""] = append(host.dirs[""],
		port.RepoEntry{Path: "logo.png", Type: "file"},
		port.RepoEntry{Path: "data.bin", Type: "file"},
	)
	host.files["logo.png"] = []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0x01}
	host.files["data.bin"] = []byte{0xff, 0xfe, 0xfd}

	crawler := NewRepoCrawler(host, nil, 2)
	files, err := crawler.Load(context.Background(), "https://github.com/acme/widgets", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, loadedPaths(files))
}

func TestCrawlerFailsWhenFetchFails(t *testing.T) {
	boom := errors.New("server error")
	host := flatRepo(map[string]string{
		"a.go": "package a",
		"b.go": "package b",
	})
	host.fetchErr = map[string]error{"b.go": boom}

	crawler := NewRepoCrawler(host, nil, 2)
	_, err := crawler.Load(context.Background(), "https://github.com/acme/widgets", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestCrawlerRejectsInvalidURL(t *testing.T) {
	crawler := NewRepoCrawler(&fakeRepoHost{}, nil, 2)
	_, err := crawler.Load(context.Background(), "https://github.com/nope", "")
	assert.ErrorIs(t, err, port.ErrInvalidRepoURL)
}
