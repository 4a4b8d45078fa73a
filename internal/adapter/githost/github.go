package githost

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gitsage/gitsage/internal/domain"
	"github.com/gitsage/gitsage/internal/port"
)

// GitHubHost implements port.RepoHost using the GitHub REST v3 API.
type GitHubHost struct {
	baseURL    string
	httpClient *http.Client
}

// NewGitHubHost creates a GitHub-backed repository host client.
func NewGitHubHost() *GitHubHost {
	return &GitHubHost{
		baseURL:    "https://api.github.com",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewGitHubHostWithBaseURL creates a client against a custom API base URL
// (GitHub Enterprise or a test server).
func NewGitHubHostWithBaseURL(baseURL string) *GitHubHost {
	h := NewGitHubHost()
	h.baseURL = strings.TrimSuffix(baseURL, "/")
	return h
}

// contentEntry mirrors the GitHub contents API response items.
type contentEntry struct {
	Path     string `json:"path"`
	Type     string `json:"type"` // file, dir, symlink, submodule
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// ListDirectory lists the entries of a directory. Path "" is the repo root.
func (h *GitHubHost) ListDirectory(ctx context.Context, owner, repo, path, token string) ([]port.RepoEntry, error) {
	body, err := h.get(ctx, h.contentsURL(owner, repo, path), token, "application/vnd.github+json")
	if err != nil {
		return nil, fmt.Errorf("list directory %q: %w", path, err)
	}

	var entries []contentEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		// A file path returns a single object instead of an array.
		var single contentEntry
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, fmt.Errorf("list directory decode %q: %w", path, err)
		}
		entries = []contentEntry{single}
	}

	result := make([]port.RepoEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, port.RepoEntry{Path: e.Path, Type: e.Type})
	}
	return result, nil
}

// GetFileContent fetches a file's raw bytes, decoding the base64 payload the
// contents API returns.
func (h *GitHubHost) GetFileContent(ctx context.Context, owner, repo, path, token string) ([]byte, error) {
	body, err := h.get(ctx, h.contentsURL(owner, repo, path), token, "application/vnd.github+json")
	if err != nil {
		return nil, fmt.Errorf("get file %q: %w", path, err)
	}

	var entry contentEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, fmt.Errorf("get file decode %q: %w", path, err)
	}
	if entry.Encoding != "base64" {
		return []byte(entry.Content), nil
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(entry.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("get file decode base64 %q: %w", path, err)
	}
	return decoded, nil
}

// ListCommits returns the most recent commits sorted by author date, newest
// first, capped at limit.
func (h *GitHubHost) ListCommits(ctx context.Context, owner, repo, token string, limit int) ([]domain.CommitInfo, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/commits?per_page=%d", h.baseURL, owner, repo, limit)
	body, err := h.get(ctx, endpoint, token, "application/vnd.github+json")
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}

	var raw []struct {
		SHA    string `json:"sha"`
		Commit struct {
			Message string `json:"message"`
			Author  struct {
				Name string    `json:"name"`
				Date time.Time `json:"date"`
			} `json:"author"`
		} `json:"commit"`
		Author *struct {
			AvatarURL string `json:"avatar_url"`
		} `json:"author"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("list commits decode: %w", err)
	}

	commits := make([]domain.CommitInfo, 0, len(raw))
	for _, c := range raw {
		ci := domain.CommitInfo{
			Hash:       c.SHA,
			Message:    c.Commit.Message,
			AuthorName: c.Commit.Author.Name,
			Date:       c.Commit.Author.Date,
		}
		if ci.Message == "" {
			ci.Message = "No message"
		}
		if ci.AuthorName == "" {
			ci.AuthorName = "Unknown"
		}
		if c.Author != nil {
			ci.AuthorAvatar = c.Author.AvatarURL
		}
		commits = append(commits, ci)
	}

	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].Date.After(commits[j].Date)
	})
	if len(commits) > limit {
		commits = commits[:limit]
	}
	return commits, nil
}

// GetCommitDiff fetches a commit's unified diff as text using the diff media
// type.
func (h *GitHubHost) GetCommitDiff(ctx context.Context, owner, repo, hash, token string) (string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/commits/%s", h.baseURL, owner, repo, hash)
	body, err := h.get(ctx, endpoint, token, "application/vnd.github.v3.diff")
	if err != nil {
		return "", fmt.Errorf("get commit diff %s: %w", hash, err)
	}
	return string(body), nil
}

func (h *GitHubHost) contentsURL(owner, repo, path string) string {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents", h.baseURL, owner, repo)
	if path != "" {
		endpoint += "/" + strings.TrimPrefix(path, "/")
	}
	return endpoint
}

// get is a helper for GET requests with an optional bearer token.
func (h *GitHubHost) get(ctx context.Context, endpoint, token, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("github API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
