package service

import (
	"net/url"
	"strings"

	"github.com/gitsage/gitsage/internal/port"
)

// ParseRepoURL extracts the owner and repo name from a repository URL like
// https://github.com/owner/repo. It returns port.ErrInvalidRepoURL when the
// URL does not contain an owner/repo pair.
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	u, parseErr := url.Parse(strings.TrimSuffix(repoURL, "/"))
	if parseErr != nil {
		return "", "", port.ErrInvalidRepoURL
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", port.ErrInvalidRepoURL
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}
