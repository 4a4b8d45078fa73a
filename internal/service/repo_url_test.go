package service

import (
	"testing"

	"github.com/gitsage/gitsage/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{name: "plain https", url: "https://github.com/golang/go", wantOwner: "golang", wantRepo: "go"},
		{name: "trailing slash", url: "https://github.com/golang/go/", wantOwner: "golang", wantRepo: "go"},
		{name: "dot git suffix", url: "https://github.com/golang/go.git", wantOwner: "golang", wantRepo: "go"},
		{name: "extra path segments", url: "https://github.com/golang/go/tree/master", wantOwner: "golang", wantRepo: "go"},
		{name: "missing repo", url: "https://github.com/golang", wantErr: true},
		{name: "empty", url: "", wantErr: true},
		{name: "no path", url: "https://github.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := ParseRepoURL(tt.url)
			if tt.wantErr {
				require.ErrorIs(t, err, port.ErrInvalidRepoURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantRepo, repo)
		})
	}
}
