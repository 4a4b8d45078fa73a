package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gitsage/gitsage/internal/domain"
	"github.com/gitsage/gitsage/internal/port"
)

// fakeRepoHost serves a repository tree from in-memory maps. Keys of dirs are
// directory paths ("" is the root); keys of files are file paths.
type fakeRepoHost struct {
	dirs    map[string][]port.RepoEntry
	files   map[string][]byte
	commits []domain.CommitInfo
	diffs   map[string]string

	listErr  map[string]error
	fetchErr map[string]error
	diffErr  map[string]error
}

func (f *fakeRepoHost) ListDirectory(ctx context.Context, owner, repo, path, token string) ([]port.RepoEntry, error) {
	if err := f.listErr[path]; err != nil {
		return nil, err
	}
	entries, ok := f.dirs[path]
	if !ok {
		return nil, fmt.Errorf("no such directory: %q", path)
	}
	return entries, nil
}

func (f *fakeRepoHost) GetFileContent(ctx context.Context, owner, repo, path, token string) ([]byte, error) {
	if err := f.fetchErr[path]; err != nil {
		return nil, err
	}
	content, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %q", path)
	}
	return content, nil
}

func (f *fakeRepoHost) ListCommits(ctx context.Context, owner, repo, token string, limit int) ([]domain.CommitInfo, error) {
	if len(f.commits) > limit {
		return f.commits[:limit], nil
	}
	return f.commits, nil
}

func (f *fakeRepoHost) GetCommitDiff(ctx context.Context, owner, repo, hash, token string) (string, error) {
	if err := f.diffErr[hash]; err != nil {
		return "", err
	}
	return f.diffs[hash], nil
}

// flatRepo builds a host whose root has the given files, no subdirectories.
func flatRepo(files map[string]string) *fakeRepoHost {
	host := &fakeRepoHost{
		dirs:  map[string][]port.RepoEntry{"": {}},
		files: map[string][]byte{},
	}
	for path, content := range files {
		host.dirs[""] = append(host.dirs[""], port.RepoEntry{Path: path, Type: "file"})
		host.files[path] = []byte(content)
	}
	return host
}

// fakeAI returns canned responses, overridable per method.
type fakeAI struct {
	embedFn    func(text string) ([]float32, error)
	generateFn func(prompt string) (string, error)
	streamFn   func(prompt string) (<-chan string, error)

	mu          sync.Mutex
	lastPrompt  string
	lastEmbedIn string
}

func (f *fakeAI) ModelName() string          { return "fake-chat" }
func (f *fakeAI) EmbeddingModelName() string { return "fake-embed" }

func (f *fakeAI) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.lastEmbedIn = text
	f.mu.Unlock()
	if f.embedFn != nil {
		return f.embedFn(text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeAI) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.lastPrompt = prompt
	f.mu.Unlock()
	if f.generateFn != nil {
		return f.generateFn(prompt)
	}
	return "a summary", nil
}

func (f *fakeAI) GenerateStream(ctx context.Context, prompt string) (<-chan string, error) {
	f.mu.Lock()
	f.lastPrompt = prompt
	f.mu.Unlock()
	if f.streamFn != nil {
		return f.streamFn(prompt)
	}
	ch := make(chan string, 2)
	ch <- "hello "
	ch <- "world"
	close(ch)
	return ch, nil
}

// canned stream helper for tests.
func streamOf(tokens ...string) <-chan string {
	ch := make(chan string, len(tokens))
	for _, t := range tokens {
		ch <- t
	}
	close(ch)
	return ch
}

// fakeEmbeddingWriter records inserted rows.
type fakeEmbeddingWriter struct {
	mu        sync.Mutex
	inserted  []domain.SourceCodeEmbedding
	deleted   []string
	insertErr func(fileName string) error
}

func (f *fakeEmbeddingWriter) Insert(ctx context.Context, e *domain.SourceCodeEmbedding) error {
	if f.insertErr != nil {
		if err := f.insertErr(e.FileName); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.inserted = append(f.inserted, *e)
	f.mu.Unlock()
	return nil
}

func (f *fakeEmbeddingWriter) DeleteByProject(ctx context.Context, projectID string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, projectID)
	f.mu.Unlock()
	return nil
}

func (f *fakeEmbeddingWriter) byFile(name string) *domain.SourceCodeEmbedding {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.inserted {
		if f.inserted[i].FileName == name {
			return &f.inserted[i]
		}
	}
	return nil
}

// fakeEmbeddingCounter reports a fixed indexed-file count per project.
type fakeEmbeddingCounter struct {
	counts map[string]int
}

func (f *fakeEmbeddingCounter) CountByProject(ctx context.Context, projectID string) (int, error) {
	return f.counts[projectID], nil
}

// fakeProjectStore is an in-memory projectStore plus commitStore.
type fakeProjectStore struct {
	mu       sync.Mutex
	credits  map[string]int
	projects map[string]*domain.Project
	members  map[string][]string
	hashes   map[string]map[string]bool
	commits  []domain.GithubCommit
	nextID   int

	creditsErr error
	createErr  error
}

func newFakeProjectStore() *fakeProjectStore {
	return &fakeProjectStore{
		credits:  map[string]int{},
		projects: map[string]*domain.Project{},
		members:  map[string][]string{},
		hashes:   map[string]map[string]bool{},
	}
}

func (f *fakeProjectStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.credits[id]
	if !ok {
		return nil, port.ErrUserNotFound
	}
	return &domain.User{ID: id, Credits: c}, nil
}

func (f *fakeProjectStore) GetCredits(ctx context.Context, userID string) (int, error) {
	if f.creditsErr != nil {
		return 0, f.creditsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.credits[userID]
	if !ok {
		return 0, port.ErrUserNotFound
	}
	return c, nil
}

func (f *fakeProjectStore) DeductCredits(ctx context.Context, userID string, amount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.credits[userID] < amount {
		return port.ErrInsufficientCredits
	}
	f.credits[userID] -= amount
	return nil
}

func (f *fakeProjectStore) CreateProject(ctx context.Context, p *domain.Project, userID string) (*domain.Project, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	created := *p
	created.ID = fmt.Sprintf("project-%d", f.nextID)
	created.CreatedAt = time.Now()
	f.projects[created.ID] = &created
	f.members[created.ID] = append(f.members[created.ID], userID)
	return &created, nil
}

func (f *fakeProjectStore) ListProjectMembers(ctx context.Context, projectID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.members[projectID]...), nil
}

func (f *fakeProjectStore) GetProjectByID(ctx context.Context, id string) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, port.ErrProjectNotFound
	}
	return p, nil
}

func (f *fakeProjectStore) ListProjectsByUser(ctx context.Context, userID string) ([]domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Project
	for _, p := range f.projects {
		if p.DeletedAt == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProjectStore) ArchiveProject(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return port.ErrProjectNotFound
	}
	now := time.Now()
	p.DeletedAt = &now
	return nil
}

func (f *fakeProjectStore) CreateQuestion(ctx context.Context, q *domain.Question) (*domain.Question, error) {
	saved := *q
	saved.ID = "question-1"
	return &saved, nil
}

func (f *fakeProjectStore) ListQuestionsByProject(ctx context.Context, projectID string) ([]domain.Question, error) {
	return nil, nil
}

func (f *fakeProjectStore) ListCommitHashes(ctx context.Context, projectID string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(f.hashes[projectID]))
	for h := range f.hashes[projectID] {
		out[h] = true
	}
	return out, nil
}

func (f *fakeProjectStore) InsertCommits(ctx context.Context, commits []domain.GithubCommit) ([]domain.GithubCommit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var inserted []domain.GithubCommit
	for _, c := range commits {
		if f.hashes[c.ProjectID] == nil {
			f.hashes[c.ProjectID] = map[string]bool{}
		}
		if f.hashes[c.ProjectID][c.CommitHash] {
			continue
		}
		f.hashes[c.ProjectID][c.CommitHash] = true
		c.ID = fmt.Sprintf("commit-%d", len(f.commits)+1)
		f.commits = append(f.commits, c)
		inserted = append(inserted, c)
	}
	return inserted, nil
}
