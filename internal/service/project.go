package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gitsage/gitsage/internal/domain"
	"github.com/gitsage/gitsage/internal/port"
)

// CreditShortfallError is returned when a repository costs more credits than
// the user has. It reports both sides of the comparison for the caller.
type CreditShortfallError struct {
	Required  int
	Available int
}

func (e *CreditShortfallError) Error() string {
	return fmt.Sprintf("insufficient credits: repository requires %d, you have %d", e.Required, e.Available)
}

// Unwrap allows errors.Is(err, port.ErrInsufficientCredits).
func (e *CreditShortfallError) Unwrap() error {
	return port.ErrInsufficientCredits
}

// fileCountEstimator is the admission-cost estimator seen by the service.
type fileCountEstimator interface {
	EstimateFileCount(ctx context.Context, repoURL, token string) (int, error)
}

// indexStarter kicks off a full indexing run.
type indexStarter interface {
	Index(ctx context.Context, projectID, repoURL, token string, progress func(done, total int)) (*IndexOutcome, error)
}

// commitPoller kicks off commit processing.
type commitPoller interface {
	Poll(ctx context.Context, projectID string) ([]domain.GithubCommit, error)
}

// projectStore is the slice of the relational store the project service uses.
type projectStore interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetCredits(ctx context.Context, userID string) (int, error)
	DeductCredits(ctx context.Context, userID string, amount int) error
	CreateProject(ctx context.Context, p *domain.Project, userID string) (*domain.Project, error)
	GetProjectByID(ctx context.Context, id string) (*domain.Project, error)
	ListProjectsByUser(ctx context.Context, userID string) ([]domain.Project, error)
	ListProjectMembers(ctx context.Context, projectID string) ([]string, error)
	ArchiveProject(ctx context.Context, id string) error
	CreateQuestion(ctx context.Context, q *domain.Question) (*domain.Question, error)
	ListQuestionsByProject(ctx context.Context, projectID string) ([]domain.Question, error)
}

// embeddingCounter reports how many files a project has indexed.
type embeddingCounter interface {
	CountByProject(ctx context.Context, projectID string) (int, error)
}

// ProjectService handles admission control and the project lifecycle. The
// cost of indexing is charged on admission, not completion: the balance is
// decremented by the repository's file count regardless of how many files
// later succeed.
type ProjectService struct {
	store      projectStore
	embeddings embeddingCounter
	estimator  fileCountEstimator
	indexer    indexStarter
	poller     commitPoller
}

// NewProjectService creates a project service.
func NewProjectService(store projectStore, embeddings embeddingCounter, estimator fileCountEstimator, indexer indexStarter, poller commitPoller) *ProjectService {
	return &ProjectService{store: store, embeddings: embeddings, estimator: estimator, indexer: indexer, poller: poller}
}

// Create admits and creates a new project. The estimate gates admission:
// insufficient credits or an unparseable URL refuse the request with no side
// effects. On success the project exists, the balance is already decremented,
// and indexing plus commit polling run in the background; the caller is not
// blocked on them and their failures are logged, never surfaced here.
func (s *ProjectService) Create(ctx context.Context, userID, name, repoURL, token string) (*domain.Project, error) {
	if _, _, err := ParseRepoURL(repoURL); err != nil {
		return nil, err
	}

	fileCount, err := s.estimator.EstimateFileCount(ctx, repoURL, token)
	if err != nil {
		return nil, fmt.Errorf("estimate file count: %w", err)
	}

	// The balance is read after the estimate, so a purchase landing during a
	// slow crawl is reflected in the admission decision.
	credits, err := s.store.GetCredits(ctx, userID)
	if err != nil {
		return nil, err
	}
	if fileCount > credits {
		return nil, &CreditShortfallError{Required: fileCount, Available: credits}
	}

	project, err := s.store.CreateProject(ctx, &domain.Project{
		Name:        name,
		GithubURL:   repoURL,
		GithubToken: token,
	}, userID)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeductCredits(ctx, userID, fileCount); err != nil {
		return nil, fmt.Errorf("deduct credits: %w", err)
	}

	go func() {
		ctx := context.Background()
		if _, err := s.indexer.Index(ctx, project.ID, repoURL, token, nil); err != nil {
			slog.Error("background indexing failed", "project_id", project.ID, "error", err)
		}
		if _, err := s.poller.Poll(ctx, project.ID); err != nil {
			slog.Error("background commit poll failed", "project_id", project.ID, "error", err)
		}
	}()

	return project, nil
}

// CheckCredits reports the admission cost of a repository next to the user's
// current balance, with no side effects.
func (s *ProjectService) CheckCredits(ctx context.Context, userID, repoURL, token string) (fileCount, credits int, err error) {
	fileCount, err = s.estimator.EstimateFileCount(ctx, repoURL, token)
	if err != nil {
		return 0, 0, fmt.Errorf("estimate file count: %w", err)
	}
	credits, err = s.store.GetCredits(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	return fileCount, credits, nil
}

// List returns the user's active projects.
func (s *ProjectService) List(ctx context.Context, userID string) ([]domain.Project, error) {
	return s.store.ListProjectsByUser(ctx, userID)
}

// Get returns one project together with its indexed file count.
func (s *ProjectService) Get(ctx context.Context, projectID string) (*domain.Project, int, error) {
	project, err := s.store.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.embeddings.CountByProject(ctx, projectID)
	if err != nil {
		return nil, 0, fmt.Errorf("count indexed files: %w", err)
	}
	return project, count, nil
}

// Members returns the user IDs with access to a project.
func (s *ProjectService) Members(ctx context.Context, projectID string) ([]string, error) {
	if _, err := s.store.GetProjectByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListProjectMembers(ctx, projectID)
}

// Profile returns the user record for the authenticated caller.
func (s *ProjectService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

// Archive soft-deletes a project. Embeddings and commits are retained.
func (s *ProjectService) Archive(ctx context.Context, projectID string) error {
	if _, err := s.store.GetProjectByID(ctx, projectID); err != nil {
		return err
	}
	return s.store.ArchiveProject(ctx, projectID)
}

// SaveAnswer persists a Q&A turn on explicit user action.
func (s *ProjectService) SaveAnswer(ctx context.Context, userID, projectID, question, answer string, refs []domain.FileReference) (*domain.Question, error) {
	return s.store.CreateQuestion(ctx, &domain.Question{
		ProjectID:      projectID,
		UserID:         userID,
		Question:       question,
		Answer:         answer,
		FileReferences: refs,
	})
}

// ListQuestions returns a project's saved Q&A turns, newest first.
func (s *ProjectService) ListQuestions(ctx context.Context, projectID string) ([]domain.Question, error) {
	return s.store.ListQuestionsByProject(ctx, projectID)
}
