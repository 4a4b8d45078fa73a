package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gitsage/gitsage/internal/domain"
	"github.com/gitsage/gitsage/internal/port"
)

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// --- Users & Credits ---

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id, email, name, avatar_url, credits, created_at, updated_at
	          FROM users WHERE id = $1`

	var user domain.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.AvatarURL,
		&user.Credits, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, port.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// GetCredits returns a user's current credit balance.
func (s *PostgresStore) GetCredits(ctx context.Context, userID string) (int, error) {
	var credits int
	err := s.db.QueryRowContext(ctx, `SELECT credits FROM users WHERE id = $1`, userID).Scan(&credits)
	if err == sql.ErrNoRows {
		return 0, port.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get credits: %w", err)
	}
	return credits, nil
}

// DeductCredits atomically decrements a user's balance by amount, refusing
// when the balance would go below zero.
func (s *PostgresStore) DeductCredits(ctx context.Context, userID string, amount int) error {
	query := `UPDATE users SET credits = credits - $2, updated_at = NOW()
	          WHERE id = $1 AND credits >= $2`

	res, err := s.db.ExecContext(ctx, query, userID, amount)
	if err != nil {
		return fmt.Errorf("deduct credits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deduct credits: %w", err)
	}
	if n == 0 {
		return port.ErrInsufficientCredits
	}
	return nil
}

// AddCredits records a credit purchase and atomically increments the user's
// balance, in one transaction.
func (s *PostgresStore) AddCredits(ctx context.Context, userID string, credits int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO credit_transactions (user_id, credits) VALUES ($1, $2)`,
		userID, credits,
	); err != nil {
		return fmt.Errorf("insert credit transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET credits = credits + $2, updated_at = NOW() WHERE id = $1`,
		userID, credits,
	); err != nil {
		return fmt.Errorf("increment credits: %w", err)
	}

	return tx.Commit()
}

// ListCreditTransactions returns a user's credit purchases, newest first.
func (s *PostgresStore) ListCreditTransactions(ctx context.Context, userID string) ([]domain.CreditTransaction, error) {
	query := `SELECT id, user_id, credits, created_at
	          FROM credit_transactions WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list credit transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.CreditTransaction
	for rows.Next() {
		var t domain.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Credits, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credit transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// --- Projects ---

// CreateProject inserts a new project and its owning membership in one
// transaction.
func (s *PostgresStore) CreateProject(ctx context.Context, p *domain.Project, userID string) (*domain.Project, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO projects (name, github_url, github_token)
	          VALUES ($1, $2, $3)
	          RETURNING id, name, github_url, github_token, deleted_at, created_at, updated_at`

	var project domain.Project
	err = tx.QueryRowContext(ctx, query, p.Name, p.GithubURL, p.GithubToken).Scan(
		&project.ID, &project.Name, &project.GithubURL, &project.GithubToken,
		&project.DeletedAt, &project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_projects (user_id, project_id) VALUES ($1, $2)`,
		userID, project.ID,
	); err != nil {
		return nil, fmt.Errorf("create project membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit project: %w", err)
	}
	return &project, nil
}

// GetProjectByID returns a project by its ID.
func (s *PostgresStore) GetProjectByID(ctx context.Context, id string) (*domain.Project, error) {
	query := `SELECT id, name, github_url, github_token, deleted_at, created_at, updated_at
	          FROM projects WHERE id = $1`

	var p domain.Project
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.GithubURL, &p.GithubToken,
		&p.DeletedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, port.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// ListProjectsByUser returns a user's active (non-archived) projects.
func (s *PostgresStore) ListProjectsByUser(ctx context.Context, userID string) ([]domain.Project, error) {
	query := `SELECT p.id, p.name, p.github_url, p.github_token, p.deleted_at, p.created_at, p.updated_at
	          FROM projects p
	          JOIN user_projects up ON up.project_id = p.id
	          WHERE up.user_id = $1 AND p.deleted_at IS NULL
	          ORDER BY p.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(
			&p.ID, &p.Name, &p.GithubURL, &p.GithubToken,
			&p.DeletedAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ArchiveProject soft-deletes a project. Rows are never hard-deleted here.
func (s *PostgresStore) ArchiveProject(ctx context.Context, id string) error {
	query := `UPDATE projects SET deleted_at = NOW(), updated_at = NOW()
	          WHERE id = $1 AND deleted_at IS NULL`
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// ListProjectMembers returns the user IDs with access to a project.
func (s *PostgresStore) ListProjectMembers(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM user_projects WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- Commits ---

// ListCommitHashes returns the set of already-processed commit hashes for a
// project.
func (s *PostgresStore) ListCommitHashes(ctx context.Context, projectID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT commit_hash FROM github_commits WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list commit hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]bool)
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan commit hash: %w", err)
		}
		hashes[h] = true
	}
	return hashes, rows.Err()
}

// InsertCommits bulk-inserts commit records, silently skipping duplicates on
// (project_id, commit_hash). It returns the rows that were actually inserted,
// so concurrent polls of the same project are safe to run redundantly.
func (s *PostgresStore) InsertCommits(ctx context.Context, commits []domain.GithubCommit) ([]domain.GithubCommit, error) {
	if len(commits) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO github_commits (project_id, commit_hash, message, author_name, author_avatar, commit_date, summary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (project_id, commit_hash) DO NOTHING
		 RETURNING id, created_at`)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	var inserted []domain.GithubCommit
	for _, c := range commits {
		row := stmt.QueryRowContext(ctx,
			c.ProjectID, c.CommitHash, c.Message, c.AuthorName, c.AuthorAvatar, c.CommitDate, c.Summary,
		)
		err := row.Scan(&c.ID, &c.CreatedAt)
		if err == sql.ErrNoRows {
			continue // duplicate hash, skipped
		}
		if err != nil {
			return nil, fmt.Errorf("insert commit %s: %w", c.CommitHash, err)
		}
		inserted = append(inserted, c)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return inserted, nil
}

// ListCommits returns a project's processed commits, newest first. Consumers
// must not rely on insertion order; this sorts by commit date explicitly.
func (s *PostgresStore) ListCommits(ctx context.Context, projectID string) ([]domain.GithubCommit, error) {
	query := `SELECT id, project_id, commit_hash, message, author_name, author_avatar, commit_date, summary, created_at
	          FROM github_commits WHERE project_id = $1 ORDER BY commit_date DESC`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	defer rows.Close()

	var commits []domain.GithubCommit
	for rows.Next() {
		var c domain.GithubCommit
		if err := rows.Scan(
			&c.ID, &c.ProjectID, &c.CommitHash, &c.Message, &c.AuthorName,
			&c.AuthorAvatar, &c.CommitDate, &c.Summary, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

// --- Questions ---

// CreateQuestion saves a Q&A turn with its file references.
func (s *PostgresStore) CreateQuestion(ctx context.Context, q *domain.Question) (*domain.Question, error) {
	refs, err := json.Marshal(q.FileReferences)
	if err != nil {
		return nil, fmt.Errorf("marshal file references: %w", err)
	}

	query := `INSERT INTO questions (project_id, user_id, question, answer, file_references)
	          VALUES ($1, $2, $3, $4, $5::jsonb)
	          RETURNING id, created_at`

	saved := *q
	err = s.db.QueryRowContext(ctx, query,
		q.ProjectID, q.UserID, q.Question, q.Answer, string(refs),
	).Scan(&saved.ID, &saved.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return &saved, nil
}

// ListQuestionsByProject returns a project's saved questions, newest first.
func (s *PostgresStore) ListQuestionsByProject(ctx context.Context, projectID string) ([]domain.Question, error) {
	query := `SELECT id, project_id, user_id, question, answer, file_references, created_at
	          FROM questions WHERE project_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		var refs []byte
		if err := rows.Scan(
			&q.ID, &q.ProjectID, &q.UserID, &q.Question, &q.Answer, &refs, &q.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if len(refs) > 0 {
			if err := json.Unmarshal(refs, &q.FileReferences); err != nil {
				return nil, fmt.Errorf("unmarshal file references: %w", err)
			}
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
