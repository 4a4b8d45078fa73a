package handler

import (
	"context"
	"log/slog"

	"github.com/gitsage/gitsage/internal/domain"
	"github.com/gitsage/gitsage/internal/middleware"
	"github.com/gitsage/gitsage/internal/service"
	"github.com/gofiber/fiber/v3"
)

type commitLister interface {
	ListCommits(ctx context.Context, projectID string) ([]domain.GithubCommit, error)
}

// CommitHandler serves stored commit history and triggers background polls.
type CommitHandler struct {
	store  commitLister
	poller *service.CommitPoller
}

// NewCommitHandler creates a new commit handler.
func NewCommitHandler(store commitLister, poller *service.CommitPoller) *CommitHandler {
	return &CommitHandler{store: store, poller: poller}
}

// Register sets up commit routes.
func (h *CommitHandler) Register(router fiber.Router) {
	router.Get("/projects/:id/commits", h.List)
	router.Post("/projects/:id/commits/poll", h.Poll)
}

// List returns the stored commits for a project, newest first, and kicks off
// a background poll so the next read sees anything pushed since.
func (h *CommitHandler) List(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	projectID := c.Params("id")
	commits, err := h.store.ListCommits(c.Context(), projectID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	go func() {
		if _, err := h.poller.Poll(context.Background(), projectID); err != nil {
			slog.Error("background commit poll failed", "project_id", projectID, "error", err)
		}
	}()

	if commits == nil {
		commits = []domain.GithubCommit{}
	}
	return c.JSON(fiber.Map{"commits": commits})
}

// Poll fetches new commits synchronously and returns the ones it inserted.
func (h *CommitHandler) Poll(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	inserted, err := h.poller.Poll(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if inserted == nil {
		inserted = []domain.GithubCommit{}
	}
	return c.JSON(fiber.Map{"new_commits": inserted})
}
