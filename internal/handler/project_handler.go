package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gitsage/gitsage/internal/adapter/store"
	"github.com/gitsage/gitsage/internal/domain"
	"github.com/gitsage/gitsage/internal/middleware"
	"github.com/gitsage/gitsage/internal/port"
	"github.com/gitsage/gitsage/internal/service"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// ProjectHandler handles project lifecycle endpoints.
type ProjectHandler struct {
	projects *service.ProjectService
	indexer  *service.IndexingPipeline
	store    *store.PostgresStore
	tracker  *JobTracker
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(projects *service.ProjectService, indexer *service.IndexingPipeline, pgStore *store.PostgresStore, tracker *JobTracker) *ProjectHandler {
	return &ProjectHandler{projects: projects, indexer: indexer, store: pgStore, tracker: tracker}
}

// Register sets up project routes.
func (h *ProjectHandler) Register(router fiber.Router) {
	projects := router.Group("/projects")
	projects.Post("/", h.Create)
	projects.Get("/", h.List)
	projects.Post("/check-credits", h.CheckCredits)
	projects.Get("/:id", h.Get)
	projects.Get("/:id/members", h.Members)
	projects.Post("/:id/archive", h.Archive)
	projects.Post("/:id/reindex", h.Reindex)
	projects.Post("/:id/questions", h.SaveAnswer)
	projects.Get("/:id/questions", h.ListQuestions)

	router.Get("/me", h.Me)
	router.Get("/credits", h.MyCredits)
}

// Create admits a new project. Indexing and commit polling run in the
// background; the response returns as soon as admission succeeds.
func (h *ProjectHandler) Create(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		Name        string `json:"name"`
		GithubURL   string `json:"github_url"`
		GithubToken string `json:"github_token,omitempty"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	project, err := h.projects.Create(c.Context(), uc.UserID, body.Name, body.GithubURL, body.GithubToken)
	if err != nil {
		var shortfall *service.CreditShortfallError
		switch {
		case errors.As(err, &shortfall):
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"error":     shortfall.Error(),
				"required":  shortfall.Required,
				"available": shortfall.Available,
			})
		case errors.Is(err, port.ErrInvalidRepoURL):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(project)
}

// List returns the caller's active projects.
func (h *ProjectHandler) List(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	projects, err := h.projects.List(c.Context(), uc.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"projects": projects})
}

// Get returns one project with its indexed file count.
func (h *ProjectHandler) Get(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	project, indexed, err := h.projects.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, port.ErrProjectNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"project": project, "indexed_files": indexed})
}

// Members returns the user IDs with access to a project.
func (h *ProjectHandler) Members(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	members, err := h.projects.Members(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, port.ErrProjectNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if members == nil {
		members = []string{}
	}
	return c.JSON(fiber.Map{"members": members})
}

// Me returns the authenticated user's profile.
func (h *ProjectHandler) Me(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	user, err := h.projects.Profile(c.Context(), uc.UserID)
	if err != nil {
		if errors.Is(err, port.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(user)
}

// CheckCredits reports the admission cost of a repository against the
// caller's balance, with no side effects.
func (h *ProjectHandler) CheckCredits(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		GithubURL   string `json:"github_url"`
		GithubToken string `json:"github_token,omitempty"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	fileCount, credits, err := h.projects.CheckCredits(c.Context(), uc.UserID, body.GithubURL, body.GithubToken)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"file_count": fileCount, "credits": credits})
}

// Archive soft-deletes a project.
func (h *ProjectHandler) Archive(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	if err := h.projects.Archive(c.Context(), c.Params("id")); err != nil {
		if errors.Is(err, port.ErrProjectNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// Reindex accepts a reindex job and returns 202 immediately. The run deletes
// all prior embeddings, then re-crawls; concurrent requests for the same
// project share one run.
func (h *ProjectHandler) Reindex(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	projectID := c.Params("id")
	jobID := uuid.New().String()
	h.tracker.CreateJob(jobID, projectID)

	// Run reindex in background; no HTTP connection held
	go func() {
		ctx := context.Background()
		outcome, err := h.indexer.Reindex(ctx, projectID, func(done, total int) {
			h.tracker.UpdateProgress(jobID, done, total)
		})
		if err != nil {
			slog.Error("reindex failed", "project_id", projectID, "error", err)
			h.tracker.Fail(jobID, err.Error())
			return
		}
		h.tracker.Complete(jobID, outcome.Succeeded, outcome.Failed)
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  jobID,
		"message": "reindex started",
	})
}

// SaveAnswer persists a Q&A turn on explicit user action.
func (h *ProjectHandler) SaveAnswer(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		Question       string                 `json:"question"`
		Answer         string                 `json:"answer"`
		FileReferences []domain.FileReference `json:"file_references"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	saved, err := h.projects.SaveAnswer(c.Context(), uc.UserID, c.Params("id"), body.Question, body.Answer, body.FileReferences)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(saved)
}

// ListQuestions returns a project's saved Q&A turns.
func (h *ProjectHandler) ListQuestions(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	questions, err := h.projects.ListQuestions(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"questions": questions})
}

// MyCredits returns the caller's balance and purchase history.
func (h *ProjectHandler) MyCredits(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	credits, err := h.store.GetCredits(c.Context(), uc.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	txs, err := h.store.ListCreditTransactions(c.Context(), uc.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"credits": credits, "transactions": txs})
}
