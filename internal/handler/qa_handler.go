package handler

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/gitsage/gitsage/internal/middleware"
	"github.com/gitsage/gitsage/internal/service"
	"github.com/gofiber/fiber/v3"
)

// QAHandler handles question-answering endpoints.
type QAHandler struct {
	qa *service.QAService
}

// NewQAHandler creates a new QA handler.
func NewQAHandler(qa *service.QAService) *QAHandler {
	return &QAHandler{qa: qa}
}

// Register sets up QA routes.
func (h *QAHandler) Register(router fiber.Router) {
	router.Post("/projects/:id/ask", h.Ask)
}

// Ask answers a question about a project and streams the answer via
// Server-Sent Events. The first event carries the full set of file
// references; delta events follow as tokens arrive, independent of how many
// the client consumes. A mid-stream failure ends the stream with whatever
// partial output was produced.
func (h *QAHandler) Ask(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		Question string `json:"question"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "question is required"})
	}

	stream, refs, err := h.qa.Answer(c.Context(), c.Params("id"), body.Question)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		refsData, _ := json.Marshal(fiber.Map{"file_references": refs})
		fmt.Fprintf(w, "event: references\ndata: %s\n\n", string(refsData))
		w.Flush()

		for delta := range stream {
			data, _ := json.Marshal(fiber.Map{"delta": delta})
			fmt.Fprintf(w, "event: delta\ndata: %s\n\n", string(data))
			w.Flush()
		}

		fmt.Fprint(w, "event: done\ndata: {}\n\n")
		w.Flush()
	})
}
