package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gitsage/gitsage/internal/domain"
	"github.com/gitsage/gitsage/internal/port"
)

// Retrieval defaults. Retrieval keeps the top K matches with similarity
// strictly above the floor.
const (
	defaultTopK          = 10
	defaultMinSimilarity = 0.3
)

// retriever is the slice of the vector store the QA service reads from.
type retriever interface {
	Search(ctx context.Context, projectID string, queryVector []float32, k int, minSimilarity float64) ([]domain.FileReference, error)
}

// QAService answers natural-language questions about an indexed project by
// retrieving similar file summaries and streaming a grounded answer.
type QAService struct {
	ai            port.AIProvider
	retriever     retriever
	topK          int
	minSimilarity float64
}

// NewQAService creates a QA service with default retrieval parameters.
func NewQAService(ai port.AIProvider, retriever retriever) *QAService {
	return &QAService{
		ai:            ai,
		retriever:     retriever,
		topK:          defaultTopK,
		minSimilarity: defaultMinSimilarity,
	}
}

// Answer embeds the question, retrieves matching files scoped to the project,
// and streams a grounded answer. The file references are returned eagerly,
// independent of how much of the stream the caller consumes. Zero retrieved
// rows is not an error: the generator receives an empty context block and is
// expected to produce its insufficient-information fallback. Retrieval
// failures are hard errors, distinct from the legitimate empty-result case.
func (s *QAService) Answer(ctx context.Context, projectID, question string) (<-chan string, []domain.FileReference, error) {
	queryVector, err := s.ai.Embed(ctx, question)
	if err != nil {
		return nil, nil, fmt.Errorf("embed question: %w", err)
	}

	refs, err := s.retriever.Search(ctx, projectID, queryVector, s.topK, s.minSimilarity)
	if err != nil {
		return nil, nil, fmt.Errorf("retrieve context: %w", err)
	}

	slog.Info("answering question", "project_id", projectID, "references", len(refs))

	var contextBlock strings.Builder
	for _, ref := range refs {
		fmt.Fprintf(&contextBlock, "Source File Name: %s\nSummary of File: %s\nCode Content:\n%s\n\n",
			ref.FileName, ref.Summary, ref.SourceCode)
	}

	stream, err := s.ai.GenerateStream(ctx, answerPrompt(contextBlock.String(), question))
	if err != nil {
		return nil, nil, fmt.Errorf("generate answer: %w", err)
	}

	return stream, refs, nil
}
