package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/gitsage/gitsage/internal/domain"
	"github.com/gitsage/gitsage/internal/port"
	"golang.org/x/sync/singleflight"
)

// sourceLoader is the crawler seen by the pipeline.
type sourceLoader interface {
	Load(ctx context.Context, repoURL, token string) ([]domain.SourceFile, error)
}

// embeddingWriter is the slice of the vector store the pipeline writes to.
type embeddingWriter interface {
	Insert(ctx context.Context, e *domain.SourceCodeEmbedding) error
	DeleteByProject(ctx context.Context, projectID string) error
}

// projectResolver resolves a project's repository URL and token for reindex.
type projectResolver interface {
	GetProjectByID(ctx context.Context, id string) (*domain.Project, error)
}

// IndexOutcome reports the aggregate result of one indexing run.
type IndexOutcome struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// IndexingPipeline orchestrates crawl -> summarize -> embed -> persist with
// document-level parallelism and per-file failure tolerance.
type IndexingPipeline struct {
	loader     sourceLoader
	ai         port.AIProvider
	embeddings embeddingWriter
	projects   projectResolver
	workers    int

	// Reindex runs are serialized per project: concurrent delete-then-recreate
	// sequences on the same project would interleave unsafely.
	reindexGroup singleflight.Group
}

// NewIndexingPipeline creates a pipeline with the given cap on concurrent
// in-flight summarize+embed pairs.
func NewIndexingPipeline(loader sourceLoader, ai port.AIProvider, embeddings embeddingWriter, projects projectResolver, workers int) *IndexingPipeline {
	if workers <= 0 {
		workers = 5
	}
	return &IndexingPipeline{
		loader:     loader,
		ai:         ai,
		embeddings: embeddings,
		projects:   projects,
		workers:    workers,
	}
}

// Index crawls the repository and indexes every file independently. The run
// only fails if the crawl itself cannot start; per-file summarization,
// embedding, or persistence failures degrade locally and are reported in the
// outcome. progress, when non-nil, is called after each file settles.
func (p *IndexingPipeline) Index(ctx context.Context, projectID, repoURL, token string, progress func(done, total int)) (*IndexOutcome, error) {
	files, err := p.loader.Load(ctx, repoURL, token)
	if err != nil {
		return nil, fmt.Errorf("load repository: %w", err)
	}

	outcome := &IndexOutcome{Total: len(files)}
	var (
		done      atomic.Int32
		succeeded atomic.Int32
		failed    atomic.Int32
		wg        sync.WaitGroup
	)
	sem := make(chan struct{}, p.workers)

	for _, file := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := p.indexFile(ctx, projectID, file); err != nil {
				slog.Error("index file failed", "project_id", projectID, "file", file.Path, "error", err)
				failed.Add(1)
			} else {
				succeeded.Add(1)
			}
			if progress != nil {
				progress(int(done.Add(1)), outcome.Total)
			}
		}()
	}
	wg.Wait()

	outcome.Succeeded = int(succeeded.Load())
	outcome.Failed = int(failed.Load())
	slog.Info("indexing complete",
		"project_id", projectID,
		"total", outcome.Total,
		"succeeded", outcome.Succeeded,
		"failed", outcome.Failed,
	)
	return outcome, nil
}

// indexFile summarizes, embeds, and persists one file. A summarization
// failure degrades to a placeholder summary which is still embedded and
// persisted; an embedding failure persists the row with a NULL vector so the
// file is tracked but excluded from retrieval.
func (p *IndexingPipeline) indexFile(ctx context.Context, projectID string, file domain.SourceFile) error {
	code := truncateAtRune(file.Content, maxSummaryInput)

	summary, err := p.ai.Generate(ctx, summarizeFilePrompt(file.Path, "", "", code))
	if err != nil {
		slog.Warn("summarize failed, using placeholder", "file", file.Path, "error", err)
		summary = fileSummaryPlaceholder
	}

	var vector []float32
	vector, err = p.ai.Embed(ctx, summary)
	if err != nil {
		slog.Warn("embed failed, persisting without vector", "file", file.Path, "error", err)
		vector = nil
	}

	record := &domain.SourceCodeEmbedding{
		ProjectID:  projectID,
		FileName:   file.Path,
		SourceCode: file.Content,
		Summary:    summary,
		Vector:     vector,
	}
	if err := p.embeddings.Insert(ctx, record); err != nil {
		return fmt.Errorf("persist embedding: %w", err)
	}
	if vector == nil {
		return fmt.Errorf("embed summary: %w", err)
	}
	return nil
}

// truncateAtRune caps s at max bytes, backing off to the nearest rune
// boundary so a multi-byte character is never split.
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Reindex deletes all existing embeddings for the project and runs a fresh
// crawl-and-index. Concurrent calls for the same project share one run via
// singleflight.
func (p *IndexingPipeline) Reindex(ctx context.Context, projectID string, progress func(done, total int)) (*IndexOutcome, error) {
	v, err, _ := p.reindexGroup.Do(projectID, func() (interface{}, error) {
		project, err := p.projects.GetProjectByID(ctx, projectID)
		if err != nil {
			return nil, err
		}

		if err := p.embeddings.DeleteByProject(ctx, projectID); err != nil {
			return nil, fmt.Errorf("delete embeddings: %w", err)
		}
		slog.Info("deleted existing embeddings, starting re-index", "project_id", projectID)

		return p.Index(ctx, projectID, project.GithubURL, project.GithubToken, progress)
	})
	if err != nil {
		return nil, err
	}
	return v.(*IndexOutcome), nil
}
