package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// GeminiConfig holds the configuration for the Gemini REST API.
type GeminiConfig struct {
	BaseURL    string // e.g. https://generativelanguage.googleapis.com
	APIKey     string
	ChatModel  string // e.g. gemini-2.5-flash
	EmbedModel string // e.g. text-embedding-004
}

// GeminiProvider implements port.AIProvider using the Google Generative
// Language REST API. One configured instance is shared across all calls.
type GeminiProvider struct {
	cfg        GeminiConfig
	httpClient *http.Client
}

// NewGeminiProvider creates a new Gemini-backed AI provider.
func NewGeminiProvider(cfg GeminiConfig) *GeminiProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	return &GeminiProvider{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// ModelName returns the generation model identifier.
func (g *GeminiProvider) ModelName() string {
	return g.cfg.ChatModel
}

// EmbeddingModelName returns the embedding model identifier.
func (g *GeminiProvider) EmbeddingModelName() string {
	return g.cfg.EmbedModel
}

// Embed generates a vector embedding for the given text.
func (g *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	payload := map[string]interface{}{
		"model": "models/" + g.cfg.EmbedModel,
		"content": map[string]interface{}{
			"parts": []map[string]string{{"text": text}},
		},
	}

	path := fmt.Sprintf("/v1beta/models/%s:embedContent", g.cfg.EmbedModel)
	body, err := g.post(ctx, path, payload)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}

	var resp struct {
		Embedding struct {
			Values []float32 `json:"values"`
		} `json:"embedding"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("gemini embed decode: %w", err)
	}

	if len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini embed: empty response")
	}

	return resp.Embedding.Values, nil
}

// Generate sends a prompt and returns the complete response text.
func (g *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	path := fmt.Sprintf("/v1beta/models/%s:generateContent", g.cfg.ChatModel)
	body, err := g.post(ctx, path, generatePayload(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("gemini generate decode: %w", err)
	}

	text := resp.text()
	if text == "" {
		return "", fmt.Errorf("gemini generate: empty response")
	}
	return text, nil
}

// GenerateStream sends a prompt and streams the response token-by-token via
// the server-sent-events variant of the generate endpoint.
func (g *GeminiProvider) GenerateStream(ctx context.Context, prompt string) (<-chan string, error) {
	payloadBytes, _ := json.Marshal(generatePayload(prompt))
	path := fmt.Sprintf("/v1beta/models/%s:streamGenerateContent?alt=sse", g.cfg.ChatModel)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("gemini stream: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gemini API error (%d): %s", resp.StatusCode, string(body))
	}

	ch := make(chan string, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return
			}

			var chunk generateResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return
			}
			if text := chunk.text(); text != "" {
				select {
				case ch <- text:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// generateResponse mirrors the candidates structure of the generate endpoints.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r *generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

func generatePayload(prompt string) map[string]interface{} {
	return map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}
}

// post is a helper for POST requests to the Gemini API.
func (g *GeminiProvider) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gemini API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
