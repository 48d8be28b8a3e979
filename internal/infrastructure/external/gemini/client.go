// Package gemini implements service.LLMClient against the Gemini API via
// google.golang.org/genai: one client per worker process (spec §6), with
// a token-bucket rate limiter guarding both Complete and Embed.
package gemini

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/sogos/paperlink/internal/domain/service"
)

// Config configures one Client.
type Config struct {
	APIKey         string
	CompletionModel string // default "gemini-2.0-flash"
	EmbeddingModel  string // default "text-embedding-004"
	// RequestsPerSecond bounds combined Complete+Embed call rate for this
	// process; each worker child constructs its own Client, so this is a
	// per-process limit, not a global one.
	RequestsPerSecond float64
}

// Client implements service.LLMClient against the Gemini API.
type Client struct {
	genai           *genai.Client
	completionModel string
	embeddingModel  string
	limiter         *rate.Limiter
	logger          service.Logger
}

// NewClient constructs a Client. One instance is built per worker
// process at startup (spec §6); it is not shared across OS processes.
func NewClient(ctx context.Context, cfg Config, logger service.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key required")
	}
	completionModel := cfg.CompletionModel
	if completionModel == "" {
		completionModel = "gemini-2.0-flash"
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "text-embedding-004"
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}

	return &Client{
		genai:           gc,
		completionModel: completionModel,
		embeddingModel:  embeddingModel,
		limiter:         rate.NewLimiter(rate.Limit(rps), 1),
		logger:          logger,
	}, nil
}

// Complete issues one structured-output chat call, asking the model for
// a JSON response matching the caller's expected shape.
func (c *Client) Complete(ctx context.Context, req service.CompletionRequest) (service.Completion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return service.Completion{}, err
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.completionModel, genai.Text(req.UserPrompt), config)
	if err != nil {
		return service.Completion{}, fmt.Errorf("gemini: generate content (%s): %w", req.SchemaName, err)
	}

	text := resp.Text()
	usage := service.Usage{Calls: 1}
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return service.Completion{Text: text, Usage: usage}, nil
}

// Embed returns one embedding vector per input text, in the same order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := c.genai.Models.EmbedContent(ctx, c.embeddingModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: embed content: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: embed content: got %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}
