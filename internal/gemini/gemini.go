package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docquizai/internal/logger"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	// ModelName is the Gemini model used when none is configured
	ModelName = "gemini-2.0-flash"
	// slotTimeout bounds how long a call waits for a free request slot
	slotTimeout = 5 * time.Minute
	// callTimeout bounds a single model round trip
	callTimeout = 3 * time.Minute
)

// Options configures the client.
type Options struct {
	APIKey         string
	Model          string
	ConcurrentReqs int
	MaxAttempts    int
}

// Client wraps the Gemini client. It serves free-text generation, JSON generation
// and image captioning, and caps how many calls are in flight at once.
type Client struct {
	client      *genai.Client
	textModel   *genai.GenerativeModel
	jsonModel   *genai.GenerativeModel
	slots       chan struct{}
	maxAttempts int
	log         *logger.Logger
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, opts Options, log *logger.Logger) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini API key not set")
	}
	if opts.Model == "" {
		opts.Model = ModelName
	}
	if opts.ConcurrentReqs <= 0 {
		opts.ConcurrentReqs = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	safety := []*genai.SafetySetting{{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockLowAndAbove,
	}}

	textModel := client.GenerativeModel(opts.Model)
	textModel.SetTemperature(0.4)
	textModel.SafetySettings = safety

	jsonModel := client.GenerativeModel(opts.Model)
	jsonModel.ResponseMIMEType = "application/json"
	jsonModel.SetTemperature(0.2)
	jsonModel.SetTopK(40)
	jsonModel.SetTopP(0.95)
	jsonModel.SetMaxOutputTokens(8192)
	jsonModel.SafetySettings = safety

	slots := make(chan struct{}, opts.ConcurrentReqs)
	for i := 0; i < opts.ConcurrentReqs; i++ {
		slots <- struct{}{}
	}

	return &Client{
		client:      client,
		textModel:   textModel,
		jsonModel:   jsonModel,
		slots:       slots,
		maxAttempts: opts.MaxAttempts,
		log:         log.With("component", "gemini", "model", opts.Model),
	}, nil
}

// Close closes the Gemini client
func (c *Client) Close() {
	c.client.Close()
}

// Generate returns the model's free-text answer to prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, "text", c.textModel, genai.Text(prompt))
}

// GenerateJSON asks for a JSON response. The text is returned as-is; callers parse it.
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, "json", c.jsonModel, genai.Text(prompt))
}

// DescribeImage uploads the image at path through the File API, asks prompt about it and
// removes the upload again whatever the outcome.
func (c *Client) DescribeImage(ctx context.Context, path, mimeType, prompt string) (string, error) {
	start := time.Now()
	file, err := c.client.UploadFileFromPath(ctx, path, &genai.UploadFileOptions{MIMEType: mimeType})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	c.log.Debug("image uploaded", "file", file.Name, "mime_type", mimeType, "elapsed", time.Since(start))

	defer func() {
		// The request context may already be done; cleanup gets its own deadline.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.client.DeleteFile(cleanupCtx, file.Name); err != nil {
			c.log.Warn("failed to delete uploaded image", "file", file.Name, "error", err)
		}
	}()

	return c.generate(ctx, "vision", c.textModel, genai.FileData{MIMEType: file.MIMEType, URI: file.URI}, genai.Text(prompt))
}

func (c *Client) generate(ctx context.Context, kind string, model *genai.GenerativeModel, parts ...genai.Part) (string, error) {
	if err := c.acquire(ctx); err != nil {
		return "", err
	}
	defer c.release()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt-1) * 2 * time.Second):
			}
		}

		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		resp, err := model.GenerateContent(callCtx, parts...)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("failed to generate content (attempt %d): %w", attempt, err)
			c.log.Warn("gemini call failed", "kind", kind, "attempt", attempt, "error", err, "elapsed", time.Since(start))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		text := extractText(resp)
		if resp.UsageMetadata != nil {
			c.log.Debug("gemini call finished", "kind", kind, "attempt", attempt, "elapsed", time.Since(start),
				"prompt_tokens", resp.UsageMetadata.PromptTokenCount,
				"output_tokens", resp.UsageMetadata.CandidatesTokenCount)
		}
		if strings.TrimSpace(text) == "" {
			// An empty answer is usually a safety block; retrying the same prompt will not help.
			return "", errors.New("no content generated")
		}
		return text, nil
	}
	return "", lastErr
}

// acquire blocks until a request slot is free.
func (c *Client) acquire(ctx context.Context) error {
	select {
	case <-c.slots:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(slotTimeout):
		return fmt.Errorf("timeout waiting for Gemini request slot")
	}
}

func (c *Client) release() {
	c.slots <- struct{}{}
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
		// Only the first candidate with content is used.
		if text.Len() > 0 {
			break
		}
	}
	return text.String()
}
