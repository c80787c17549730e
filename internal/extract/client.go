// Package extract calls the external table-extraction capability: given a
// sequence of page images it returns zero or more named tables of string
// cells, or fails.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/observability"
)

const (
	openRouterURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel  = "google/gemini-2.5-flash-preview-09-2025"
)

const extractionPrompt = `Extract every table visible in the attached page images.
Respond with a single JSON object of the form
{"tables":[{"name":"...","rows":[["cell","cell"],["cell","cell"]]}]}
where the first row of each table is its header row. All cells are plain
strings. Use the table caption or a short description as the name. If no
tables are present respond with {"tables":[]}. Respond with JSON only.`

// Client handles communication with the OpenRouter API
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
	retry      RetryConfig
	logger     *observability.Logger
}

// Config holds extraction client configuration.
type Config struct {
	APIKey         string
	Model          string
	RequestTimeout time.Duration
	MaxRetries     int
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// Request represents the API request structure
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Response represents the API response structure
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

// Choice represents a single completion choice
type Choice struct {
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// ChoiceMessage represents the completion message
type ChoiceMessage struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// NewClient creates a new extraction client
func NewClient(cfg Config, logger *observability.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.ConfigError("extraction API key is not set", nil)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	return &Client{
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		logger:     logger.WithComponent("extract"),
	}, nil
}

// ExtractTables sends the page images to the model and parses the tables out
// of its response.
func (c *Client) ExtractTables(ctx context.Context, images []domain.PageImage) ([]domain.RawTable, error) {
	if len(images) == 0 {
		return nil, domain.ExtractionError("no page images to extract from", nil)
	}

	body, err := json.Marshal(c.buildRequest(images))
	if err != nil {
		return nil, domain.APIError("failed to marshal request", err)
	}

	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, openRouterURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("X-Title", "tablefold")

		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, domain.APIError("failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, domain.ExtractionError(
			fmt.Sprintf("extraction API returned status %d: %s", resp.StatusCode, string(bodyBytes)), nil)
	}

	var parsed Response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, domain.ExtractionError("failed to decode extraction response", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, domain.ExtractionError("extraction response contained no choices", nil)
	}

	content := parsed.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return nil, domain.ExtractionError("extraction model returned an empty response", nil)
	}

	tables, err := parseTables(content)
	if err != nil {
		return nil, domain.ExtractionError("extraction model returned malformed tables", err)
	}

	c.logger.Debug().Int("pages", len(images)).Int("tables", len(tables)).Msg("extraction complete")
	return tables, nil
}

// buildRequest constructs the API request with the page images attached
func (c *Client) buildRequest(images []domain.PageImage) *Request {
	parts := make([]ContentPart, 0, len(images)+1)
	parts = append(parts, ContentPart{Type: "text", Text: extractionPrompt})

	for _, img := range images {
		url := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img.Data)
		parts = append(parts, ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: url},
		})
	}

	return &Request{
		Model:    c.model,
		Messages: []Message{{Role: "user", Content: parts}},
		Stream:   false,
	}
}

// parseTables unwraps the model's JSON payload, tolerating markdown fences.
func parseTables(content string) ([]domain.RawTable, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var envelope struct {
		Tables []domain.RawTable `json:"tables"`
	}
	if err := json.Unmarshal([]byte(content), &envelope); err != nil {
		return nil, err
	}

	for i, table := range envelope.Tables {
		if table.Name == "" {
			envelope.Tables[i].Name = fmt.Sprintf("Table %d", i+1)
		}
	}
	return envelope.Tables, nil
}
