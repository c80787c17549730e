package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/tablefold/tablefold/internal/domain"
	"github.com/tablefold/tablefold/internal/observability"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantError bool
		wantModel string
	}{
		{
			name:      "valid key, default model",
			cfg:       Config{APIKey: "sk-or-test"},
			wantModel: defaultModel,
		},
		{
			name:      "valid key, custom model",
			cfg:       Config{APIKey: "sk-or-test", Model: "google/gemini-2.5-pro"},
			wantModel: "google/gemini-2.5-pro",
		},
		{
			name:      "empty key",
			cfg:       Config{},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg, observability.Nop())
			if tt.wantError {
				if err == nil {
					t.Fatal("expected an error for an empty API key")
				}
				if domain.TypeOf(err) != domain.ErrorTypeConfig {
					t.Errorf("error type = %s, want config", domain.TypeOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			if client.model != tt.wantModel {
				t.Errorf("model = %q, want %q", client.model, tt.wantModel)
			}
		})
	}
}

func TestNewClientRetryOverride(t *testing.T) {
	client, err := NewClient(Config{APIKey: "k", MaxRetries: 7}, observability.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.retry.MaxRetries != 7 {
		t.Errorf("max retries = %d, want 7", client.retry.MaxRetries)
	}
}

func TestBuildRequest(t *testing.T) {
	client, err := NewClient(Config{APIKey: "k"}, observability.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	images := []domain.PageImage{
		{PageNumber: 1, Data: []byte("fake-jpeg-1")},
		{PageNumber: 2, Data: []byte("fake-jpeg-2")},
	}
	req := client.buildRequest(images)

	if req.Stream {
		t.Error("stream must be off: responses are parsed whole")
	}
	if len(req.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(req.Messages))
	}
	parts := req.Messages[0].Content
	if len(parts) != 3 {
		t.Fatalf("content parts = %d, want prompt plus one per page", len(parts))
	}
	if parts[0].Type != "text" || parts[0].Text == "" {
		t.Error("first part must carry the prompt text")
	}
	for _, part := range parts[1:] {
		if part.Type != "image_url" || part.ImageURL == nil {
			t.Errorf("image part malformed: %+v", part)
			continue
		}
		if !strings.HasPrefix(part.ImageURL.URL, "data:image/jpeg;base64,") {
			t.Errorf("image URL not a jpeg data URI: %.40s", part.ImageURL.URL)
		}
	}
}

func TestParseTables(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantCount int
		wantError bool
	}{
		{
			name:      "plain json",
			content:   `{"tables":[{"name":"Costs","rows":[["h"],["v"]]}]}`,
			wantCount: 1,
		},
		{
			name:      "fenced json",
			content:   "```json\n{\"tables\":[{\"name\":\"A\",\"rows\":[[\"h\"]]}]}\n```",
			wantCount: 1,
		},
		{
			name:      "bare fence",
			content:   "```\n{\"tables\":[]}\n```",
			wantCount: 0,
		},
		{
			name:      "no tables",
			content:   `{"tables":[]}`,
			wantCount: 0,
		},
		{
			name:      "prose instead of json",
			content:   "I could not find any tables.",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables, err := parseTables(tt.content)
			if tt.wantError {
				if err == nil {
					t.Error("expected a parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTables: %v", err)
			}
			if len(tables) != tt.wantCount {
				t.Errorf("tables = %d, want %d", len(tables), tt.wantCount)
			}
		})
	}
}

func TestParseTablesNamesUnnamed(t *testing.T) {
	tables, err := parseTables(`{"tables":[{"rows":[["h"]]},{"name":"Kept","rows":[["h"]]}]}`)
	if err != nil {
		t.Fatalf("parseTables: %v", err)
	}
	if tables[0].Name != "Table 1" {
		t.Errorf("unnamed table = %q, want %q", tables[0].Name, "Table 1")
	}
	if tables[1].Name != "Kept" {
		t.Errorf("named table renamed to %q", tables[1].Name)
	}
}

func TestShouldRetry(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !shouldRetry(code) {
			t.Errorf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		if shouldRetry(code) {
			t.Errorf("status %d should not be retryable", code)
		}
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := DefaultRetryConfig()
	if got := calculateBackoff(0, cfg); got != 1*time.Second {
		t.Errorf("attempt 0 backoff = %s", got)
	}
	if got := calculateBackoff(1, cfg); got != 2*time.Second {
		t.Errorf("attempt 1 backoff = %s", got)
	}
	if got := calculateBackoff(10, cfg); got != cfg.MaxBackoff {
		t.Errorf("large attempt backoff = %s, want cap %s", got, cfg.MaxBackoff)
	}
}
