package reason

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds the Gemini connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for the given key.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		Model:   "gemini-1.5-flash",
		Timeout: 2 * time.Minute,
	}
}

// GeminiClient implements Client against the Gemini REST API.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// NewGeminiClient creates a client with the given config.
func NewGeminiClient(cfg Config, logger *zap.Logger) *GeminiClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-1.5-flash"
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &GeminiClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Model returns the configured model identifier.
func (c *GeminiClient) Model() string {
	return c.model
}

// Wire format types.

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Tools             []geminiTool            `json:"tools,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type geminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type geminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateWithTools starts a conversation with the user prompt.
func (c *GeminiClient) GenerateWithTools(ctx context.Context, system, user string, tools []ToolDefinition) (*Result, error) {
	contents := []geminiContent{{
		Role:  "user",
		Parts: []geminiPart{{Text: user}},
	}}
	return c.generate(ctx, system, contents, tools)
}

// ContinueWithToolResults replays the conversation and appends the executed
// tool outcomes as a function turn.
func (c *GeminiClient) ContinueWithToolResults(ctx context.Context, system string, history []Turn, outcomes []ToolOutcome, tools []ToolDefinition) (*Result, error) {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, turn := range history {
		contents = append(contents, turnToContent(turn))
	}

	resultParts := make([]geminiPart, 0, len(outcomes))
	for _, outcome := range outcomes {
		resultParts = append(resultParts, geminiPart{
			FunctionResponse: &geminiFunctionResponse{
				Name: outcome.Name,
				Response: map[string]any{
					"content":  outcome.Content,
					"is_error": outcome.IsError,
				},
			},
		})
	}
	contents = append(contents, geminiContent{Role: "function", Parts: resultParts})

	return c.generate(ctx, system, contents, tools)
}

func turnToContent(turn Turn) geminiContent {
	content := geminiContent{Role: turn.Role}
	if turn.Text != "" {
		content.Parts = append(content.Parts, geminiPart{Text: turn.Text})
	}
	for _, call := range turn.Calls {
		content.Parts = append(content.Parts, geminiPart{
			FunctionCall: &geminiFunctionCall{Name: call.Name, Args: call.Args},
		})
	}
	for _, outcome := range turn.Outcomes {
		content.Parts = append(content.Parts, geminiPart{
			FunctionResponse: &geminiFunctionResponse{
				Name: outcome.Name,
				Response: map[string]any{
					"content":  outcome.Content,
					"is_error": outcome.IsError,
				},
			},
		})
	}
	return content
}

// generate performs one generateContent call with pacing and a retry loop
// on rate limits and transport failures.
func (c *GeminiClient) generate(ctx context.Context, system string, contents []geminiContent, tools []ToolDefinition) (*Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key not configured")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	// Pace requests 100ms apart across goroutines.
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	reqBody := geminiRequest{
		Contents: contents,
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     1.0,
			MaxOutputTokens: 8192,
		},
	}
	if system != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	if len(tools) > 0 {
		decls := make([]geminiFunctionDeclaration, len(tools))
		for i, t := range tools {
			decls[i] = geminiFunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			}
		}
		reqBody.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	startTime := time.Now()
	maxRetries := 3
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			c.logger.Warn("rate limited, backing off", zap.Int("attempt", attempt))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var apiResp geminiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if apiResp.Error != nil {
			return nil, fmt.Errorf("API error: %s", apiResp.Error.Message)
		}
		if len(apiResp.Candidates) == 0 {
			return nil, fmt.Errorf("no completion returned")
		}

		result := &Result{StopReason: apiResp.Candidates[0].FinishReason}
		modelTurn := Turn{Role: "model"}
		var textBuilder strings.Builder
		for _, part := range apiResp.Candidates[0].Content.Parts {
			if part.Text != "" {
				textBuilder.WriteString(part.Text)
			}
			if part.FunctionCall != nil {
				call := ToolCall{
					ID:   fmt.Sprintf("call_%d", len(result.ToolCalls)),
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				}
				result.ToolCalls = append(result.ToolCalls, call)
				modelTurn.Calls = append(modelTurn.Calls, call)
			}
		}
		result.Text = strings.TrimSpace(textBuilder.String())
		modelTurn.Text = result.Text
		result.ModelTurn = modelTurn

		c.logger.Debug("generation completed",
			zap.Duration("duration", time.Since(startTime)),
			zap.Int("text_len", len(result.Text)),
			zap.Int("tool_calls", len(result.ToolCalls)),
			zap.String("stop_reason", result.StopReason))
		return result, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

var _ Client = (*GeminiClient)(nil)
