package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("qwen: api key is required")

// Options configures the DashScope Qwen image-edit client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	Watermark      bool
	HTTPClient     *http.Client
	Logger         *zerolog.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the DashScope Qwen image-edit API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	watermark  bool
	httpClient *http.Client
	logger     zerolog.Logger
}

// EditRequest captures one edit invocation: the staged images in order plus
// the user's instruction.
type EditRequest struct {
	Images    []domain.EncodedImage
	Prompt    string
	RequestID string
}

type generationRequest struct {
	Model      string           `json:"model"`
	Input      generationInput  `json:"input"`
	Parameters generationParams `json:"parameters"`
}

type generationInput struct {
	Messages []generationMessage `json:"messages"`
}

type generationMessage struct {
	Role    string              `json:"role"`
	Content []generationContent `json:"content"`
}

type generationContent struct {
	Image string `json:"image,omitempty"`
	Text  string `json:"text,omitempty"`
}

type generationParams struct {
	Watermark *bool `json:"watermark,omitempty"`
}

type generationResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content []generationContent `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "qwen-image-edit"
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		watermark:  opts.Watermark,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// EditImage invokes the DashScope multimodal generation endpoint once.
// Images are sent as data URLs in staging order followed by the text
// instruction. The API answers with an image URL, a text explanation, or
// both; either maps to a success shape.
func (c *Client) EditImage(ctx context.Context, req EditRequest) (*domain.EditResult, error) {
	if !c.HasCredentials() {
		return nil, &domain.RemoteError{Message: ErrMissingAPIKey.Error()}
	}

	content := make([]generationContent, 0, len(req.Images)+1)
	for _, img := range req.Images {
		content = append(content, generationContent{
			Image: fmt.Sprintf("data:%s;base64,%s", img.MimeType, img.Base64Data),
		})
	}
	content = append(content, generationContent{Text: req.Prompt})

	payload := generationRequest{
		Model: c.model,
		Input: generationInput{
			Messages: []generationMessage{{Role: "user", Content: content}},
		},
	}
	watermark := c.watermark
	payload.Parameters.Watermark = &watermark

	endpoint := c.baseURL + "/services/aigc/multimodal-generation/generation"
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("qwen: encode request: %w", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("qwen: build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("qwen: http request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("qwen: read response: %w", err)}
	}

	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
			return nil, &domain.RemoteError{Status: resp.StatusCode, Message: detail.Message}
		}
		return nil, &domain.RemoteError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	var decoded generationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("qwen: decode response: %w", err)}
	}
	if decoded.Code != "" {
		return nil, &domain.RemoteError{Status: resp.StatusCode, Message: decoded.Message}
	}

	result := collectResult(decoded)
	if result == nil {
		return nil, &domain.RemoteError{Message: "qwen: empty response"}
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("request_id", decoded.RequestID).
		Bool("image_returned", result.HasImage()).
		Msg("qwen: edit call settled")

	return result, nil
}

func collectResult(resp generationResponse) *domain.EditResult {
	var result domain.EditResult
	var texts []string
	for _, choice := range resp.Output.Choices {
		for _, content := range choice.Message.Content {
			if u := strings.TrimSpace(content.Image); u != "" && result.ImageURL == "" {
				result.ImageURL = u
			}
			if content.Text != "" {
				texts = append(texts, content.Text)
			}
		}
	}
	result.Text = strings.Join(texts, "\n")
	if result.ImageURL == "" && result.Text == "" {
		return nil
	}
	return &result
}
