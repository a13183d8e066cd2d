package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Client is a thin facade over the Gemini generateContent endpoint tuned for
// image editing: an ordered set of inline images plus one instruction in,
// an edited image and/or an annotation text out.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// EditRequest carries one remote edit call.
type EditRequest struct {
	Images    []domain.EncodedImage
	Prompt    string
	RequestID string
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may
// provide a nil HTTP client; a reusable one with a sensible timeout will be
// created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash-image"
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// EditImage issues exactly one generateContent call and normalizes the
// response. Three outcomes are possible: an image part (with optional text
// annotation), a text-only response when the model declined to produce an
// image, or an error. No retry is performed.
func (c *Client) EditImage(ctx context.Context, req EditRequest) (*domain.EditResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.TransportError{Err: err}
	}

	parts := make([]geminiPart, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: img.MimeType,
			Data:     img.Base64Data,
		}})
	}
	parts = append(parts, geminiPart{Text: req.Prompt})

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
		return nil, err
	}

	result := parseEditResponse(response)
	if result == nil {
		return nil, &domain.RemoteError{Message: "no content returned"}
	}

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Int("input_images", len(req.Images)).
		Bool("image_returned", result.HasImage()).
		Msg("genai: edit call settled")

	return result, nil
}

// parseEditResponse extracts the first inline image and all text parts from
// the candidate list. It returns nil only when the response carried neither.
func parseEditResponse(response geminiGenerateContentResponse) *domain.EditResult {
	var result domain.EditResult
	var texts []string
	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" && result.ImageData == "" {
				result.ImageData = part.InlineData.Data
				result.MimeType = part.InlineData.MimeType
				if result.MimeType == "" {
					result.MimeType = "image/png"
				}
			}
			if part.Text != "" {
				texts = append(texts, part.Text)
			}
		}
	}
	result.Text = strings.Join(texts, "\n")
	if result.ImageData == "" && result.Text == "" {
		return nil
	}
	return &result
}

func (c *Client) invoke(ctx context.Context, path string, payload any, out any) error {
	endpoint := c.baseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return &domain.TransportError{Err: fmt.Errorf("marshal request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &domain.TransportError{Err: fmt.Errorf("create request: %w", err)}
	}
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{Err: fmt.Errorf("reach gemini: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr geminiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return &domain.RemoteError{Status: resp.StatusCode, Message: apiErr.Error.Message}
		}
		data, _ := io.ReadAll(resp.Body)
		if msg := strings.TrimSpace(string(data)); msg != "" {
			return &domain.RemoteError{Status: resp.StatusCode, Message: msg}
		}
		return &domain.RemoteError{Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.TransportError{Err: fmt.Errorf("decode gemini response: %w", err)}
	}
	return nil
}
