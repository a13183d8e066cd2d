package image

import (
	"context"

	"studio/internal/domain"
	"studio/internal/providers/genai"
)

type GeminiEditor struct {
	client *genai.Client
}

func NewGeminiEditor(client *genai.Client) *GeminiEditor {
	return &GeminiEditor{client: client}
}

func (g *GeminiEditor) Edit(ctx context.Context, req EditRequest) (*domain.EditResult, error) {
	return g.client.EditImage(ctx, genai.EditRequest{
		Images:    req.Images,
		Prompt:    req.Prompt,
		RequestID: req.RequestID,
	})
}

var _ Editor = (*GeminiEditor)(nil)
