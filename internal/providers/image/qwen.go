package image

import (
	"context"

	"studio/internal/domain"
	"studio/internal/providers/qwen"
)

type QwenEditor struct {
	client *qwen.Client
}

func NewQwenEditor(client *qwen.Client) *QwenEditor {
	return &QwenEditor{client: client}
}

func (q *QwenEditor) Edit(ctx context.Context, req EditRequest) (*domain.EditResult, error) {
	return q.client.EditImage(ctx, qwen.EditRequest{
		Images:    req.Images,
		Prompt:    req.Prompt,
		RequestID: req.RequestID,
	})
}

var _ Editor = (*QwenEditor)(nil)
