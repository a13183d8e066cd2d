package image

import (
	"context"

	"studio/internal/domain"
)

// EditRequest is the provider-neutral form of one remote edit call: the
// encoded images in staging order plus the user's instruction. Preconditions
// (non-empty images and prompt) are enforced by the caller.
type EditRequest struct {
	Images    []domain.EncodedImage
	Prompt    string
	RequestID string
}

// Editor is the contract the session controller depends on. Implementations
// issue exactly one remote round trip and never retry.
type Editor interface {
	Edit(ctx context.Context, req EditRequest) (*domain.EditResult, error)
}
