// Package session owns the per-session editing state machine: the staged
// source images, the current instruction, the single in-flight submission,
// and the last settled outcome. All transitions are guarded and serialized;
// the in-flight flag is the sole mutual-exclusion mechanism and is set
// before any suspension point is entered.
package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"studio/internal/domain"
	"studio/internal/encoder"
	"studio/internal/providers/image"
)

// AdvisoryNoImage is the user-visible flag for a successful remote call that
// produced no image. It routes through the same error channel as real
// failures but the populated result text keeps the two distinguishable.
const AdvisoryNoImage = "no image produced"

// SourceFile is an uploaded file about to be staged.
type SourceFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// StagedImage is an image selected for editing but not yet submitted. The
// controller owns it exclusively: created on add, destroyed (with its
// preview released) on remove or reset. Order is insertion order; the first
// staged image supplies the default download filename.
type StagedImage struct {
	ID         string
	Name       string
	MimeType   string
	Data       []byte
	PreviewURL string
}

// DisplayedResult is the render-ready outcome of the last submission. URL is
// empty exactly when the last call returned no image.
type DisplayedResult struct {
	URL          string `json:"url"`
	ResponseText string `json:"response_text"`
}

// ImageInfo is the externally visible slice of a staged image.
type ImageInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MimeType   string `json:"mime_type"`
	Bytes      int    `json:"bytes"`
	PreviewURL string `json:"preview_url"`
}

// Snapshot is a consistent copy of the controller state for rendering.
type Snapshot struct {
	Images     []ImageInfo      `json:"images"`
	Prompt     string           `json:"prompt"`
	Submitting bool             `json:"submitting"`
	LastError  string           `json:"last_error,omitempty"`
	LastResult *DisplayedResult `json:"last_result,omitempty"`
}

// PreviewStore hands out preview resources for staged images. Acquire
// registers the bytes and returns a URL the client can render; Release frees
// the resource. The controller guarantees a Release for every Acquire.
type PreviewStore interface {
	Acquire(imageID, mimeType string, data []byte) string
	Release(imageID string)
}

// EncodeFunc matches encoder.Encode. Injectable so tests can fail the
// encoding step.
type EncodeFunc func(ctx context.Context, name, mime string, r io.Reader) (domain.EncodedImage, error)

// Controller is the state machine for one session. Methods are safe for
// concurrent use; every mutating intent is rejected with ErrBusy while a
// submission is in flight.
type Controller struct {
	mu        sync.Mutex
	sessionID string
	previews  PreviewStore
	encode    EncodeFunc

	staged     []StagedImage
	prompt     string
	submitting bool
	lastError  string
	lastResult *DisplayedResult

	// epoch invalidates in-flight submissions across a reset so a late
	// settle cannot resurrect cleared state.
	epoch uint64
	seq   uint64
}

// NewController builds an idle controller. previews may be nil, in which
// case staged images carry no preview URL.
func NewController(sessionID string, previews PreviewStore) *Controller {
	return &Controller{
		sessionID: sessionID,
		previews:  previews,
		encode:    encoder.Encode,
	}
}

// SessionID returns the owning session's identifier.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// AddImages appends the files to the staged list in the given order and
// clears any displayed error. Rejected while a submission is in flight.
func (c *Controller) AddImages(files []SourceFile) ([]ImageInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return nil, domain.ErrBusy
	}

	added := make([]ImageInfo, 0, len(files))
	now := time.Now().UnixNano()
	for _, f := range files {
		c.seq++
		img := StagedImage{
			ID:       imageID(f.Name, now, int(c.seq)),
			Name:     f.Name,
			MimeType: f.MimeType,
			Data:     f.Data,
		}
		if c.previews != nil {
			img.PreviewURL = c.previews.Acquire(img.ID, img.MimeType, img.Data)
		}
		c.staged = append(c.staged, img)
		added = append(added, imageInfo(img))
	}
	c.lastError = ""
	return added, nil
}

// RemoveImage filters the staged list by id and releases the image's preview
// resource. Rejected while a submission is in flight.
func (c *Controller) RemoveImage(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return domain.ErrBusy
	}
	for i, img := range c.staged {
		if img.ID == id {
			if c.previews != nil {
				c.previews.Release(img.ID)
			}
			c.staged = append(c.staged[:i], c.staged[i+1:]...)
			return nil
		}
	}
	return domain.ErrImageNotFound
}

// SetPrompt updates the instruction text and clears any displayed error.
// Rejected while a submission is in flight.
func (c *Controller) SetPrompt(prompt string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return domain.ErrBusy
	}
	c.prompt = prompt
	c.lastError = ""
	return nil
}

// Submit runs one submission end to end: guard check, atomic snapshot,
// sequential encoding, a single remote call, settle. The guard is
// re-checked under the lock so a second submit while one is in flight is a
// rejected no-op. Remote and encoding failures never escape; they settle
// into the error channel. The returned error is only ever a guard rejection
// (ErrBusy or ErrNotReady).
func (c *Controller) Submit(ctx context.Context, editor image.Editor, requestID string) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return domain.ErrBusy
	}
	if len(c.staged) == 0 || strings.TrimSpace(c.prompt) == "" {
		c.mu.Unlock()
		return domain.ErrNotReady
	}
	c.submitting = true
	c.lastError = ""
	c.lastResult = nil
	epoch := c.epoch
	prompt := c.prompt
	staged := make([]StagedImage, len(c.staged))
	copy(staged, c.staged)
	c.mu.Unlock()

	result, err := c.run(ctx, editor, staged, prompt, requestID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		// A reset settled the session first; discard the late outcome.
		return nil
	}
	c.submitting = false
	switch {
	case err != nil:
		c.lastError = err.Error()
		c.lastResult = nil
	case !result.HasImage():
		c.lastResult = &DisplayedResult{URL: "", ResponseText: result.Text}
		c.lastError = AdvisoryNoImage
	default:
		c.lastResult = &DisplayedResult{URL: resultURL(result), ResponseText: result.Text}
	}
	return nil
}

// run performs the suspending half of a submission: encode every snapshot
// image, then issue the single remote call.
func (c *Controller) run(ctx context.Context, editor image.Editor, staged []StagedImage, prompt, requestID string) (*domain.EditResult, error) {
	encoded := make([]domain.EncodedImage, len(staged))
	for i, img := range staged {
		enc, err := c.encode(ctx, img.Name, img.MimeType, bytes.NewReader(img.Data))
		if err != nil {
			return nil, err
		}
		encoded[i] = enc
	}
	return editor.Edit(ctx, image.EditRequest{
		Images:    encoded,
		Prompt:    prompt,
		RequestID: requestID,
	})
}

// Reset returns the controller to the exact idle tuple from any state,
// releasing every staged preview resource. An in-flight submission that
// settles afterwards is discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.previews != nil {
		for _, img := range c.staged {
			c.previews.Release(img.ID)
		}
	}
	c.staged = nil
	c.prompt = ""
	c.submitting = false
	c.lastError = ""
	c.lastResult = nil
	c.epoch++
}

// Snapshot returns a consistent copy of the visible state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		Images:     make([]ImageInfo, len(c.staged)),
		Prompt:     c.prompt,
		Submitting: c.submitting,
		LastError:  c.lastError,
	}
	for i, img := range c.staged {
		snap.Images[i] = imageInfo(img)
	}
	if c.lastResult != nil {
		result := *c.lastResult
		snap.LastResult = &result
	}
	return snap
}

// Image returns a copy of the staged image with the given id.
func (c *Controller) Image(id string) (StagedImage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, img := range c.staged {
		if img.ID == id {
			return img, true
		}
	}
	return StagedImage{}, false
}

// StagedImages returns a copy of the staged list in staging order.
func (c *Controller) StagedImages() []StagedImage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]StagedImage, len(c.staged))
	copy(out, c.staged)
	return out
}

// DownloadName derives the filename for the edited result from the first
// staged image, defaulting to image.png, prefixed with "edited-".
func (c *Controller) DownloadName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := "image.png"
	if len(c.staged) > 0 && strings.TrimSpace(c.staged[0].Name) != "" {
		name = path.Base(c.staged[0].Name)
	}
	return "edited-" + name
}

func imageInfo(img StagedImage) ImageInfo {
	return ImageInfo{
		ID:         img.ID,
		Name:       img.Name,
		MimeType:   img.MimeType,
		Bytes:      len(img.Data),
		PreviewURL: img.PreviewURL,
	}
}

func imageID(name string, now int64, seq int) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, path.Base(name))
	if slug == "" || slug == "." {
		slug = "image"
	}
	return fmt.Sprintf("%s-%d-%d", slug, now, seq)
}

func resultURL(result *domain.EditResult) string {
	if result.ImageData != "" {
		return fmt.Sprintf("data:%s;base64,%s", result.MimeType, result.ImageData)
	}
	return result.ImageURL
}
