package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studio/internal/domain"
	"studio/internal/providers/image"
)

type stubEditor struct {
	mu     sync.Mutex
	result *domain.EditResult
	err    error
	block  chan struct{}
	got    []image.EditRequest
}

func (e *stubEditor) Edit(ctx context.Context, req image.EditRequest) (*domain.EditResult, error) {
	e.mu.Lock()
	e.got = append(e.got, req)
	e.mu.Unlock()
	if e.block != nil {
		<-e.block
	}
	return e.result, e.err
}

func (e *stubEditor) calls() []image.EditRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]image.EditRequest(nil), e.got...)
}

type fakePreviews struct {
	mu       sync.Mutex
	acquired map[string]bool
}

func newFakePreviews() *fakePreviews {
	return &fakePreviews{acquired: make(map[string]bool)}
}

func (p *fakePreviews) Acquire(imageID, mimeType string, data []byte) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquired[imageID] = true
	return "/previews/" + imageID
}

func (p *fakePreviews) Release(imageID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.acquired, imageID)
}

func (p *fakePreviews) held() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.acquired)
}

func pngFile(name string) SourceFile {
	return SourceFile{Name: name, MimeType: "image/png", Data: []byte{0x89, 0x50, 0x4e, 0x47}}
}

func stagedController(t *testing.T, names ...string) (*Controller, *fakePreviews) {
	t.Helper()
	previews := newFakePreviews()
	c := NewController("sess-1", previews)
	files := make([]SourceFile, len(names))
	for i, n := range names {
		files[i] = pngFile(n)
	}
	if len(files) > 0 {
		_, err := c.AddImages(files)
		require.NoError(t, err)
	}
	return c, previews
}

func TestAddRemoveKeepsInsertionOrderAndUniqueIDs(t *testing.T) {
	c, previews := stagedController(t, "a.png", "b.png", "a.png")

	snap := c.Snapshot()
	require.Len(t, snap.Images, 3)
	require.Equal(t, []string{"a.png", "b.png", "a.png"},
		[]string{snap.Images[0].Name, snap.Images[1].Name, snap.Images[2].Name})

	seen := map[string]bool{}
	for _, img := range snap.Images {
		require.False(t, seen[img.ID], "duplicate id %s", img.ID)
		seen[img.ID] = true
		require.NotEmpty(t, img.PreviewURL)
	}
	require.Equal(t, 3, previews.held())

	require.NoError(t, c.RemoveImage(snap.Images[1].ID))
	snap = c.Snapshot()
	require.Len(t, snap.Images, 2)
	require.Equal(t, "a.png", snap.Images[0].Name)
	require.Equal(t, "a.png", snap.Images[1].Name)
	require.Equal(t, 2, previews.held())

	require.ErrorIs(t, c.RemoveImage("nope"), domain.ErrImageNotFound)
}

func TestSubmitGuardRejections(t *testing.T) {
	editor := &stubEditor{result: &domain.EditResult{ImageData: "Zg==", MimeType: "image/png"}}

	// No images.
	c := NewController("s", nil)
	require.NoError(t, c.SetPrompt("do it"))
	require.ErrorIs(t, c.Submit(context.Background(), editor, "r1"), domain.ErrNotReady)

	// No prompt.
	c, _ = stagedController(t, "a.png")
	require.ErrorIs(t, c.Submit(context.Background(), editor, "r2"), domain.ErrNotReady)

	// Whitespace prompt.
	require.NoError(t, c.SetPrompt("   "))
	require.ErrorIs(t, c.Submit(context.Background(), editor, "r3"), domain.ErrNotReady)

	require.Empty(t, editor.calls())
	snap := c.Snapshot()
	require.False(t, snap.Submitting)
	require.Nil(t, snap.LastResult)
}

func TestSubmitSuccessWithImage(t *testing.T) {
	c, _ := stagedController(t, "A.png", "B.png")
	require.NoError(t, c.SetPrompt("swap shirts"))

	editor := &stubEditor{result: &domain.EditResult{ImageData: "Zg==", MimeType: "image/png", Text: "done"}}
	require.NoError(t, c.Submit(context.Background(), editor, "req-1"))

	snap := c.Snapshot()
	require.False(t, snap.Submitting)
	require.Empty(t, snap.LastError)
	require.NotNil(t, snap.LastResult)
	require.Equal(t, "data:image/png;base64,Zg==", snap.LastResult.URL)
	require.Equal(t, "done", snap.LastResult.ResponseText)

	calls := editor.calls()
	require.Len(t, calls, 1)
	require.Equal(t, "swap shirts", calls[0].Prompt)
	require.Len(t, calls[0].Images, 2)
	require.Equal(t, "image/png", calls[0].Images[0].MimeType)
	require.NotEmpty(t, calls[0].Images[0].Base64Data)
}

func TestSubmitSuccessWithoutImageSetsAdvisory(t *testing.T) {
	c, _ := stagedController(t, "A.png")
	require.NoError(t, c.SetPrompt("describe only"))

	editor := &stubEditor{result: &domain.EditResult{Text: "I can only describe: a cat."}}
	require.NoError(t, c.Submit(context.Background(), editor, "req-1"))

	snap := c.Snapshot()
	require.False(t, snap.Submitting)
	require.Equal(t, AdvisoryNoImage, snap.LastError)
	require.NotNil(t, snap.LastResult)
	require.Equal(t, "", snap.LastResult.URL)
	require.Equal(t, "I can only describe: a cat.", snap.LastResult.ResponseText)
}

func TestSubmitRemoteFailure(t *testing.T) {
	c, _ := stagedController(t, "a.png")
	require.NoError(t, c.SetPrompt("edit"))

	editor := &stubEditor{err: &domain.RemoteError{Status: 429, Message: "quota exceeded"}}
	require.NoError(t, c.Submit(context.Background(), editor, "req-1"))

	snap := c.Snapshot()
	require.False(t, snap.Submitting)
	require.Equal(t, "quota exceeded", snap.LastError)
	require.Nil(t, snap.LastResult)
}

func TestSubmitEncoderFailure(t *testing.T) {
	c, _ := stagedController(t, "a.png")
	require.NoError(t, c.SetPrompt("edit"))
	c.encode = func(ctx context.Context, name, mime string, r io.Reader) (domain.EncodedImage, error) {
		return domain.EncodedImage{}, &domain.ReadError{Name: name, Err: errors.New("boom")}
	}

	editor := &stubEditor{result: &domain.EditResult{ImageData: "Zg==", MimeType: "image/png"}}
	require.NoError(t, c.Submit(context.Background(), editor, "req-1"))

	snap := c.Snapshot()
	require.False(t, snap.Submitting)
	require.Equal(t, "read a.png: boom", snap.LastError)
	require.Nil(t, snap.LastResult)
	require.Empty(t, editor.calls(), "remote call must not happen when encoding fails")
}

func TestMutationsRejectedWhileSubmitting(t *testing.T) {
	c, _ := stagedController(t, "a.png")
	require.NoError(t, c.SetPrompt("edit"))

	block := make(chan struct{})
	editor := &stubEditor{result: &domain.EditResult{ImageData: "Zg==", MimeType: "image/png"}, block: block}

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), editor, "req-1") }()

	require.Eventually(t, func() bool { return c.Snapshot().Submitting }, time.Second, time.Millisecond)

	_, err := c.AddImages([]SourceFile{pngFile("late.png")})
	require.ErrorIs(t, err, domain.ErrBusy)
	require.ErrorIs(t, c.SetPrompt("other"), domain.ErrBusy)
	require.ErrorIs(t, c.Submit(context.Background(), editor, "req-2"), domain.ErrBusy)
	snapID := c.Snapshot().Images[0].ID
	require.ErrorIs(t, c.RemoveImage(snapID), domain.ErrBusy)

	close(block)
	require.NoError(t, <-done)
	require.False(t, c.Snapshot().Submitting)
	require.Len(t, editor.calls(), 1, "second submit must be a no-op")
}

func TestSubmitClearsPreviousOutcome(t *testing.T) {
	c, _ := stagedController(t, "a.png")
	require.NoError(t, c.SetPrompt("edit"))

	failing := &stubEditor{err: &domain.TransportError{Err: errors.New("connection refused")}}
	require.NoError(t, c.Submit(context.Background(), failing, "req-1"))
	require.Equal(t, "connection refused", c.Snapshot().LastError)

	ok := &stubEditor{result: &domain.EditResult{ImageData: "Zg==", MimeType: "image/png"}}
	require.NoError(t, c.Submit(context.Background(), ok, "req-2"))
	snap := c.Snapshot()
	require.Empty(t, snap.LastError)
	require.NotNil(t, snap.LastResult)
}

func TestAddAndPromptClearDisplayedError(t *testing.T) {
	c, _ := stagedController(t, "a.png")
	require.NoError(t, c.SetPrompt("edit"))
	editor := &stubEditor{err: &domain.RemoteError{Message: "quota exceeded"}}
	require.NoError(t, c.Submit(context.Background(), editor, "r"))
	require.Equal(t, "quota exceeded", c.Snapshot().LastError)

	_, err := c.AddImages([]SourceFile{pngFile("b.png")})
	require.NoError(t, err)
	require.Empty(t, c.Snapshot().LastError)

	require.NoError(t, c.Submit(context.Background(), editor, "r"))
	require.Equal(t, "quota exceeded", c.Snapshot().LastError)
	require.NoError(t, c.SetPrompt("edit more"))
	require.Empty(t, c.Snapshot().LastError)
}

func TestResetYieldsIdleTupleAndReleasesPreviews(t *testing.T) {
	c, previews := stagedController(t, "a.png", "b.png")
	require.NoError(t, c.SetPrompt("edit"))
	editor := &stubEditor{result: &domain.EditResult{ImageData: "Zg==", MimeType: "image/png"}}
	require.NoError(t, c.Submit(context.Background(), editor, "r"))

	c.Reset()
	snap := c.Snapshot()
	require.Empty(t, snap.Images)
	require.Empty(t, snap.Prompt)
	require.False(t, snap.Submitting)
	require.Empty(t, snap.LastError)
	require.Nil(t, snap.LastResult)
	require.Zero(t, previews.held())
}

func TestResetDuringFlightDiscardsLateSettle(t *testing.T) {
	c, _ := stagedController(t, "a.png")
	require.NoError(t, c.SetPrompt("edit"))

	block := make(chan struct{})
	editor := &stubEditor{result: &domain.EditResult{ImageData: "Zg==", MimeType: "image/png"}, block: block}

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), editor, "r") }()
	require.Eventually(t, func() bool { return c.Snapshot().Submitting }, time.Second, time.Millisecond)

	c.Reset()
	close(block)
	require.NoError(t, <-done)

	snap := c.Snapshot()
	require.Empty(t, snap.Images)
	require.False(t, snap.Submitting)
	require.Empty(t, snap.LastError)
	require.Nil(t, snap.LastResult, "late settle must not resurrect state")
}

func TestDownloadName(t *testing.T) {
	c := NewController("s", nil)
	require.Equal(t, "edited-image.png", c.DownloadName())

	_, err := c.AddImages([]SourceFile{pngFile("holiday/A.png"), pngFile("B.png")})
	require.NoError(t, err)
	require.Equal(t, "edited-A.png", c.DownloadName())
}
