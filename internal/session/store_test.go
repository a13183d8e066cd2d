package session

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	s := NewStore(ttl, zerolog.Nop())
	t.Cleanup(s.Stop)
	return s
}

func TestStoreCreateAndGet(t *testing.T) {
	s := newTestStore(t, time.Minute)
	sess := s.Create()
	if sess.ID == "" {
		t.Fatal("expected non-empty session id")
	}
	got, err := s.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != sess {
		t.Fatal("Get returned a different session")
	}
	if _, err := s.Get("missing"); err != domain.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStorePreviewLifecycle(t *testing.T) {
	s := newTestStore(t, time.Minute)
	sess := s.Create()

	added, err := sess.Controller.AddImages([]SourceFile{{
		Name: "a.png", MimeType: "image/png", Data: []byte{1, 2, 3},
	}})
	if err != nil {
		t.Fatalf("AddImages: %v", err)
	}
	imageID := added[0].ID
	wantURL := "/v1/sessions/" + sess.ID + "/images/" + imageID + "/preview"
	if added[0].PreviewURL != wantURL {
		t.Fatalf("unexpected preview url: %s", added[0].PreviewURL)
	}

	mime, data, ok := s.Preview(imageID)
	if !ok || mime != "image/png" || len(data) != 3 {
		t.Fatalf("preview not registered: ok=%v mime=%s len=%d", ok, mime, len(data))
	}

	if err := sess.Controller.RemoveImage(imageID); err != nil {
		t.Fatalf("RemoveImage: %v", err)
	}
	if _, _, ok := s.Preview(imageID); ok {
		t.Fatal("preview must be released on remove")
	}
}

func TestStoreRemoveReleasesPreviews(t *testing.T) {
	s := newTestStore(t, time.Minute)
	sess := s.Create()
	added, err := sess.Controller.AddImages([]SourceFile{{Name: "a.png", MimeType: "image/png", Data: []byte{1}}})
	if err != nil {
		t.Fatalf("AddImages: %v", err)
	}

	s.Remove(sess.ID)
	if _, err := s.Get(sess.ID); err != domain.ErrSessionNotFound {
		t.Fatalf("expected session gone, got %v", err)
	}
	if _, _, ok := s.Preview(added[0].ID); ok {
		t.Fatal("previews must be released when the session is removed")
	}
}

func TestStoreSweepExpiresIdleSessions(t *testing.T) {
	s := newTestStore(t, 10*time.Millisecond)
	sess := s.Create()
	added, err := sess.Controller.AddImages([]SourceFile{{Name: "a.png", MimeType: "image/png", Data: []byte{1}}})
	if err != nil {
		t.Fatalf("AddImages: %v", err)
	}

	s.sweep(time.Now().Add(time.Hour))

	if _, err := s.Get(sess.ID); err != domain.ErrSessionNotFound {
		t.Fatalf("expected expired session, got %v", err)
	}
	if _, _, ok := s.Preview(added[0].ID); ok {
		t.Fatal("expiry must release previews")
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, have %d", s.Len())
	}
}
