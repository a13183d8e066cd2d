package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studio/internal/domain"
)

// Session binds a controller to its registry entry.
type Session struct {
	ID         string
	Controller *Controller
	lastSeen   time.Time
}

// Store is the in-memory session registry. Sessions are anonymous capability
// ids with a sliding TTL; expiry resets the controller so preview resources
// are released rather than leaked. Nothing survives process restart, by
// contract.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	previews *previewRegistry
	ttl      time.Duration
	logger   zerolog.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

// NewStore builds a store and starts its expiry sweeper. Stop must be called
// on shutdown.
func NewStore(ttl time.Duration, logger zerolog.Logger) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	s := &Store{
		sessions: make(map[string]*Session),
		previews: newPreviewRegistry(),
		ttl:      ttl,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Create registers a fresh idle session.
func (s *Store) Create() *Session {
	id := uuid.NewString()
	sess := &Session{
		ID:         id,
		Controller: NewController(id, &boundPreviews{registry: s.previews, sessionID: id}),
		lastSeen:   time.Now(),
	}
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	s.logger.Debug().Str("session_id", id).Msg("session: created")
	return sess
}

// Get returns the session and refreshes its TTL.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	sess.lastSeen = time.Now()
	return sess, nil
}

// Remove drops the session, resetting its controller so previews are
// released.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.Controller.Reset()
		s.logger.Debug().Str("session_id", id).Msg("session: removed")
	}
}

// Preview looks up registered preview bytes by image id.
func (s *Store) Preview(imageID string) (mimeType string, data []byte, ok bool) {
	return s.previews.get(imageID)
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Stop terminates the sweeper.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) sweepLoop() {
	interval := s.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *Store) sweep(now time.Time) {
	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	for _, sess := range expired {
		sess.Controller.Reset()
		s.logger.Debug().Str("session_id", sess.ID).Msg("session: expired")
	}
}

type previewEntry struct {
	mimeType string
	data     []byte
}

// previewRegistry holds preview bytes for staged images across all sessions.
// Image ids are globally unique, so a flat map suffices.
type previewRegistry struct {
	mu      sync.Mutex
	entries map[string]previewEntry
}

func newPreviewRegistry() *previewRegistry {
	return &previewRegistry{entries: make(map[string]previewEntry)}
}

func (r *previewRegistry) put(imageID, mimeType string, data []byte) {
	r.mu.Lock()
	r.entries[imageID] = previewEntry{mimeType: mimeType, data: data}
	r.mu.Unlock()
}

func (r *previewRegistry) get(imageID string) (string, []byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[imageID]
	return entry.mimeType, entry.data, ok
}

func (r *previewRegistry) release(imageID string) {
	r.mu.Lock()
	delete(r.entries, imageID)
	r.mu.Unlock()
}

// boundPreviews scopes the shared registry to one session so acquired URLs
// point at that session's preview route.
type boundPreviews struct {
	registry  *previewRegistry
	sessionID string
}

func (b *boundPreviews) Acquire(imageID, mimeType string, data []byte) string {
	b.registry.put(imageID, mimeType, data)
	return fmt.Sprintf("/v1/sessions/%s/images/%s/preview", b.sessionID, imageID)
}

func (b *boundPreviews) Release(imageID string) {
	b.registry.release(imageID)
}

var _ PreviewStore = (*boundPreviews)(nil)
