// Package session keeps per-user conversation state: the transcript, the
// identity of the loaded document and that document's vector index.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"pdfchat/internal/chromemdb"
	"pdfchat/internal/models"
)

// ResetIfChanged reports whether history must be cleared when newDocID
// replaces currentDocID.
func ResetIfChanged(currentDocID, newDocID string) bool {
	return currentDocID != newDocID
}

type Session struct {
	ID string

	mu         sync.Mutex
	documentID string
	history    []models.Turn
	index      *chromemdb.VectorDBManager
}

func New(id string) *Session {
	return &Session{ID: id}
}

// AttachDocument records name as the current document and clears the history
// when it differs from the previous one. It returns true if history was reset.
func (s *Session) AttachDocument(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !ResetIfChanged(s.documentID, name) {
		return false
	}
	s.documentID = name
	s.history = nil
	return true
}

func (s *Session) DocumentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentID
}

func (s *Session) Append(turn models.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, turn)
}

// History returns a copy of the transcript, oldest turn first.
func (s *Session) History() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Turn, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) Index() *chromemdb.VectorDBManager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

func (s *Session) SetIndex(index *chromemdb.VectorDBManager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = index
}

// Store holds live sessions. Idle sessions expire after ttl.
type Store struct {
	mu    sync.Mutex
	cache *cache.Cache
	ttl   time.Duration
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		cache: cache.New(ttl, ttl*2),
		ttl:   ttl,
	}
}

// Get returns the session for id and refreshes its expiry.
func (s *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	sess := v.(*Session)
	s.cache.Set(id, sess, s.ttl)
	return sess, true
}

// GetOrCreate returns the session for id, creating a fresh one with a new id
// if it is unknown or expired.
func (s *Store) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.Get(id); ok {
		return sess
	}
	sess := New(uuid.NewString())
	s.cache.Set(sess.ID, sess, s.ttl)
	return sess
}

func (s *Store) Len() int {
	return s.cache.ItemCount()
}
