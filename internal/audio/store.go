// Package audio keeps synthesized clips in memory behind opaque handles.
package audio

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for handles that were never issued or were released.
var ErrNotFound = errors.New("audio handle not found")

// Origin tells which text a clip was synthesized from.
type Origin string

const (
	OriginTranslation Origin = "translation"
	OriginOriginal    Origin = "original"
)

// Handle references a playable clip held by a Store.
type Handle struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	Origin      Origin    `json:"origin"`
	Language    string    `json:"language"`
	CreatedAt   time.Time `json:"created_at"`
}

// Clip is the stored payload behind a handle.
type Clip struct {
	Data        []byte
	ContentType string
}

type Store struct {
	baseURL string
	mu      sync.RWMutex
	clips   map[string]Clip
	clock   func() time.Time
}

// NewStore issues handle URLs under baseURL + "/audio/".
func NewStore(baseURL string) *Store {
	return &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		clips:   make(map[string]Clip),
		clock:   time.Now,
	}
}

// Put stores data and returns a new handle for it.
func (s *Store) Put(data []byte, contentType string, origin Origin, language string) Handle {
	id := uuid.NewString()
	s.mu.Lock()
	s.clips[id] = Clip{Data: data, ContentType: contentType}
	s.mu.Unlock()
	return Handle{
		ID:          id,
		URL:         s.baseURL + "/audio/" + id,
		ContentType: contentType,
		Size:        len(data),
		Origin:      origin,
		Language:    language,
		CreatedAt:   s.clock().UTC(),
	}
}

func (s *Store) Get(id string) (Clip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clip, ok := s.clips[id]
	if !ok {
		return Clip{}, ErrNotFound
	}
	return clip, nil
}

// Release drops the clip behind id. Releasing an unknown id is a no-op.
func (s *Store) Release(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	delete(s.clips, id)
	s.mu.Unlock()
}

// Len reports the number of live clips.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clips)
}
