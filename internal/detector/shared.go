package detector

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Gowithe/scangrade-thai/internal/marks"
)

// ErrUnavailable is returned when the detector cannot be reached or fails
// to answer.
var ErrUnavailable = errors.New("mark detector unavailable")

// Kinds accepted by New.
const (
	KindBlob      = "blob"
	KindWebSocket = "websocket"
)

// Factory creates a detector. It is called at most once per Shared key.
type Factory func() (marks.Detector, error)

type sharedEntry struct {
	once sync.Once
	det  marks.Detector
	err  error
}

// Shared hands out process-wide detector instances, one per key.
//
// The first caller for a key runs the factory; concurrent callers wait for
// it and every later caller gets the same instance, or the same error.
type Shared struct {
	mu      sync.Mutex
	entries map[string]*sharedEntry
}

// Default is the process-wide detector set.
var Default = &Shared{}

// Get returns the detector for key, creating it with factory on first use.
func (s *Shared) Get(key string, factory Factory) (marks.Detector, error) {
	s.mu.Lock()
	if s.entries == nil {
		s.entries = make(map[string]*sharedEntry)
	}
	e, ok := s.entries[key]
	if !ok {
		e = &sharedEntry{}
		s.entries[key] = e
	}
	s.mu.Unlock()

	e.once.Do(func() {
		e.det, e.err = factory()
	})
	return e.det, e.err
}

// New creates a detector of the given kind. url is required for websocket
// detectors.
func New(kind, url string, opts ...Option) (marks.Detector, error) {
	switch strings.ToLower(kind) {
	case KindBlob, "":
		return NewBlob(), nil
	case KindWebSocket:
		if url == "" {
			return nil, errors.New("websocket detector needs a URL")
		}
		return NewWebSocket(url, opts...), nil
	default:
		return nil, fmt.Errorf("unknown detector kind %q", kind)
	}
}
