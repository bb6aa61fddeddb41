package tree

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator hands out block ids that are unique for the lifetime of a page.
type IDGenerator interface {
	NewID() string
}

// UUIDs generates random v4 UUIDs.
type UUIDs struct{}

func (UUIDs) NewID() string { return uuid.New().String() }

// Sequence generates prefix-1, prefix-2, ... and is meant for tests and
// fixtures that need stable ids.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

func (s *Sequence) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}
