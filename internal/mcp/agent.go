package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"pagecraft/internal/domain"
	"pagecraft/internal/revision"
)

var _ revision.Agent = (*AgentQueue)(nil)

// PendingRevision is a comment handed to the agent and not answered yet.
type PendingRevision struct {
	CommentID       string       `json:"commentId"`
	ThreadID        string       `json:"threadId"`
	MessageID       string       `json:"messageId"`
	BlockID         string       `json:"blockId"`
	BlockType       string       `json:"blockType"`
	Comment         string       `json:"comment"`
	MediaIDs        []string     `json:"mediaIds,omitempty"`
	PreviousContent domain.Props `json:"previousContent"`
	SubmittedAt     time.Time    `json:"submittedAt"`
}

// AgentQueue parks submitted comments until an agent connected over MCP
// lists them and proposes a patch. It never calls a model itself.
type AgentQueue struct {
	mu      sync.Mutex
	pending []PendingRevision
	now     func() time.Time
}

func NewAgentQueue() *AgentQueue {
	return &AgentQueue{now: time.Now}
}

// Submit implements revision.Agent.
func (q *AgentQueue) Submit(_ context.Context, threadID string, m domain.Message) error {
	var p PendingRevision
	if err := json.Unmarshal([]byte(m.Content), &p); err != nil {
		return fmt.Errorf("decode user message %s: %w", m.ID, err)
	}
	if p.CommentID == "" {
		return fmt.Errorf("user message %s names no comment", m.ID)
	}
	p.ThreadID = threadID
	p.MessageID = m.ID
	p.SubmittedAt = q.now().UTC()

	q.mu.Lock()
	defer q.mu.Unlock()
	// A re-submitted comment replaces its earlier entry.
	q.pending = slices.DeleteFunc(q.pending, func(e PendingRevision) bool { return e.CommentID == p.CommentID })
	q.pending = append(q.pending, p)
	return nil
}

// Pending lists parked revisions, oldest first.
func (q *AgentQueue) Pending() []PendingRevision {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.pending)
}

// Take removes and returns the entry of commentID.
func (q *AgentQueue) Take(commentID string) (PendingRevision, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := slices.IndexFunc(q.pending, func(e PendingRevision) bool { return e.CommentID == commentID })
	if i < 0 {
		return PendingRevision{}, false
	}
	p := q.pending[i]
	q.pending = slices.Delete(q.pending, i, i+1)
	return p, true
}

func (q *AgentQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
