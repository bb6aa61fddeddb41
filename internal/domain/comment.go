package domain

import (
	"context"
	"time"
)

type CommentStatus string

const (
	CommentDraft      CommentStatus = "draft"
	CommentPending    CommentStatus = "pending"
	CommentProcessing CommentStatus = "processing"
	CommentResolved   CommentStatus = "resolved"
)

// Comment is a positioned request for an AI edit of one block.
// PreviousContent is the block's props captured when the comment was picked
// up; it stays on the comment after resolution so the edit can be reverted.
type Comment struct {
	ID              string        `json:"id"`
	PageID          string        `json:"pageId"`
	BlockID         string        `json:"blockId"`
	UserID          string        `json:"userId"`
	X               float64       `json:"x"`
	Y               float64       `json:"y"`
	Text            string        `json:"text"`
	MediaIDs        []string      `json:"mediaIds"`
	Status          CommentStatus `json:"status"`
	ThreadID        string        `json:"threadId,omitempty"`
	PreviousContent Props         `json:"previousContent,omitempty"`
	ProposedPatch   Props         `json:"proposedPatch,omitempty"`
	AIResponse      string        `json:"aiResponse,omitempty"`
	Failure         string        `json:"failure,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

type ThreadPurpose string

const (
	PurposeGeneration ThreadPurpose = "generation"
	PurposeEditing    ThreadPurpose = "editing"
)

// Thread is the conversation backing AI work for one {user, page, purpose}.
type Thread struct {
	ID          string        `json:"id"`
	OwnerUserID string        `json:"ownerUserId"`
	Purpose     ThreadPurpose `json:"purpose"`
	PageID      string        `json:"pageId"`
	CreatedAt   time.Time     `json:"createdAt"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Message is one entry of a thread's append-only log. Seq is assigned by
// the store on append and increases strictly within a thread.
type Message struct {
	ID        string     `json:"id"`
	ThreadID  string     `json:"threadId"`
	Seq       int64      `json:"seq"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type ThreadStore interface {
	GetOrCreateThread(ctx context.Context, userID string, purpose ThreadPurpose, pageID string) (*Thread, error)
	AppendMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, threadID string) ([]Message, error)
}

type CommentStore interface {
	SaveComment(ctx context.Context, c *Comment) error
	GetComment(ctx context.Context, id string) (*Comment, error)
	ListComments(ctx context.Context, pageID string, statuses ...CommentStatus) ([]Comment, error)
	ListCommentsByStatus(ctx context.Context, status CommentStatus) ([]Comment, error)
}
