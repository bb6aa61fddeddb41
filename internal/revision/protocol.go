// Package revision runs AI comments through their lifecycle: a draft is
// submitted, picked up into an editing thread, handed to an agent, and
// resolved once the agent's patch has been applied to the page.
//
// Submission is fire-and-forget. Completions arrive later through Complete
// and are applied one at a time by the Run loop against whatever the page
// looks like at that moment, so two comments on the same block resolve in
// the order their patches are applied.
package revision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"pagecraft/internal/domain"
)

// EventStatus is the event name for comment status notifications.
const EventStatus = "comment:status"

var ErrClosed = errors.New("revision protocol closed")

// Store is the persistence the protocol needs.
type Store interface {
	domain.ThreadStore
	domain.CommentStore
}

// Agent receives user messages for a thread. Submit only acknowledges; the
// answer comes back through Protocol.Complete.
type Agent interface {
	Submit(ctx context.Context, threadID string, m domain.Message) error
}

// Applier reads and patches blocks on the live composition of a page.
type Applier interface {
	Snapshot(ctx context.Context, pageID, blockID string) (domain.Block, error)
	// ApplyPatch merges patch into the block's props and returns the values
	// it replaced.
	ApplyPatch(ctx context.Context, pageID, blockID string, patch domain.Props) (domain.Props, error)
}

// Completion is the agent's answer to one comment.
type Completion struct {
	ThreadID  string         `json:"threadId"`
	CommentID string         `json:"commentId"`
	Result    domain.Message `json:"result"`
	Patch     domain.Props   `json:"patch"`
}

// Event reports a comment status change. Err is set when the comment is
// stuck in processing; Overwritten names patched fields that had been edited
// since the comment was picked up.
type Event struct {
	Name        string         `json:"name"`
	Comment     domain.Comment `json:"comment"`
	Err         error          `json:"-"`
	Overwritten []string       `json:"overwritten,omitempty"`
}

// DraftInput describes a new comment.
type DraftInput struct {
	PageID   string   `json:"pageId"`
	BlockID  string   `json:"blockId"`
	UserID   string   `json:"userId"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Text     string   `json:"text"`
	MediaIDs []string `json:"mediaIds"`
}

type job struct {
	completion Completion
	retry      bool
}

type Option func(*Protocol)

func WithLogger(l *zap.Logger) Option { return func(p *Protocol) { p.log = l } }

func WithClock(now func() time.Time) Option { return func(p *Protocol) { p.now = now } }

// WithEventBuffer sizes the Events channel. Events are dropped when the
// buffer is full.
func WithEventBuffer(n int) Option { return func(p *Protocol) { p.events = make(chan Event, n) } }

type Protocol struct {
	store   Store
	agent   Agent
	applier Applier
	log     *zap.Logger
	now     func() time.Time

	threads  singleflight.Group
	inflight inflight

	jobs    chan job
	events  chan Event
	quit    chan struct{}
	stopped chan struct{}

	mu      sync.Mutex
	closed  bool
	started bool
}

func New(store Store, agent Agent, applier Applier, opts ...Option) *Protocol {
	p := &Protocol{
		store:   store,
		agent:   agent,
		applier: applier,
		log:     zap.NewNop(),
		now:     time.Now,
		jobs:    make(chan job, 16),
		events:  make(chan Event, 64),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Events delivers status changes. The channel is closed by Close.
func (p *Protocol) Events() <-chan Event { return p.events }

// ── Drafting & submission ──────────────────────────────────

// Draft stores a new comment in draft status.
func (p *Protocol) Draft(ctx context.Context, in DraftInput) (*domain.Comment, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, &domain.ValidationError{Fields: []domain.FieldError{{Field: "text", Reason: "required"}}}
	}
	if _, err := p.applier.Snapshot(ctx, in.PageID, in.BlockID); err != nil {
		return nil, fmt.Errorf("draft comment: %w", err)
	}
	now := p.now().UTC()
	c := &domain.Comment{
		ID:        uuid.New().String(),
		PageID:    in.PageID,
		BlockID:   in.BlockID,
		UserID:    in.UserID,
		X:         in.X,
		Y:         in.Y,
		Text:      in.Text,
		MediaIDs:  append([]string{}, in.MediaIDs...),
		Status:    domain.CommentDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.store.SaveComment(ctx, c); err != nil {
		return nil, fmt.Errorf("save comment: %w", err)
	}
	return c, nil
}

// Submit moves a draft to pending and returns. Pickup happens in the
// background: the editing thread is opened, the block is snapshotted, the
// user message is appended and the agent is asked for a patch.
func (p *Protocol) Submit(ctx context.Context, commentID string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if !p.inflight.TryLock(commentID) {
		p.mu.Unlock()
		return fmt.Errorf("submit comment %s: already in flight: %w", commentID, domain.ErrInvalidStatus)
	}
	p.mu.Unlock()

	c, err := p.store.GetComment(ctx, commentID)
	if err != nil {
		p.inflight.Unlock(commentID)
		return fmt.Errorf("submit comment: %w", err)
	}
	if c.Status != domain.CommentDraft {
		p.inflight.Unlock(commentID)
		return fmt.Errorf("submit comment %s in status %s: %w", commentID, c.Status, domain.ErrInvalidStatus)
	}
	if err := p.transition(ctx, c, domain.CommentPending, nil); err != nil {
		p.inflight.Unlock(commentID)
		return err
	}

	go func() {
		defer p.inflight.Unlock(commentID)
		p.pickup(context.WithoutCancel(ctx), c)
	}()
	return nil
}

type userPayload struct {
	CommentID       string       `json:"commentId"`
	Comment         string       `json:"comment"`
	MediaIDs        []string     `json:"mediaIds,omitempty"`
	BlockID         string       `json:"blockId"`
	BlockType       string       `json:"blockType"`
	PreviousContent domain.Props `json:"previousContent"`
}

func (p *Protocol) pickup(ctx context.Context, c *domain.Comment) {
	log := p.log.With(zap.String("commentId", c.ID), zap.String("pageId", c.PageID))

	thread, err := p.thread(ctx, c.UserID, c.PageID)
	if err != nil {
		p.fail(ctx, c, fmt.Errorf("open thread: %w", err))
		return
	}
	block, err := p.applier.Snapshot(ctx, c.PageID, c.BlockID)
	if err != nil {
		p.fail(ctx, c, fmt.Errorf("snapshot block: %w", err))
		return
	}

	body, err := json.Marshal(userPayload{
		CommentID:       c.ID,
		Comment:         c.Text,
		MediaIDs:        c.MediaIDs,
		BlockID:         block.ID,
		BlockType:       string(block.Type),
		PreviousContent: block.Props,
	})
	if err != nil {
		p.fail(ctx, c, fmt.Errorf("encode message: %w", err))
		return
	}
	msg := &domain.Message{
		ID:        ulid.Make().String(),
		ThreadID:  thread.ID,
		Role:      domain.RoleUser,
		Content:   string(body),
		CreatedAt: p.now().UTC(),
	}
	if err := p.store.AppendMessage(ctx, msg); err != nil {
		p.fail(ctx, c, fmt.Errorf("append message: %w", err))
		return
	}

	c.ThreadID = thread.ID
	c.PreviousContent = block.Props.Clone()
	c.Failure = ""
	if err := p.transition(ctx, c, domain.CommentProcessing, nil); err != nil {
		log.Error("mark comment processing", zap.Error(err))
		return
	}
	if err := p.agent.Submit(ctx, thread.ID, *msg); err != nil {
		p.fail(ctx, c, fmt.Errorf("submit to agent: %w", err))
		return
	}
	log.Debug("comment handed to agent", zap.String("threadId", thread.ID), zap.String("messageId", msg.ID))
}

// thread opens the editing thread once per {user, page} even when several
// comments are picked up at the same time.
func (p *Protocol) thread(ctx context.Context, userID, pageID string) (*domain.Thread, error) {
	key := userID + "\x00" + pageID + "\x00" + string(domain.PurposeEditing)
	v, err, _ := p.threads.Do(key, func() (any, error) {
		return p.store.GetOrCreateThread(ctx, userID, domain.PurposeEditing, pageID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Thread), nil
}

// ── Completion ─────────────────────────────────────────────

// Complete queues the agent's answer for the Run loop.
func (p *Protocol) Complete(ctx context.Context, comp Completion) error {
	return p.enqueue(ctx, job{completion: comp})
}

// Retry re-applies the last proposed patch of a processing comment. A
// comment the agent never answered is handed to the agent again.
func (p *Protocol) Retry(ctx context.Context, commentID string) error {
	c, err := p.store.GetComment(ctx, commentID)
	if err != nil {
		return fmt.Errorf("retry comment: %w", err)
	}
	if c.Status != domain.CommentProcessing {
		return fmt.Errorf("retry comment %s in status %s: %w", commentID, c.Status, domain.ErrInvalidStatus)
	}
	if c.ProposedPatch != nil {
		return p.enqueue(ctx, job{
			completion: Completion{ThreadID: c.ThreadID, CommentID: c.ID, Patch: c.ProposedPatch},
			retry:      true,
		})
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if !p.inflight.TryLock(commentID) {
		p.mu.Unlock()
		return fmt.Errorf("retry comment %s: already in flight: %w", commentID, domain.ErrInvalidStatus)
	}
	p.mu.Unlock()
	go func() {
		defer p.inflight.Unlock(commentID)
		p.pickup(context.WithoutCancel(ctx), c)
	}()
	return nil
}

func (p *Protocol) enqueue(ctx context.Context, j job) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case p.jobs <- j:
		return nil
	case <-p.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run applies completions until ctx is done or Close is called. Completions
// already queued when Close is called are still applied.
func (p *Protocol) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.started {
		p.mu.Unlock()
		return errors.New("revision protocol already running")
	}
	p.started = true
	p.mu.Unlock()
	defer close(p.stopped)

	for {
		select {
		case j := <-p.jobs:
			p.complete(ctx, j)
		case <-ctx.Done():
			return ctx.Err()
		case <-p.quit:
			p.drain(ctx)
			return nil
		}
	}
}

func (p *Protocol) drain(ctx context.Context) {
	for {
		select {
		case j := <-p.jobs:
			p.complete(ctx, j)
		default:
			return
		}
	}
}

func (p *Protocol) complete(ctx context.Context, j job) {
	comp := j.completion
	log := p.log.With(zap.String("commentId", comp.CommentID), zap.String("threadId", comp.ThreadID))

	c, err := p.store.GetComment(ctx, comp.CommentID)
	if err != nil {
		log.Error("completion for unknown comment", zap.Error(err))
		return
	}
	if c.Status != domain.CommentProcessing {
		log.Warn("completion ignored", zap.String("status", string(c.Status)))
		return
	}
	if comp.ThreadID != "" && c.ThreadID != "" && comp.ThreadID != c.ThreadID {
		log.Warn("completion thread mismatch", zap.String("expected", c.ThreadID))
		return
	}

	if !j.retry {
		msg := comp.Result
		msg.ID = ulid.Make().String()
		msg.ThreadID = c.ThreadID
		msg.Role = domain.RoleAssistant
		msg.Seq = 0
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = p.now().UTC()
		}
		if err := p.store.AppendMessage(ctx, &msg); err != nil {
			p.fail(ctx, c, fmt.Errorf("append assistant message: %w", err))
			return
		}
		c.AIResponse = msg.Content
		c.ProposedPatch = comp.Patch.Clone()
	}

	if len(comp.Patch) == 0 {
		p.fail(ctx, c, errors.New("agent returned an empty patch"))
		return
	}
	replaced, err := p.applier.ApplyPatch(ctx, c.PageID, c.BlockID, comp.Patch)
	if err != nil {
		p.fail(ctx, c, fmt.Errorf("apply patch: %w", err))
		return
	}

	overwritten := p.overwritten(c.PreviousContent, replaced)
	if len(overwritten) > 0 {
		log.Info("patch applied over newer edits", zap.Strings("fields", overwritten))
	}
	c.Failure = ""
	if err := p.transition(ctx, c, domain.CommentResolved, overwritten); err != nil {
		log.Error("mark comment resolved", zap.Error(err))
	}
}

// overwritten lists fields whose value at apply time no longer matched the
// snapshot taken when the comment was picked up.
func (p *Protocol) overwritten(snapshot, replaced domain.Props) []string {
	var names []string
	for name, v := range replaced {
		if !reflect.DeepEqual(snapshot[name], v) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// ── Revert ─────────────────────────────────────────────────

// Revert restores the fields the agent's patch touched to their values in
// the comment's snapshot. It returns what it replaced.
func (p *Protocol) Revert(ctx context.Context, commentID string) (domain.Props, error) {
	c, err := p.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("revert comment: %w", err)
	}
	if c.Status != domain.CommentResolved {
		return nil, fmt.Errorf("revert comment %s in status %s: %w", commentID, c.Status, domain.ErrInvalidStatus)
	}
	restore := make(domain.Props, len(c.ProposedPatch))
	for name := range c.ProposedPatch {
		restore[name] = domain.CloneValue(c.PreviousContent[name])
	}
	if len(restore) == 0 {
		return domain.Props{}, nil
	}
	replaced, err := p.applier.ApplyPatch(ctx, c.PageID, c.BlockID, restore)
	if err != nil {
		return nil, fmt.Errorf("revert comment %s: %w", commentID, err)
	}
	p.log.Info("comment reverted", zap.String("commentId", c.ID), zap.String("blockId", c.BlockID))
	return replaced, nil
}

// ── Queries ────────────────────────────────────────────────

func (p *Protocol) Comment(ctx context.Context, id string) (*domain.Comment, error) {
	return p.store.GetComment(ctx, id)
}

func (p *Protocol) Comments(ctx context.Context, pageID string, statuses ...domain.CommentStatus) ([]domain.Comment, error) {
	return p.store.ListComments(ctx, pageID, statuses...)
}

func (p *Protocol) Messages(ctx context.Context, threadID string) ([]domain.Message, error) {
	return p.store.ListMessages(ctx, threadID)
}

// InFlight reports whether commentID is currently being picked up.
func (p *Protocol) InFlight(commentID string) bool {
	return p.inflight.Running(commentID)
}

// ── Lifecycle ──────────────────────────────────────────────

// Close stops accepting work, waits for pickups in progress and applies the
// completions still queued, then closes Events. If ctx ends first Events
// stays open.
func (p *Protocol) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	started := p.started
	p.started = true
	close(p.quit)
	p.mu.Unlock()

	if !p.inflight.WaitAll(ctx) {
		return ctx.Err()
	}
	if started {
		select {
		case <-p.stopped:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else {
		p.drain(ctx)
	}
	close(p.events)
	return nil
}

// ── helpers ────────────────────────────────────────────────

func (p *Protocol) transition(ctx context.Context, c *domain.Comment, to domain.CommentStatus, overwritten []string) error {
	c.Status = to
	c.UpdatedAt = p.now().UTC()
	if err := p.store.SaveComment(ctx, c); err != nil {
		return fmt.Errorf("save comment %s: %w", c.ID, err)
	}
	p.emit(Event{Name: EventStatus, Comment: *c, Overwritten: overwritten})
	return nil
}

// fail leaves the comment in processing with the failure attached so the
// user can retry it.
func (p *Protocol) fail(ctx context.Context, c *domain.Comment, cause error) {
	err := fmt.Errorf("%w: %w", domain.ErrAgentFailure, cause)
	p.log.Warn("comment failed", zap.String("commentId", c.ID), zap.Error(err))
	c.Status = domain.CommentProcessing
	c.Failure = cause.Error()
	c.UpdatedAt = p.now().UTC()
	if serr := p.store.SaveComment(ctx, c); serr != nil {
		p.log.Error("save failed comment", zap.String("commentId", c.ID), zap.Error(serr))
	}
	p.emit(Event{Name: EventStatus, Comment: *c, Err: err})
}

func (p *Protocol) emit(e Event) {
	select {
	case p.events <- e:
	default:
		p.log.Debug("event dropped", zap.String("commentId", e.Comment.ID), zap.String("status", string(e.Comment.Status)))
	}
}
