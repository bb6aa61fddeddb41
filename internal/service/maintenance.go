package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"pagecraft/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Maintenance: scheduled housekeeping
// ─────────────────────────────────────────────────────────────

// Maintenance prunes undo history and reports comments that have been
// processing for longer than a threshold. Stuck comments are only logged
// and announced; nothing here ever fails or retries them.
type Maintenance struct {
	undo     UndoHistory
	comments domain.CommentStore
	emitter  EventEmitter
	stuckFor time.Duration
	now      func() time.Time
	log      *zap.Logger

	mu    sync.Mutex
	sched *cron.Cron
}

// EventCommentStuck names comments still processing past the threshold.
const EventCommentStuck = "comment:stuck"

// MaintenanceReport is the outcome of one run.
type MaintenanceReport struct {
	Pruned int              `json:"pruned"`
	Stuck  []domain.Comment `json:"stuck"`
}

// NewMaintenance builds the housekeeping jobs. undo may be nil.
func NewMaintenance(undo UndoHistory, comments domain.CommentStore, stuckFor time.Duration, emitter EventEmitter, log *zap.Logger) *Maintenance {
	if log == nil {
		log = zap.NewNop()
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &Maintenance{undo: undo, comments: comments, emitter: emitter, stuckFor: stuckFor, now: time.Now, log: log}
}

// RunOnce performs every job immediately.
func (m *Maintenance) RunOnce(ctx context.Context) (MaintenanceReport, error) {
	var rep MaintenanceReport
	if m.undo != nil {
		n, err := m.undo.PruneAll(ctx)
		if err != nil {
			return rep, fmt.Errorf("prune undo history: %w", err)
		}
		rep.Pruned = n
		if n > 0 {
			m.log.Info("undo history pruned", zap.Int("nodes", n))
		}
	}

	processing, err := m.comments.ListCommentsByStatus(ctx, domain.CommentProcessing)
	if err != nil {
		return rep, fmt.Errorf("list processing comments: %w", err)
	}
	cutoff := m.now().Add(-m.stuckFor)
	for _, c := range processing {
		if c.UpdatedAt.After(cutoff) {
			continue
		}
		rep.Stuck = append(rep.Stuck, c)
		m.log.Warn("comment stuck in processing",
			zap.String("commentId", c.ID),
			zap.String("pageId", c.PageID),
			zap.String("blockId", c.BlockID),
			zap.Duration("for", m.now().Sub(c.UpdatedAt)),
			zap.String("failure", c.Failure),
		)
		m.emitter.Emit(ctx, EventCommentStuck, c)
	}
	return rep, nil
}

// Start schedules RunOnce on schedule, a standard five-field cron expression.
func (m *Maintenance) Start(ctx context.Context, schedule string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sched != nil {
		m.sched.Stop()
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := m.RunOnce(ctx); err != nil {
			m.log.Error("maintenance run", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("maintenance schedule %q: %w", schedule, err)
	}
	c.Start()
	m.sched = c
	m.log.Info("maintenance scheduled", zap.String("schedule", schedule))
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (m *Maintenance) Stop() {
	m.mu.Lock()
	c := m.sched
	m.sched = nil
	m.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}
