package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"pagecraft/internal/domain"
)

var (
	_ domain.CompositionStore = (*Store)(nil)
	_ domain.ThreadStore      = (*Store)(nil)
	_ domain.CommentStore     = (*Store)(nil)
)

// ── pages & compositions ───────────────────────────────────

func (s *Store) CreatePage(ctx context.Context, p *domain.Page, c domain.Composition) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.db.Collection("pages").InsertOne(ctx, pageDoc{ID: p.ID, Name: p.Name, CreatedAt: now, UpdatedAt: now}); err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	c.PageID = p.ID
	c.Version = 1
	c.UpdatedAt = now
	if _, err := s.db.Collection("compositions").InsertOne(ctx, toCompositionDoc(c)); err != nil {
		return fmt.Errorf("insert composition: %w", err)
	}
	return nil
}

func (s *Store) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	var d pageDoc
	if err := s.db.Collection("pages").FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, notFound(err, "page", id)
	}
	return &domain.Page{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}, nil
}

func (s *Store) ListPages(ctx context.Context) ([]domain.Page, error) {
	cur, err := s.db.Collection("pages").Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	var docs []pageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	pages := make([]domain.Page, len(docs))
	for i, d := range docs {
		pages[i] = domain.Page{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
	}
	return pages, nil
}

func (s *Store) DeletePage(ctx context.Context, id string) error {
	res, err := s.db.Collection("pages").DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete page %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("page %s: %w", id, domain.ErrNotFound)
	}
	threadIDs := []string{}
	cur, err := s.db.Collection("threads").Find(ctx, bson.M{"pageId": id})
	if err == nil {
		var threads []threadDoc
		if err := cur.All(ctx, &threads); err == nil {
			for _, t := range threads {
				threadIDs = append(threadIDs, t.ID)
			}
		}
	}
	cleanups := []struct {
		coll   string
		filter bson.M
	}{
		{"compositions", bson.M{"_id": id}},
		{"comments", bson.M{"pageId": id}},
		{"threads", bson.M{"pageId": id}},
		{"messages", bson.M{"threadId": bson.M{"$in": threadIDs}}},
	}
	for _, c := range cleanups {
		if _, err := s.db.Collection(c.coll).DeleteMany(ctx, c.filter); err != nil {
			s.log.Warn("page cleanup", zap.String("collection", c.coll), zap.String("pageId", id), zap.Error(err))
		}
	}
	return nil
}

func (s *Store) LoadComposition(ctx context.Context, pageID string) (domain.Composition, error) {
	var d compositionDoc
	if err := s.db.Collection("compositions").FindOne(ctx, bson.M{"_id": pageID}).Decode(&d); err != nil {
		return domain.Composition{}, notFound(err, "composition", pageID)
	}
	return fromCompositionDoc(d), nil
}

// SaveComposition replaces the document only while its version still
// equals c.Version.
func (s *Store) SaveComposition(ctx context.Context, c domain.Composition) (int64, error) {
	next := c
	next.Version = c.Version + 1
	next.UpdatedAt = time.Now().UTC()
	res, err := s.db.Collection("compositions").ReplaceOne(ctx,
		bson.M{"_id": c.PageID, "version": c.Version},
		toCompositionDoc(next),
	)
	if err != nil {
		return 0, fmt.Errorf("save composition %s: %w", c.PageID, err)
	}
	if res.MatchedCount == 0 {
		if _, err := s.CompositionVersion(ctx, c.PageID); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("save composition %s at version %d: %w", c.PageID, c.Version, domain.ErrConflict)
	}
	_, _ = s.db.Collection("pages").UpdateOne(ctx, bson.M{"_id": c.PageID}, bson.M{"$set": bson.M{"updatedAt": next.UpdatedAt}})
	return next.Version, nil
}

func (s *Store) CompositionVersion(ctx context.Context, pageID string) (int64, error) {
	var d struct {
		Version int64 `bson:"version"`
	}
	err := s.db.Collection("compositions").FindOne(ctx, bson.M{"_id": pageID},
		options.FindOne().SetProjection(bson.M{"version": 1}),
	).Decode(&d)
	if err != nil {
		return 0, notFound(err, "composition", pageID)
	}
	return d.Version, nil
}

// ── threads & messages ─────────────────────────────────────

func (s *Store) GetOrCreateThread(ctx context.Context, userID string, purpose domain.ThreadPurpose, pageID string) (*domain.Thread, error) {
	filter := bson.M{"ownerUserId": userID, "purpose": string(purpose), "pageId": pageID}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":       uuid.New().String(),
		"lastSeq":   int64(0),
		"createdAt": time.Now().UTC(),
	}}
	var d threadDoc
	err := s.db.Collection("threads").FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&d)
	if mongo.IsDuplicateKeyError(err) {
		// Two upserts raced; the loser reads the winner's document.
		err = s.db.Collection("threads").FindOne(ctx, filter).Decode(&d)
	}
	if err != nil {
		return nil, fmt.Errorf("get or create thread: %w", err)
	}
	return &domain.Thread{ID: d.ID, OwnerUserID: d.OwnerUserID, Purpose: domain.ThreadPurpose(d.Purpose), PageID: d.PageID, CreatedAt: d.CreatedAt}, nil
}

// AppendMessage takes the next Seq from a counter on the thread document.
func (s *Store) AppendMessage(ctx context.Context, m *domain.Message) error {
	var th threadDoc
	err := s.db.Collection("threads").FindOneAndUpdate(ctx,
		bson.M{"_id": m.ThreadID},
		bson.M{"$inc": bson.M{"lastSeq": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&th)
	if err != nil {
		return notFound(err, "thread", m.ThreadID)
	}
	m.Seq = th.LastSeq
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.Collection("messages").InsertOne(ctx, messageDoc{
		ID: m.ID, ThreadID: m.ThreadID, Seq: m.Seq, Role: string(m.Role),
		Content: m.Content, ToolCalls: m.ToolCalls, CreatedAt: m.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, threadID string) ([]domain.Message, error) {
	cur, err := s.db.Collection("messages").Find(ctx, bson.M{"threadId": threadID},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]domain.Message, len(docs))
	for i, d := range docs {
		out[i] = domain.Message{ID: d.ID, ThreadID: d.ThreadID, Seq: d.Seq, Role: domain.Role(d.Role),
			Content: d.Content, ToolCalls: d.ToolCalls, CreatedAt: d.CreatedAt}
	}
	return out, nil
}

// ── comments ───────────────────────────────────────────────

func (s *Store) SaveComment(ctx context.Context, c *domain.Comment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	d := commentDoc{
		ID: c.ID, PageID: c.PageID, BlockID: c.BlockID, UserID: c.UserID, X: c.X, Y: c.Y,
		Text: c.Text, MediaIDs: c.MediaIDs, Status: string(c.Status), ThreadID: c.ThreadID,
		PreviousContent: c.PreviousContent, ProposedPatch: c.ProposedPatch,
		AIResponse: c.AIResponse, Failure: c.Failure, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
	_, err := s.db.Collection("comments").ReplaceOne(ctx, bson.M{"_id": c.ID}, d, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save comment %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) GetComment(ctx context.Context, id string) (*domain.Comment, error) {
	var d commentDoc
	if err := s.db.Collection("comments").FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, notFound(err, "comment", id)
	}
	c := fromCommentDoc(d)
	return &c, nil
}

func (s *Store) ListComments(ctx context.Context, pageID string, statuses ...domain.CommentStatus) ([]domain.Comment, error) {
	filter := bson.M{"pageId": pageID}
	if len(statuses) > 0 {
		in := make(bson.A, len(statuses))
		for i, st := range statuses {
			in[i] = string(st)
		}
		filter["status"] = bson.M{"$in": in}
	}
	return s.findComments(ctx, filter, "createdAt")
}

func (s *Store) ListCommentsByStatus(ctx context.Context, status domain.CommentStatus) ([]domain.Comment, error) {
	return s.findComments(ctx, bson.M{"status": string(status)}, "updatedAt")
}

func (s *Store) findComments(ctx context.Context, filter bson.M, sortKey string) ([]domain.Comment, error) {
	cur, err := s.db.Collection("comments").Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: sortKey, Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	var docs []commentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	out := make([]domain.Comment, len(docs))
	for i, d := range docs {
		out[i] = fromCommentDoc(d)
	}
	return out, nil
}

func fromCommentDoc(d commentDoc) domain.Comment {
	media := d.MediaIDs
	if media == nil {
		media = []string{}
	}
	return domain.Comment{
		ID: d.ID, PageID: d.PageID, BlockID: d.BlockID, UserID: d.UserID, X: d.X, Y: d.Y,
		Text: d.Text, MediaIDs: media, Status: domain.CommentStatus(d.Status), ThreadID: d.ThreadID,
		PreviousContent: optionalProps(d.PreviousContent), ProposedPatch: optionalProps(d.ProposedPatch),
		AIResponse: d.AIResponse, Failure: d.Failure, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}
