// Package mongostore implements the page, thread and comment stores on
// MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"pagecraft/internal/domain"
)

// Store keeps one document per page composition, versioned for optimistic
// writes, plus threads, messages and comments.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger
}

// BuildURI turns a connection description into a mongodb:// URI. A Host
// that already is a URI is used as is, with <password> filled in.
func BuildURI(conn domain.DatabaseConnection) string {
	if conn.DSN != "" {
		return conn.DSN
	}
	if strings.HasPrefix(conn.Host, "mongodb+srv://") || strings.HasPrefix(conn.Host, "mongodb://") {
		uri := conn.Host
		if conn.Password != "" {
			uri = strings.ReplaceAll(uri, "<password>", conn.Password)
			uri = strings.ReplaceAll(uri, "<db_password>", conn.Password)
		}
		return uri
	}
	port := conn.Port
	if port == 0 {
		port = 27017
	}
	if conn.Username != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d", conn.Username, conn.Password, conn.Host, port)
	}
	return fmt.Sprintf("mongodb://%s:%d", conn.Host, port)
}

// Open connects, pings and ensures indexes.
func Open(ctx context.Context, conn domain.DatabaseConnection, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dbName := conn.Database
	if dbName == "" {
		dbName = "pagecraft"
	}
	client, err := mongo.Connect(options.Client().ApplyURI(BuildURI(conn)))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := &Store{client: client, db: client.Database(dbName), log: log}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	log.Info("mongo store ready", zap.String("database", dbName))
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection("threads").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "ownerUserId", Value: 1}, {Key: "pageId", Value: 1}, {Key: "purpose", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("thread index: %w", err)
	}
	_, err = s.db.Collection("messages").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "threadId", Value: 1}, {Key: "seq", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("message index: %w", err)
	}
	_, err = s.db.Collection("comments").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "pageId", Value: 1}, {Key: "status", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("comment index: %w", err)
	}
	return nil
}

// ── documents ──────────────────────────────────────────────

type pageDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type blockDoc struct {
	ID       string         `bson:"id"`
	Type     string         `bson:"type"`
	Props    map[string]any `bson:"props"`
	Children []string       `bson:"children"`
	ParentID string         `bson:"parentId,omitempty"`
}

type compositionDoc struct {
	PageID    string     `bson:"_id"`
	Version   int64      `bson:"version"`
	Blocks    []blockDoc `bson:"blocks"`
	RootOrder []string   `bson:"rootOrder"`
	UpdatedAt time.Time  `bson:"updatedAt"`
}

type threadDoc struct {
	ID          string    `bson:"_id"`
	OwnerUserID string    `bson:"ownerUserId"`
	Purpose     string    `bson:"purpose"`
	PageID      string    `bson:"pageId"`
	LastSeq     int64     `bson:"lastSeq"`
	CreatedAt   time.Time `bson:"createdAt"`
}

type messageDoc struct {
	ID        string            `bson:"_id"`
	ThreadID  string            `bson:"threadId"`
	Seq       int64             `bson:"seq"`
	Role      string            `bson:"role"`
	Content   string            `bson:"content"`
	ToolCalls []domain.ToolCall `bson:"toolCalls"`
	CreatedAt time.Time         `bson:"createdAt"`
}

type commentDoc struct {
	ID              string         `bson:"_id"`
	PageID          string         `bson:"pageId"`
	BlockID         string         `bson:"blockId"`
	UserID          string         `bson:"userId"`
	X               float64        `bson:"x"`
	Y               float64        `bson:"y"`
	Text            string         `bson:"text"`
	MediaIDs        []string       `bson:"mediaIds"`
	Status          string         `bson:"status"`
	ThreadID        string         `bson:"threadId"`
	PreviousContent map[string]any `bson:"previousContent"`
	ProposedPatch   map[string]any `bson:"proposedPatch"`
	AIResponse      string         `bson:"aiResponse"`
	Failure         string         `bson:"failure"`
	CreatedAt       time.Time      `bson:"createdAt"`
	UpdatedAt       time.Time      `bson:"updatedAt"`
}

func toCompositionDoc(c domain.Composition) compositionDoc {
	d := compositionDoc{PageID: c.PageID, Version: c.Version, RootOrder: c.RootOrder, UpdatedAt: c.UpdatedAt}
	for _, b := range c.Blocks {
		d.Blocks = append(d.Blocks, blockDoc{
			ID: b.ID, Type: string(b.Type), Props: b.Props, Children: b.Children, ParentID: b.ParentID,
		})
	}
	return d
}

func fromCompositionDoc(d compositionDoc) domain.Composition {
	c := domain.NewComposition(d.PageID)
	c.Version = d.Version
	c.UpdatedAt = d.UpdatedAt
	if d.RootOrder != nil {
		c.RootOrder = d.RootOrder
	}
	for _, b := range d.Blocks {
		blk := &domain.Block{
			ID:       b.ID,
			Type:     domain.BlockType(b.Type),
			Props:    normalizeProps(b.Props),
			Children: b.Children,
			ParentID: b.ParentID,
		}
		if blk.Children == nil {
			blk.Children = []string{}
		}
		c.Blocks[b.ID] = blk
	}
	return c
}

// normalizeProps turns BSON numbers and arrays into the JSON-shaped values
// the schema validators expect.
func normalizeProps(m map[string]any) domain.Props {
	if m == nil {
		return domain.Props{}
	}
	out := make(domain.Props, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case bson.A:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = normalizeValue(e)
		}
		return s
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = normalizeValue(e)
		}
		return s
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case bson.M:
		return map[string]any(normalizeProps(t))
	case map[string]any:
		return map[string]any(normalizeProps(t))
	default:
		return v
	}
}

func optionalProps(m map[string]any) domain.Props {
	if m == nil {
		return nil
	}
	return normalizeProps(m)
}

func notFound(err error, what, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", what, id, domain.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", what, id, err)
}
