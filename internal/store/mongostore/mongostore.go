// Package mongostore implements the store port on MongoDB. Live
// queries ride change streams: on every event the filtered query is
// re-run and the full result set is delivered, which gives watchers the
// same snapshot-replacement semantics the in-memory store has.
package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
	"github.com/amq10717-bit/SkillUp-sub001/internal/store"
)

const (
	collPrivateChats = "private_chats"
	collGroupChats   = "group_chats"
	collMessages     = "messages"
	collUsers        = "users"
	collCourses      = "courses"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	txn    bool
}

type Config struct {
	URI      string
	Database string
	// Transactions requires a replica-set deployment.
	Transactions bool
}

func Connect(ctx context.Context, cfg Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	s := &Store{client: client, db: client.Database(cfg.Database), txn: cfg.Transactions}
	s.ensureIndexes(ctx)
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) {
	for _, name := range []string{collPrivateChats, collGroupChats} {
		idx := mongo.IndexModel{
			Keys:    bson.D{{Key: "participants", Value: 1}},
			Options: options.Index().SetName("participants_idx"),
		}
		_, _ = s.db.Collection(name).Indexes().CreateOne(ctx, idx)
	}
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "chat_id", Value: 1}, {Key: "timestamp", Value: 1}},
		Options: options.Index().SetName("chat_timestamp_idx"),
	}
	_, _ = s.db.Collection(collMessages).Indexes().CreateOne(ctx, idx)
}

func (s *Store) chatColl(kind models.ChatKind) *mongo.Collection {
	if kind == models.ChatGroup {
		return s.db.Collection(collGroupChats)
	}
	return s.db.Collection(collPrivateChats)
}

var _ store.Store = (*Store)(nil)

// --- chats ---

func (s *Store) CreateChat(ctx context.Context, c *models.Chat) (string, error) {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if _, err := s.chatColl(c.Kind).InsertOne(ctx, c); err != nil {
		return "", err
	}
	return c.ID, nil
}

func (s *Store) GetChat(ctx context.Context, kind models.ChatKind, id string) (*models.Chat, error) {
	var c models.Chat
	err := s.chatColl(kind).FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) UpdateChat(ctx context.Context, kind models.ChatKind, id string, fields map[string]any) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}
	res, err := s.chatColl(kind).UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteChat(ctx context.Context, kind models.ChatKind, id string) error {
	res, err := s.chatColl(kind).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListChats(ctx context.Context, kind models.ChatKind, userID string) ([]models.Chat, error) {
	filter := bson.M{"participants": userID}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := s.chatColl(kind).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]models.Chat, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) WatchChats(ctx context.Context, kind models.ChatKind, userID string) (store.ChatWatch, error) {
	coll := s.chatColl(kind)
	wctx, cancel := context.WithCancel(context.Background())
	cs, err := coll.Watch(wctx, mongo.Pipeline{},
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, err
	}
	w := &chatWatch{ch: make(chan []models.Chat, 1), cancel: cancel}
	go func() {
		defer close(w.ch)
		defer cs.Close(context.Background())
		if snap, err := s.ListChats(wctx, kind, userID); err == nil {
			w.push(snap)
		}
		for cs.Next(wctx) {
			snap, err := s.ListChats(wctx, kind, userID)
			if err != nil {
				continue
			}
			w.push(snap)
		}
	}()
	return w, nil
}

// --- messages ---

func (s *Store) InsertMessage(ctx context.Context, m *models.Message) (string, error) {
	if m.ID == "" {
		m.ID = newID()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if _, err := s.db.Collection(collMessages).InsertOne(ctx, m); err != nil {
		return "", err
	}
	return m.ID, nil
}

func (s *Store) ListMessages(ctx context.Context, kind models.ChatKind, chatID string) ([]models.Message, error) {
	filter := bson.M{"chat_id": chatID, "chat_kind": kind}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cur, err := s.db.Collection(collMessages).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]models.Message, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) WatchMessages(ctx context.Context, kind models.ChatKind, chatID string) (store.MessageWatch, error) {
	// The stream is deliberately unfiltered: delete events carry no
	// fullDocument, so a $match on fullDocument.chat_id would swallow
	// the events a clear-history emits. Scoping happens in the re-run
	// ListMessages, same as WatchChats.
	wctx, cancel := context.WithCancel(context.Background())
	cs, err := s.db.Collection(collMessages).Watch(wctx, mongo.Pipeline{},
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, err
	}
	w := &messageWatch{ch: make(chan []models.Message, 1), cancel: cancel}
	go func() {
		defer close(w.ch)
		defer cs.Close(context.Background())
		if snap, err := s.ListMessages(wctx, kind, chatID); err == nil {
			w.push(snap)
		}
		for cs.Next(wctx) {
			snap, err := s.ListMessages(wctx, kind, chatID)
			if err != nil {
				continue
			}
			w.push(snap)
		}
	}()
	return w, nil
}

func (s *Store) ClearMessages(ctx context.Context, kind models.ChatKind, chatID string) error {
	// single deleteMany command: the batch either applies or fails whole
	_, err := s.db.Collection(collMessages).DeleteMany(ctx,
		bson.M{"chat_id": chatID, "chat_kind": kind})
	return err
}

func (s *Store) CountMessages(ctx context.Context, kind models.ChatKind, chatID string) (int64, error) {
	return s.db.Collection(collMessages).CountDocuments(ctx,
		bson.M{"chat_id": chatID, "chat_kind": kind})
}

func (s *Store) SupportsTransactions() bool { return s.txn }

func (s *Store) SendInTxn(ctx context.Context, m *models.Message, summary map[string]any) (string, error) {
	if m.ID == "" {
		m.ID = newID()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	sess, err := s.client.StartSession()
	if err != nil {
		return "", err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if _, err := s.db.Collection(collMessages).InsertOne(sc, m); err != nil {
			return nil, err
		}
		set := bson.M{"updated_at": time.Now().UTC()}
		for k, v := range summary {
			set[k] = v
		}
		res, err := s.chatColl(m.ChatKind).UpdateByID(sc, m.ChatID, bson.M{"$set": set})
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, store.ErrNotFound
		}
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

// --- profiles and courses ---

func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	cur, err := s.db.Collection(collUsers).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]models.Profile, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	var c models.Course
	err := s.db.Collection(collCourses).FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
