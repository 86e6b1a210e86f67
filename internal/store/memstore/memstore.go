// Package memstore is an in-memory document store with live-query
// support. It backs the engine in tests and local development; the
// production deployment uses mongostore.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
	"github.com/amq10717-bit/SkillUp-sub001/internal/store"
)

type Option func(*Store)

// WithTransactions makes SendInTxn available, mirroring a store whose
// backend supports multi-document transactions.
func WithTransactions() Option {
	return func(s *Store) { s.txn = true }
}

type Store struct {
	mu       sync.Mutex
	chats    map[models.ChatKind]map[string]models.Chat
	messages map[msgKey][]models.Message
	profiles map[string]models.Profile
	courses  map[string]models.Course

	chatWatches []*chatWatch
	msgWatches  []*messageWatch
	txn         bool
}

type msgKey struct {
	kind models.ChatKind
	chat string
}

func New(opts ...Option) *Store {
	s := &Store{
		chats: map[models.ChatKind]map[string]models.Chat{
			models.ChatPrivate: {},
			models.ChatGroup:   {},
		},
		messages: make(map[msgKey][]models.Message),
		profiles: make(map[string]models.Profile),
		courses:  make(map[string]models.Course),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ store.Store = (*Store)(nil)

// --- chats ---

func (s *Store) CreateChat(ctx context.Context, c *models.Chat) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.chats[c.Kind][c.ID] = *c
	s.notifyChatsLocked(c.Kind)
	return c.ID, nil
}

func (s *Store) GetChat(ctx context.Context, kind models.ChatKind, id string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[kind][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := c
	return &out, nil
}

func (s *Store) UpdateChat(ctx context.Context, kind models.ChatKind, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[kind][id]
	if !ok {
		return store.ErrNotFound
	}
	applyChatFields(&c, fields)
	c.UpdatedAt = time.Now().UTC()
	s.chats[kind][id] = c
	s.notifyChatsLocked(kind)
	return nil
}

func (s *Store) DeleteChat(ctx context.Context, kind models.ChatKind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[kind][id]; !ok {
		return store.ErrNotFound
	}
	delete(s.chats[kind], id)
	s.notifyChatsLocked(kind)
	return nil
}

func (s *Store) ListChats(ctx context.Context, kind models.ChatKind, userID string) ([]models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listChatsLocked(kind, userID), nil
}

func (s *Store) listChatsLocked(kind models.ChatKind, userID string) []models.Chat {
	out := make([]models.Chat, 0)
	for _, c := range s.chats[kind] {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func (s *Store) WatchChats(ctx context.Context, kind models.ChatKind, userID string) (store.ChatWatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := &chatWatch{s: s, kind: kind, user: userID, ch: make(chan []models.Chat, 1)}
	s.chatWatches = append(s.chatWatches, w)
	w.push(s.listChatsLocked(kind, userID))
	return w, nil
}

// --- messages ---

func (s *Store) InsertMessage(ctx context.Context, m *models.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertMessageLocked(m)
	return m.ID, nil
}

func (s *Store) insertMessageLocked(m *models.Message) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	k := msgKey{kind: m.ChatKind, chat: m.ChatID}
	s.messages[k] = append(s.messages[k], *m)
	sort.SliceStable(s.messages[k], func(i, j int) bool {
		return s.messages[k][i].Timestamp.Before(s.messages[k][j].Timestamp)
	})
	s.notifyMessagesLocked(m.ChatKind, m.ChatID)
}

func (s *Store) ListMessages(ctx context.Context, kind models.ChatKind, chatID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listMessagesLocked(kind, chatID), nil
}

func (s *Store) listMessagesLocked(kind models.ChatKind, chatID string) []models.Message {
	src := s.messages[msgKey{kind: kind, chat: chatID}]
	out := make([]models.Message, len(src))
	copy(out, src)
	return out
}

func (s *Store) WatchMessages(ctx context.Context, kind models.ChatKind, chatID string) (store.MessageWatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := &messageWatch{s: s, kind: kind, chat: chatID, ch: make(chan []models.Message, 1)}
	s.msgWatches = append(s.msgWatches, w)
	w.push(s.listMessagesLocked(kind, chatID))
	return w, nil
}

func (s *Store) ClearMessages(ctx context.Context, kind models.ChatKind, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, msgKey{kind: kind, chat: chatID})
	s.notifyMessagesLocked(kind, chatID)
	return nil
}

func (s *Store) CountMessages(ctx context.Context, kind models.ChatKind, chatID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.messages[msgKey{kind: kind, chat: chatID}])), nil
}

func (s *Store) SupportsTransactions() bool { return s.txn }

func (s *Store) SendInTxn(ctx context.Context, m *models.Message, summary map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[m.ChatKind][m.ChatID]
	if !ok {
		return "", store.ErrNotFound
	}
	s.insertMessageLocked(m)
	applyChatFields(&c, summary)
	c.UpdatedAt = time.Now().UTC()
	s.chats[m.ChatKind][m.ChatID] = c
	s.notifyChatsLocked(m.ChatKind)
	return m.ID, nil
}

// --- profiles and courses ---

func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := p
	return &out, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := c
	return &out, nil
}

// PutProfile and PutCourse seed directory data.
func (s *Store) PutProfile(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func (s *Store) PutCourse(c models.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[c.ID] = c
}

// --- watch plumbing ---

func (s *Store) notifyChatsLocked(kind models.ChatKind) {
	for _, w := range s.chatWatches {
		if w.kind == kind && !w.released {
			w.push(s.listChatsLocked(kind, w.user))
		}
	}
}

func (s *Store) notifyMessagesLocked(kind models.ChatKind, chatID string) {
	for _, w := range s.msgWatches {
		if w.kind == kind && w.chat == chatID && !w.released {
			w.push(s.listMessagesLocked(kind, chatID))
		}
	}
}

// chatWatch delivers coalesced full snapshots: a pending undelivered
// snapshot is replaced rather than queued, so readers always observe
// the latest state.
type chatWatch struct {
	s        *Store
	kind     models.ChatKind
	user     string
	ch       chan []models.Chat
	released bool
}

func (w *chatWatch) Snapshots() <-chan []models.Chat { return w.ch }

// push runs with the store lock held.
func (w *chatWatch) push(snap []models.Chat) {
	select {
	case <-w.ch:
	default:
	}
	w.ch <- snap
}

func (w *chatWatch) Release() {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if w.released {
		return
	}
	w.released = true
	for i, o := range w.s.chatWatches {
		if o == w {
			w.s.chatWatches = append(w.s.chatWatches[:i], w.s.chatWatches[i+1:]...)
			break
		}
	}
	close(w.ch)
}

type messageWatch struct {
	s        *Store
	kind     models.ChatKind
	chat     string
	ch       chan []models.Message
	released bool
}

func (w *messageWatch) Snapshots() <-chan []models.Message { return w.ch }

func (w *messageWatch) push(snap []models.Message) {
	select {
	case <-w.ch:
	default:
	}
	w.ch <- snap
}

func (w *messageWatch) Release() {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if w.released {
		return
	}
	w.released = true
	for i, o := range w.s.msgWatches {
		if o == w {
			w.s.msgWatches = append(w.s.msgWatches[:i], w.s.msgWatches[i+1:]...)
			break
		}
	}
	close(w.ch)
}

func applyChatFields(c *models.Chat, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "is_pinned":
			c.IsPinned, _ = v.(bool)
		case "pinned_at":
			c.PinnedAt = asTimePtr(v)
		case "is_archived":
			c.IsArchived, _ = v.(bool)
		case "archived_at":
			c.ArchivedAt = asTimePtr(v)
		case "last_message":
			c.LastMessage, _ = v.(string)
		case "last_message_time":
			if t, ok := v.(time.Time); ok {
				c.LastMessageTime = t
			}
		case "name":
			c.Name, _ = v.(string)
		case "description":
			c.Description, _ = v.(string)
		}
	}
}

func asTimePtr(v any) *time.Time {
	switch t := v.(type) {
	case *time.Time:
		return t
	case time.Time:
		return &t
	}
	return nil
}
