// Package session manages the currently open chat: the message
// subscription, composing, and the send path. At most one message
// watch is live; selecting a chat tears the previous watch down before
// attaching the next, and a stale watch's deliveries are discarded by
// generation.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amq10717-bit/SkillUp-sub001/internal/apperr"
	"github.com/amq10717-bit/SkillUp-sub001/internal/events"
	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
	"github.com/amq10717-bit/SkillUp-sub001/internal/store"
)

type Store interface {
	store.ChatStore
	store.MessageStore
}

type Session struct {
	store  Store
	events *events.Producer
	log    *zap.SugaredLogger
	user   models.Profile

	mu       sync.Mutex
	gen      uint64
	selected *models.Chat
	watch    store.MessageWatch
	messages []models.Message
	out      chan []models.Message
}

func New(s Store, ev *events.Producer, user models.Profile, log *zap.SugaredLogger) *Session {
	return &Session{
		store:  s,
		events: ev,
		log:    log,
		user:   user,
		out:    make(chan []models.Message, 1),
	}
}

// Messages delivers coalesced full snapshots of the open chat's
// message list, timestamp ascending.
func (s *Session) Messages() <-chan []models.Message { return s.out }

// Current returns the latest delivered message list.
func (s *Session) Current() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Selected returns the open chat, or nil.
func (s *Session) Selected() *models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	c := *s.selected
	return &c
}

// SelectChat closes the previous message subscription and opens one
// scoped to the given chat. Passing the zero value only deselects.
func (s *Session) SelectChat(ctx context.Context, chat models.Chat) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.watch != nil {
		// detach before attach: the old listener must not mutate state
		// a newer subscription owns
		s.watch.Release()
		s.watch = nil
	}
	s.selected = nil
	s.messages = nil
	s.publishLocked()
	s.mu.Unlock()

	if chat.ID == "" {
		return nil
	}

	w, err := s.store.WatchMessages(ctx, chat.Kind, chat.ID)
	if err != nil {
		return apperr.Wrap(apperr.KindNetwork, "watch messages", err)
	}

	s.mu.Lock()
	if gen != s.gen {
		// a later SelectChat or Clear raced us; this subscription is
		// already obsolete
		s.mu.Unlock()
		w.Release()
		return nil
	}
	c := chat
	s.selected = &c
	s.watch = w
	s.mu.Unlock()

	go func() {
		for snap := range w.Snapshots() {
			s.mu.Lock()
			if s.gen != gen {
				s.mu.Unlock()
				return
			}
			s.messages = snap
			s.publishLocked()
			s.mu.Unlock()
		}
	}()
	return nil
}

// Clear deselects the open chat and tears down its subscription.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.watch != nil {
		s.watch.Release()
		s.watch = nil
	}
	s.selected = nil
	s.messages = nil
	s.publishLocked()
}

// SendMessage validates, inserts the message, then updates the parent
// chat's summary fields. On stores without transactions the two writes
// are not atomic: a failed summary update leaves the message visible in
// the open session while the directory preview stays stale until the
// next successful send. That window is accepted, logged, and not an
// error.
func (s *Session) SendMessage(ctx context.Context, text string, typ models.MessageType, mediaURL string, att *models.Attachment) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && mediaURL == "" {
		return nil, apperr.New(apperr.KindValidation, "empty message")
	}

	s.mu.Lock()
	chat := s.selected
	s.mu.Unlock()
	if chat == nil {
		return nil, apperr.New(apperr.KindValidation, "no chat selected")
	}

	if typ == "" {
		typ = models.MessageText
	}
	now := time.Now().UTC()
	msg := &models.Message{
		ID:         uuid.NewString(),
		ChatID:     chat.ID,
		ChatKind:   chat.Kind,
		Sender:     s.user.ID,
		SenderName: s.user.DisplayName,
		Text:       text,
		Type:       typ,
		MediaURL:   mediaURL,
		Attachment: att,
		Timestamp:  now,
	}

	summary := map[string]any{
		"last_message":      models.Preview(typ, text),
		"last_message_time": now,
	}

	if s.store.SupportsTransactions() {
		if _, err := s.store.SendInTxn(ctx, msg, summary); err != nil {
			return nil, apperr.Wrap(apperr.KindNetwork, "send message", err)
		}
	} else {
		if _, err := s.store.InsertMessage(ctx, msg); err != nil {
			return nil, apperr.Wrap(apperr.KindNetwork, "send message", err)
		}
		if err := s.store.UpdateChat(ctx, chat.Kind, chat.ID, summary); err != nil {
			s.log.Warnw("chat summary update failed, preview stale until next send",
				"chat_id", chat.ID, "err", err)
		}
	}

	s.events.MessageSent(ctx, msg)
	return msg, nil
}

func (s *Session) publishLocked() {
	select {
	case <-s.out:
	default:
	}
	snap := make([]models.Message, len(s.messages))
	copy(snap, s.messages)
	s.out <- snap
}
