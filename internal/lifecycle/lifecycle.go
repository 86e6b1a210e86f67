// Package lifecycle implements the targeted chat mutations: pin,
// archive, delete and clear-history. All operations are
// confirm-then-apply: no local state changes until the store
// acknowledges the write; visible effects arrive through the
// directory's own live subscription.
package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/amq10717-bit/SkillUp-sub001/internal/apperr"
	"github.com/amq10717-bit/SkillUp-sub001/internal/events"
	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
	"github.com/amq10717-bit/SkillUp-sub001/internal/session"
	"github.com/amq10717-bit/SkillUp-sub001/internal/store"
)

// Confirmer gates destructive operations. Returning false declines
// the operation; a declined operation is a no-op, not an error.
type Confirmer func(action string, kind models.ChatKind, chatID string) bool

// ConfirmAll approves everything; callers that front a UI supply
// their own gate.
func ConfirmAll(string, models.ChatKind, string) bool { return true }

type Store interface {
	store.ChatStore
	store.MessageStore
}

type Manager struct {
	store   Store
	session *session.Session // optional; archive clears its selection
	events  *events.Producer
	confirm Confirmer
	actor   string
	log     *zap.SugaredLogger
}

func NewManager(s Store, sess *session.Session, ev *events.Producer, confirm Confirmer, actor string, log *zap.SugaredLogger) *Manager {
	if confirm == nil {
		confirm = ConfirmAll
	}
	return &Manager{store: s, session: sess, events: ev, confirm: confirm, actor: actor, log: log}
}

func (m *Manager) Pin(ctx context.Context, kind models.ChatKind, chatID string) error {
	now := time.Now().UTC()
	err := m.update(ctx, kind, chatID, map[string]any{
		"is_pinned": true,
		"pinned_at": &now,
	})
	if err != nil {
		return err
	}
	m.events.Lifecycle(ctx, events.EventChatPinned, kind, chatID, m.actor)
	return nil
}

func (m *Manager) Unpin(ctx context.Context, kind models.ChatKind, chatID string) error {
	err := m.update(ctx, kind, chatID, map[string]any{
		"is_pinned": false,
		"pinned_at": nil,
	})
	if err != nil {
		return err
	}
	m.events.Lifecycle(ctx, events.EventChatUnpinned, kind, chatID, m.actor)
	return nil
}

// Archive hides the chat from its active tab. Archiving the currently
// open chat also clears the open-session selection.
func (m *Manager) Archive(ctx context.Context, kind models.ChatKind, chatID string) error {
	now := time.Now().UTC()
	err := m.update(ctx, kind, chatID, map[string]any{
		"is_archived": true,
		"archived_at": &now,
	})
	if err != nil {
		return err
	}
	m.clearSelectionIfOpen(chatID)
	m.events.Lifecycle(ctx, events.EventChatArchived, kind, chatID, m.actor)
	return nil
}

func (m *Manager) Unarchive(ctx context.Context, kind models.ChatKind, chatID string) error {
	err := m.update(ctx, kind, chatID, map[string]any{
		"is_archived": false,
		"archived_at": nil,
	})
	if err != nil {
		return err
	}
	m.events.Lifecycle(ctx, events.EventChatRestored, kind, chatID, m.actor)
	return nil
}

// Delete hard-removes the chat record. It does NOT cascade into the
// message subcollection: unless ClearHistory ran first, the messages
// are orphaned. This asymmetry is inherited behavior, kept on purpose.
func (m *Manager) Delete(ctx context.Context, kind models.ChatKind, chatID string) error {
	if !m.confirm("delete", kind, chatID) {
		return nil
	}
	if err := m.store.DeleteChat(ctx, kind, chatID); err != nil {
		if err == store.ErrNotFound {
			return apperr.Wrap(apperr.KindNotFound, "chat", err)
		}
		return apperr.Wrap(apperr.KindNetwork, "delete chat", err)
	}
	m.clearSelectionIfOpen(chatID)
	m.events.Lifecycle(ctx, events.EventChatDeleted, kind, chatID, m.actor)
	return nil
}

// ClearHistory deletes every message under the chat as one
// all-or-nothing batch, then resets the chat's summary fields.
func (m *Manager) ClearHistory(ctx context.Context, kind models.ChatKind, chatID string) error {
	if !m.confirm("clear_history", kind, chatID) {
		return nil
	}
	if err := m.store.ClearMessages(ctx, kind, chatID); err != nil {
		return apperr.Wrap(apperr.KindNetwork, "clear history", err)
	}
	err := m.update(ctx, kind, chatID, map[string]any{
		"last_message":      "",
		"last_message_time": time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	m.events.Lifecycle(ctx, events.EventChatCleared, kind, chatID, m.actor)
	return nil
}

func (m *Manager) update(ctx context.Context, kind models.ChatKind, chatID string, fields map[string]any) error {
	if err := m.store.UpdateChat(ctx, kind, chatID, fields); err != nil {
		if err == store.ErrNotFound {
			return apperr.Wrap(apperr.KindNotFound, "chat", err)
		}
		return apperr.Wrap(apperr.KindNetwork, "update chat", err)
	}
	return nil
}

func (m *Manager) clearSelectionIfOpen(chatID string) {
	if m.session == nil {
		return
	}
	if sel := m.session.Selected(); sel != nil && sel.ID == chatID {
		m.session.Clear()
	}
}
