package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/amq10717-bit/SkillUp-sub001/internal/apperr"
	"github.com/amq10717-bit/SkillUp-sub001/internal/logger"
	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
	"github.com/amq10717-bit/SkillUp-sub001/internal/session"
	"github.com/amq10717-bit/SkillUp-sub001/internal/store/memstore"
)

func seedChat(t *testing.T, st *memstore.Store) models.Chat {
	t.Helper()
	c := &models.Chat{Kind: models.ChatPrivate, Participants: []string{"alice", "bob"}}
	if _, err := st.CreateChat(context.Background(), c); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	return *c
}

func newManager(st *memstore.Store, sess *session.Session, confirm Confirmer) *Manager {
	return NewManager(st, sess, nil, confirm, "alice", logger.Nop())
}

func TestPinUnpin(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	chat := seedChat(t, st)
	m := newManager(st, nil, nil)

	if err := m.Pin(ctx, chat.Kind, chat.ID); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	c, _ := st.GetChat(ctx, chat.Kind, chat.ID)
	if !c.IsPinned || c.PinnedAt == nil {
		t.Fatalf("pin not applied: %+v", c)
	}

	if err := m.Unpin(ctx, chat.Kind, chat.ID); err != nil {
		t.Fatalf("Unpin: %v", err)
	}
	c, _ = st.GetChat(ctx, chat.Kind, chat.ID)
	if c.IsPinned || c.PinnedAt != nil {
		t.Fatalf("unpin not applied: %+v", c)
	}
}

func TestArchiveClearsOpenSelection(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	chat := seedChat(t, st)

	sess := session.New(st, nil, models.Profile{ID: "alice"}, logger.Nop())
	if err := sess.SelectChat(ctx, chat); err != nil {
		t.Fatalf("SelectChat: %v", err)
	}

	m := newManager(st, sess, nil)
	if err := m.Archive(ctx, chat.Kind, chat.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	c, _ := st.GetChat(ctx, chat.Kind, chat.ID)
	if !c.IsArchived || c.ArchivedAt == nil {
		t.Fatalf("archive not applied: %+v", c)
	}
	if sess.Selected() != nil {
		t.Fatalf("archiving the open chat must clear the selection")
	}
}

func TestArchiveLeavesOtherSelectionAlone(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	chatA := seedChat(t, st)
	chatB := seedChat(t, st)

	sess := session.New(st, nil, models.Profile{ID: "alice"}, logger.Nop())
	if err := sess.SelectChat(ctx, chatA); err != nil {
		t.Fatalf("SelectChat: %v", err)
	}
	defer sess.Clear()

	m := newManager(st, sess, nil)
	if err := m.Archive(ctx, chatB.Kind, chatB.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if sel := sess.Selected(); sel == nil || sel.ID != chatA.ID {
		t.Fatalf("selection disturbed: %+v", sel)
	}
}

func TestUnarchive(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	chat := seedChat(t, st)
	m := newManager(st, nil, nil)

	if err := m.Archive(ctx, chat.Kind, chat.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := m.Unarchive(ctx, chat.Kind, chat.ID); err != nil {
		t.Fatalf("Unarchive: %v", err)
	}
	c, _ := st.GetChat(ctx, chat.Kind, chat.ID)
	if c.IsArchived || c.ArchivedAt != nil {
		t.Fatalf("unarchive not applied: %+v", c)
	}
}

func TestDeleteDoesNotCascadeMessages(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	chat := seedChat(t, st)
	if _, err := st.InsertMessage(ctx, &models.Message{
		ChatID: chat.ID, ChatKind: chat.Kind, Sender: "alice",
		Text: "left behind", Type: models.MessageText, Timestamp: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	m := newManager(st, nil, nil)
	if err := m.Delete(ctx, chat.Kind, chat.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := st.GetChat(ctx, chat.Kind, chat.ID); err == nil {
		t.Fatalf("chat still present after delete")
	}
	n, _ := st.CountMessages(ctx, chat.Kind, chat.ID)
	if n != 1 {
		t.Fatalf("messages after delete = %d, want 1 (orphaned on purpose)", n)
	}
}

func TestDeleteMissingChat(t *testing.T) {
	m := newManager(memstore.New(), nil, nil)
	if err := m.Delete(context.Background(), models.ChatPrivate, "nope"); !apperr.IsNotFound(err) {
		t.Fatalf("Delete missing = %v, want not found", err)
	}
}

func TestConfirmerDeclineIsNoOp(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	chat := seedChat(t, st)
	if _, err := st.InsertMessage(ctx, &models.Message{
		ChatID: chat.ID, ChatKind: chat.Kind, Sender: "alice",
		Text: "keep me", Type: models.MessageText, Timestamp: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	decline := func(string, models.ChatKind, string) bool { return false }
	m := newManager(st, nil, decline)

	if err := m.Delete(ctx, chat.Kind, chat.ID); err != nil {
		t.Fatalf("declined Delete = %v, want nil", err)
	}
	if _, err := st.GetChat(ctx, chat.Kind, chat.ID); err != nil {
		t.Fatalf("declined delete removed the chat")
	}

	if err := m.ClearHistory(ctx, chat.Kind, chat.ID); err != nil {
		t.Fatalf("declined ClearHistory = %v, want nil", err)
	}
	n, _ := st.CountMessages(ctx, chat.Kind, chat.ID)
	if n != 1 {
		t.Fatalf("declined clear removed messages")
	}
}

// Clearing history must surface through the live message subscription:
// the open session's next snapshot is the emptied list, with no insert
// needed to trigger it.
func TestClearHistoryPropagatesToOpenSession(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	chat := seedChat(t, st)
	for i := 0; i < 3; i++ {
		if _, err := st.InsertMessage(ctx, &models.Message{
			ChatID: chat.ID, ChatKind: chat.Kind, Sender: "alice",
			Text: "m", Type: models.MessageText, Timestamp: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}

	sess := session.New(st, nil, models.Profile{ID: "alice"}, logger.Nop())
	if err := sess.SelectChat(ctx, chat); err != nil {
		t.Fatalf("SelectChat: %v", err)
	}
	defer sess.Clear()

	waitMsgs := func(name string, want int) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case snap := <-sess.Messages():
				if len(snap) == want {
					return
				}
			case <-deadline:
				t.Fatalf("%s: never saw %d messages", name, want)
			}
		}
	}
	waitMsgs("seeded", 3)

	m := newManager(st, sess, nil)
	if err := m.ClearHistory(ctx, chat.Kind, chat.ID); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	waitMsgs("cleared", 0)
}

func TestClearHistoryResetsSummary(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	chat := seedChat(t, st)
	if err := st.UpdateChat(ctx, chat.Kind, chat.ID, map[string]any{"last_message": "old news"}); err != nil {
		t.Fatalf("UpdateChat: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := st.InsertMessage(ctx, &models.Message{
			ChatID: chat.ID, ChatKind: chat.Kind, Sender: "alice",
			Text: "m", Type: models.MessageText, Timestamp: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}

	m := newManager(st, nil, nil)
	if err := m.ClearHistory(ctx, chat.Kind, chat.ID); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}

	n, _ := st.CountMessages(ctx, chat.Kind, chat.ID)
	if n != 0 {
		t.Fatalf("messages after clear = %d", n)
	}
	c, _ := st.GetChat(ctx, chat.Kind, chat.ID)
	if c.LastMessage != "" {
		t.Fatalf("LastMessage = %q, want reset", c.LastMessage)
	}
}
