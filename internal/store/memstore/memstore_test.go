package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
	"github.com/amq10717-bit/SkillUp-sub001/internal/store"
)

func waitChats(t *testing.T, w store.ChatWatch) []models.Chat {
	t.Helper()
	select {
	case snap := <-w.Snapshots():
		return snap
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for chat snapshot")
		return nil
	}
}

func waitMessages(t *testing.T, w store.MessageWatch) []models.Message {
	t.Helper()
	select {
	case snap := <-w.Snapshots():
		return snap
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message snapshot")
		return nil
	}
}

func TestWatchChatsInitialSnapshot(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.CreateChat(ctx, &models.Chat{Kind: models.ChatPrivate, Participants: []string{"a", "b"}}); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	w, err := s.WatchChats(ctx, models.ChatPrivate, "a")
	if err != nil {
		t.Fatalf("WatchChats: %v", err)
	}
	defer w.Release()

	snap := waitChats(t, w)
	if len(snap) != 1 {
		t.Fatalf("initial snapshot has %d chats, want 1", len(snap))
	}
}

func TestWatchChatsScopedToParticipant(t *testing.T) {
	ctx := context.Background()
	s := New()
	w, err := s.WatchChats(ctx, models.ChatPrivate, "a")
	if err != nil {
		t.Fatalf("WatchChats: %v", err)
	}
	defer w.Release()
	waitChats(t, w) // empty initial

	if _, err := s.CreateChat(ctx, &models.Chat{Kind: models.ChatPrivate, Participants: []string{"x", "y"}}); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if _, err := s.CreateChat(ctx, &models.Chat{Kind: models.ChatPrivate, Participants: []string{"a", "b"}}); err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	// coalesced: only the latest matters, and it must hold exactly the
	// chat that includes "a"
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-w.Snapshots():
			if len(snap) == 1 && snap[0].HasParticipant("a") {
				return
			}
		case <-deadline:
			t.Fatalf("never saw the scoped snapshot")
		}
	}
}

func TestWatchCoalescesToLatest(t *testing.T) {
	ctx := context.Background()
	s := New()
	w, err := s.WatchMessages(ctx, models.ChatPrivate, "c1")
	if err != nil {
		t.Fatalf("WatchMessages: %v", err)
	}
	defer w.Release()
	waitMessages(t, w)

	// a slow consumer must end up at the final state, not replay history
	for i := 0; i < 5; i++ {
		if _, err := s.InsertMessage(ctx, &models.Message{
			ChatID: "c1", ChatKind: models.ChatPrivate, Sender: "a",
			Text: "m", Type: models.MessageText, Timestamp: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-w.Snapshots():
			if len(snap) == 5 {
				return
			}
		case <-deadline:
			t.Fatalf("never converged on the final snapshot")
		}
	}
}

func TestUpdateChatFields(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, err := s.CreateChat(ctx, &models.Chat{Kind: models.ChatGroup, Name: "g", Participants: []string{"t"}})
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	now := time.Now().UTC()
	if err := s.UpdateChat(ctx, models.ChatGroup, id, map[string]any{
		"is_pinned": true,
		"pinned_at": &now,
	}); err != nil {
		t.Fatalf("UpdateChat: %v", err)
	}

	c, err := s.GetChat(ctx, models.ChatGroup, id)
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if !c.IsPinned || c.PinnedAt == nil {
		t.Fatalf("pin fields not applied: %+v", c)
	}
}

func TestUpdateMissingChat(t *testing.T) {
	s := New()
	err := s.UpdateChat(context.Background(), models.ChatPrivate, "nope", map[string]any{"is_pinned": true})
	if err != store.ErrNotFound {
		t.Fatalf("UpdateChat = %v, want ErrNotFound", err)
	}
}

func TestClearMessages(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i := 0; i < 3; i++ {
		if _, err := s.InsertMessage(ctx, &models.Message{
			ChatID: "c1", ChatKind: models.ChatPrivate, Sender: "a",
			Text: "m", Type: models.MessageText, Timestamp: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}
	if err := s.ClearMessages(ctx, models.ChatPrivate, "c1"); err != nil {
		t.Fatalf("ClearMessages: %v", err)
	}
	n, err := s.CountMessages(ctx, models.ChatPrivate, "c1")
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if n != 0 {
		t.Fatalf("CountMessages = %d after clear", n)
	}
}

func TestDeleteChatDoesNotTouchMessages(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, err := s.CreateChat(ctx, &models.Chat{Kind: models.ChatPrivate, Participants: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if _, err := s.InsertMessage(ctx, &models.Message{
		ChatID: id, ChatKind: models.ChatPrivate, Sender: "a",
		Text: "orphan-to-be", Type: models.MessageText, Timestamp: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	if err := s.DeleteChat(ctx, models.ChatPrivate, id); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}
	n, _ := s.CountMessages(ctx, models.ChatPrivate, id)
	if n != 1 {
		t.Fatalf("messages after delete = %d, want 1 (no cascade)", n)
	}
}

func TestSendInTxn(t *testing.T) {
	ctx := context.Background()
	s := New(WithTransactions())
	if !s.SupportsTransactions() {
		t.Fatalf("SupportsTransactions = false")
	}
	id, err := s.CreateChat(ctx, &models.Chat{Kind: models.ChatPrivate, Participants: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	now := time.Now().UTC()
	if _, err := s.SendInTxn(ctx, &models.Message{
		ChatID: id, ChatKind: models.ChatPrivate, Sender: "a",
		Text: "hello", Type: models.MessageText, Timestamp: now,
	}, map[string]any{"last_message": "hello", "last_message_time": now}); err != nil {
		t.Fatalf("SendInTxn: %v", err)
	}

	c, err := s.GetChat(ctx, models.ChatPrivate, id)
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if c.LastMessage != "hello" {
		t.Fatalf("LastMessage = %q, want hello", c.LastMessage)
	}
}

func TestReleaseClosesSnapshots(t *testing.T) {
	s := New()
	w, err := s.WatchChats(context.Background(), models.ChatPrivate, "a")
	if err != nil {
		t.Fatalf("WatchChats: %v", err)
	}
	w.Release()
	w.Release() // idempotent

	select {
	case _, ok := <-w.Snapshots():
		if ok {
			// initial snapshot may still be buffered; channel must close after
			if _, ok := <-w.Snapshots(); ok {
				t.Fatalf("Snapshots still open after Release")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Snapshots not closed after Release")
	}
}
