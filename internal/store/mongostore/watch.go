package mongostore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
)

func newID() string { return uuid.NewString() }

// chatWatch coalesces snapshots into a buffer-1 channel: a pending
// undelivered snapshot is replaced, never queued behind.
type chatWatch struct {
	ch     chan []models.Chat
	cancel context.CancelFunc
	once   sync.Once
}

func (w *chatWatch) Snapshots() <-chan []models.Chat { return w.ch }

// push runs only on the watch goroutine.
func (w *chatWatch) push(snap []models.Chat) {
	select {
	case <-w.ch:
	default:
	}
	w.ch <- snap
}

func (w *chatWatch) Release() {
	w.once.Do(w.cancel)
}

type messageWatch struct {
	ch     chan []models.Message
	cancel context.CancelFunc
	once   sync.Once
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
	w.once.Do(w.cancel)
}
