// Package events publishes chat activity to Kafka. Publishing is
// fire-and-forget: a broker outage degrades to a warning, never a
// failed user operation.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
)

const (
	EventMessageSent   = "message.sent"
	EventChatCreated   = "chat.created"
	EventChatPinned    = "chat.pinned"
	EventChatUnpinned  = "chat.unpinned"
	EventChatArchived  = "chat.archived"
	EventChatRestored  = "chat.unarchived"
	EventChatDeleted   = "chat.deleted"
	EventChatCleared   = "chat.cleared"
)

type Producer struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func NewProducer(brokers []string, topic string, log *zap.SugaredLogger) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{writer: w, log: log}
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

type envelope struct {
	Event    string          `json:"event"`
	ChatID   string          `json:"chat_id"`
	ChatKind models.ChatKind `json:"chat_kind"`
	Actor    string          `json:"actor,omitempty"`
	At       time.Time       `json:"at"`
	Payload  any             `json:"payload,omitempty"`
}

func (p *Producer) MessageSent(ctx context.Context, m *models.Message) {
	p.publish(ctx, m.ChatID, envelope{
		Event:    EventMessageSent,
		ChatID:   m.ChatID,
		ChatKind: m.ChatKind,
		Actor:    m.Sender,
		At:       m.Timestamp,
		Payload: map[string]any{
			"message_id": m.ID,
			"type":       m.Type,
		},
	})
}

func (p *Producer) ChatCreated(ctx context.Context, c *models.Chat) {
	p.publish(ctx, c.ID, envelope{
		Event:    EventChatCreated,
		ChatID:   c.ID,
		ChatKind: c.Kind,
		Actor:    c.CreatedBy,
		At:       c.CreatedAt,
		Payload: map[string]any{
			"participants": c.Participants,
			"name":         c.Name,
		},
	})
}

func (p *Producer) Lifecycle(ctx context.Context, event string, kind models.ChatKind, chatID, actor string) {
	p.publish(ctx, chatID, envelope{
		Event:    event,
		ChatID:   chatID,
		ChatKind: kind,
		Actor:    actor,
		At:       time.Now().UTC(),
	})
}

func (p *Producer) publish(ctx context.Context, key string, ev envelope) {
	if p == nil || p.writer == nil {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msg := kafka.Message{Key: []byte(key), Value: b, Time: time.Now()}
	if err := p.writer.WriteMessages(wctx, msg); err != nil {
		p.log.Warnw("event publish failed", "event", ev.Event, "chat_id", ev.ChatID, "err", err)
	}
}
