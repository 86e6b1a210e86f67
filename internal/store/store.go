// Package store defines the document-store port the engine runs
// against: equality/array-contains live queries over two chat
// partitions, an ordered message stream per chat, and batched writes.
// Implementations deliver full-snapshot replacements, never deltas.
package store

import (
	"context"
	"errors"

	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
)

var ErrNotFound = errors.New("not found")

// ChatWatch is a live query over one chat partition. Snapshots yields
// the full current result set on every change; Release synchronously
// detaches the listener and closes the channel.
type ChatWatch interface {
	Snapshots() <-chan []models.Chat
	Release()
}

// MessageWatch is a live query over one chat's messages, ordered by
// timestamp ascending.
type MessageWatch interface {
	Snapshots() <-chan []models.Message
	Release()
}

type ChatStore interface {
	CreateChat(ctx context.Context, c *models.Chat) (string, error)
	GetChat(ctx context.Context, kind models.ChatKind, id string) (*models.Chat, error)
	// UpdateChat applies a partial field update to a chat document.
	UpdateChat(ctx context.Context, kind models.ChatKind, id string, fields map[string]any) error
	DeleteChat(ctx context.Context, kind models.ChatKind, id string) error
	ListChats(ctx context.Context, kind models.ChatKind, userID string) ([]models.Chat, error)
	// WatchChats opens a live "participants contains userID" query.
	// The initial result set is delivered as the first snapshot.
	WatchChats(ctx context.Context, kind models.ChatKind, userID string) (ChatWatch, error)
}

type MessageStore interface {
	InsertMessage(ctx context.Context, m *models.Message) (string, error)
	ListMessages(ctx context.Context, kind models.ChatKind, chatID string) ([]models.Message, error)
	WatchMessages(ctx context.Context, kind models.ChatKind, chatID string) (MessageWatch, error)
	// ClearMessages removes every message under the chat as a single
	// all-or-nothing batch.
	ClearMessages(ctx context.Context, kind models.ChatKind, chatID string) error
	CountMessages(ctx context.Context, kind models.ChatKind, chatID string) (int64, error)

	// SupportsTransactions reports whether SendInTxn is available.
	SupportsTransactions() bool
	// SendInTxn atomically inserts a message and applies the summary
	// update to its parent chat.
	SendInTxn(ctx context.Context, m *models.Message, summary map[string]any) (string, error)
}

type DirectoryStore interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	ListProfiles(ctx context.Context) ([]models.Profile, error)
	GetCourse(ctx context.Context, id string) (*models.Course, error)
}

type Store interface {
	ChatStore
	MessageStore
	DirectoryStore
}
