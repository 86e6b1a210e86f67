package models

import (
	"errors"
	"time"
)

type ChatKind string

const (
	ChatPrivate ChatKind = "private"
	ChatGroup   ChatKind = "group"
)

// Chat is a conversation container. Private chats carry exactly two
// participants; group chats additionally carry a name, description,
// creator and an optional course binding.
type Chat struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	Kind            ChatKind  `bson:"kind" json:"kind"`
	Participants    []string  `bson:"participants" json:"participants"`
	LastMessage     string    `bson:"last_message" json:"last_message"`
	LastMessageTime time.Time `bson:"last_message_time" json:"last_message_time"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`

	IsPinned   bool       `bson:"is_pinned" json:"is_pinned"`
	PinnedAt   *time.Time `bson:"pinned_at,omitempty" json:"pinned_at,omitempty"`
	IsArchived bool       `bson:"is_archived" json:"is_archived"`
	ArchivedAt *time.Time `bson:"archived_at,omitempty" json:"archived_at,omitempty"`

	// group only
	Name        string `bson:"name,omitempty" json:"name,omitempty"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	CreatedBy   string `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CourseID    string `bson:"course_id,omitempty" json:"course_id,omitempty"`
}

var (
	ErrBadKind         = errors.New("chat kind must be private or group")
	ErrNoParticipants  = errors.New("chat needs at least one participant")
	ErrMissingOwner    = errors.New("chat participants must include the owner")
	ErrGroupNeedsName  = errors.New("group chat needs a name")
	ErrPrivateHasGroup = errors.New("private chat cannot carry group fields")
)

// Validate checks the tagged-union invariants before a chat is persisted.
func (c *Chat) Validate(owner string) error {
	switch c.Kind {
	case ChatPrivate:
		if c.Name != "" || c.CourseID != "" {
			return ErrPrivateHasGroup
		}
	case ChatGroup:
		if c.Name == "" {
			return ErrGroupNeedsName
		}
	default:
		return ErrBadKind
	}
	if len(c.Participants) == 0 {
		return ErrNoParticipants
	}
	if owner != "" && !c.HasParticipant(owner) {
		return ErrMissingOwner
	}
	return nil
}

func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Counterpart returns the other participant of a private chat.
func (c *Chat) Counterpart(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

type Course struct {
	ID    string `bson:"_id,omitempty" json:"id"`
	Title string `bson:"title" json:"title"`
}
