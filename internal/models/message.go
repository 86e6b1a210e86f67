package models

import "time"

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageFile  MessageType = "file"
)

// Attachment is the blob-store descriptor denormalized onto a media
// message at send time.
type Attachment struct {
	PublicID         string    `bson:"public_id" json:"public_id"`
	ResourceType     string    `bson:"resource_type" json:"resource_type"`
	Format           string    `bson:"format,omitempty" json:"format,omitempty"`
	Bytes            int64     `bson:"bytes" json:"bytes"`
	Width            int       `bson:"width,omitempty" json:"width,omitempty"`
	Height           int       `bson:"height,omitempty" json:"height,omitempty"`
	OriginalFilename string    `bson:"original_filename,omitempty" json:"original_filename,omitempty"`
	UploadedAt       time.Time `bson:"uploaded_at" json:"uploaded_at"`
}

// Message is immutable once written; messages are only ever removed in
// bulk by clear-history or a chat delete.
type Message struct {
	ID         string      `bson:"_id,omitempty" json:"id"`
	ChatID     string      `bson:"chat_id" json:"chat_id"`
	ChatKind   ChatKind    `bson:"chat_kind" json:"chat_kind"`
	Sender     string      `bson:"sender" json:"sender"`
	SenderName string      `bson:"sender_name" json:"sender_name"`
	Text       string      `bson:"text" json:"text"`
	Type       MessageType `bson:"type" json:"type"`
	MediaURL   string      `bson:"media_url,omitempty" json:"media_url,omitempty"`
	Attachment *Attachment `bson:"attachment,omitempty" json:"attachment,omitempty"`
	Timestamp  time.Time   `bson:"timestamp" json:"timestamp"`
}

// Preview is the short human-readable summary written onto the parent
// chat's last_message field.
func Preview(t MessageType, text string) string {
	switch t {
	case MessageText:
		return text
	case MessageImage:
		return "📷 Image"
	case MessageFile:
		return "📎 File"
	case MessageVideo:
		return "🎥 Video"
	}
	return "🎤 Voice"
}
