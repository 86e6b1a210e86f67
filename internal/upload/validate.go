// Package upload implements the attachment pipeline: local validation,
// a signed-credential handshake with the backend, then a direct
// client-to-blob-store upload. File bytes never transit the app
// backend.
package upload

import (
	"strings"

	"github.com/amq10717-bit/SkillUp-sub001/internal/apperr"
	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
)

type Category string

const (
	CategoryImage Category = "image"
	CategoryVideo Category = "video"
	CategoryFile  Category = "file"
	// CategoryDocument is the assignment-submission path, which allows
	// larger files but only document-ish content types.
	CategoryDocument Category = "document"
)

const (
	maxImageBytes    = 5 << 20
	maxVideoBytes    = 20 << 20
	maxFileBytes     = 10 << 20
	maxDocumentBytes = 25 << 20
)

var documentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"text/plain": true,
}

// File is an attachment candidate held fully in memory, the way the
// compose box hands it over.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f File) Size() int64 { return int64(len(f.Data)) }

// Validate runs entirely locally; a violation is rejected before any
// network call is made.
func Validate(f File, cat Category) error {
	switch cat {
	case CategoryImage:
		if !strings.HasPrefix(f.ContentType, "image/") {
			return apperr.New(apperr.KindValidation, "not an image file")
		}
		if f.Size() > maxImageBytes {
			return apperr.New(apperr.KindValidation, "image larger than 5MB")
		}
	case CategoryVideo:
		if !strings.HasPrefix(f.ContentType, "video/") {
			return apperr.New(apperr.KindValidation, "not a video file")
		}
		if f.Size() > maxVideoBytes {
			return apperr.New(apperr.KindValidation, "video larger than 20MB")
		}
	case CategoryDocument:
		if !documentTypes[f.ContentType] {
			return apperr.New(apperr.KindValidation, "document type not supported")
		}
		if f.Size() > maxDocumentBytes {
			return apperr.New(apperr.KindValidation, "document larger than 25MB")
		}
	default:
		if f.Size() > maxFileBytes {
			return apperr.New(apperr.KindValidation, "file larger than 10MB")
		}
	}
	if f.Size() == 0 {
		return apperr.New(apperr.KindValidation, "empty file")
	}
	return nil
}

// MessageTypeFor maps an uploaded file to the message type its send
// will carry.
func MessageTypeFor(f File) models.MessageType {
	switch {
	case strings.HasPrefix(f.ContentType, "image/"):
		return models.MessageImage
	case strings.HasPrefix(f.ContentType, "video/"):
		return models.MessageVideo
	}
	return models.MessageFile
}

// resourceTypeFor mirrors the blob store's resource partitioning.
func resourceTypeFor(contentType string) string {
	switch {
	case contentType == "application/pdf":
		return "raw"
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	}
	return "auto"
}
