package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/disintegration/imaging"

	"github.com/amq10717-bit/SkillUp-sub001/internal/apperr"
	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
)

const defaultUploadBase = "https://api.cloudinary.com/v1_1"

// Result is the blob-store descriptor returned by a successful upload.
type Result struct {
	URL              string    `json:"url"`
	PublicID         string    `json:"public_id"`
	ResourceType     string    `json:"resource_type"`
	Format           string    `json:"format,omitempty"`
	Bytes            int64     `json:"bytes"`
	Width            int       `json:"width,omitempty"`
	Height           int       `json:"height,omitempty"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// Attachment converts the descriptor into message attachment metadata.
func (r *Result) Attachment() *models.Attachment {
	return &models.Attachment{
		PublicID:         r.PublicID,
		ResourceType:     r.ResourceType,
		Format:           r.Format,
		Bytes:            r.Bytes,
		Width:            r.Width,
		Height:           r.Height,
		OriginalFilename: r.OriginalFilename,
		UploadedAt:       r.UploadedAt,
	}
}

// BlobUploader performs the direct client-to-store byte upload into a
// folder and returns the store's descriptor.
type BlobUploader interface {
	Upload(ctx context.Context, f File, folder string) (*Result, error)
}

// CloudinaryUploader uploads with a signed credential: every upload
// first fetches a folder-scoped signature from the backend, then POSTs
// the bytes straight to the storage API.
type CloudinaryUploader struct {
	sig        *SignatureClient
	http       *http.Client
	uploadBase string
}

func NewCloudinaryUploader(sig *SignatureClient) *CloudinaryUploader {
	return &CloudinaryUploader{
		sig:        sig,
		http:       &http.Client{Timeout: 2 * time.Minute},
		uploadBase: defaultUploadBase,
	}
}

// WithUploadBase overrides the storage API base, used by tests.
func (u *CloudinaryUploader) WithUploadBase(base string) *CloudinaryUploader {
	u.uploadBase = base
	return u
}

func (u *CloudinaryUploader) Upload(ctx context.Context, f File, folder string) (*Result, error) {
	cred, err := u.sig.Fetch(ctx, folder)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", f.Name)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "build upload form", err)
	}
	if _, err := fw.Write(f.Data); err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "build upload form", err)
	}
	fields := map[string]string{
		"api_key":       cred.APIKey,
		"timestamp":     strconv.FormatInt(cred.Timestamp, 10),
		"signature":     cred.Signature,
		"folder":        folder,
		"resource_type": resourceTypeFor(f.ContentType),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, apperr.Wrap(apperr.KindNetwork, "build upload form", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "build upload form", err)
	}

	endpoint := fmt.Sprintf("%s/%s/auto/upload", u.uploadBase, cred.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "upload request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "upload", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, apperr.Newf(apperr.KindNetwork, "blob store returned %d", resp.StatusCode)
	}

	var raw struct {
		SecureURL        string    `json:"secure_url"`
		PublicID         string    `json:"public_id"`
		ResourceType     string    `json:"resource_type"`
		Format           string    `json:"format"`
		Bytes            int64     `json:"bytes"`
		Width            int       `json:"width"`
		Height           int       `json:"height"`
		OriginalFilename string    `json:"original_filename"`
		CreatedAt        time.Time `json:"created_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "malformed upload response", err)
	}

	res := &Result{
		URL:              raw.SecureURL,
		PublicID:         raw.PublicID,
		ResourceType:     raw.ResourceType,
		Format:           raw.Format,
		Bytes:            raw.Bytes,
		Width:            raw.Width,
		Height:           raw.Height,
		OriginalFilename: raw.OriginalFilename,
		UploadedAt:       raw.CreatedAt,
	}
	if res.Bytes == 0 {
		res.Bytes = f.Size()
	}
	if res.OriginalFilename == "" {
		res.OriginalFilename = f.Name
	}
	if res.UploadedAt.IsZero() {
		res.UploadedAt = time.Now().UTC()
	}
	fillImageDimensions(res, f)
	return res, nil
}

// fillImageDimensions probes the bytes locally when the store response
// omits image dimensions.
func fillImageDimensions(res *Result, f File) {
	if res.Width != 0 || res.Height != 0 {
		return
	}
	if MessageTypeFor(f) != models.MessageImage {
		return
	}
	img, err := imaging.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return
	}
	b := img.Bounds()
	res.Width = b.Dx()
	res.Height = b.Dy()
}
