package upload

import (
	"bytes"
	"context"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/amq10717-bit/SkillUp-sub001/internal/apperr"
)

// S3Uploader is the alternate blob-store backend. It satisfies the
// same contract as the signed Cloudinary path; the object key doubles
// as the public id and downloads go through presigned GET URLs.
type S3Uploader struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucket     string
	presignTTL time.Duration
}

func NewS3Uploader(ctx context.Context, region, bucket string, presignTTL time.Duration) (*S3Uploader, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg)
	return &S3Uploader{
		client:     client,
		uploader:   manager.NewUploader(client),
		bucket:     bucket,
		presignTTL: presignTTL,
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, f File, folder string) (*Result, error) {
	key := path.Join(folder, uuid.NewString()+"_"+f.Name)
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(f.Data),
		ContentType: aws.String(f.ContentType),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "s3 upload", err)
	}

	presigner := s3.NewPresignClient(u.client)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) { o.Expires = u.presignTTL })
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "s3 presign", err)
	}

	res := &Result{
		URL:              req.URL,
		PublicID:         key,
		ResourceType:     resourceTypeFor(f.ContentType),
		Format:           strings.TrimPrefix(path.Ext(f.Name), "."),
		Bytes:            f.Size(),
		OriginalFilename: f.Name,
		UploadedAt:       time.Now().UTC(),
	}
	fillImageDimensions(res, f)
	return res, nil
}
