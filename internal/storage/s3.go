package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/gamdit/gamebox/internal/config"
	"github.com/google/uuid"
)

type s3Storage struct {
	uploader       *s3manager.Uploader
	bucket         string
	publicEndpoint string
}

func NewS3Storage(cfg *config.Config) (Storage, error) {
	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(cfg.S3Region),
		Credentials:      credentials.NewStaticCredentials(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Endpoint:         aws.String(cfg.S3Endpoint),
		S3ForcePathStyle: aws.Bool(true),
		DisableSSL:       aws.Bool(cfg.S3DisableSSL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 session: %w", err)
	}

	public := cfg.S3PublicEndpoint
	if public == "" {
		public = strings.TrimRight(cfg.S3Endpoint, "/")
	}
	return &s3Storage{
		uploader:       s3manager.NewUploader(sess),
		bucket:         cfg.S3Bucket,
		publicEndpoint: public,
	}, nil
}

// objectKey prefixes a random id so uploads never overwrite each other.
func objectKey(object *UploadObject) string {
	name := path.Base(strings.ReplaceAll(object.FileName, "\\", "/"))
	if name == "." || name == "/" {
		name = "file"
	}
	return fmt.Sprintf("%s/%s-%s", object.Prefix, uuid.NewString(), name)
}

func (s *s3Storage) publicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicEndpoint, s.bucket, key)
}

func (s *s3Storage) input(object *UploadObject, key string) *s3manager.UploadInput {
	return &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(object.Data),
		ACL:         aws.String("public-read"),
		ContentType: aws.String(object.Mime),
	}
}

func (s *s3Storage) Upload(ctx context.Context, object *UploadObject) (*UploadResponse, error) {
	key := objectKey(object)
	if _, err := s.uploader.UploadWithContext(ctx, s.input(object, key)); err != nil {
		return nil, fmt.Errorf("upload failed: %w, bucket %s, key %s", err, s.bucket, key)
	}
	return &UploadResponse{URL: s.publicURL(key), Key: key}, nil
}

func (s *s3Storage) BulkUpload(ctx context.Context, objects []*UploadObject) ([]*UploadResponse, error) {
	batch := make([]s3manager.BatchUploadObject, 0, len(objects))
	out := make([]*UploadResponse, 0, len(objects))
	for _, o := range objects {
		key := objectKey(o)
		batch = append(batch, s3manager.BatchUploadObject{Object: s.input(o, key)})
		out = append(out, &UploadResponse{URL: s.publicURL(key), Key: key})
	}

	if err := s.uploader.UploadWithIterator(ctx, &s3manager.UploadObjectsIterator{Objects: batch}); err != nil {
		return nil, fmt.Errorf("bulk upload failed: %w", err)
	}
	return out, nil
}
