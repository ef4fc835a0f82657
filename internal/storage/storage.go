// Package storage uploads user media to S3-compatible object storage.
package storage

import (
	"context"
	"errors"
)

var ErrDisabled = errors.New("object storage is not configured")

type Storage interface {
	Upload(ctx context.Context, object *UploadObject) (*UploadResponse, error)
	BulkUpload(ctx context.Context, objects []*UploadObject) ([]*UploadResponse, error)
}

type UploadObject struct {
	Prefix   string
	FileName string
	Mime     string
	Data     []byte
}

type UploadResponse struct {
	URL string
	Key string
}

// Disabled rejects every upload. It stands in when no bucket is configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, *UploadObject) (*UploadResponse, error) {
	return nil, ErrDisabled
}

func (Disabled) BulkUpload(context.Context, []*UploadObject) ([]*UploadResponse, error) {
	return nil, ErrDisabled
}
