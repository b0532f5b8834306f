package stores

import (
	"context"
	"fmt"

	storage "google.golang.org/api/storage/v1"
)

// CloudStorageInspector implements store.BucketInspector on the Cloud
// Storage JSON API. Read-only.
type CloudStorageInspector struct {
	service *storage.Service
}

func NewCloudStorageInspector(ctx context.Context) (*CloudStorageInspector, error) {
	service, err := storage.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud Storage client: %w", err)
	}
	return &CloudStorageInspector{service: service}, nil
}

func (c *CloudStorageInspector) BucketExists(ctx context.Context, name string) (bool, error) {
	_, err := c.service.Buckets.Get(name).Context(ctx).Do()
	if err != nil {
		if isGoogleNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking bucket %s: %w", name, err)
	}
	return true, nil
}
