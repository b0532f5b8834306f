package stores

import (
	"context"
	"fmt"

	redis "google.golang.org/api/redis/v1"

	"github.com/systmms/provops/pkg/store"
)

// MemorystoreInspector implements store.CacheInspector on the Cloud
// Memorystore for Redis API. Read-only.
type MemorystoreInspector struct {
	service   *redis.Service
	projectID string
	region    string
}

func NewMemorystoreInspector(ctx context.Context, projectID, region string) (*MemorystoreInspector, error) {
	if projectID == "" {
		return nil, errProjectIDRequired()
	}
	service, err := redis.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Memorystore client: %w", err)
	}
	return &MemorystoreInspector{service: service, projectID: projectID, region: region}, nil
}

func (m *MemorystoreInspector) Describe(ctx context.Context, id string) (store.CacheStatus, error) {
	name := fmt.Sprintf("projects/%s/locations/%s/instances/%s", m.projectID, m.region, id)
	instance, err := m.service.Projects.Locations.Instances.Get(name).Context(ctx).Do()
	if err != nil {
		if isGoogleNotFound(err) {
			return store.CacheStatus{}, store.NotFoundError{Store: "gcp.memorystore", Name: id}
		}
		return store.CacheStatus{}, fmt.Errorf("describing cache instance %s: %w", id, err)
	}
	return store.CacheStatus{
		State: instance.State,
		Host:  instance.Host,
		Port:  int(instance.Port),
	}, nil
}
