package fakes

import (
	"context"
	"sync"

	"github.com/systmms/provops/pkg/store"
)

// FakeCacheInspector is an in-memory store.CacheInspector.
type FakeCacheInspector struct {
	statuses map[string]store.CacheStatus
	mu       sync.Mutex
}

func NewFakeCacheInspector() *FakeCacheInspector {
	return &FakeCacheInspector{statuses: make(map[string]store.CacheStatus)}
}

// WithInstance seeds a cache instance with the given status.
func (f *FakeCacheInspector) WithInstance(id string, status store.CacheStatus) *FakeCacheInspector {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	return f
}

func (f *FakeCacheInspector) Describe(ctx context.Context, id string) (store.CacheStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[id]
	if !ok {
		return store.CacheStatus{}, store.NotFoundError{Store: "fake-cache", Name: id}
	}
	return status, nil
}

// FakeBucketInspector is an in-memory store.BucketInspector.
type FakeBucketInspector struct {
	buckets map[string]bool
	mu      sync.Mutex
}

func NewFakeBucketInspector(buckets ...string) *FakeBucketInspector {
	f := &FakeBucketInspector{buckets: make(map[string]bool)}
	for _, b := range buckets {
		f.buckets[b] = true
	}
	return f
}

func (f *FakeBucketInspector) BucketExists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[name], nil
}

// FakeComputePlatform is an in-memory store.ComputePlatform. Deploys record
// the service spec and flip the service to ready after a configurable number of
// Describe polls, to exercise fixed-delay readiness polling.
type FakeComputePlatform struct {
	images        map[string]bool
	services      map[string]store.ServiceStatus
	deployed      []store.ServiceSpec
	readyAfter    int // Describe calls until a deployed service reports ready
	describeCalls map[string]int

	mu sync.Mutex
}

func NewFakeComputePlatform() *FakeComputePlatform {
	return &FakeComputePlatform{
		images:        make(map[string]bool),
		services:      make(map[string]store.ServiceStatus),
		describeCalls: make(map[string]int),
	}
}

// WithImage seeds a pushed image reference.
func (f *FakeComputePlatform) WithImage(ref string) *FakeComputePlatform {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[ref] = true
	return f
}

// WithService seeds an existing service.
func (f *FakeComputePlatform) WithService(name string, status store.ServiceStatus) *FakeComputePlatform {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.services[name] = status
	return f
}

// WithReadyAfter delays readiness until n Describe calls have been made.
func (f *FakeComputePlatform) WithReadyAfter(n int) *FakeComputePlatform {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readyAfter = n
	return f
}

func (f *FakeComputePlatform) ImageExists(ctx context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[ref], nil
}

func (f *FakeComputePlatform) Deploy(ctx context.Context, spec store.ServiceSpec) (store.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deployed = append(f.deployed, spec)
	url := "https://" + spec.Name + ".fake.example"
	f.services[spec.Name] = store.ServiceStatus{Exists: true, Ready: f.readyAfter == 0, URL: url}
	return store.Deployment{URL: url, Status: "deploying"}, nil
}

func (f *FakeComputePlatform) Describe(ctx context.Context, service string) (store.ServiceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.services[service]
	if !ok {
		return store.ServiceStatus{Exists: false}, nil
	}
	f.describeCalls[service]++
	if !status.Ready && f.describeCalls[service] >= f.readyAfter {
		status.Ready = true
		f.services[service] = status
	}
	return status, nil
}

// Deployed returns the specs passed to Deploy, in order.
func (f *FakeComputePlatform) Deployed() []store.ServiceSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.ServiceSpec, len(f.deployed))
	copy(out, f.deployed)
	return out
}

// DescribeCalls returns how many times a service was described.
func (f *FakeComputePlatform) DescribeCalls(service string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.describeCalls[service]
}

// FakeAuthenticator is a store.Authenticator with a fixed answer.
type FakeAuthenticator struct {
	Authenticated bool
	Err           error
}

func (f *FakeAuthenticator) IsAuthenticated(ctx context.Context) (bool, error) {
	return f.Authenticated, f.Err
}
