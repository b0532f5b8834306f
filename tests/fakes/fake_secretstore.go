package fakes

import (
	"context"
	"strings"
	"sync"

	"github.com/systmms/provops/pkg/store"
)

// FakeSecretStore is an in-memory store.SecretStore.
//
// It keeps full version history per secret and records every mutating call,
// so tests can assert that reconciliation creates exactly once, appends
// versions on subsequent runs, and never rewrites history.
//
// Example:
//
//	fake := fakes.NewFakeSecretStore().
//	    WithSecret("n8n-DB_TYPE", "postgresdb").
//	    WithError("create", "n8n-DB_HOST", errors.New("quota exceeded"))
type FakeSecretStore struct {
	name     string
	versions map[string][]string          // name -> version history, oldest first
	grants   map[string]map[string]string // name -> principal -> role
	failOn   map[string]error             // "<op>:<name>" -> error
	calls    map[string]int               // "<op>:<name>" -> count
	racing   map[string]bool              // names created by a simulated concurrent writer

	mu sync.Mutex
}

// NewFakeSecretStore creates an empty fake store.
func NewFakeSecretStore() *FakeSecretStore {
	return &FakeSecretStore{
		name:     "fake",
		versions: make(map[string][]string),
		grants:   make(map[string]map[string]string),
		failOn:   make(map[string]error),
		calls:    make(map[string]int),
		racing:   make(map[string]bool),
	}
}

// WithSecret seeds a secret with a single initial version.
func (f *FakeSecretStore) WithSecret(name, content string) *FakeSecretStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions[name] = []string{content}
	return f
}

// WithError makes the given operation ("exists", "create", "addversion",
// "grant", "list") fail for name.
func (f *FakeSecretStore) WithError(op, name string, err error) *FakeSecretStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[op+":"+name] = err
	return f
}

// WithCreateRace simulates a concurrent writer: the secret does not exist
// until Create is called, at which point Create fails with
// AlreadyExistsError as if someone else created it a moment earlier.
func (f *FakeSecretStore) WithCreateRace(name string) *FakeSecretStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.racing[name] = true
	return f
}

func (f *FakeSecretStore) Name() string { return f.name }

func (f *FakeSecretStore) Exists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["exists:"+name]++
	if err := f.failOn["exists:"+name]; err != nil {
		return false, err
	}
	_, ok := f.versions[name]
	return ok, nil
}

func (f *FakeSecretStore) Create(ctx context.Context, name, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["create:"+name]++
	if err := f.failOn["create:"+name]; err != nil {
		return err
	}
	if f.racing[name] {
		delete(f.racing, name)
		f.versions[name] = []string{content}
		return store.AlreadyExistsError{Store: f.name, Name: name}
	}
	if _, ok := f.versions[name]; ok {
		return store.AlreadyExistsError{Store: f.name, Name: name}
	}
	f.versions[name] = []string{content}
	return nil
}

func (f *FakeSecretStore) AddVersion(ctx context.Context, name, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["addversion:"+name]++
	if err := f.failOn["addversion:"+name]; err != nil {
		return "", err
	}
	if _, ok := f.versions[name]; !ok {
		return "", store.NotFoundError{Store: f.name, Name: name}
	}
	f.versions[name] = append(f.versions[name], content)
	return f.latestVersionLocked(name), nil
}

func (f *FakeSecretStore) GrantAccess(ctx context.Context, name, principal, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["grant:"+name]++
	if err := f.failOn["grant:"+name]; err != nil {
		return err
	}
	if _, ok := f.versions[name]; !ok {
		return store.NotFoundError{Store: f.name, Name: name}
	}
	if f.grants[name] == nil {
		f.grants[name] = make(map[string]string)
	}
	// Granting twice is fine; the second call is a no-op.
	f.grants[name][principal] = role
	return nil
}

func (f *FakeSecretStore) List(ctx context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list:"+prefix]++
	if err := f.failOn["list:"+prefix]; err != nil {
		return nil, err
	}
	var names []string
	for name := range f.versions {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

// VersionCount returns how many versions a secret holds.
func (f *FakeSecretStore) VersionCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.versions[name])
}

// LatestVersion returns the newest version content, or "" if absent.
func (f *FakeSecretStore) LatestVersion(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latestVersionLocked(name)
}

func (f *FakeSecretStore) latestVersionLocked(name string) string {
	history := f.versions[name]
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1]
}

// HasGrant reports whether principal holds a grant on the secret.
func (f *FakeSecretStore) HasGrant(name, principal string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.grants[name][principal]
	return ok
}

// CallCount returns the number of calls for op ("create", "addversion", ...)
// on name.
func (f *FakeSecretStore) CallCount(op, name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op+":"+name]
}

// MutatedNames returns every secret name that received a create, addversion,
// or grant call, regardless of outcome.
func (f *FakeSecretStore) MutatedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]struct{})
	var names []string
	for key, count := range f.calls {
		if count == 0 {
			continue
		}
		op, name, ok := strings.Cut(key, ":")
		if !ok {
			continue
		}
		if op != "create" && op != "addversion" && op != "grant" {
			continue
		}
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}
