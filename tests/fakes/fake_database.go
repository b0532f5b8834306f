package fakes

import (
	"context"
	"sync"

	"github.com/systmms/provops/pkg/store"
)

// FakeDatabaseAdmin is an in-memory store.DatabaseAdmin. Mutating calls are
// recorded so tests can assert that protected resources are never touched
// and that setup aborts before mutation on missing dependencies.
type FakeDatabaseAdmin struct {
	instances map[string]bool
	databases map[string]map[string]bool // instance -> database -> exists
	users     map[string]map[string]bool // instance -> user -> exists
	passwords map[string]string          // instance/user -> password
	failOn    map[string]error
	mutations []string // ordered log of mutating calls, "op:instance:name"

	mu sync.Mutex
}

// NewFakeDatabaseAdmin creates an empty fake with no instances.
func NewFakeDatabaseAdmin() *FakeDatabaseAdmin {
	return &FakeDatabaseAdmin{
		instances: make(map[string]bool),
		databases: make(map[string]map[string]bool),
		users:     make(map[string]map[string]bool),
		passwords: make(map[string]string),
		failOn:    make(map[string]error),
	}
}

// WithInstance seeds a managed instance.
func (f *FakeDatabaseAdmin) WithInstance(instance string) *FakeDatabaseAdmin {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances[instance] = true
	f.databases[instance] = make(map[string]bool)
	f.users[instance] = make(map[string]bool)
	return f
}

// WithDatabase seeds an existing database on an instance.
func (f *FakeDatabaseAdmin) WithDatabase(instance, name string) *FakeDatabaseAdmin {
	f.WithInstance(instance)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.databases[instance][name] = true
	return f
}

// WithUser seeds an existing user on an instance.
func (f *FakeDatabaseAdmin) WithUser(instance, user string) *FakeDatabaseAdmin {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.instances[instance] {
		f.instances[instance] = true
		f.databases[instance] = make(map[string]bool)
		f.users[instance] = make(map[string]bool)
	}
	f.users[instance][user] = true
	return f
}

// WithError makes the given operation fail, keyed "op:instance:name".
func (f *FakeDatabaseAdmin) WithError(key string, err error) *FakeDatabaseAdmin {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[key] = err
	return f
}

func (f *FakeDatabaseAdmin) InstanceExists(ctx context.Context, instance string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.instances[instance], nil
}

func (f *FakeDatabaseAdmin) DatabaseExists(ctx context.Context, instance, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.databases[instance][name], nil
}

func (f *FakeDatabaseAdmin) CreateDatabase(ctx context.Context, instance, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations = append(f.mutations, "create-database:"+instance+":"+name)
	if err := f.failOn["create-database:"+instance+":"+name]; err != nil {
		return err
	}
	if !f.instances[instance] {
		return store.NotFoundError{Store: "fake-db", Name: instance}
	}
	f.databases[instance][name] = true
	return nil
}

func (f *FakeDatabaseAdmin) DeleteDatabase(ctx context.Context, instance, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations = append(f.mutations, "delete-database:"+instance+":"+name)
	if !f.databases[instance][name] {
		return store.NotFoundError{Store: "fake-db", Name: name}
	}
	delete(f.databases[instance], name)
	return nil
}

func (f *FakeDatabaseAdmin) UserExists(ctx context.Context, instance, user string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[instance][user], nil
}

func (f *FakeDatabaseAdmin) CreateUser(ctx context.Context, instance, user, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations = append(f.mutations, "create-user:"+instance+":"+user)
	if err := f.failOn["create-user:"+instance+":"+user]; err != nil {
		return err
	}
	if !f.instances[instance] {
		return store.NotFoundError{Store: "fake-db", Name: instance}
	}
	f.users[instance][user] = true
	f.passwords[instance+"/"+user] = password
	return nil
}

func (f *FakeDatabaseAdmin) SetPassword(ctx context.Context, instance, user, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations = append(f.mutations, "set-password:"+instance+":"+user)
	if !f.users[instance][user] {
		return store.NotFoundError{Store: "fake-db", Name: user}
	}
	f.passwords[instance+"/"+user] = password
	return nil
}

func (f *FakeDatabaseAdmin) GrantPrivileges(ctx context.Context, instance, database, user string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations = append(f.mutations, "grant-privileges:"+instance+":"+database)
	if !f.databases[instance][database] {
		return store.NotFoundError{Store: "fake-db", Name: database}
	}
	return nil
}

// Mutations returns the ordered log of mutating calls.
func (f *FakeDatabaseAdmin) Mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.mutations))
	copy(out, f.mutations)
	return out
}

// Password returns the last password set for instance/user.
func (f *FakeDatabaseAdmin) Password(instance, user string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.passwords[instance+"/"+user]
}
