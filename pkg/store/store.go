// Package store defines the collaborator interfaces the provisioning workflow
// depends on: the remote secret store, the managed database admin API, the
// cache/bucket inspectors, and the compute platform that hosts the service.
//
// The interfaces are deliberately backend-neutral. Concrete implementations
// (Google Secret Manager, AWS Secrets Manager, SSM Parameter Store, Azure Key
// Vault, Cloud SQL, Memorystore, Cloud Run) live in internal/stores and are
// selected through configuration. Tests substitute the fakes in tests/fakes.
//
// # Mutation discipline
//
// Only SecretStore and DatabaseAdmin expose mutating calls, and both are
// reached exclusively through the reconciler and the setup-database workflow
// after the safety gate has classified every target. The inspector interfaces
// (CacheInspector, BucketInspector) and Describe/Exists methods are read-only
// and safe to call at any time.
//
// # Error conventions
//
// Implementations return NotFoundError when an identified resource is absent
// and AuthError when the backend rejects the caller's credentials. Transient
// backend failures are returned as plain errors and surfaced per-item by the
// reconciler rather than aborting a batch.
package store

import "context"

// SecretStore is the remote secret-management backend.
//
// Create establishes a secret with an initial version; AddVersion appends a
// new version without touching prior ones (version history is the audit trail
// and rollback mechanism — no method here can destroy it). GrantAccess is
// idempotent: granting an already-granted principal must succeed.
type SecretStore interface {
	// Name returns the store's stable identifier, e.g. "gcp.secretmanager".
	Name() string

	// Exists reports whether a secret with the fully qualified name exists.
	Exists(ctx context.Context, name string) (bool, error)

	// Create creates the secret and stores content as its initial version.
	// If the secret was created concurrently by another operator, Create
	// returns AlreadyExistsError so the caller can fall back to AddVersion.
	Create(ctx context.Context, name, content string) error

	// AddVersion appends content as a new version and returns the version
	// identifier. Prior versions are never modified or deleted.
	AddVersion(ctx context.Context, name, content string) (string, error)

	// GrantAccess allows principal to read the secret. Granting access that
	// is already in place is not an error. Backends whose access control is
	// managed outside the data plane may treat this as a no-op.
	GrantAccess(ctx context.Context, name, principal, role string) error

	// List returns the names of all secrets under the given name prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// DatabaseAdmin provisions databases and users on a managed SQL instance.
type DatabaseAdmin interface {
	InstanceExists(ctx context.Context, instance string) (bool, error)
	DatabaseExists(ctx context.Context, instance, name string) (bool, error)
	CreateDatabase(ctx context.Context, instance, name string) error
	DeleteDatabase(ctx context.Context, instance, name string) error
	UserExists(ctx context.Context, instance, user string) (bool, error)
	CreateUser(ctx context.Context, instance, user, password string) error
	SetPassword(ctx context.Context, instance, user, password string) error

	// GrantPrivileges grants the user full privileges on the database.
	GrantPrivileges(ctx context.Context, instance, database, user string) error
}

// CacheStatus is the observable state of a managed cache/queue instance.
type CacheStatus struct {
	State string // backend-reported lifecycle state, e.g. "READY"
	Host  string
	Port  int
}

// Ready reports whether the instance accepts connections.
func (s CacheStatus) Ready() bool {
	return s.State == "READY" || s.State == "available"
}

// CacheInspector inspects a managed cache or queue instance. Read-only.
type CacheInspector interface {
	Describe(ctx context.Context, id string) (CacheStatus, error)
}

// BucketInspector inspects object storage. Read-only.
type BucketInspector interface {
	BucketExists(ctx context.Context, name string) (bool, error)
}

// ServiceSpec describes the container service to deploy.
type ServiceSpec struct {
	Name           string
	Image          string
	Region         string
	ServiceAccount string
	Env            map[string]string // non-secret plain environment
	SecretEnv      map[string]string // env var name -> qualified secret name
	Port           int
}

// Deployment is the result of a deploy call.
type Deployment struct {
	URL    string
	Status string
}

// ServiceStatus is the observable state of a deployed service.
type ServiceStatus struct {
	Exists bool
	Ready  bool
	URL    string
	Detail string
}

// ComputePlatform hosts the container service.
type ComputePlatform interface {
	ImageExists(ctx context.Context, ref string) (bool, error)
	Deploy(ctx context.Context, spec ServiceSpec) (Deployment, error)
	Describe(ctx context.Context, service string) (ServiceStatus, error)
}

// Authenticator reports whether the operator holds usable credentials for a
// backend. Implementations resolve once and cache for the process lifetime.
type Authenticator interface {
	IsAuthenticated(ctx context.Context) (bool, error)
}
