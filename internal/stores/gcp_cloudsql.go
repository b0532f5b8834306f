package stores

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sqladmin "google.golang.org/api/sqladmin/v1"

	"github.com/systmms/provops/internal/logging"
)

// CloudSQLAdmin implements store.DatabaseAdmin on the Cloud SQL Admin API.
//
// Database and user lifecycle goes through the Admin API. Privilege grants
// need a live SQL connection, so GrantPrivileges is only effective when an
// admin DSN is configured; without one it is a logged no-op, which is
// acceptable on Cloud SQL because API-created users join the
// cloudsqlsuperuser role and can already use their database.
type CloudSQLAdmin struct {
	service   *sqladmin.Service
	projectID string
	engine    string // "postgres" or "mysql"
	adminDSN  string
	logger    *logging.Logger
}

// NewCloudSQLAdmin creates the admin client. engine selects the SQL dialect
// used for privilege grants; adminDSN may be empty.
func NewCloudSQLAdmin(ctx context.Context, projectID, engine, adminDSN string, logger *logging.Logger) (*CloudSQLAdmin, error) {
	if projectID == "" {
		return nil, errProjectIDRequired()
	}
	service, err := sqladmin.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud SQL admin client: %w", err)
	}
	return &CloudSQLAdmin{
		service:   service,
		projectID: projectID,
		engine:    engine,
		adminDSN:  adminDSN,
		logger:    logger,
	}, nil
}

func (a *CloudSQLAdmin) InstanceExists(ctx context.Context, instance string) (bool, error) {
	_, err := a.service.Instances.Get(a.projectID, instance).Context(ctx).Do()
	if err != nil {
		if isGoogleNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking instance %s: %w", instance, err)
	}
	return true, nil
}

func (a *CloudSQLAdmin) DatabaseExists(ctx context.Context, instance, name string) (bool, error) {
	_, err := a.service.Databases.Get(a.projectID, instance, name).Context(ctx).Do()
	if err != nil {
		if isGoogleNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking database %s on %s: %w", name, instance, err)
	}
	return true, nil
}

func (a *CloudSQLAdmin) CreateDatabase(ctx context.Context, instance, name string) error {
	a.logger.Debug("Creating database %s on instance %s", name, instance)
	_, err := a.service.Databases.Insert(a.projectID, instance, &sqladmin.Database{
		Name: name,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("creating database %s on %s: %w", name, instance, err)
	}
	return nil
}

func (a *CloudSQLAdmin) DeleteDatabase(ctx context.Context, instance, name string) error {
	_, err := a.service.Databases.Delete(a.projectID, instance, name).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("deleting database %s on %s: %w", name, instance, err)
	}
	return nil
}

func (a *CloudSQLAdmin) UserExists(ctx context.Context, instance, user string) (bool, error) {
	resp, err := a.service.Users.List(a.projectID, instance).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("listing users on %s: %w", instance, err)
	}
	for _, u := range resp.Items {
		if u.Name == user {
			return true, nil
		}
	}
	return false, nil
}

func (a *CloudSQLAdmin) CreateUser(ctx context.Context, instance, user, password string) error {
	a.logger.Debug("Creating user %s on instance %s", user, instance)
	_, err := a.service.Users.Insert(a.projectID, instance, &sqladmin.User{
		Name:     user,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("creating user %s on %s: %w", user, instance, err)
	}
	return nil
}

func (a *CloudSQLAdmin) SetPassword(ctx context.Context, instance, user, password string) error {
	_, err := a.service.Users.Update(a.projectID, instance, &sqladmin.User{
		Name:     user,
		Password: password,
	}).Name(user).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("updating password for %s on %s: %w", user, instance, err)
	}
	return nil
}

func (a *CloudSQLAdmin) GrantPrivileges(ctx context.Context, instance, database, user string) error {
	if a.adminDSN == "" {
		a.logger.Warn("No admin connection configured; relying on Cloud SQL default privileges for %s on %s", user, database)
		return nil
	}
	db, err := sql.Open(driverForEngine(a.engine), a.adminDSN)
	if err != nil {
		return fmt.Errorf("opening admin connection: %w", err)
	}
	defer db.Close()

	var stmt string
	switch a.engine {
	case "mysql":
		stmt = fmt.Sprintf("GRANT ALL PRIVILEGES ON %s.* TO %s", backquoteIdent(database), backquoteIdent(user))
	default:
		stmt = fmt.Sprintf("GRANT ALL PRIVILEGES ON DATABASE %s TO %s", quoteIdent(database), quoteIdent(user))
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("granting privileges on %s to %s: %w", database, user, err)
	}
	return nil
}

func driverForEngine(engine string) string {
	if engine == "mysql" {
		return "mysql"
	}
	return "postgres"
}

// quoteIdent wraps a Postgres identifier in double quotes, doubling any
// embedded quote. Identifiers come from validated configuration, but
// quoting keeps the GRANT statement well formed for unusual names.
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// backquoteIdent is the MySQL equivalent of quoteIdent.
func backquoteIdent(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}
