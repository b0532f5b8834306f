package verify

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/provops/internal/logging"
	"github.com/systmms/provops/internal/reconcile"
	"github.com/systmms/provops/internal/resolve"
	"github.com/systmms/provops/pkg/store"
	"github.com/systmms/provops/tests/fakes"
)

func testLogger() *logging.Logger {
	return logging.New(false, true)
}

func resultFor(t *testing.T, report *Report, kind, name string) CheckResult {
	t.Helper()
	for _, res := range report.Results {
		if res.Kind == kind && res.Name == name {
			return res
		}
	}
	t.Fatalf("no result for %s %q", kind, name)
	return CheckResult{}
}

func TestVerifyConvergedEnvironmentIsSatisfied(t *testing.T) {
	secrets := fakes.NewFakeSecretStore().
		WithSecret("n8n-DB_TYPE", "postgresdb").
		WithSecret("n8n-DB_NAME", "n8n")
	db := fakes.NewFakeDatabaseAdmin().
		WithInstance("acme-main").
		WithDatabase("acme-main", "n8n").
		WithUser("acme-main", "n8n")
	cache := fakes.NewFakeCacheInspector().
		WithInstance("acme-cache", store.CacheStatus{State: "READY", Host: "10.0.0.5", Port: 6379})
	bucket := fakes.NewFakeBucketInspector("acme-n8n-artifacts")
	compute := fakes.NewFakeComputePlatform().
		WithService("n8n", store.ServiceStatus{Exists: true, Ready: true, URL: "https://n8n.example.com"})

	v := New(secrets, db, cache, bucket, compute, testLogger())
	report, err := v.Verify(context.Background(), Expectation{
		Secrets:  []string{"n8n-DB_TYPE", "n8n-DB_NAME"},
		Instance: "acme-main",
		Database: "n8n",
		User:     "n8n",
		CacheID:  "acme-cache",
		Bucket:   "acme-n8n-artifacts",
		Service:  "n8n",
	})
	require.NoError(t, err)

	assert.True(t, report.OK())
	assert.Equal(t, 0, report.Missing())
	assert.Equal(t, 0, report.Degraded())
	assert.Equal(t, len(report.Results), report.Satisfied())
}

func TestVerifyReportsMissingSecrets(t *testing.T) {
	secrets := fakes.NewFakeSecretStore().WithSecret("n8n-DB_TYPE", "postgresdb")
	v := New(secrets, nil, nil, nil, nil, testLogger())

	report, err := v.Verify(context.Background(), Expectation{
		Secrets: []string{"n8n-DB_TYPE", "n8n-DB_PASSWORD"},
	})
	require.NoError(t, err)

	assert.False(t, report.OK())
	assert.Equal(t, StateMissing, resultFor(t, report, "secret", "n8n-DB_PASSWORD").State)
	assert.Equal(t, StateSatisfied, resultFor(t, report, "secret", "n8n-DB_TYPE").State)
}

func TestVerifyAfterReconcileReportsNothingMissing(t *testing.T) {
	secrets := fakes.NewFakeSecretStore()
	rec := reconcile.New(secrets, reconcile.Options{Prefix: "n8n-", Logger: testLogger()})
	values := map[string]resolve.ResolvedValue{
		"DB_TYPE": {Name: "DB_TYPE", Value: "postgresdb", Origin: resolve.OriginDefault},
		"DB_NAME": {Name: "DB_NAME", Value: "n8n", Origin: resolve.OriginDefault},
	}
	_, err := rec.Reconcile(context.Background(), values)
	require.NoError(t, err)

	v := New(secrets, nil, nil, nil, nil, testLogger())
	report, err := v.Verify(context.Background(), Expectation{
		Secrets: []string{"n8n-DB_TYPE", "n8n-DB_NAME"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Missing())
}

func TestVerifyMissingInstanceDoesNotStopOtherChecks(t *testing.T) {
	secrets := fakes.NewFakeSecretStore().WithSecret("n8n-DB_TYPE", "postgresdb")
	db := fakes.NewFakeDatabaseAdmin() // no instance
	v := New(secrets, db, nil, nil, nil, testLogger())

	report, err := v.Verify(context.Background(), Expectation{
		Secrets:  []string{"n8n-DB_TYPE"},
		Instance: "acme-main",
		Database: "n8n",
		User:     "n8n",
	})
	require.NoError(t, err)

	assert.Equal(t, StateMissing, resultFor(t, report, "instance", "acme-main").State)
	assert.Equal(t, StateDegraded, resultFor(t, report, "database", "n8n").State)
	assert.Equal(t, StateDegraded, resultFor(t, report, "user", "n8n").State)
	// The unrelated secret check still ran and passed.
	assert.Equal(t, StateSatisfied, resultFor(t, report, "secret", "n8n-DB_TYPE").State)
}

func TestVerifyCacheStates(t *testing.T) {
	tests := []struct {
		name   string
		status store.CacheStatus
		want   State
	}{
		{"ready", store.CacheStatus{State: "READY"}, StateSatisfied},
		{"provisioning", store.CacheStatus{State: "CREATING"}, StateDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := fakes.NewFakeCacheInspector().WithInstance("acme-cache", tt.status)
			v := New(nil, nil, cache, nil, nil, testLogger())
			report, err := v.Verify(context.Background(), Expectation{CacheID: "acme-cache"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resultFor(t, report, "cache", "acme-cache").State)
		})
	}
}

func TestVerifyServiceNotReadyIsDegraded(t *testing.T) {
	compute := fakes.NewFakeComputePlatform().
		WithService("n8n", store.ServiceStatus{Exists: true, Ready: false, Detail: "revision pending"})
	v := New(nil, nil, nil, nil, compute, testLogger())

	report, err := v.Verify(context.Background(), Expectation{Service: "n8n"})
	require.NoError(t, err)

	res := resultFor(t, report, "service", "n8n")
	assert.Equal(t, StateDegraded, res.State)
	assert.Equal(t, "revision pending", res.Detail)
}

func TestVerifyConnectivityProbeDegradesUnreachableDatabase(t *testing.T) {
	db := fakes.NewFakeDatabaseAdmin().
		WithInstance("acme-main").
		WithDatabase("acme-main", "n8n").
		WithUser("acme-main", "n8n")

	v := New(nil, db, nil, nil, nil, testLogger()).
		WithConnectivityProbe(func(ctx context.Context) error {
			return fmt.Errorf("connection refused")
		})
	report, err := v.Verify(context.Background(), Expectation{
		Instance: "acme-main",
		Database: "n8n",
		User:     "n8n",
	})
	require.NoError(t, err)

	// Instance, database and user all exist per the admin API; only the
	// connection check degrades the report.
	conn := resultFor(t, report, "connectivity", "n8n")
	assert.Equal(t, StateDegraded, conn.State)
	assert.Contains(t, conn.Detail, "connection refused")
	assert.Equal(t, 3, report.Satisfied())
	assert.False(t, report.OK())
}

func TestVerifyConnectivityProbeSatisfiedWhenDatabaseAnswers(t *testing.T) {
	db := fakes.NewFakeDatabaseAdmin().
		WithInstance("acme-main").
		WithDatabase("acme-main", "n8n").
		WithUser("acme-main", "n8n")

	v := New(nil, db, nil, nil, nil, testLogger()).
		WithConnectivityProbe(func(ctx context.Context) error { return nil })
	report, err := v.Verify(context.Background(), Expectation{
		Instance: "acme-main",
		Database: "n8n",
		User:     "n8n",
	})
	require.NoError(t, err)

	assert.Equal(t, StateSatisfied, resultFor(t, report, "connectivity", "n8n").State)
	assert.True(t, report.OK())
}

func TestVerifyConnectivityProbeSkippedWithoutInstance(t *testing.T) {
	probed := false
	v := New(nil, fakes.NewFakeDatabaseAdmin(), nil, nil, nil, testLogger()).
		WithConnectivityProbe(func(ctx context.Context) error {
			probed = true
			return nil
		})
	report, err := v.Verify(context.Background(), Expectation{
		Instance: "acme-main",
		Database: "n8n",
	})
	require.NoError(t, err)

	assert.False(t, probed, "probe must not run against an absent instance")
	for _, res := range report.Results {
		assert.NotEqual(t, "connectivity", res.Kind)
	}
}

func TestDSNProbeRejectsUnknownEngine(t *testing.T) {
	probe := DSNProbe("oracle", "whatever")
	err := probe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database engine")
}

func TestVerifyNeverMutates(t *testing.T) {
	secrets := fakes.NewFakeSecretStore().WithSecret("n8n-DB_TYPE", "postgresdb")
	db := fakes.NewFakeDatabaseAdmin().WithInstance("acme-main")
	v := New(secrets, db, nil, nil, nil, testLogger())

	_, err := v.Verify(context.Background(), Expectation{
		Secrets:  []string{"n8n-DB_TYPE", "n8n-DB_PASSWORD"},
		Instance: "acme-main",
		Database: "n8n",
		User:     "n8n",
	})
	require.NoError(t, err)

	assert.Empty(t, secrets.MutatedNames())
	assert.Empty(t, db.Mutations())
}

func TestPingDatabase(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	require.NoError(t, PingDatabase(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPingDatabaseFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnError(context.DeadlineExceeded)

	err = PingDatabase(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health query")
}

func TestOpenDatabaseRejectsUnknownEngine(t *testing.T) {
	_, err := OpenDatabase("oracle", "dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database engine")
}
