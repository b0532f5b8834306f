package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	provopserrors "github.com/systmms/provops/internal/errors"
	"github.com/systmms/provops/internal/logging"
	"github.com/systmms/provops/internal/resolve"
	"github.com/systmms/provops/tests/fakes"
)

func testLogger() *logging.Logger {
	return logging.New(false, true)
}

func resolved(pairs map[string]string) map[string]resolve.ResolvedValue {
	out := make(map[string]resolve.ResolvedValue, len(pairs))
	for name, value := range pairs {
		out[name] = resolve.ResolvedValue{Name: name, Value: value, Origin: resolve.OriginDefault}
	}
	return out
}

func TestReconcileCreatesMissingSecrets(t *testing.T) {
	st := fakes.NewFakeSecretStore()
	rec := New(st, Options{Prefix: "n8n-", Logger: testLogger()})

	report, err := rec.Reconcile(context.Background(), resolved(map[string]string{
		"DB_TYPE": "postgresdb",
		"DB_NAME": "n8n",
	}))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Created())
	assert.Equal(t, 0, report.Updated())
	assert.Equal(t, 0, report.Failed())
	assert.True(t, report.OK())

	assert.Equal(t, 1, st.VersionCount("n8n-DB_TYPE"))
	assert.Equal(t, "postgresdb", st.LatestVersion("n8n-DB_TYPE"))
	assert.Equal(t, 1, st.VersionCount("n8n-DB_NAME"))
}

func TestReconcileAddsVersionToExistingSecret(t *testing.T) {
	st := fakes.NewFakeSecretStore().WithSecret("n8n-DB_TYPE", "postgresdb")
	rec := New(st, Options{Prefix: "n8n-", Logger: testLogger()})

	report, err := rec.Reconcile(context.Background(), resolved(map[string]string{
		"DB_TYPE": "postgresdb",
	}))
	require.NoError(t, err)

	assert.Equal(t, 0, report.Created())
	assert.Equal(t, 1, report.Updated())
	assert.Equal(t, 1, st.CallCount("addversion", "n8n-DB_TYPE"))
	assert.Equal(t, 0, st.CallCount("create", "n8n-DB_TYPE"))
	assert.Equal(t, 2, st.VersionCount("n8n-DB_TYPE"))
}

func TestReconcileTwiceIsIdempotent(t *testing.T) {
	st := fakes.NewFakeSecretStore()
	rec := New(st, Options{Prefix: "n8n-", Logger: testLogger()})
	values := resolved(map[string]string{"DB_TYPE": "postgresdb", "DB_NAME": "n8n"})

	first, err := rec.Reconcile(context.Background(), values)
	require.NoError(t, err)
	second, err := rec.Reconcile(context.Background(), values)
	require.NoError(t, err)

	assert.Equal(t, 2, first.Created())
	assert.Equal(t, 0, second.Created())
	assert.Equal(t, 2, second.Updated())

	// Exactly one create and two version writes per variable across both runs.
	for _, name := range []string{"n8n-DB_TYPE", "n8n-DB_NAME"} {
		assert.Equal(t, 1, st.CallCount("create", name), name)
		assert.Equal(t, 2, st.VersionCount(name), name)
	}
}

func TestReconcileFallsBackWhenCreateRaces(t *testing.T) {
	st := fakes.NewFakeSecretStore().WithCreateRace("n8n-DB_NAME")
	rec := New(st, Options{Prefix: "n8n-", Logger: testLogger()})

	report, err := rec.Reconcile(context.Background(), resolved(map[string]string{"DB_NAME": "n8n"}))
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, OutcomeCreated, res.Outcome)
	require.NoError(t, res.Err)
	assert.Equal(t, 1, st.CallCount("addversion", "n8n-DB_NAME"))
}

func TestReconcileGrantsAccess(t *testing.T) {
	st := fakes.NewFakeSecretStore()
	rec := New(st, Options{
		Prefix:    "n8n-",
		Principal: "serviceAccount:runner@acme-prod.iam.gserviceaccount.com",
		Role:      "roles/secretmanager.secretAccessor",
		Logger:    testLogger(),
	})

	report, err := rec.Reconcile(context.Background(), resolved(map[string]string{"DB_TYPE": "postgresdb"}))
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].Granted)
	assert.True(t, st.HasGrant("n8n-DB_TYPE", "serviceAccount:runner@acme-prod.iam.gserviceaccount.com"))
}

func TestReconcileGrantIsIdempotent(t *testing.T) {
	st := fakes.NewFakeSecretStore()
	opts := Options{
		Prefix:    "n8n-",
		Principal: "serviceAccount:runner@acme-prod.iam.gserviceaccount.com",
		Role:      "roles/secretmanager.secretAccessor",
		Logger:    testLogger(),
	}
	rec := New(st, opts)
	values := resolved(map[string]string{"DB_TYPE": "postgresdb"})

	_, err := rec.Reconcile(context.Background(), values)
	require.NoError(t, err)
	report, err := rec.Reconcile(context.Background(), values)
	require.NoError(t, err)

	assert.True(t, report.OK())
	assert.Equal(t, 2, st.CallCount("grant", "n8n-DB_TYPE"))
}

func TestReconcileContinuesAfterPerVariableFailure(t *testing.T) {
	st := fakes.NewFakeSecretStore().
		WithError("create", "n8n-DB_NAME", errors.New("permission denied"))
	rec := New(st, Options{Prefix: "n8n-", Logger: testLogger()})

	report, err := rec.Reconcile(context.Background(), resolved(map[string]string{
		"DB_NAME": "n8n",
		"DB_TYPE": "postgresdb",
		"DB_USER": "n8n",
	}))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, 2, report.Created())
	assert.False(t, report.OK())

	// The failing variable carries a remote operation error; the others
	// still converged.
	for _, res := range report.Results {
		if res.Variable == "DB_NAME" {
			var remoteErr *provopserrors.RemoteOperationError
			require.ErrorAs(t, res.Err, &remoteErr)
			assert.Equal(t, "create", remoteErr.Operation)
			continue
		}
		assert.Equal(t, OutcomeCreated, res.Outcome, res.Variable)
	}
	assert.Equal(t, 1, st.VersionCount("n8n-DB_TYPE"))
	assert.Equal(t, 1, st.VersionCount("n8n-DB_USER"))
}

func TestReconcileReportsResultsInSortedOrder(t *testing.T) {
	st := fakes.NewFakeSecretStore()
	rec := New(st, Options{Prefix: "n8n-", Logger: testLogger()})

	report, err := rec.Reconcile(context.Background(), resolved(map[string]string{
		"WEBHOOK_URL": "https://n8n.example.com",
		"DB_TYPE":     "postgresdb",
		"DB_NAME":     "n8n",
	}))
	require.NoError(t, err)

	var names []string
	for _, res := range report.Results {
		names = append(names, res.Variable)
	}
	assert.Equal(t, []string{"DB_NAME", "DB_TYPE", "WEBHOOK_URL"}, names)
}

func TestReconcileHonorsCallerOrder(t *testing.T) {
	st := fakes.NewFakeSecretStore()
	rec := New(st, Options{
		Prefix: "n8n-",
		// Definition order, deliberately not alphabetical. DROPPED has
		// no resolved value and must be skipped without a result.
		Order:  []string{"DB_TYPE", "DB_NAME", "DROPPED", "DATABASE_URL"},
		Logger: testLogger(),
	})

	report, err := rec.Reconcile(context.Background(), resolved(map[string]string{
		"DATABASE_URL": "postgresql://n8n:pw@10.20.0.3:5432/n8n",
		"DB_NAME":      "n8n",
		"DB_TYPE":      "postgresdb",
	}))
	require.NoError(t, err)

	var names []string
	for _, res := range report.Results {
		names = append(names, res.Variable)
	}
	assert.Equal(t, []string{"DB_TYPE", "DB_NAME", "DATABASE_URL"}, names)
}
