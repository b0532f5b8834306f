package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	provopserrors "github.com/systmms/provops/internal/errors"
	"github.com/systmms/provops/tests/fakes"
)

func fastPolling(t *testing.T) {
	t.Helper()
	oldInterval, oldAttempts := deployPollInterval, deployPollAttempts
	deployPollInterval = time.Millisecond
	deployPollAttempts = 5
	t.Cleanup(func() {
		deployPollInterval, deployPollAttempts = oldInterval, oldAttempts
	})
}

func TestDeployPushesAndWaitsForReadiness(t *testing.T) {
	fastPolling(t)
	cfg := testConfig(t)
	executor := fakes.NewFakeCommandExecutor()
	compute := fakes.NewFakeComputePlatform().
		WithImage("europe-west1-docker.pkg.dev/acme-prod/apps/n8n:1.64.0").
		WithReadyAfter(2)
	collab := &collaborators{
		secrets:  fakes.NewFakeSecretStore(),
		compute:  compute,
		auth:     &fakes.FakeAuthenticator{Authenticated: true},
		executor: executor,
	}

	err := runCommand(t, newDeployCommand(cfg, collab))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"docker push europe-west1-docker.pkg.dev/acme-prod/apps/n8n:1.64.0",
	}, executor.Commands())

	deployed := compute.Deployed()
	require.Len(t, deployed, 1)
	assert.Equal(t, "n8n", deployed[0].Name)
	assert.Equal(t, 5678, deployed[0].Port)
	// Every variable is mounted as a secret reference.
	assert.Equal(t, "n8n-DB_PASSWORD", deployed[0].SecretEnv["DB_PASSWORD"])
	assert.Equal(t, "n8n-N8N_ENCRYPTION_KEY", deployed[0].SecretEnv["N8N_ENCRYPTION_KEY"])
	// Raw values never ride along in the deploy request.
	assert.Empty(t, deployed[0].Env)

	assert.GreaterOrEqual(t, compute.DescribeCalls("n8n"), 2)
}

// Optional variables whose value resolved empty never get a secret, so a
// deploy after setup-secrets must not mount references to them: the
// platform rejects revisions referencing absent secrets.
func TestDeployOmitsOptionalSecretsNeverReconciled(t *testing.T) {
	fastPolling(t)
	cfg := testConfig(t)
	secrets := fakes.NewFakeSecretStore()
	setupCollab := &collaborators{
		secrets:  secrets,
		auth:     &fakes.FakeAuthenticator{Authenticated: true},
		prompter: &scriptedPrompter{answers: map[string]string{dbPasswordPrompt: "s3cret"}},
	}
	require.NoError(t, runCommand(t, newSetupSecretsCommand(cfg, setupCollab)))

	compute := fakes.NewFakeComputePlatform().
		WithImage("europe-west1-docker.pkg.dev/acme-prod/apps/n8n:1.64.0").
		WithReadyAfter(1)
	collab := &collaborators{
		secrets:  secrets,
		compute:  compute,
		auth:     &fakes.FakeAuthenticator{Authenticated: true},
		executor: fakes.NewFakeCommandExecutor(),
	}
	require.NoError(t, runCommand(t, newDeployCommand(cfg, collab)))

	deployed := compute.Deployed()
	require.Len(t, deployed, 1)
	// No timezone configured: the optional variable resolved empty, was
	// dropped at reconcile time, and must not be mounted.
	assert.NotContains(t, deployed[0].SecretEnv, "GENERIC_TIMEZONE")
	// Optional variables that did reconcile are mounted as usual.
	assert.Equal(t, "n8n-WEBHOOK_URL", deployed[0].SecretEnv["WEBHOOK_URL"])
	assert.Equal(t, "n8n-DB_PASSWORD", deployed[0].SecretEnv["DB_PASSWORD"])
}

func TestDeployMissingImageIsHardError(t *testing.T) {
	fastPolling(t)
	cfg := testConfig(t)
	compute := fakes.NewFakeComputePlatform() // no image pushed
	collab := &collaborators{
		compute:  compute,
		auth:     &fakes.FakeAuthenticator{Authenticated: true},
		executor: fakes.NewFakeCommandExecutor(),
	}

	err := runCommand(t, newDeployCommand(cfg, collab))
	var missing provopserrors.MissingDependencyError
	require.ErrorAs(t, err, &missing)
	assert.Empty(t, compute.Deployed())
}

func TestDeployFailsWhenServiceNeverReady(t *testing.T) {
	fastPolling(t)
	cfg := testConfig(t)
	compute := fakes.NewFakeComputePlatform().
		WithImage("europe-west1-docker.pkg.dev/acme-prod/apps/n8n:1.64.0").
		WithReadyAfter(100)
	collab := &collaborators{
		secrets:  fakes.NewFakeSecretStore(),
		compute:  compute,
		auth:     &fakes.FakeAuthenticator{Authenticated: true},
		executor: fakes.NewFakeCommandExecutor(),
	}

	err := runCommand(t, newDeployCommand(cfg, collab))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not become ready")
}
