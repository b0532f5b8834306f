package stores

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/provops/internal/logging"
	"github.com/systmms/provops/pkg/store"
)

type mockSecretsManagerClient struct {
	secrets    map[string]string // name -> current value
	policies   map[string]string // name -> resource policy document
	puts       int
	policyPuts int
}

func newMockSecretsManagerClient() *mockSecretsManagerClient {
	return &mockSecretsManagerClient{
		secrets:  make(map[string]string),
		policies: make(map[string]string),
	}
}

func (m *mockSecretsManagerClient) DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	if _, ok := m.secrets[*params.SecretId]; !ok {
		return nil, &smtypes.ResourceNotFoundException{}
	}
	return &secretsmanager.DescribeSecretOutput{Name: params.SecretId}, nil
}

func (m *mockSecretsManagerClient) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	if _, ok := m.secrets[*params.Name]; ok {
		return nil, &smtypes.ResourceExistsException{}
	}
	m.secrets[*params.Name] = *params.SecretString
	return &secretsmanager.CreateSecretOutput{Name: params.Name}, nil
}

func (m *mockSecretsManagerClient) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	if _, ok := m.secrets[*params.SecretId]; !ok {
		return nil, &smtypes.ResourceNotFoundException{}
	}
	m.secrets[*params.SecretId] = *params.SecretString
	m.puts++
	version := "v2"
	return &secretsmanager.PutSecretValueOutput{VersionId: &version}, nil
}

func (m *mockSecretsManagerClient) ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	out := &secretsmanager.ListSecretsOutput{}
	for name := range m.secrets {
		name := name
		out.SecretList = append(out.SecretList, smtypes.SecretListEntry{Name: &name})
	}
	return out, nil
}

func (m *mockSecretsManagerClient) GetResourcePolicy(ctx context.Context, params *secretsmanager.GetResourcePolicyInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetResourcePolicyOutput, error) {
	if _, ok := m.secrets[*params.SecretId]; !ok {
		return nil, &smtypes.ResourceNotFoundException{}
	}
	out := &secretsmanager.GetResourcePolicyOutput{Name: params.SecretId}
	if doc, ok := m.policies[*params.SecretId]; ok {
		out.ResourcePolicy = &doc
	}
	return out, nil
}

func (m *mockSecretsManagerClient) PutResourcePolicy(ctx context.Context, params *secretsmanager.PutResourcePolicyInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutResourcePolicyOutput, error) {
	if _, ok := m.secrets[*params.SecretId]; !ok {
		return nil, &smtypes.ResourceNotFoundException{}
	}
	m.policies[*params.SecretId] = *params.ResourcePolicy
	m.policyPuts++
	return &secretsmanager.PutResourcePolicyOutput{Name: params.SecretId}, nil
}

func newTestSecretsManager(t *testing.T, mock *mockSecretsManagerClient) *AWSSecretsManager {
	t.Helper()
	s, err := NewAWSSecretsManager(context.Background(), map[string]interface{}{
		"region": "eu-west-1",
	}, logging.New(false, true), WithSecretsManagerClient(mock))
	require.NoError(t, err)
	return s
}

func TestAWSSecretsManagerCreateAndExists(t *testing.T) {
	mock := newMockSecretsManagerClient()
	s := newTestSecretsManager(t, mock)
	ctx := context.Background()

	exists, err := s.Exists(ctx, "n8n-DB_TYPE")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Create(ctx, "n8n-DB_TYPE", "postgresdb"))

	exists, err = s.Exists(ctx, "n8n-DB_TYPE")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "postgresdb", mock.secrets["n8n-DB_TYPE"])
}

func TestAWSSecretsManagerCreateAlreadyExists(t *testing.T) {
	mock := newMockSecretsManagerClient()
	mock.secrets["n8n-DB_TYPE"] = "postgresdb"
	s := newTestSecretsManager(t, mock)

	err := s.Create(context.Background(), "n8n-DB_TYPE", "postgresdb")
	var already store.AlreadyExistsError
	require.True(t, errors.As(err, &already))
	assert.Equal(t, "n8n-DB_TYPE", already.Name)
}

func TestAWSSecretsManagerAddVersion(t *testing.T) {
	mock := newMockSecretsManagerClient()
	mock.secrets["n8n-DB_TYPE"] = "postgresdb"
	s := newTestSecretsManager(t, mock)

	version, err := s.AddVersion(context.Background(), "n8n-DB_TYPE", "mysqldb")
	require.NoError(t, err)
	assert.Equal(t, "v2", version)
	assert.Equal(t, "mysqldb", mock.secrets["n8n-DB_TYPE"])
}

func TestAWSSecretsManagerAddVersionMissingSecret(t *testing.T) {
	s := newTestSecretsManager(t, newMockSecretsManagerClient())

	_, err := s.AddVersion(context.Background(), "n8n-DB_TYPE", "postgresdb")
	var notFound store.NotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestAWSSecretsManagerGrantAccessWritesResourcePolicy(t *testing.T) {
	mock := newMockSecretsManagerClient()
	mock.secrets["n8n-DB_PASSWORD"] = "s3cret"
	s := newTestSecretsManager(t, mock)

	principal := "arn:aws:iam::123456789012:role/n8n-runner"
	require.NoError(t, s.GrantAccess(context.Background(), "n8n-DB_PASSWORD", principal, ""))

	assert.Equal(t, 1, mock.policyPuts)
	doc := mock.policies["n8n-DB_PASSWORD"]
	assert.Contains(t, doc, principal)
	assert.Contains(t, doc, "secretsmanager:GetSecretValue")
}

func TestAWSSecretsManagerGrantAccessIsIdempotent(t *testing.T) {
	mock := newMockSecretsManagerClient()
	mock.secrets["n8n-DB_PASSWORD"] = "s3cret"
	s := newTestSecretsManager(t, mock)

	principal := "arn:aws:iam::123456789012:role/n8n-runner"
	require.NoError(t, s.GrantAccess(context.Background(), "n8n-DB_PASSWORD", principal, ""))
	require.NoError(t, s.GrantAccess(context.Background(), "n8n-DB_PASSWORD", principal, ""))

	// The second grant finds the principal on the policy and writes nothing.
	assert.Equal(t, 1, mock.policyPuts)
}

func TestAWSSecretsManagerGrantAccessPreservesOtherPrincipals(t *testing.T) {
	mock := newMockSecretsManagerClient()
	mock.secrets["n8n-DB_PASSWORD"] = "s3cret"
	s := newTestSecretsManager(t, mock)

	other := "arn:aws:iam::123456789012:role/auditor"
	runner := "arn:aws:iam::123456789012:role/n8n-runner"
	require.NoError(t, s.GrantAccess(context.Background(), "n8n-DB_PASSWORD", other, ""))
	require.NoError(t, s.GrantAccess(context.Background(), "n8n-DB_PASSWORD", runner, ""))

	doc := mock.policies["n8n-DB_PASSWORD"]
	assert.Contains(t, doc, other)
	assert.Contains(t, doc, runner)
}

func TestAWSSecretsManagerGrantAccessMissingSecret(t *testing.T) {
	s := newTestSecretsManager(t, newMockSecretsManagerClient())

	err := s.GrantAccess(context.Background(), "n8n-DB_PASSWORD", "arn:aws:iam::123456789012:role/n8n-runner", "")
	var notFound store.NotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestAWSSecretsManagerListFiltersByPrefix(t *testing.T) {
	mock := newMockSecretsManagerClient()
	mock.secrets["n8n-DB_TYPE"] = "postgresdb"
	mock.secrets["n8n-DB_NAME"] = "n8n"
	mock.secrets["other-KEY"] = "x"
	s := newTestSecretsManager(t, mock)

	names, err := s.List(context.Background(), "n8n-")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"n8n-DB_TYPE", "n8n-DB_NAME"}, names)
}
