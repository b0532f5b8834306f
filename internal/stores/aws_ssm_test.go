package stores

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/provops/internal/logging"
	"github.com/systmms/provops/pkg/store"
)

type mockSSMClient struct {
	params   map[string]string // path -> value
	versions map[string]int64
}

func newMockSSMClient() *mockSSMClient {
	return &mockSSMClient{params: make(map[string]string), versions: make(map[string]int64)}
}

func (m *mockSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	value, ok := m.params[*params.Name]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Name: params.Name, Value: &value}}, nil
}

func (m *mockSSMClient) PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	_, exists := m.params[*params.Name]
	if exists && params.Overwrite != nil && !*params.Overwrite {
		return nil, &ssmtypes.ParameterAlreadyExists{}
	}
	m.params[*params.Name] = *params.Value
	m.versions[*params.Name]++
	return &ssm.PutParameterOutput{Version: m.versions[*params.Name]}, nil
}

func (m *mockSSMClient) DescribeParameters(ctx context.Context, params *ssm.DescribeParametersInput, optFns ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error) {
	out := &ssm.DescribeParametersOutput{}
	prefix := params.ParameterFilters[0].Values[0]
	for path := range m.params {
		if strings.HasPrefix(path, prefix) {
			path := path
			out.Parameters = append(out.Parameters, ssmtypes.ParameterMetadata{Name: &path})
		}
	}
	return out, nil
}

func newTestParameterStore(t *testing.T, mock *mockSSMClient) *AWSParameterStore {
	t.Helper()
	s, err := NewAWSParameterStore(context.Background(), map[string]interface{}{
		"region": "eu-west-1",
	}, logging.New(false, true), WithSSMClient(mock))
	require.NoError(t, err)
	return s
}

func TestParameterStoreCreateRefusesOverwrite(t *testing.T) {
	mock := newMockSSMClient()
	s := newTestParameterStore(t, mock)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "n8n-DB_TYPE", "postgresdb"))
	assert.Equal(t, "postgresdb", mock.params["/n8n-DB_TYPE"])

	err := s.Create(ctx, "n8n-DB_TYPE", "mysqldb")
	var already store.AlreadyExistsError
	require.True(t, errors.As(err, &already))
	// The original value is untouched.
	assert.Equal(t, "postgresdb", mock.params["/n8n-DB_TYPE"])
}

func TestParameterStoreAddVersionIncrements(t *testing.T) {
	mock := newMockSSMClient()
	s := newTestParameterStore(t, mock)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "n8n-DB_TYPE", "postgresdb"))
	version, err := s.AddVersion(ctx, "n8n-DB_TYPE", "mysqldb")
	require.NoError(t, err)
	assert.Equal(t, "2", version)
}

func TestParameterStoreExists(t *testing.T) {
	mock := newMockSSMClient()
	mock.params["/n8n-DB_TYPE"] = "postgresdb"
	s := newTestParameterStore(t, mock)

	exists, err := s.Exists(context.Background(), "n8n-DB_TYPE")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.Exists(context.Background(), "n8n-DB_NAME")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestParameterStoreListStripsLeadingSlash(t *testing.T) {
	mock := newMockSSMClient()
	mock.params["/n8n-DB_TYPE"] = "postgresdb"
	mock.params["/other-KEY"] = "x"
	s := newTestParameterStore(t, mock)

	names, err := s.List(context.Background(), "n8n-")
	require.NoError(t, err)
	assert.Equal(t, []string{"n8n-DB_TYPE"}, names)
}
