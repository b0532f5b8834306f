package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/systmms/provops/internal/logging"
	"github.com/systmms/provops/pkg/store"
)

// SSMAPI is the subset of the SSM client this store uses.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
	DescribeParameters(ctx context.Context, params *ssm.DescribeParametersInput, optFns ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error)
}

// AWSParameterStore implements store.SecretStore on SSM Parameter Store.
//
// Parameters are written as SecureString. PutParameter with Overwrite set
// creates a new parameter version, matching the append-only contract.
// Names are stored under a path ("/<name>") so List can use the path
// hierarchy.
type AWSParameterStore struct {
	client SSMAPI
	logger *logging.Logger
}

// SSMOption is a functional option for the parameter store.
type SSMOption func(*AWSParameterStore)

// WithSSMClient injects a custom client (for testing).
func WithSSMClient(client SSMAPI) SSMOption {
	return func(s *AWSParameterStore) {
		s.client = client
	}
}

// NewAWSParameterStore creates the store. Config keys match
// NewAWSSecretsManager.
func NewAWSParameterStore(ctx context.Context, configMap map[string]interface{}, logger *logging.Logger, opts ...SSMOption) (*AWSParameterStore, error) {
	region := "us-east-1"
	if r, ok := configMap["region"].(string); ok && r != "" {
		region = r
	}

	s := &AWSParameterStore{logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		cfg, err := loadAWSConfig(ctx, configMap, region)
		if err != nil {
			return nil, err
		}
		s.client = ssm.NewFromConfig(cfg)
	}
	return s, nil
}

func (s *AWSParameterStore) Name() string { return "aws.ssm" }

func parameterPath(name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	return "/" + name
}

func (s *AWSParameterStore) Exists(ctx context.Context, name string) (bool, error) {
	path := parameterPath(name)
	_, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{Name: &path})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking parameter %s: %w", name, err)
	}
	return true, nil
}

func (s *AWSParameterStore) Create(ctx context.Context, name, content string) error {
	path := parameterPath(name)
	s.logger.Debug("Creating parameter %s", path)
	_, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      &path,
		Value:     &content,
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: boolPtr(false),
	})
	if err != nil {
		var exists *ssmtypes.ParameterAlreadyExists
		if errors.As(err, &exists) {
			return store.AlreadyExistsError{Store: s.Name(), Name: name}
		}
		return fmt.Errorf("creating parameter %s: %w", name, err)
	}
	return nil
}

func (s *AWSParameterStore) AddVersion(ctx context.Context, name, content string) (string, error) {
	path := parameterPath(name)
	out, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      &path,
		Value:     &content,
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: boolPtr(true),
	})
	if err != nil {
		return "", fmt.Errorf("adding version to parameter %s: %w", name, err)
	}
	return strconv.FormatInt(out.Version, 10), nil
}

func (s *AWSParameterStore) GrantAccess(ctx context.Context, name, principal, role string) error {
	s.logger.Warn("SSM parameter access for %s is managed via IAM policy; skipping grant on %s", principal, name)
	return nil
}

func (s *AWSParameterStore) List(ctx context.Context, prefix string) ([]string, error) {
	filterKey := "Name"
	option := "BeginsWith"
	path := parameterPath(prefix)

	var names []string
	var nextToken *string
	for {
		out, err := s.client.DescribeParameters(ctx, &ssm.DescribeParametersInput{
			ParameterFilters: []ssmtypes.ParameterStringFilter{{
				Key:    &filterKey,
				Option: &option,
				Values: []string{path},
			}},
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("listing parameters: %w", err)
		}
		for _, param := range out.Parameters {
			if param.Name != nil {
				names = append(names, strings.TrimPrefix(*param.Name, "/"))
			}
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return names, nil
}

func boolPtr(b bool) *bool { return &b }
