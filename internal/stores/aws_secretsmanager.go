package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/systmms/provops/internal/logging"
	"github.com/systmms/provops/pkg/store"
)

// SecretsManagerAPI is the subset of the AWS Secrets Manager client this
// store uses. Tests substitute a mock.
type SecretsManagerAPI interface {
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
	GetResourcePolicy(ctx context.Context, params *secretsmanager.GetResourcePolicyInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetResourcePolicyOutput, error)
	PutResourcePolicy(ctx context.Context, params *secretsmanager.PutResourcePolicyInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutResourcePolicyOutput, error)
}

// AWSSecretsManager implements store.SecretStore on AWS Secrets Manager.
//
// AWS secrets are versioned natively: PutSecretValue stages a new version
// and keeps the previous ones, which matches the append-only contract.
// GrantAccess edits the secret's resource policy: read, add the principal
// if absent, write back. The role argument has no AWS counterpart; grants
// always cover read access to the secret value.
type AWSSecretsManager struct {
	client SecretsManagerAPI
	region string
	logger *logging.Logger
}

// AWSOption is a functional option for AWS-backed stores.
type AWSOption func(*AWSSecretsManager)

// WithSecretsManagerClient injects a custom client (for testing).
func WithSecretsManagerClient(client SecretsManagerAPI) AWSOption {
	return func(s *AWSSecretsManager) {
		s.client = client
	}
}

// NewAWSSecretsManager creates the store. Config keys: region, and
// optionally endpoint/access_key_id/secret_access_key for LocalStack.
func NewAWSSecretsManager(ctx context.Context, configMap map[string]interface{}, logger *logging.Logger, opts ...AWSOption) (*AWSSecretsManager, error) {
	region := "us-east-1"
	if r, ok := configMap["region"].(string); ok && r != "" {
		region = r
	}

	s := &AWSSecretsManager{region: region, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		cfg, err := loadAWSConfig(ctx, configMap, region)
		if err != nil {
			return nil, err
		}
		s.client = secretsmanager.NewFromConfig(cfg)
	}
	return s, nil
}

func loadAWSConfig(ctx context.Context, configMap map[string]interface{}, region string) (aws.Config, error) {
	var configOpts []func(*awsconfig.LoadOptions) error
	configOpts = append(configOpts, awsconfig.WithRegion(region))

	accessKeyID, _ := configMap["access_key_id"].(string)
	secretAccessKey, _ := configMap["secret_access_key"].(string)
	if accessKeyID != "" && secretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return cfg, nil
}

func (s *AWSSecretsManager) Name() string { return "aws.secretsmanager" }

func (s *AWSSecretsManager) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: &name,
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking secret %s: %w", name, err)
	}
	return true, nil
}

func (s *AWSSecretsManager) Create(ctx context.Context, name, content string) error {
	s.logger.Debug("Creating secret %s in %s", name, s.region)
	_, err := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         &name,
		SecretString: &content,
	})
	if err != nil {
		var exists *smtypes.ResourceExistsException
		if errors.As(err, &exists) {
			return store.AlreadyExistsError{Store: s.Name(), Name: name}
		}
		return fmt.Errorf("creating secret %s: %w", name, err)
	}
	return nil
}

func (s *AWSSecretsManager) AddVersion(ctx context.Context, name, content string) (string, error) {
	out, err := s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     &name,
		SecretString: &content,
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", store.NotFoundError{Store: s.Name(), Name: name}
		}
		return "", fmt.Errorf("adding version to secret %s: %w", name, err)
	}
	if out.VersionId != nil {
		return *out.VersionId, nil
	}
	return "", nil
}

type resourcePolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string          `json:"Effect"`
	Principal policyPrincipal `json:"Principal"`
	Action    []string        `json:"Action"`
	Resource  string          `json:"Resource"`
}

type policyPrincipal struct {
	AWS string `json:"AWS"`
}

func (s *AWSSecretsManager) GrantAccess(ctx context.Context, name, principal, role string) error {
	out, err := s.client.GetResourcePolicy(ctx, &secretsmanager.GetResourcePolicyInput{
		SecretId: &name,
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return store.NotFoundError{Store: s.Name(), Name: name}
		}
		return fmt.Errorf("reading resource policy for %s: %w", name, err)
	}

	policy := resourcePolicy{Version: "2012-10-17"}
	if out.ResourcePolicy != nil && *out.ResourcePolicy != "" {
		if err := json.Unmarshal([]byte(*out.ResourcePolicy), &policy); err != nil {
			return fmt.Errorf("parsing resource policy for %s: %w", name, err)
		}
	}
	for _, stmt := range policy.Statement {
		if stmt.Effect == "Allow" && stmt.Principal.AWS == principal {
			s.logger.Debug("Principal %s already on the resource policy of %s", principal, name)
			return nil
		}
	}

	policy.Statement = append(policy.Statement, policyStatement{
		Effect:    "Allow",
		Principal: policyPrincipal{AWS: principal},
		Action:    []string{"secretsmanager:GetSecretValue", "secretsmanager:DescribeSecret"},
		Resource:  "*",
	})
	doc, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("encoding resource policy for %s: %w", name, err)
	}
	docStr := string(doc)
	if _, err := s.client.PutResourcePolicy(ctx, &secretsmanager.PutResourcePolicyInput{
		SecretId:       &name,
		ResourcePolicy: &docStr,
	}); err != nil {
		return fmt.Errorf("writing resource policy for %s: %w", name, err)
	}
	s.logger.Debug("Granted %s read access to %s", principal, name)
	return nil
}

func (s *AWSSecretsManager) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	var nextToken *string
	for {
		out, err := s.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("listing secrets: %w", err)
		}
		for _, entry := range out.SecretList {
			if entry.Name != nil && strings.HasPrefix(*entry.Name, prefix) {
				names = append(names, *entry.Name)
			}
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return names, nil
}
