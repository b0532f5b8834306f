package stores

import (
	"context"

	"github.com/systmms/provops/internal/config"
	provopserrors "github.com/systmms/provops/internal/errors"
	"github.com/systmms/provops/internal/logging"
	"github.com/systmms/provops/pkg/store"
)

// NewSecretStore builds the secret-store backend named by the
// configuration. The type strings here mirror the schema enum.
func NewSecretStore(ctx context.Context, cfg config.SecretStoreConfig, logger *logging.Logger) (store.SecretStore, error) {
	switch cfg.Type {
	case "gcp.secretmanager":
		return NewGCPSecretManager(ctx, cfg.Config, logger)
	case "aws.secretsmanager":
		return NewAWSSecretsManager(ctx, cfg.Config, logger)
	case "aws.ssm":
		return NewAWSParameterStore(ctx, cfg.Config, logger)
	case "azure.keyvault":
		return NewAzureKeyVault(cfg.Config, logger)
	default:
		return nil, &provopserrors.ConfigError{
			Field:      "secretStore.type",
			Value:      cfg.Type,
			Message:    "unknown secret store type",
			Suggestion: "Use one of: gcp.secretmanager, aws.secretsmanager, aws.ssm, azure.keyvault",
		}
	}
}

// NewAuthenticator returns the identity check matching the secret-store
// backend.
func NewAuthenticator(cfg config.SecretStoreConfig) store.Authenticator {
	switch cfg.Type {
	case "aws.secretsmanager", "aws.ssm":
		region, _ := cfg.Config["region"].(string)
		if region == "" {
			region = "us-east-1"
		}
		return NewAWSAuthenticator(region, nil)
	default:
		return NewGCPAuthenticator()
	}
}
