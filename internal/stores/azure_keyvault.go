package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	provopserrors "github.com/systmms/provops/internal/errors"
	"github.com/systmms/provops/internal/logging"
	"github.com/systmms/provops/pkg/store"
)

// AzureKeyVault implements store.SecretStore on Azure Key Vault.
//
// Key Vault has no separate create-vs-update call: SetSecret creates the
// secret on first write and adds a version on subsequent writes, and prior
// versions are retained. Create therefore refuses to proceed when the
// secret already exists, preserving the create/add-version distinction the
// reconciler depends on. Access control is RBAC at the vault scope and
// managed outside this tool, so GrantAccess is a logged no-op.
type AzureKeyVault struct {
	client   *azsecrets.Client
	vaultURL string
	logger   *logging.Logger
}

// NewAzureKeyVault creates the store. Config key: vault_url (required).
// Credentials come from the default Azure credential chain (environment,
// workload identity, managed identity, CLI).
func NewAzureKeyVault(configMap map[string]interface{}, logger *logging.Logger) (*AzureKeyVault, error) {
	vaultURL, _ := configMap["vault_url"].(string)
	if vaultURL == "" {
		return nil, &provopserrors.ConfigError{
			Field:      "vault_url",
			Message:    "vault_url is required for Azure Key Vault",
			Suggestion: "Set vault_url to https://<vault-name>.vault.azure.net/",
		}
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Azure credentials: %w", err)
	}
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}
	return &AzureKeyVault{client: client, vaultURL: vaultURL, logger: logger}, nil
}

func (s *AzureKeyVault) Name() string { return "azure.keyvault" }

// vaultName converts the workflow's secret names to Key Vault's allowed
// character set (letters, digits, dashes).
func vaultName(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

func isAzureNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}

func (s *AzureKeyVault) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.GetSecret(ctx, vaultName(name), "", nil)
	if err != nil {
		if isAzureNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking secret %s: %w", name, err)
	}
	return true, nil
}

func (s *AzureKeyVault) Create(ctx context.Context, name, content string) error {
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return store.AlreadyExistsError{Store: s.Name(), Name: name}
	}
	s.logger.Debug("Creating secret %s in %s", vaultName(name), s.vaultURL)
	_, err = s.client.SetSecret(ctx, vaultName(name), azsecrets.SetSecretParameters{
		Value: &content,
	}, nil)
	if err != nil {
		return fmt.Errorf("creating secret %s: %w", name, err)
	}
	return nil
}

func (s *AzureKeyVault) AddVersion(ctx context.Context, name, content string) (string, error) {
	resp, err := s.client.SetSecret(ctx, vaultName(name), azsecrets.SetSecretParameters{
		Value: &content,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("adding version to secret %s: %w", name, err)
	}
	if resp.ID != nil {
		return resp.ID.Version(), nil
	}
	return "", nil
}

func (s *AzureKeyVault) GrantAccess(ctx context.Context, name, principal, role string) error {
	s.logger.Warn("Key Vault access for %s is managed via Azure RBAC at the vault scope; skipping grant on %s", principal, name)
	return nil
}

// List returns names in vault form (underscores mapped to dashes); the
// mapping is not reversible because prefixes may themselves contain dashes.
func (s *AzureKeyVault) List(ctx context.Context, prefix string) ([]string, error) {
	vaultPrefix := vaultName(prefix)
	pager := s.client.NewListSecretPropertiesPager(nil)
	var names []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing secrets: %w", err)
		}
		for _, item := range page.Value {
			if item.ID == nil {
				continue
			}
			short := item.ID.Name()
			if strings.HasPrefix(short, vaultPrefix) {
				names = append(names, short)
			}
		}
	}
	return names, nil
}
