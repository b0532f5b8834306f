package stores

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	iampb "cloud.google.com/go/iam/apiv1/iampb"

	"github.com/systmms/provops/internal/logging"
	"github.com/systmms/provops/pkg/store"
)

// GCPSecretManager implements store.SecretStore on Google Secret Manager.
type GCPSecretManager struct {
	client    *secretmanager.Client
	projectID string
	logger    *logging.Logger
}

// NewGCPSecretManager creates the store. Config keys: project_id (required),
// service_account_key_path (optional).
func NewGCPSecretManager(ctx context.Context, configMap map[string]interface{}, logger *logging.Logger) (*GCPSecretManager, error) {
	projectID, _ := configMap["project_id"].(string)
	if projectID == "" {
		projectID = gcpProjectFromEnv()
	}
	if projectID == "" {
		return nil, errProjectIDRequired()
	}

	var opts []option.ClientOption
	if keyPath, ok := configMap["service_account_key_path"].(string); ok && keyPath != "" {
		opts = append(opts, option.WithCredentialsFile(keyPath))
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return &GCPSecretManager{client: client, projectID: projectID, logger: logger}, nil
}

func (s *GCPSecretManager) Name() string { return "gcp.secretmanager" }

// Close releases the underlying gRPC connection.
func (s *GCPSecretManager) Close() error { return s.client.Close() }

func (s *GCPSecretManager) secretPath(name string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", s.projectID, name)
}

func (s *GCPSecretManager) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{
		Name: s.secretPath(name),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("checking secret %s: %w", name, err)
	}
	return true, nil
}

func (s *GCPSecretManager) Create(ctx context.Context, name, content string) error {
	s.logger.Debug("Creating secret %s in project %s", name, s.projectID)
	_, err := s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
		Parent:   "projects/" + s.projectID,
		SecretId: name,
		Secret: &secretmanagerpb.Secret{
			Replication: &secretmanagerpb.Replication{
				Replication: &secretmanagerpb.Replication_Automatic_{
					Automatic: &secretmanagerpb.Replication_Automatic{},
				},
			},
		},
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return store.AlreadyExistsError{Store: s.Name(), Name: name}
		}
		return fmt.Errorf("creating secret %s: %w", name, err)
	}
	_, err = s.addVersion(ctx, name, content)
	return err
}

func (s *GCPSecretManager) AddVersion(ctx context.Context, name, content string) (string, error) {
	return s.addVersion(ctx, name, content)
}

func (s *GCPSecretManager) addVersion(ctx context.Context, name, content string) (string, error) {
	version, err := s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent: s.secretPath(name),
		Payload: &secretmanagerpb.SecretPayload{
			Data: []byte(content),
		},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", store.NotFoundError{Store: s.Name(), Name: name}
		}
		return "", fmt.Errorf("adding version to secret %s: %w", name, err)
	}
	// version.Name is projects/<p>/secrets/<name>/versions/<n>
	parts := strings.Split(version.Name, "/")
	return parts[len(parts)-1], nil
}

// GrantAccess adds an IAM binding for principal on the secret. An existing
// identical binding is left untouched, so repeated grants converge.
func (s *GCPSecretManager) GrantAccess(ctx context.Context, name, principal, role string) error {
	resource := s.secretPath(name)
	policy, err := s.client.GetIamPolicy(ctx, &iampb.GetIamPolicyRequest{Resource: resource})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return store.NotFoundError{Store: s.Name(), Name: name}
		}
		return fmt.Errorf("reading IAM policy for %s: %w", name, err)
	}

	for _, binding := range policy.Bindings {
		if binding.Role != role {
			continue
		}
		for _, member := range binding.Members {
			if member == principal {
				s.logger.Debug("Grant for %s on %s already in place", principal, name)
				return nil
			}
		}
		binding.Members = append(binding.Members, principal)
		return s.setPolicy(ctx, resource, name, policy)
	}

	policy.Bindings = append(policy.Bindings, &iampb.Binding{
		Role:    role,
		Members: []string{principal},
	})
	return s.setPolicy(ctx, resource, name, policy)
}

func (s *GCPSecretManager) setPolicy(ctx context.Context, resource, name string, policy *iampb.Policy) error {
	_, err := s.client.SetIamPolicy(ctx, &iampb.SetIamPolicyRequest{
		Resource: resource,
		Policy:   policy,
	})
	if err != nil {
		return fmt.Errorf("updating IAM policy for %s: %w", name, err)
	}
	return nil
}

func (s *GCPSecretManager) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{
		Parent: "projects/" + s.projectID,
	})
	var names []string
	for {
		secret, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing secrets: %w", err)
		}
		parts := strings.Split(secret.Name, "/")
		short := parts[len(parts)-1]
		if strings.HasPrefix(short, prefix) {
			names = append(names, short)
		}
	}
	return names, nil
}
