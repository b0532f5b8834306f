// Package stores holds the concrete backends behind the pkg/store
// interfaces: secret stores on Google Secret Manager, AWS Secrets Manager,
// SSM Parameter Store and Azure Key Vault, plus the Google Cloud
// infrastructure collaborators (Cloud SQL, Memorystore, Cloud Storage,
// Cloud Run, Artifact Registry).
package stores

import (
	"context"
	"errors"
	"os"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"

	provopserrors "github.com/systmms/provops/internal/errors"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

func gcpProjectFromEnv() string {
	for _, key := range []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT", "GCP_PROJECT"} {
		if projectID := os.Getenv(key); projectID != "" {
			return projectID
		}
	}
	return ""
}

func errProjectIDRequired() error {
	return &provopserrors.ConfigError{
		Field:      "project_id",
		Message:    "project_id is required for Google Cloud backends",
		Suggestion: "Set project_id in the config file or GOOGLE_CLOUD_PROJECT in the environment",
	}
}

// isGoogleNotFound reports whether err is an HTTP 404 from a google.golang.org/api
// client.
func isGoogleNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 404
}

// GCPAuthenticator reports whether Application Default Credentials resolve.
// Resolution happens once and is cached for the process lifetime.
type GCPAuthenticator struct {
	once   sync.Once
	result bool
	err    error
}

func NewGCPAuthenticator() *GCPAuthenticator { return &GCPAuthenticator{} }

func (a *GCPAuthenticator) IsAuthenticated(ctx context.Context) (bool, error) {
	a.once.Do(func() {
		creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
		if err != nil {
			a.result = false
			a.err = nil // absent credentials are a clean "no", not a failure
			return
		}
		a.result = creds != nil
	})
	return a.result, a.err
}
