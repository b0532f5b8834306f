package stores

import (
	"context"
	"fmt"
	"strings"

	artifactregistry "google.golang.org/api/artifactregistry/v1"
	"google.golang.org/api/option"
	run "google.golang.org/api/run/v1"

	"github.com/systmms/provops/internal/logging"
	"github.com/systmms/provops/pkg/store"
)

// CloudRunPlatform implements store.ComputePlatform on Cloud Run and
// Artifact Registry.
type CloudRunPlatform struct {
	run       *run.APIService
	registry  *artifactregistry.Service
	projectID string
	region    string
	logger    *logging.Logger
}

func NewCloudRunPlatform(ctx context.Context, projectID, region string, logger *logging.Logger) (*CloudRunPlatform, error) {
	if projectID == "" {
		return nil, errProjectIDRequired()
	}
	// Service management must go through the regional endpoint.
	runService, err := run.NewService(ctx, option.WithEndpoint(fmt.Sprintf("https://%s-run.googleapis.com/", region)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud Run client: %w", err)
	}
	registryService, err := artifactregistry.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Artifact Registry client: %w", err)
	}
	return &CloudRunPlatform{
		run:       runService,
		registry:  registryService,
		projectID: projectID,
		region:    region,
		logger:    logger,
	}, nil
}

// ImageExists resolves the image tag in Artifact Registry. The ref must be
// an Artifact Registry path like
// europe-west1-docker.pkg.dev/acme-prod/apps/n8n:1.64.0; an untagged ref
// checks for "latest".
func (p *CloudRunPlatform) ImageExists(ctx context.Context, ref string) (bool, error) {
	tagName, err := artifactTagName(ref)
	if err != nil {
		return false, err
	}
	_, err = p.registry.Projects.Locations.Repositories.Packages.Tags.Get(tagName).Context(ctx).Do()
	if err != nil {
		if isGoogleNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking image %s: %w", ref, err)
	}
	return true, nil
}

// artifactTagName converts a docker image ref into the Artifact Registry
// tag resource name.
func artifactTagName(ref string) (string, error) {
	host, rest, ok := strings.Cut(ref, "/")
	if !ok || !strings.HasSuffix(host, "-docker.pkg.dev") {
		return "", fmt.Errorf("image ref %q is not an Artifact Registry path", ref)
	}
	location := strings.TrimSuffix(host, "-docker.pkg.dev")

	tag := "latest"
	if path, t, ok := strings.Cut(rest, ":"); ok {
		rest, tag = path, t
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 {
		return "", fmt.Errorf("image ref %q must be HOST/PROJECT/REPO/IMAGE", ref)
	}
	project, repo, image := parts[0], parts[1], parts[2]
	return fmt.Sprintf("projects/%s/locations/%s/repositories/%s/packages/%s/tags/%s",
		project, location, repo, image, tag), nil
}

func (p *CloudRunPlatform) namespace() string {
	return "namespaces/" + p.projectID
}

func (p *CloudRunPlatform) servicePath(name string) string {
	return p.namespace() + "/services/" + name
}

// Deploy creates the service or replaces its template if it already exists.
func (p *CloudRunPlatform) Deploy(ctx context.Context, spec store.ServiceSpec) (store.Deployment, error) {
	svc := p.buildService(spec)

	existing, err := p.run.Namespaces.Services.Get(p.servicePath(spec.Name)).Context(ctx).Do()
	if err != nil && !isGoogleNotFound(err) {
		return store.Deployment{}, fmt.Errorf("checking service %s: %w", spec.Name, err)
	}

	var deployed *run.Service
	if existing != nil {
		svc.Metadata.ResourceVersion = existing.Metadata.ResourceVersion
		p.logger.Debug("Replacing existing service %s", spec.Name)
		deployed, err = p.run.Namespaces.Services.ReplaceService(p.servicePath(spec.Name), svc).Context(ctx).Do()
	} else {
		p.logger.Debug("Creating service %s", spec.Name)
		deployed, err = p.run.Namespaces.Services.Create(p.namespace(), svc).Context(ctx).Do()
	}
	if err != nil {
		return store.Deployment{}, fmt.Errorf("deploying service %s: %w", spec.Name, err)
	}

	deployment := store.Deployment{Status: "deploying"}
	if deployed.Status != nil {
		deployment.URL = deployed.Status.Url
	}
	return deployment, nil
}

func (p *CloudRunPlatform) buildService(spec store.ServiceSpec) *run.Service {
	var env []*run.EnvVar
	for name, value := range spec.Env {
		env = append(env, &run.EnvVar{Name: name, Value: value})
	}
	for name, secretName := range spec.SecretEnv {
		env = append(env, &run.EnvVar{
			Name: name,
			ValueFrom: &run.EnvVarSource{
				SecretKeyRef: &run.SecretKeySelector{
					LocalObjectReference: &run.LocalObjectReference{Name: secretName},
					Key:                  "latest",
				},
			},
		})
	}

	return &run.Service{
		ApiVersion: "serving.knative.dev/v1",
		Kind:       "Service",
		Metadata: &run.ObjectMeta{
			Name:      spec.Name,
			Namespace: p.projectID,
		},
		Spec: &run.ServiceSpec{
			Template: &run.RevisionTemplate{
				Spec: &run.RevisionSpec{
					ServiceAccountName: spec.ServiceAccount,
					Containers: []*run.Container{{
						Image: spec.Image,
						Ports: []*run.ContainerPort{{ContainerPort: int64(spec.Port)}},
						Env:   env,
					}},
				},
			},
		},
	}
}

func (p *CloudRunPlatform) Describe(ctx context.Context, service string) (store.ServiceStatus, error) {
	svc, err := p.run.Namespaces.Services.Get(p.servicePath(service)).Context(ctx).Do()
	if err != nil {
		if isGoogleNotFound(err) {
			return store.ServiceStatus{Exists: false}, nil
		}
		return store.ServiceStatus{}, fmt.Errorf("describing service %s: %w", service, err)
	}

	status := store.ServiceStatus{Exists: true}
	if svc.Status == nil {
		return status, nil
	}
	status.URL = svc.Status.Url
	for _, cond := range svc.Status.Conditions {
		if cond.Type == "Ready" {
			status.Ready = cond.Status == "True"
			status.Detail = cond.Message
			break
		}
	}
	return status, nil
}
