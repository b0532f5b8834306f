// Package config loads and validates provops.yaml, the single declarative
// input to the provisioning workflow. The loaded Config is passed explicitly
// to every component; nothing reads ambient state besides the documented
// per-variable environment overrides applied during resolution.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	proverrors "github.com/systmms/provops/internal/errors"
	"github.com/systmms/provops/internal/logging"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration shared by all commands.
type Config struct {
	Path           string
	Logger         *logging.Logger
	NonInteractive bool
	Definition     *Definition
}

// Definition is the provops.yaml structure.
type Definition struct {
	Version int    `yaml:"version" json:"version"`
	Project string `yaml:"project" json:"project"`
	Region  string `yaml:"region,omitempty" json:"region,omitempty"`

	SecretStore SecretStoreConfig `yaml:"secretStore" json:"secretStore"`
	Database    DatabaseConfig    `yaml:"database" json:"database"`
	Cache       CacheConfig       `yaml:"cache,omitempty" json:"cache,omitempty"`
	Bucket      string            `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Service     ServiceConfig     `yaml:"service" json:"service"`
	App         AppConfig         `yaml:"app,omitempty" json:"app,omitempty"`

	// Variables appends extra static or interactive variables to the
	// canonical registry.
	Variables []VariableConfig `yaml:"variables,omitempty" json:"variables,omitempty"`

	// ProtectedResources are remote resource names (databases, users,
	// services) that no mutation path may ever touch.
	ProtectedResources []string `yaml:"protectedResources,omitempty" json:"protectedResources,omitempty"`
}

// SecretStoreConfig selects and configures the secret-store backend.
type SecretStoreConfig struct {
	Type      string `yaml:"type" json:"type"`
	Prefix    string `yaml:"prefix" json:"prefix"`
	Principal string `yaml:"principal,omitempty" json:"principal,omitempty"`
	Role      string `yaml:"role,omitempty" json:"role,omitempty"`

	Config map[string]interface{} `yaml:"config,omitempty" json:"config,omitempty"`
}

// DatabaseConfig names the managed SQL instance and the database/user the
// workflow provisions on it.
type DatabaseConfig struct {
	Instance string `yaml:"instance" json:"instance"`
	Engine   string `yaml:"engine,omitempty" json:"engine,omitempty"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Host     string `yaml:"host,omitempty" json:"host,omitempty"`
	Port     int    `yaml:"port,omitempty" json:"port,omitempty"`
	// AdminDSN is a DSN with privileges to run GRANT statements and
	// connectivity probes. Without it, privilege grants fall back to the
	// instance's managed-user defaults and verify skips the connection
	// check.
	AdminDSN string `yaml:"adminDSN,omitempty" json:"adminDSN,omitempty"`
}

// CacheConfig names the managed cache/queue instance, if any.
type CacheConfig struct {
	ID string `yaml:"id,omitempty" json:"id,omitempty"`
}

// ServiceConfig describes the hosted container service.
type ServiceConfig struct {
	Name           string `yaml:"name" json:"name"`
	Image          string `yaml:"image" json:"image"`
	ServiceAccount string `yaml:"serviceAccount,omitempty" json:"serviceAccount,omitempty"`
	Port           int    `yaml:"port,omitempty" json:"port,omitempty"`
	URL            string `yaml:"url,omitempty" json:"url,omitempty"`
}

// AppConfig holds application-level settings folded into the registry.
type AppConfig struct {
	Timezone       string `yaml:"timezone,omitempty" json:"timezone,omitempty"`
	ExecutionsMode string `yaml:"executionsMode,omitempty" json:"executionsMode,omitempty"`
}

// VariableConfig is an extra registry entry supplied via configuration.
// Exactly one of Static or Prompt must be set.
type VariableConfig struct {
	Name     string `yaml:"name" json:"name"`
	Static   string `yaml:"static,omitempty" json:"static,omitempty"`
	Prompt   string `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Optional bool   `yaml:"optional,omitempty" json:"optional,omitempty"`
}

// Load reads, parses, and schema-validates the provops.yaml file.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return proverrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create a provops.yaml or point --config at an existing one",
			}
		}
		return proverrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return proverrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}

	if err := validateSchema(raw); err != nil {
		return err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return proverrors.ConfigError{
			Message:    "configuration does not match the expected structure",
			Suggestion: "Compare your provops.yaml against the documented layout",
		}
	}

	if def.Version != 0 {
		return proverrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your provops.yaml",
		}
	}

	if err := def.validateProtected(); err != nil {
		return err
	}

	c.Definition = &def
	return nil
}

// validateSchema checks the parsed document against the embedded JSON schema.
func validateSchema(doc interface{}) error {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to convert configuration for validation: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(definitionSchema)
	documentLoader := gojsonschema.NewBytesLoader(jsonData)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		details := ""
		for _, desc := range result.Errors() {
			details += "\n  - " + desc.String()
		}
		return proverrors.ConfigError{
			Message:    "configuration failed schema validation" + details,
			Suggestion: "Fix the listed fields in provops.yaml",
		}
	}

	return nil
}

// validateProtected rejects configurations whose own provisioning targets
// collide with a protected resource name. This is the earliest of the layered
// checks: it fires before any resolution or remote call.
func (d *Definition) validateProtected() error {
	protected := make(map[string]struct{}, len(d.ProtectedResources))
	for _, name := range d.ProtectedResources {
		protected[name] = struct{}{}
	}

	targets := map[string]string{
		d.Database.Name: "database",
		d.Database.User: "database user",
		d.Service.Name:  "service",
	}

	for name, kind := range targets {
		if name == "" {
			continue
		}
		if _, ok := protected[name]; ok {
			return proverrors.ProtectedResourceError{
				Resource:  name,
				Operation: "configure as " + kind + " target",
			}
		}
	}

	return nil
}

// IsProtected reports whether name appears in the protected resource list.
func (d *Definition) IsProtected(name string) bool {
	for _, p := range d.ProtectedResources {
		if p == name {
			return true
		}
	}
	return false
}

// QualifiedSecretName joins the configured prefix with a variable name.
func (d *Definition) QualifiedSecretName(variable string) string {
	return d.SecretStore.Prefix + variable
}

// DatabasePort returns the configured port or the engine default.
func (d *Definition) DatabasePort() int {
	if d.Database.Port > 0 {
		return d.Database.Port
	}
	if d.Database.Engine == "mysql" {
		return 3306
	}
	return 5432
}
