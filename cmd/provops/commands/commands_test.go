package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/systmms/provops/internal/config"
	"github.com/systmms/provops/internal/logging"
	"github.com/systmms/provops/internal/resolve"
)

const testConfigYAML = `version: 0
project: acme-prod
region: europe-west1
secretStore:
  type: gcp.secretmanager
  prefix: n8n-
  principal: serviceAccount:runner@acme-prod.iam.gserviceaccount.com
  role: roles/secretmanager.secretAccessor
  config:
    project_id: acme-prod
database:
  instance: acme-main
  engine: postgres
  name: n8n
  user: n8n
  host: 10.20.0.3
service:
  name: n8n
  image: europe-west1-docker.pkg.dev/acme-prod/apps/n8n:1.64.0
  port: 5678
  url: https://n8n.example.com
protectedResources:
  - docmost
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "provops.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o600))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Path:           writeTestConfig(t),
		Logger:         logging.New(false, true),
		NonInteractive: true,
	}
}

func replaceOnce(t *testing.T, content []byte, old, new string) []byte {
	t.Helper()
	out := strings.Replace(string(content), old, new, 1)
	require.NotEqual(t, string(content), out, "replacement %q had no effect", old)
	return []byte(out)
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, content, 0o600))
}

func runCommand(t *testing.T, cmd *cobra.Command) error {
	t.Helper()
	cmd.SetArgs([]string{})
	return cmd.Execute()
}

// scriptedPrompter serves canned prompt answers and confirmation
// decisions.
type scriptedPrompter struct {
	answers  map[string]string
	confirm  bool
	prompted int
}

func (p *scriptedPrompter) Prompt(label string) (string, error) {
	p.prompted++
	return p.answers[label], nil
}

func (p *scriptedPrompter) Confirm(question string) (bool, error) {
	return p.confirm, nil
}

var _ resolve.Prompter = (*scriptedPrompter)(nil)
