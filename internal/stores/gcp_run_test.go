package stores

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactTagName(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{
			name: "tagged image",
			ref:  "europe-west1-docker.pkg.dev/acme-prod/apps/n8n:1.64.0",
			want: "projects/acme-prod/locations/europe-west1/repositories/apps/packages/n8n/tags/1.64.0",
		},
		{
			name: "untagged defaults to latest",
			ref:  "europe-west1-docker.pkg.dev/acme-prod/apps/n8n",
			want: "projects/acme-prod/locations/europe-west1/repositories/apps/packages/n8n/tags/latest",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := artifactTagName(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArtifactTagNameRejectsForeignRegistries(t *testing.T) {
	for _, ref := range []string{
		"docker.io/library/nginx:latest",
		"gcr.io/acme-prod/n8n:1.64.0",
		"europe-west1-docker.pkg.dev/acme-prod/n8n:1.64.0", // missing repo segment
	} {
		_, err := artifactTagName(ref)
		assert.Error(t, err, ref)
	}
}

func TestQuoteIdentifiers(t *testing.T) {
	assert.Equal(t, `"n8n"`, quoteIdent("n8n"))
	assert.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
	assert.Equal(t, "`n8n`", backquoteIdent("n8n"))
}
