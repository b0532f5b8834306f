package registry

import (
	"fmt"
	"strconv"

	"github.com/systmms/provops/internal/config"
	"github.com/systmms/provops/internal/secure"
)

// EncryptionKeyLength is the size of generated application encryption keys.
const EncryptionKeyLength = 32

// ForDeployment builds the canonical variable set for one deployment from
// the loaded configuration. Definition order matters: derived rules may only
// reference names defined above them.
func ForDeployment(def *config.Definition) (*Registry, error) {
	r := New()

	dbType := "postgresdb"
	if def.Database.Engine == "mysql" {
		dbType = "mysqldb"
	}

	if err := r.Define("DB_TYPE", Rule{Kind: KindStatic, Static: dbType}); err != nil {
		return nil, err
	}
	if err := r.Define("DB_NAME", Rule{
		Kind:     KindStatic,
		Static:   def.Database.Name,
		Resource: ResourceDatabase,
	}); err != nil {
		return nil, err
	}
	if err := r.Define("DB_USER", Rule{
		Kind:     KindStatic,
		Static:   def.Database.User,
		Resource: ResourceUser,
	}); err != nil {
		return nil, err
	}
	if err := r.Define("DB_HOST", Rule{
		Kind:     KindStatic,
		Static:   def.Database.Host,
		Optional: true,
	}); err != nil {
		return nil, err
	}
	if err := r.Define("DB_PORT", Rule{
		Kind:   KindStatic,
		Static: strconv.Itoa(def.DatabasePort()),
	}); err != nil {
		return nil, err
	}
	if err := r.Define("DB_PASSWORD", Rule{
		Kind:   KindInteractive,
		Prompt: "Password for the application database user",
	}); err != nil {
		return nil, err
	}

	scheme := "postgresql"
	if def.Database.Engine == "mysql" {
		scheme = "mysql"
	}
	if err := r.Define("DATABASE_URL", Rule{
		Kind:      KindDerived,
		DependsOn: []string{"DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME"},
		Optional:  true,
		Derive: func(resolved map[string]string) string {
			host := resolved["DB_HOST"]
			if host == "" {
				// No host known yet; the URL cannot be formed.
				return ""
			}
			return fmt.Sprintf("%s://%s:%s@%s:%s/%s",
				scheme,
				resolved["DB_USER"], resolved["DB_PASSWORD"],
				host, resolved["DB_PORT"], resolved["DB_NAME"])
		},
	}); err != nil {
		return nil, err
	}

	if err := r.Define("N8N_ENCRYPTION_KEY", Rule{
		Kind: KindGenerated,
		Generate: func() (string, error) {
			return secure.RandomString(EncryptionKeyLength)
		},
	}); err != nil {
		return nil, err
	}

	executionsMode := def.App.ExecutionsMode
	if executionsMode == "" {
		executionsMode = "regular"
	}
	if err := r.Define("EXECUTIONS_MODE", Rule{Kind: KindStatic, Static: executionsMode}); err != nil {
		return nil, err
	}
	if err := r.Define("WEBHOOK_URL", Rule{
		Kind:     KindStatic,
		Static:   def.Service.URL,
		Optional: true,
	}); err != nil {
		return nil, err
	}
	if err := r.Define("GENERIC_TIMEZONE", Rule{
		Kind:     KindStatic,
		Static:   def.App.Timezone,
		Optional: true,
	}); err != nil {
		return nil, err
	}

	for _, v := range def.Variables {
		rule := Rule{Kind: KindStatic, Static: v.Static, Optional: v.Optional}
		if v.Prompt != "" {
			rule = Rule{Kind: KindInteractive, Prompt: v.Prompt}
		}
		if err := r.Define(v.Name, rule); err != nil {
			return nil, err
		}
	}

	return r, nil
}
