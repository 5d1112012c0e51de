package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vast-Academy/account-android-app-backend/internal/constants"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `{
	"auth": {"verify_url": "http://auth.local/verify"},
	"push": {"gateway_url": "http://push.local"},
	"database": {"path": "/tmp/accountd.db"}
}`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "http://auth.local/verify", cfg.Auth.VerifyURL)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, constants.DefaultRetentionDays, cfg.RetentionDays)
	assert.Equal(t, constants.DefaultPushTimeoutSec, cfg.Push.TimeoutSec)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigMissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "missing auth url",
			content: `{"push": {"gateway_url": "http://push.local"}, "database": {"path": "/tmp/db"}}`,
			wantErr: ErrMissingAuthVerifyURL,
		},
		{
			name:    "missing push url",
			content: `{"auth": {"verify_url": "http://auth.local"}, "database": {"path": "/tmp/db"}}`,
			wantErr: ErrMissingPushGatewayURL,
		},
		{
			name:    "missing db path",
			content: `{"auth": {"verify_url": "http://auth.local"}, "push": {"gateway_url": "http://push.local"}}`,
			wantErr: ErrMissingDBPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/var/lib/accountd/override.db")
	t.Setenv("PUSH_GATEWAY_URL", "http://push.override")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/lib/accountd/override.db", cfg.Database.Path)
	assert.Equal(t, "http://push.override", cfg.Push.GatewayURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigBadJSON(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "{not json"))
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
