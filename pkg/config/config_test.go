package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varinode/pkg/errs"
)

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"all secrets", Config{AppKey: "k", AppSecret: "s", AppPrivateSecret: "p"}, true},
		{"missing key", Config{AppSecret: "s", AppPrivateSecret: "p"}, false},
		{"missing secret", Config{AppKey: "k", AppPrivateSecret: "p"}, false},
		{"missing private secret", Config{AppKey: "k", AppSecret: "s"}, false},
		{"empty", Config{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.IsConfigured())
		})
	}
}

func TestValidate(t *testing.T) {
	err := (&Config{AppKey: "k"}).Validate()
	require.Error(t, err)
	assert.Equal(t, errs.NotConfigured, errs.Code(err))

	assert.NoError(t, New("k", "s", "p").Validate())
}

func TestNewDefaults(t *testing.T) {
	cfg := New("k", "s", "p")

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultPrivateBaseURL, cfg.PrivateBaseURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("VARINODE_APP_KEY", "k-env")
	t.Setenv("VARINODE_APP_SECRET", "s-env")
	t.Setenv("VARINODE_APP_PRIVATE_SECRET", "p-env")
	t.Setenv("VARINODE_DEBUG", "true")
	t.Setenv("VARINODE_BASE_URL", "http://api.test")

	cfg := FromEnv()
	assert.True(t, cfg.IsConfigured())
	assert.Equal(t, "k-env", cfg.AppKey)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "http://api.test", cfg.BaseURL)
	assert.Equal(t, DefaultPrivateBaseURL, cfg.PrivateBaseURL)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "varinode.yaml")
	data := `
app_key: k-yaml
app_secret: s-yaml
app_private_secret: p-yaml
debug: true
base_url: http://api.yaml.test
timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.IsConfigured())
	assert.Equal(t, "k-yaml", cfg.AppKey)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "http://api.yaml.test", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, DefaultPrivateBaseURL, cfg.PrivateBaseURL)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
