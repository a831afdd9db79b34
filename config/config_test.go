package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
[jwt]
secret = "test-secret"

[storage]
bucket = "media"
access_key_id = "key"
secret_access_key = "secret"
max_usage = 2

[upload]
max_size = 1
allowed_types = ["image/*"]
`

func flagsFor(t *testing.T, content string) *pflag.FlagSet {
	t.Helper()

	p := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.Int("port", 8080, "")
	require.NoError(t, fs.Parse([]string{"--config", p}))

	return fs
}

func TestSetupConvertsSizes(t *testing.T) {
	require.NoError(t, Setup(flagsFor(t, validConfig)))

	assert.Equal(t, int64(2<<20), v.GetInt64("storage.max_usage"))
	assert.Equal(t, int64(1<<20), v.GetInt64("upload.max_size"))
	assert.Equal(t, []string{"image/*"}, v.GetStringSlice("upload.allowed_types"))
	assert.Equal(t, time.Hour, v.GetDuration("storage.url_lifetime"))
	assert.Equal(t, "sqlite", v.GetString("database.driver"))
	assert.Equal(t, 8080, v.GetInt("host.port"))
}

func TestSetupEnvOverridesFile(t *testing.T) {
	t.Setenv("STORAGE_BUCKET", "from-env")

	require.NoError(t, Setup(flagsFor(t, validConfig)))
	assert.Equal(t, "from-env", v.GetString("storage.bucket"))
}

func TestSetupRejectsMissingSecret(t *testing.T) {
	err := Setup(flagsFor(t, `
[storage]
bucket = "media"
`))
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestSetupRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"log level": validConfig + "\n[app]\nlog_level = \"loud\"\n",
		"driver":    validConfig + "\n[database]\ndriver = \"mysql\"\n",
		"workers":   validConfig + "\n[sync]\nworkers = 0\n",
		"lifetime":  "[jwt]\nsecret = \"s\"\n[storage]\nbucket = \"b\"\naccess_key_id = \"k\"\nsecret_access_key = \"s\"\nurl_lifetime = \"10s\"\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Setup(flagsFor(t, content)))
		})
	}
}

func TestLoadClientWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CLIENT_TOKEN", "abc")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("project", "default", "")
	require.NoError(t, fs.Parse([]string{"--project", "film"}))

	require.NoError(t, LoadClient(fs))
	assert.Equal(t, "abc", v.GetString("client.token"))
	assert.Equal(t, "film", v.GetString("client.project"))
	assert.Equal(t, "http://localhost:8080", v.GetString("client.api_url"))
}
