package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "data/tasktracker.db", cfg.Store.Path)
	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Addr)
	assert.Equal(t, "/api/v1", cfg.Server.BasePath)
	assert.Equal(t, "none", cfg.Telemetry.Traces)
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestFromYAMLOverridesOnlyGivenFields(t *testing.T) {
	cfg, err := FromYAML([]byte(`store:
  path: /tmp/other.db
log:
  format: json
`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Store.Path)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "/api/v1", cfg.Server.BasePath)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"base path":  "server:\n  base_path: api\n",
		"log level":  "log:\n  level: loud\n",
		"log format": "log:\n  format: xml\n",
		"traces":     "telemetry:\n  traces: zipkin\n",
		"store path": "store:\n  path: \"  \"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Seed.File = "custom.yaml"
	out, err := cfg.YAML()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "tracker.yml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o644))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
