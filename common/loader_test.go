package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP("sid", "s", "", "")
	fs.StringP("instance", "i", "", "")
	fs.StringP("password", "p", "", "")
	fs.StringP("remote", "r", "", "")
	fs.StringP("config", "c", "", "")
	return fs
}

func TestLoadConfig_JSONFile(t *testing.T) {
	path := writeConfig(t, "conf.json", `{"sid": "PRD", "instance": 0, "password": "Qwerty1234", "remote": "hana02"}`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "PRD", cfg.SID)
	assert.Equal(t, "0", cfg.Instance)
	assert.Equal(t, "hana02", cfg.Remote)
	assert.Equal(t, "info", cfg.Verbosity)

	id, err := cfg.Identity()
	require.NoError(t, err)
	assert.Equal(t, "00", id.Instance)
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	path := writeConfig(t, "conf.yaml", "sid: QAS\ninstance: \"10\"\npassword: pw\n")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "QAS", cfg.SID)
	assert.Equal(t, "10", cfg.Instance)
	assert.Empty(t, cfg.Remote)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeConfig(t, "conf.json", `{"sid": "PRD", "instance": "00", "password": "file-pw"}`)
	t.Setenv("SAPSTEWARD_PASSWORD", "env-pw")
	t.Setenv("SAPSTEWARD_INSTANCE", "01")

	fs := newFlagSet()
	require.NoError(t, fs.Parse([]string{"--instance", "02", "--config", path}))

	cfg, err := LoadConfig(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "PRD", cfg.SID, "file value survives")
	assert.Equal(t, "env-pw", cfg.Password, "env overrides file")
	assert.Equal(t, "02", cfg.Instance, "flag overrides env")
}

func TestLoadConfig_UnsetFlagsDoNotOverride(t *testing.T) {
	path := writeConfig(t, "conf.json", `{"sid": "PRD", "instance": "00", "password": "pw"}`)

	fs := newFlagSet()
	require.NoError(t, fs.Parse(nil))

	cfg, err := LoadConfig(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "PRD", cfg.SID)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("unsupported extension", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "conf.toml", "sid = 1"), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})
}

func TestConfigIdentity_Missing(t *testing.T) {
	cfg := &Config{SID: "PRD"}
	assert.Equal(t, []string{"instance", "password"}, cfg.Missing())

	_, err := cfg.Identity()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "missing: instance, password")
}

func TestLoadConfig_LogLevelDefault(t *testing.T) {
	t.Setenv("SAPSTEWARD_LOG_LEVEL", "debug")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Verbosity)

	t.Setenv("SAPSTEWARD_VERBOSITY", "warn")
	cfg, err = LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Verbosity)
}
