package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(options{})
	require.NoError(t, err)

	id, err := cfg.Identity()
	require.NoError(t, err)
	require.Len(t, id.Secret, 16)
	require.NotEmpty(t, cfg.Device.UUID)
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
device:
  uuid: "7c8b1e2a-5f3d-4a6b-9c0e-1d2f3a4b5c6d"
  secret_hex: "813f956d0729a31a8620271e23d90822"
  default_tag: "file"
`), 0o600))

	cfg, err := loadConfig(options{
		ConfigFile: path,
		Secret:     "4bb273935ab602eace93a26db6ef0fde",
		Tag:        "flag",
		LogLevel:   "debug",
	})
	require.NoError(t, err)

	id, err := cfg.Identity()
	require.NoError(t, err)
	require.Equal(t, byte(0x4b), id.Secret[0])
	require.Equal(t, "7c8b1e2a-5f3d-4a6b-9c0e-1d2f3a4b5c6d", id.UUID.String())
	require.Equal(t, []byte("flag"), cfg.DefaultTag())
}

func TestLoadConfigRejectsBadSecret(t *testing.T) {
	_, err := loadConfig(options{Secret: "abcd"})
	require.Error(t, err)
}
