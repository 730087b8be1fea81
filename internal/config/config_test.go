package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStorageDefaults(t *testing.T) {
	cfg, err := ParseStorage([]string{"9999"})
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.ListenPort)
	require.False(t, cfg.Reset)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestParseStorageWithFlags(t *testing.T) {
	cfg, err := ParseStorage([]string{"9999", "--reset", "--log-level=debug"})
	require.NoError(t, err)
	require.True(t, cfg.Reset)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestParseStorageMissingPort(t *testing.T) {
	_, err := ParseStorage(nil)
	require.Error(t, err)
}

func TestParseStorageInvalidPort(t *testing.T) {
	_, err := ParseStorage([]string{"not-a-port"})
	require.Error(t, err)
}

func TestParseAPIDefaults(t *testing.T) {
	cfg, err := ParseAPI([]string{"8080", "9999"})
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.ListenPort)
	require.Equal(t, 9999, cfg.StoragePort)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestParseAPIMissingArgs(t *testing.T) {
	_, err := ParseAPI([]string{"8080"})
	require.Error(t, err)
}

func TestParseAPIPortOutOfRange(t *testing.T) {
	_, err := ParseAPI([]string{"8080", "99999"})
	require.Error(t, err)
}
