package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/checkup")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "/tmp/checkup/checkup.db", cfg.DatabasePath)
	assert.Equal(t, "local", cfg.StorageBackend)
	assert.Equal(t, 2*time.Second, cfg.OCRRequestDelay)
	assert.Equal(t, 120*time.Second, cfg.AITimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OCR_REQUEST_DELAY_MS", "0")
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("STORAGE_BACKEND", "s3")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Zero(t, cfg.OCRRequestDelay)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, "s3", cfg.StorageBackend)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("WORKER_COUNT", "many")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_UnknownBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "ftp")
	_, err := Load()
	assert.Error(t, err)
}
