package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAIConfig_StoredWins(t *testing.T) {
	stored := map[string]string{
		KeyAPIURL:       "https://stored.example/v1",
		KeyTimeout:      "30",
		KeyProxyEnabled: "TRUE",
		KeyProxyURL:     "127.0.0.1:1080",
	}
	cfg := resolveAIConfig(stored, "https://env.example", "env-key", "env-model", time.Minute)

	assert.Equal(t, "https://stored.example/v1", cfg.APIURL)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "env-model", cfg.Model)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.True(t, cfg.ProxyEnabled)
	assert.Equal(t, DefaultOCRPrompt, cfg.OCRPrompt)
	assert.Equal(t, DefaultAnalysisPrompt, cfg.AnalysisPrompt)
}

func TestResolveModel(t *testing.T) {
	assert.Equal(t, "a", resolveModel(map[string]string{KeyDefaultModel: "a", KeyModels: `["b"]`}, "env"))
	assert.Equal(t, "b", resolveModel(map[string]string{KeyModels: `[" ", "b"]`}, "env"))
	assert.Equal(t, "env", resolveModel(map[string]string{KeyModels: `not json`}, "env"))
	assert.Equal(t, fallbackModel, resolveModel(nil, ""))
}

func TestSettings_SaveAndGet(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.svc.Settings.Get(ctx, KeyOCRPrompt)
	assert.Equal(t, http.StatusNotFound, statusCode(t, err))

	require.NoError(t, h.svc.Settings.Save(ctx, KeyOCRPrompt, "v1"))
	require.NoError(t, h.svc.Settings.Save(ctx, KeyOCRPrompt, "v2"))
	v, err := h.svc.Settings.Get(ctx, KeyOCRPrompt)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	err = h.svc.Settings.Save(ctx, " ", "x")
	assert.Equal(t, http.StatusBadRequest, statusCode(t, err))
}
