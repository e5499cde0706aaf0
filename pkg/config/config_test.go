package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("PORT", "9090")
	t.Setenv("ASSETS_ALLOWED_MIME_TYPES", "image/png, image/jpeg ,")
	t.Setenv("CARD_PREVIEW_CACHE_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, []string{"image/png", "image/jpeg"}, cfg.Assets.AllowedMIMEs)
	assert.Equal(t, int64(5*1024*1024), cfg.Assets.MaxFileSizeBytes)
	assert.Equal(t, 10*time.Minute, cfg.Cards.PreviewCacheTTL)
	assert.Equal(t, 2, cfg.Cards.WorkerConcurrency)
	assert.Equal(t, 24*time.Hour, cfg.Exports.SignedURLTTL)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a ,b,, "))
}
