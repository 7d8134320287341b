package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/types"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	require.NoError(t, m.Load())

	cfg := m.Get()
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, "en", cfg.SourceLang)
	assert.Equal(t, "ja", cfg.TargetLang)
}

func TestLoadFileAndDefaultBackfill(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"api_key": "sk-test",
		"target_lang": "zh-CN",
		"batch_size": 2,
		"fonts": {"ja": {"primary": "/fonts/noto-jp.ttf"}}
	}`), 0600))

	m, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, m.Load())

	cfg := m.Get()
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "zh-CN", cfg.TargetLang)
	assert.Equal(t, 2, cfg.BatchSize)
	// Unset fields are backfilled
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
}

func TestLoadMalformedFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	m, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, m.Load())
	assert.Equal(t, DefaultModel, m.Get().Model)
}

func TestEnvironmentOverridesEmptyKey(t *testing.T) {
	t.Setenv(EnvAPIKey, "sk-env")

	m, err := NewManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	require.NoError(t, m.Load())
	assert.Equal(t, "sk-env", m.Get().APIKey)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	m, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, m.Load())

	m.Get().APIKey = "sk-saved"
	require.NoError(t, m.Save())

	m2, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, m2.Load())
	assert.Equal(t, "sk-saved", m2.Get().APIKey)
}

func TestFontConfigNormalizesLanguages(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	require.NoError(t, m.Load())
	m.Get().Fonts = map[string]FontPaths{
		"ja-JP": {Primary: "/fonts/jp.ttf", Fallback: "/fonts/jp2.ttf"},
		"en":    {Primary: "/fonts/latin.ttf"},
	}
	m.Get().DefaultFont = "/fonts/default.ttf"

	fc := m.FontConfig()
	assert.Equal(t, "/fonts/jp.ttf", fc.Fonts[types.LangJapanese].Primary)
	assert.Equal(t, "/fonts/latin.ttf", fc.Fonts[types.LangEnglish].Primary)
	assert.Equal(t, "/fonts/default.ttf", fc.Default)
}
