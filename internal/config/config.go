// Package config provides configuration management for the PDF translator.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"pdf-translator/internal/font"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "pdf-translator-config.json"
	// EnvAPIKey is the environment variable overriding the API key
	EnvAPIKey = "OPENAI_API_KEY"
	// EnvBaseURL is the environment variable overriding the API base URL
	EnvBaseURL = "OPENAI_BASE_URL"
	// DefaultBaseURL is the default chat completions base URL
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is the default chat model
	DefaultModel = "gpt-4o"
	// DefaultBatchSize is how many pages' detection buffers stay
	// resident at once.
	DefaultBatchSize = 8
	// DefaultConcurrency is the default translation request concurrency
	DefaultConcurrency = 3
	// DefaultTimeoutSeconds is the default per-request timeout
	DefaultTimeoutSeconds = 120
)

// FontPaths configures the font files for one language
type FontPaths struct {
	Primary  string `json:"primary"`
	Fallback string `json:"fallback,omitempty"`
}

// Config is the application configuration
type Config struct {
	APIKey         string               `json:"api_key"`
	BaseURL        string               `json:"base_url"`
	Model          string               `json:"model"`
	TimeoutSeconds int                  `json:"timeout_seconds"`
	Concurrency    int                  `json:"concurrency"`
	BatchSize      int                  `json:"batch_size"`
	SourceLang     string               `json:"source_lang"`
	TargetLang     string               `json:"target_lang"`
	Fonts          map[string]FontPaths `json:"fonts"`
	DefaultFont    string               `json:"default_font"`
}

// Manager loads, defaults and persists the configuration file
type Manager struct {
	configPath string
	config     *Config
}

// NewManager creates a Manager for the given path. An empty path uses
// the default location under the user's config directory.
func NewManager(configPath string) (*Manager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "pdf-translator", DefaultConfigFileName)
	}
	return &Manager{configPath: configPath, config: defaultConfig()}, nil
}

func defaultConfig() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		Model:          DefaultModel,
		TimeoutSeconds: DefaultTimeoutSeconds,
		Concurrency:    DefaultConcurrency,
		BatchSize:      DefaultBatchSize,
		SourceLang:     "en",
		TargetLang:     "ja",
		Fonts:          map[string]FontPaths{},
	}
}

// Load reads the config file, falling back to defaults when it is
// missing or malformed. Environment variables override the API key and
// base URL when the file leaves them empty.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.configPath)
	switch {
	case os.IsNotExist(err):
		logger.Info("config file not found, using defaults",
			logger.String("path", m.configPath))
		m.config = defaultConfig()
	case err != nil:
		return types.NewAppError(types.ErrConfig, "failed to read config file", err)
	default:
		cfg := &Config{}
		if err := json.Unmarshal(data, cfg); err != nil {
			logger.Warn("invalid config file format, using defaults",
				logger.String("path", m.configPath), logger.Err(err))
			m.config = defaultConfig()
		} else {
			m.config = cfg
		}
	}

	if m.config.Model == "" {
		m.config.Model = DefaultModel
	}
	if m.config.BaseURL == "" {
		m.config.BaseURL = DefaultBaseURL
	}
	if m.config.TimeoutSeconds <= 0 {
		m.config.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if m.config.Concurrency <= 0 {
		m.config.Concurrency = DefaultConcurrency
	}
	if m.config.BatchSize <= 0 {
		m.config.BatchSize = DefaultBatchSize
	}
	if m.config.SourceLang == "" {
		m.config.SourceLang = "en"
	}
	if m.config.TargetLang == "" {
		m.config.TargetLang = "ja"
	}
	if m.config.Fonts == nil {
		m.config.Fonts = map[string]FontPaths{}
	}

	if m.config.APIKey == "" {
		if key := os.Getenv(EnvAPIKey); key != "" {
			logger.Debug("API key taken from environment")
			m.config.APIKey = key
		}
	}
	if url := os.Getenv(EnvBaseURL); url != "" && m.config.BaseURL == DefaultBaseURL {
		m.config.BaseURL = url
	}
	return nil
}

// Save writes the current configuration to the config file
func (m *Manager) Save() error {
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrConfig, "failed to serialize config", err)
	}
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}
	logger.Info("configuration saved", logger.String("path", m.configPath))
	return nil
}

// Get returns the loaded configuration
func (m *Manager) Get() *Config {
	return m.config
}

// ConfigPath returns the path of the config file
func (m *Manager) ConfigPath() string {
	return m.configPath
}

// FontConfig converts the configured font mapping into the registry's
// config, normalizing language keys.
func (m *Manager) FontConfig() font.Config {
	fc := font.Config{
		Fonts:   make(map[types.Lang]font.Paths, len(m.config.Fonts)),
		Default: m.config.DefaultFont,
	}
	for code, paths := range m.config.Fonts {
		fc.Fonts[font.NormalizeLang(code)] = font.Paths{
			Primary:  paths.Primary,
			Fallback: paths.Fallback,
		}
	}
	return fc
}
