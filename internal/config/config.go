package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	d := DefaultConfig()

	viper.SetDefault("log.level", d.Log.Level)
	viper.SetDefault("log.format", d.Log.Format)
	viper.SetDefault("books.timestamp_ids", d.Books.TimestampIDs)
	viper.SetDefault("chapters.max_minutes", d.Chapters.MaxMinutes)
	viper.SetDefault("chunking.max_chars", d.Chunking.MaxChars)
	viper.SetDefault("synthesis.engine", d.Synthesis.Engine)
	viper.SetDefault("synthesis.voice", d.Synthesis.Voice)
	viper.SetDefault("synthesis.workers", d.Synthesis.Workers)
	viper.SetDefault("synthesis.chunk_timeout_seconds", d.Synthesis.ChunkTimeoutSeconds)
	viper.SetDefault("synthesis.length_scale", d.Synthesis.LengthScale)
	viper.SetDefault("synthesis.noise_scale", d.Synthesis.NoiseScale)
	viper.SetDefault("synthesis.noise_w", d.Synthesis.NoiseW)
	viper.SetDefault("synthesis.sentence_silence", d.Synthesis.SentenceSilence)
	viper.SetDefault("synthesis.piper.binary", d.Synthesis.Piper.Binary)
	viper.SetDefault("synthesis.piper.command", d.Synthesis.Piper.Command)
	viper.SetDefault("synthesis.piper.voices_dir", d.Synthesis.Piper.VoicesDir)
	viper.SetDefault("synthesis.http.url", d.Synthesis.HTTP.URL)
	viper.SetDefault("synthesis.http.timeout_seconds", d.Synthesis.HTTP.TimeoutSeconds)
	viper.SetDefault("synthesis.openai.model", d.Synthesis.OpenAI.Model)
	viper.SetDefault("synthesis.openai.api_key", d.Synthesis.OpenAI.APIKey)
	viper.SetDefault("synthesis.openai.speed", d.Synthesis.OpenAI.Speed)
	viper.SetDefault("audio.silence_seconds", d.Audio.SilenceSeconds)
	viper.SetDefault("engine.container_name", d.Engine.ContainerName)
	viper.SetDefault("engine.image", d.Engine.Image)
	viper.SetDefault("engine.port", d.Engine.Port)

	// Environment variables with LECTERN_ prefix, dots become underscores
	// (LECTERN_SYNTHESIS_WORKERS=4 overrides synthesis.workers).
	viper.SetEnvPrefix("LECTERN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.lectern")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ResolvedOpenAIKey returns the OpenAI API key with ${ENV_VAR} references expanded.
func (c *Config) ResolvedOpenAIKey() string {
	return ResolveEnvVars(c.Synthesis.OpenAI.APIKey)
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Lectern configuration
# Values use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENAI_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
