// Package config loads the fragreel configuration from defaults, an optional
// YAML/JSON/TOML file and FRAGREEL_* environment variables, in that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server" toml:"server"`
	Storage  StorageConfig  `yaml:"storage" json:"storage" toml:"storage"`
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline" toml:"pipeline"`
	Journal  JournalConfig  `yaml:"journal" json:"journal" toml:"journal"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging" toml:"logging"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string        `yaml:"host" json:"host" toml:"host" env:"FRAGREEL_HOST"`
	Port         int           `yaml:"port" json:"port" toml:"port" env:"FRAGREEL_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" toml:"read_timeout" env:"FRAGREEL_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" toml:"write_timeout" env:"FRAGREEL_WRITE_TIMEOUT"`
	// DownloadTimeout replaces WriteTimeout for montage downloads
	DownloadTimeout time.Duration `yaml:"download_timeout" json:"download_timeout" toml:"download_timeout" env:"FRAGREEL_DOWNLOAD_TIMEOUT"`
	MaxUploadSize   int64         `yaml:"max_upload_size" json:"max_upload_size" toml:"max_upload_size" env:"FRAGREEL_MAX_UPLOAD_SIZE"`
	EnableCORS      bool          `yaml:"enable_cors" json:"enable_cors" toml:"enable_cors" env:"FRAGREEL_ENABLE_CORS"`
	AllowedOrigins  []string      `yaml:"allowed_origins" json:"allowed_origins" toml:"allowed_origins" env:"FRAGREEL_ALLOWED_ORIGINS"`
}

// StorageConfig describes the three storage areas. Relative area paths are
// resolved against DataDir.
type StorageConfig struct {
	DataDir         string   `yaml:"data_dir" json:"data_dir" toml:"data_dir" env:"FRAGREEL_DATA_DIR"`
	IncomingDir     string   `yaml:"incoming_dir" json:"incoming_dir" toml:"incoming_dir" env:"FRAGREEL_INCOMING_DIR"`
	ClipsDir        string   `yaml:"clips_dir" json:"clips_dir" toml:"clips_dir" env:"FRAGREEL_CLIPS_DIR"`
	ArtifactsDir    string   `yaml:"artifacts_dir" json:"artifacts_dir" toml:"artifacts_dir" env:"FRAGREEL_ARTIFACTS_DIR"`
	IsolateJobClips bool     `yaml:"isolate_job_clips" json:"isolate_job_clips" toml:"isolate_job_clips" env:"FRAGREEL_ISOLATE_JOB_CLIPS"`
	VideoExtensions []string `yaml:"video_extensions" json:"video_extensions" toml:"video_extensions" env:"FRAGREEL_VIDEO_EXTENSIONS"`
	AudioExtensions []string `yaml:"audio_extensions" json:"audio_extensions" toml:"audio_extensions" env:"FRAGREEL_AUDIO_EXTENSIONS"`
}

// PipelineConfig configures the process-backed stage collaborators
type PipelineConfig struct {
	DetectorCommand string        `yaml:"detector_command" json:"detector_command" toml:"detector_command" env:"FRAGREEL_DETECTOR_COMMAND"`
	DetectorArgs    []string      `yaml:"detector_args" json:"detector_args" toml:"detector_args" env:"FRAGREEL_DETECTOR_ARGS"`
	ModelPath       string        `yaml:"model_path" json:"model_path" toml:"model_path" env:"FRAGREEL_MODEL_PATH"`
	FFmpegPath      string        `yaml:"ffmpeg_path" json:"ffmpeg_path" toml:"ffmpeg_path" env:"FFMPEG_PATH"`
	ClipBefore      time.Duration `yaml:"clip_before" json:"clip_before" toml:"clip_before" env:"FRAGREEL_CLIP_BEFORE"`
	ClipAfter       time.Duration `yaml:"clip_after" json:"clip_after" toml:"clip_after" env:"FRAGREEL_CLIP_AFTER"`
}

// JournalConfig configures the job event journal
type JournalConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" toml:"enabled" env:"FRAGREEL_JOURNAL_ENABLED"`
	Driver  string `yaml:"driver" json:"driver" toml:"driver" env:"FRAGREEL_JOURNAL_DRIVER"`
	DSN     string `yaml:"dsn" json:"dsn" toml:"dsn" env:"FRAGREEL_JOURNAL_DSN"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" toml:"level" env:"FRAGREEL_LOG_LEVEL"`
	Format string `yaml:"format" json:"format" toml:"format" env:"FRAGREEL_LOG_FORMAT"`
	Output string `yaml:"output" json:"output" toml:"output" env:"FRAGREEL_LOG_OUTPUT"`
}

// ConfigManager manages application configuration with hot-reload support
type ConfigManager struct {
	config     *Config
	configPath string
	watchers   []ConfigWatcher
	mu         sync.RWMutex
}

// ConfigWatcher is called when configuration changes
type ConfigWatcher func(oldConfig, newConfig *Config)

// NewConfigManager creates a new configuration manager holding the defaults
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config:   DefaultConfig(),
		watchers: make([]ConfigWatcher, 0),
	}
}

// DefaultConfig returns the default application configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			ReadTimeout:     10 * time.Minute,
			WriteTimeout:    10 * time.Minute,
			DownloadTimeout: 2 * time.Hour,
			MaxUploadSize:   500 * 1024 * 1024, // 500MB
			EnableCORS:      true,
			AllowedOrigins:  []string{"*"},
		},
		Storage: StorageConfig{
			DataDir:         "./data",
			IncomingDir:     "uploads",
			ClipsDir:        "kill_clips",
			ArtifactsDir:    "output",
			IsolateJobClips: true,
			VideoExtensions: []string{"mp4", "mov", "avi"},
			AudioExtensions: []string{"mp3", "wav"},
		},
		Pipeline: PipelineConfig{
			DetectorCommand: "python3",
			DetectorArgs:    []string{"detect_kills.py"},
			ModelPath:       "best.pt",
			FFmpegPath:      "ffmpeg",
			ClipBefore:      3 * time.Second,
			ClipAfter:       2 * time.Second,
		},
		Journal: JournalConfig{
			Enabled: true,
			Driver:  "sqlite",
			DSN:     ":memory:",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func (cm *ConfigManager) LoadConfig(configPath string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	newConfig, err := buildConfig(configPath)
	if err != nil {
		return err
	}

	oldConfig := cm.config
	cm.config = newConfig
	cm.configPath = configPath

	for _, watcher := range cm.watchers {
		watcher(oldConfig, newConfig)
	}
	return nil
}

func buildConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	applyDerivedConfig(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// GetConfig returns a copy of the current configuration
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	configCopy := *cm.config
	return &configCopy
}

// Path returns the file the configuration was loaded from, if any
func (cm *ConfigManager) Path() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.configPath
}

// AddWatcher adds a configuration change watcher
func (cm *ConfigManager) AddWatcher(watcher ConfigWatcher) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.watchers = append(cm.watchers, watcher)
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.DownloadTimeout <= 0 {
		return fmt.Errorf("invalid download timeout: %s", c.Server.DownloadTimeout)
	}
	if c.Server.MaxUploadSize <= 0 {
		return fmt.Errorf("invalid max upload size: %d", c.Server.MaxUploadSize)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage data_dir is required")
	}
	if len(c.Storage.VideoExtensions) == 0 || len(c.Storage.AudioExtensions) == 0 {
		return fmt.Errorf("video and audio extension lists must not be empty")
	}
	if c.Pipeline.ClipBefore < 0 || c.Pipeline.ClipAfter < 0 {
		return fmt.Errorf("clip padding must not be negative")
	}
	if c.Pipeline.ClipBefore+c.Pipeline.ClipAfter <= 0 {
		return fmt.Errorf("clip window must be longer than zero")
	}
	if c.Journal.Enabled && c.Journal.Driver != "sqlite" && c.Journal.Driver != "postgres" {
		return fmt.Errorf("unsupported journal driver: %s", c.Journal.Driver)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %s", c.Logging.Format)
	}
	return nil
}

// AreaPath resolves a storage area directory against the data directory
func (s StorageConfig) AreaPath(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(s.DataDir, dir)
}

func loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	case ".json":
		return json.Unmarshal(data, config)
	case ".toml":
		return toml.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
}

// loadStructFromEnv overrides fields whose env variable is set. Unset
// variables leave file and default values alone.
func loadStructFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue, ok := os.LookupEnv(envTag)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(intVal)
		}
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolVal)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %v", field.Type())
		}
		values := strings.Split(value, ",")
		for i, v := range values {
			values[i] = strings.TrimSpace(v)
		}
		field.Set(reflect.ValueOf(values))
	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}

	return nil
}

func applyDerivedConfig(config *Config) {
	config.Logging.Level = strings.ToLower(strings.TrimSpace(config.Logging.Level))
	config.Logging.Format = strings.ToLower(strings.TrimSpace(config.Logging.Format))

	normalize := func(exts []string) []string {
		out := make([]string, 0, len(exts))
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
			if ext != "" {
				out = append(out, ext)
			}
		}
		return out
	}
	config.Storage.VideoExtensions = normalize(config.Storage.VideoExtensions)
	config.Storage.AudioExtensions = normalize(config.Storage.AudioExtensions)
}
