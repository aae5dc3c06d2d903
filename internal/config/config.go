package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to config keys when reading overrides from the environment.
const EnvPrefix = "TALKPASTE"

// Config holds configurable parameters.
type Config struct {
	Provider       string `json:"PROVIDER" mapstructure:"PROVIDER" validate:"oneof=openai http"`
	APIEndpoint    string `json:"API_ENDPOINT" mapstructure:"API_ENDPOINT" validate:"omitempty,url"`
	Token          string `json:"TOKEN" mapstructure:"TOKEN"`
	Model          string `json:"MODEL" mapstructure:"MODEL"`
	Language       string `json:"LANGUAGE" mapstructure:"LANGUAGE"`
	Prompt         string `json:"PROMPT" mapstructure:"PROMPT"`
	TEXTPath       string `json:"TEXT_PATH" mapstructure:"TEXT_PATH"`
	ExtraConfig    string `json:"ExtraConfig" mapstructure:"ExtraConfig"`
	VocabularyPath string `json:"VOCABULARY_PATH" mapstructure:"VOCABULARY_PATH"`

	DeviceID            int     `json:"DEVICE_ID" mapstructure:"DEVICE_ID" validate:"gte=-1"`
	Hotkey              string  `json:"HOTKEY" mapstructure:"HOTKEY" validate:"required"`
	SampleRate          int     `json:"SAMPLING_RATE" mapstructure:"SAMPLING_RATE" validate:"gte=8000,lte=192000"`
	UploadSampleRate    int     `json:"UPLOAD_SAMPLE_RATE" mapstructure:"UPLOAD_SAMPLE_RATE" validate:"eq=0|gte=8000,lte=192000"`
	FramesPerBuffer     int     `json:"FRAMES_PER_BUFFER" mapstructure:"FRAMES_PER_BUFFER" validate:"gte=64,lte=16384"`
	MaxRecordingSeconds float64 `json:"MAX_RECORDING_SECONDS" mapstructure:"MAX_RECORDING_SECONDS" validate:"gt=0"`
	MinRecordingSeconds float64 `json:"MIN_RECORDING_SECONDS" mapstructure:"MIN_RECORDING_SECONDS" validate:"gte=0"`
	SilenceThresholdDB  float64 `json:"SILENCE_THRESHOLD_DB" mapstructure:"SILENCE_THRESHOLD_DB" validate:"lte=0"`
	BoostDB             float64 `json:"BOOST_DB" mapstructure:"BOOST_DB" validate:"gte=-30,lte=30"`
	Normalize           bool    `json:"NORMALIZE" mapstructure:"NORMALIZE"`

	Workers        int  `json:"WORKERS" mapstructure:"WORKERS" validate:"gte=1,lte=8"`
	QueueSize      int  `json:"QUEUE_SIZE" mapstructure:"QUEUE_SIZE" validate:"gte=0"`
	RequestTimeout int  `json:"REQUEST_TIMEOUT" mapstructure:"REQUEST_TIMEOUT" validate:"gte=1"`
	EnableHTTP2    bool `json:"ENABLE_HTTP2" mapstructure:"ENABLE_HTTP2"`
	VerifySSL      bool `json:"VERIFY_SSL" mapstructure:"VERIFY_SSL"`

	CacheDir         string `json:"CACHE_DIR" mapstructure:"CACHE_DIR"`
	KeepCache        bool   `json:"KEEP_CACHE" mapstructure:"KEEP_CACHE"`
	Notification     bool   `json:"NOTIFICATION" mapstructure:"NOTIFICATION"`
	Sound            bool   `json:"SOUND" mapstructure:"SOUND"`
	RestoreClipboard bool   `json:"RESTORE_CLIPBOARD" mapstructure:"RESTORE_CLIPBOARD"`
	StatusAddr       string `json:"STATUS_ADDR" mapstructure:"STATUS_ADDR" validate:"omitempty,hostname_port"`

	LogLevel   string `json:"LOG_LEVEL" mapstructure:"LOG_LEVEL" validate:"oneof=trace debug info warn error"`
	LogFile    string `json:"LOG_FILE" mapstructure:"LOG_FILE"`
	LogNoColor bool   `json:"LOG_NO_COLOR" mapstructure:"LOG_NO_COLOR"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Provider:            "openai",
		APIEndpoint:         "",
		Token:               "",
		Model:               "whisper-1",
		Language:            "",
		Prompt:              "",
		TEXTPath:            "text",
		ExtraConfig:         "",
		VocabularyPath:      "",
		DeviceID:            -1,
		Hotkey:              "ctrl_r+alt_gr",
		SampleRate:          44100,
		UploadSampleRate:    16000,
		FramesPerBuffer:     2048,
		MaxRecordingSeconds: 300,
		MinRecordingSeconds: 0.3,
		SilenceThresholdDB:  -60,
		BoostDB:             0,
		Normalize:           false,
		Workers:             1,
		QueueSize:           0,
		RequestTimeout:      30,
		EnableHTTP2:         true,
		VerifySSL:           true,
		CacheDir:            "",
		KeepCache:           false,
		Notification:        false,
		Sound:               true,
		RestoreClipboard:    true,
		StatusAddr:          "",
		LogLevel:            "info",
		LogFile:             "",
		LogNoColor:          false,
	}
}

// MaxDuration is the max recording length as a time.Duration.
func (c Config) MaxDuration() time.Duration {
	return time.Duration(c.MaxRecordingSeconds * float64(time.Second))
}

// MinDuration is the shortest recording that is sent for transcription.
func (c Config) MinDuration() time.Duration {
	return time.Duration(c.MinRecordingSeconds * float64(time.Second))
}

// Timeout is the per-request transcription timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Load reads the JSON config at path (optional), environment overrides and
// the .env file next to it. Missing keys keep their defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	envFile := ".env"
	if path != "" {
		envFile = filepath.Join(filepath.Dir(path), ".env")
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for key, val := range defaultsMap(cfg) {
		v.SetDefault(key, val)
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return cfg, err
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Token == "" && cfg.Provider == "openai" {
		cfg.Token = os.Getenv("OPENAI_API_KEY")
	}
	return cfg, nil
}

// defaultsMap turns the default config into viper keys via the mapstructure tags.
func defaultsMap(cfg Config) map[string]interface{} {
	out := make(map[string]interface{})
	rv := reflect.ValueOf(cfg)
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		tag := rt.Field(i).Tag.Get("mapstructure")
		if tag == "" {
			continue
		}
		out[tag] = rv.Field(i).Interface()
	}
	return out
}

// LoadFile decodes the JSON file alone, without environment overrides.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveDefault writes a default config JSON to the provided path.
func SaveDefault(path string) error {
	return Save(path, DefaultConfig())
}

// Save writes cfg as indented JSON.
func Save(path string, cfg Config) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate verifies config fields and returns an error if any value is invalid.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: %v (rule %s %s)", jsonKey(fe.StructField()), fe.Value(), fe.Tag(), fe.Param())
		}
		return err
	}
	if cfg.MinRecordingSeconds >= cfg.MaxRecordingSeconds {
		return fmt.Errorf("invalid MIN_RECORDING_SECONDS: %v (must be < MAX_RECORDING_SECONDS %v)", cfg.MinRecordingSeconds, cfg.MaxRecordingSeconds)
	}
	if cfg.Provider == "http" && cfg.APIEndpoint == "" {
		return fmt.Errorf("invalid API_ENDPOINT: required when PROVIDER is http")
	}
	if cfg.ExtraConfig != "" {
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(cfg.ExtraConfig), &m); err != nil {
			return fmt.Errorf("invalid ExtraConfig: %w", err)
		}
	}
	return nil
}

func jsonKey(field string) string {
	if f, ok := reflect.TypeOf(Config{}).FieldByName(field); ok {
		if tag := f.Tag.Get("json"); tag != "" {
			return tag
		}
	}
	return field
}

// InitCacheDir validates/creates the configured cache directory.
// It mutates cfg.CacheDir to an absolute path or clears it on failure.
func InitCacheDir(cfg *Config, log zerolog.Logger) {
	if cfg.CacheDir == "" {
		return
	}
	abs, err := filepath.Abs(cfg.CacheDir)
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache-dir path invalid, falling back to temp dir")
		cfg.CacheDir = ""
		return
	}
	info, err := os.Stat(abs)
	if err == nil {
		if !info.IsDir() {
			log.Warn().Str("dir", abs).Msg("cache-dir exists but is not a directory, falling back to temp dir")
			cfg.CacheDir = ""
			return
		}
		cfg.CacheDir = abs
		log.Info().Str("dir", abs).Msg("using existing cache-dir")
		return
	}
	if os.IsNotExist(err) {
		if err := os.MkdirAll(abs, 0755); err != nil {
			log.Warn().Err(err).Str("dir", abs).Msg("cannot create cache-dir, falling back to temp dir")
			cfg.CacheDir = ""
			return
		}
		cfg.CacheDir = abs
		log.Info().Str("dir", abs).Msg("created cache-dir")
		return
	}
	log.Warn().Err(err).Str("dir", abs).Msg("cannot access cache-dir, falling back to temp dir")
	cfg.CacheDir = ""
}

// TempDir returns the directory to use for temporary files.
func TempDir(cfg *Config) string {
	if cfg.CacheDir != "" {
		return cfg.CacheDir
	}
	return os.TempDir()
}

// Store owns the running configuration. Components take a Snapshot at
// construction; changes go through Update so they are validated first.
type Store struct {
	mu   sync.RWMutex
	cfg  Config
	path string
}

// NewStore wraps an already validated config loaded from path.
func NewStore(cfg Config, path string) *Store {
	return &Store{cfg: cfg, path: path}
}

// Snapshot returns a copy of the current config.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Path is the file the config was loaded from, if any.
func (s *Store) Path() string {
	return s.path
}

// Update applies fn to a copy of the config and keeps it only if it validates.
func (s *Store) Update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cfg
	fn(&next)
	if err := Validate(&next); err != nil {
		return err
	}
	s.cfg = next
	return nil
}

// Save persists the current config to the file it was loaded from.
func (s *Store) Save() error {
	if s.path == "" {
		return fmt.Errorf("no config file to save to")
	}
	return Save(s.path, s.Snapshot())
}

// NormalizeHotkey lowercases and trims a chord string.
func NormalizeHotkey(s string) string {
	parts := strings.Split(s, "+")
	for i := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, "+")
}
