package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Camera      CameraConfig      `mapstructure:"camera"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	Rekognition RekognitionConfig `mapstructure:"rekognition"`
	CompreFace  CompreFaceConfig  `mapstructure:"compreface"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	Cleanup     CleanupConfig     `mapstructure:"cleanup"`
}

// ServerConfig holds settings for the HTTP API server.
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DataDir string `mapstructure:"data_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig holds database settings (SQLite).
type DBConfig struct {
	File string `mapstructure:"file"`
}

// CameraConfig holds settings for the local capture device.
type CameraConfig struct {
	DeviceIndex int    `mapstructure:"device_index"`
	FrameWidth  int    `mapstructure:"frame_width"`
	FrameHeight int    `mapstructure:"frame_height"`
	Display     bool   `mapstructure:"display"`
	WindowTitle string `mapstructure:"window_title"`
}

// RecognitionConfig holds settings for the recognition loop.
type RecognitionConfig struct {
	Provider              string  `mapstructure:"provider"` // "rekognition" or "compreface"
	DeviceID              string  `mapstructure:"device_id"`
	FacesDir              string  `mapstructure:"faces_dir"`
	IntervalSeconds       int     `mapstructure:"interval_seconds"`
	OverlaySeconds        int     `mapstructure:"overlay_seconds"`
	SimilarityThreshold   float64 `mapstructure:"similarity_threshold"` // percent, 0-100
	CompareTimeoutSeconds int     `mapstructure:"compare_timeout_seconds"`
	CooldownPruneMinutes  int     `mapstructure:"cooldown_prune_minutes"`
}

// Interval returns the recognition interval as a duration.
func (c RecognitionConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// OverlayDuration returns how long the on-screen notification stays visible.
func (c RecognitionConfig) OverlayDuration() time.Duration {
	return time.Duration(c.OverlaySeconds) * time.Second
}

// CompareTimeout returns the per-call deadline for remote comparisons.
func (c RecognitionConfig) CompareTimeout() time.Duration {
	return time.Duration(c.CompareTimeoutSeconds) * time.Second
}

// CooldownPruneHorizon returns the age after which cooldown entries are evicted.
func (c RecognitionConfig) CooldownPruneHorizon() time.Duration {
	return time.Duration(c.CooldownPruneMinutes) * time.Minute
}

// RekognitionConfig holds settings for the AWS Rekognition comparator.
type RekognitionConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	QualityFilter   string `mapstructure:"quality_filter"`
}

// CompreFaceConfig holds settings for the CompreFace verification comparator.
type CompreFaceConfig struct {
	URL                string  `mapstructure:"url"`
	VerificationAPIKey string  `mapstructure:"verification_api_key"`
	DetProbThreshold   float64 `mapstructure:"det_prob_threshold"`
}

// MQTTConfig holds settings for the MQTT event publisher.
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
}

// CleanupConfig holds settings for automatic attendance record cleanup.
type CleanupConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// Load reads configuration from file, environment variables and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Environment variables override file values
	v.AutomaticEnv()
	v.SetEnvPrefix("ATTENDANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// Validate checks settings that cannot be defaulted into a sane state.
func (c *Config) Validate() error {
	switch c.Recognition.Provider {
	case "rekognition", "compreface":
	default:
		return fmt.Errorf("unknown recognition provider: %q", c.Recognition.Provider)
	}
	if c.Recognition.SimilarityThreshold <= 0 || c.Recognition.SimilarityThreshold > 100 {
		return fmt.Errorf("similarity_threshold must be in (0, 100], got %v", c.Recognition.SimilarityThreshold)
	}
	if c.Recognition.IntervalSeconds <= 0 {
		return fmt.Errorf("interval_seconds must be positive, got %d", c.Recognition.IntervalSeconds)
	}
	if c.Recognition.CompareTimeoutSeconds <= 0 {
		return fmt.Errorf("compare_timeout_seconds must be positive, got %d", c.Recognition.CompareTimeoutSeconds)
	}
	if c.Recognition.OverlaySeconds < 0 {
		return fmt.Errorf("overlay_seconds must not be negative, got %d", c.Recognition.OverlaySeconds)
	}
	return nil
}

// setDefaults registers default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.data_dir", "./data")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	// DB defaults
	v.SetDefault("db.file", "./data/attendance.db")

	// Camera defaults
	v.SetDefault("camera.device_index", 0)
	v.SetDefault("camera.frame_width", 640)
	v.SetDefault("camera.frame_height", 480)
	v.SetDefault("camera.display", true)
	v.SetDefault("camera.window_title", "Smart Check")

	// Recognition defaults
	v.SetDefault("recognition.provider", "rekognition")
	v.SetDefault("recognition.device_id", "device-01")
	v.SetDefault("recognition.faces_dir", "./faces")
	v.SetDefault("recognition.interval_seconds", 5)
	v.SetDefault("recognition.overlay_seconds", 2)
	v.SetDefault("recognition.similarity_threshold", 80.0)
	v.SetDefault("recognition.compare_timeout_seconds", 10)
	v.SetDefault("recognition.cooldown_prune_minutes", 60)

	// Rekognition defaults
	v.SetDefault("rekognition.region", "us-east-1")
	v.SetDefault("rekognition.quality_filter", "AUTO")

	// CompreFace defaults
	v.SetDefault("compreface.det_prob_threshold", 0.8)

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "attendance-registry")
	v.SetDefault("mqtt.topic", "attendance/events")

	// Cleanup defaults
	v.SetDefault("cleanup.retention_days", 90)
}

// ensureDirectories makes sure all required directories exist.
func ensureDirectories(cfg *Config) error {
	if cfg.Server.DataDir != "" {
		if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	if cfg.Log.File != "" {
		logDir := filepath.Dir(cfg.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	if cfg.DB.File != "" {
		dbDir := filepath.Dir(cfg.DB.File)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return nil
}
