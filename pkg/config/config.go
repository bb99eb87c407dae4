// Package config provides configuration management for the attendance
// system. It loads YAML files with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all attendance system configuration.
type Config struct {
	Recognition RecognitionConfig `yaml:"recognition"`
	Liveness    LivenessConfig    `yaml:"liveness_detection"`
	Quality     QualityConfig     `yaml:"capture_quality"`
	Enrollment  EnrollmentConfig  `yaml:"enrollment"`
	Stream      StreamConfig      `yaml:"stream"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// RecognitionConfig holds face matching settings.
type RecognitionConfig struct {
	// Tolerance is the maximum Euclidean distance for a match.
	Tolerance float64 `yaml:"tolerance"`
	// UnknownThreshold is the looser distance for re-identifying an
	// already-seen unknown person.
	UnknownThreshold float64 `yaml:"unknown_threshold"`
	// UnknownTrackTTL is how long an unobserved unknown track survives,
	// in seconds.
	UnknownTrackTTL int `yaml:"unknown_track_ttl"`
	// ModelPath is the dlib model directory.
	ModelPath string `yaml:"model_path"`
}

// LivenessConfig holds blink detection settings.
type LivenessConfig struct {
	Enabled          bool    `yaml:"enabled"`
	EARThreshold     float64 `yaml:"ear_threshold"`
	EAROpenThreshold float64 `yaml:"ear_open_threshold"`
	MinClosedFrames  int     `yaml:"min_closed_frames"`
	RecoveryFrames   int     `yaml:"recovery_frames"`
	WindowSeconds    int     `yaml:"window_seconds"`
	MaxFrames        int     `yaml:"detection_frames"`
}

// QualityConfig holds capture quality thresholds.
type QualityConfig struct {
	MinAreaFraction float64 `yaml:"min_area_fraction"`
	CenterTolerance float64 `yaml:"center_tolerance"`
	MinSharpness    float64 `yaml:"min_sharpness"`
}

// EnrollmentConfig holds multi-image registration settings.
type EnrollmentConfig struct {
	// ImagesPerUser is how many captures an enrollment targets.
	ImagesPerUser int `yaml:"images_per_user"`
	// MinSamples is the minimum usable encodings an enrollment needs.
	MinSamples int `yaml:"min_samples"`
	// MaxEncodingsPerUser caps stored encodings per identity.
	MaxEncodingsPerUser int `yaml:"max_encodings_per_user"`
}

// StreamConfig holds the frame-gating performance policy for live video.
// These settings trade latency for load and never affect correctness.
type StreamConfig struct {
	// SkipFrames processes every Nth frame.
	SkipFrames int `yaml:"skip_frames"`
	// CacheSeconds reuses the last verdict for this long.
	CacheSeconds float64 `yaml:"cache_seconds"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	DatabasePath      string `yaml:"database_path"`
	EncryptionEnabled bool   `yaml:"encryption_enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local/share/faceattend")
	return &Config{
		Recognition: RecognitionConfig{
			Tolerance:        0.6,
			UnknownThreshold: 0.7,
			UnknownTrackTTL:  30,
			ModelPath:        filepath.Join(dataDir, "models"),
		},
		Liveness: LivenessConfig{
			Enabled:          true,
			EARThreshold:     0.22,
			EAROpenThreshold: 0.25,
			MinClosedFrames:  1,
			RecoveryFrames:   10,
			WindowSeconds:    6,
			MaxFrames:        10,
		},
		Quality: QualityConfig{
			MinAreaFraction: 0.05,
			CenterTolerance: 0.3,
			MinSharpness:    100.0,
		},
		Enrollment: EnrollmentConfig{
			ImagesPerUser:       5,
			MinSamples:          2,
			MaxEncodingsPerUser: 5,
		},
		Stream: StreamConfig{
			SkipFrames:   3,
			CacheSeconds: 2.0,
		},
		Storage: StorageConfig{
			DatabasePath:      filepath.Join(dataDir, "attendance.db"),
			EncryptionEnabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(dataDir, "faceattend.log"),
		},
	}
}

// Load loads configuration from the specified file on top of the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, err
	}

	return config, nil
}

// LoadDefault tries to load configuration from the default locations.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat("/etc/faceattend/faceattend.yaml"); err == nil {
		return Load("/etc/faceattend/faceattend.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	userConfig := filepath.Join(homeDir, ".config/faceattend/faceattend.yaml")
	if _, err := os.Stat(userConfig); err == nil {
		return Load(userConfig)
	}

	return DefaultConfig(), nil
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// ExpandPaths expands all paths in the configuration.
func (c *Config) ExpandPaths() {
	c.Recognition.ModelPath = ExpandPath(c.Recognition.ModelPath)
	c.Storage.DatabasePath = ExpandPath(c.Storage.DatabasePath)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Recognition.Tolerance <= 0 || c.Recognition.Tolerance > 1 {
		return fmt.Errorf("tolerance must be in (0, 1], got %f", c.Recognition.Tolerance)
	}
	if c.Recognition.UnknownThreshold < c.Recognition.Tolerance {
		return fmt.Errorf("unknown_threshold (%f) must not be below tolerance (%f)",
			c.Recognition.UnknownThreshold, c.Recognition.Tolerance)
	}

	if c.Liveness.EARThreshold <= 0 || c.Liveness.EARThreshold >= 1 {
		return fmt.Errorf("ear_threshold must be in (0, 1), got %f", c.Liveness.EARThreshold)
	}
	if c.Liveness.EAROpenThreshold < c.Liveness.EARThreshold {
		return fmt.Errorf("ear_open_threshold (%f) must not be below ear_threshold (%f)",
			c.Liveness.EAROpenThreshold, c.Liveness.EARThreshold)
	}
	if c.Liveness.WindowSeconds <= 0 && c.Liveness.MaxFrames <= 0 {
		return fmt.Errorf("liveness needs a positive window_seconds or detection_frames bound")
	}

	if c.Quality.MinAreaFraction < 0 || c.Quality.MinAreaFraction > 1 {
		return fmt.Errorf("min_area_fraction must be in [0, 1], got %f", c.Quality.MinAreaFraction)
	}
	if c.Quality.CenterTolerance <= 0 || c.Quality.CenterTolerance > 0.5 {
		return fmt.Errorf("center_tolerance must be in (0, 0.5], got %f", c.Quality.CenterTolerance)
	}

	if c.Enrollment.MinSamples < 1 {
		return fmt.Errorf("min_samples must be at least 1, got %d", c.Enrollment.MinSamples)
	}
	if c.Enrollment.ImagesPerUser < c.Enrollment.MinSamples {
		return fmt.Errorf("images_per_user (%d) must not be below min_samples (%d)",
			c.Enrollment.ImagesPerUser, c.Enrollment.MinSamples)
	}

	if c.Stream.SkipFrames < 1 {
		return fmt.Errorf("skip_frames must be at least 1, got %d", c.Stream.SkipFrames)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// EnsureDirectories creates the directories the configured paths need.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(filepath.Dir(c.Storage.DatabasePath), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(c.Recognition.ModelPath, 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.Logging.File), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// UnknownTTL returns the unknown-track timeout as a duration.
func (c *Config) UnknownTTL() time.Duration {
	return time.Duration(c.Recognition.UnknownTrackTTL) * time.Second
}

// LivenessWindow returns the liveness window as a duration.
func (c *Config) LivenessWindow() time.Duration {
	return time.Duration(c.Liveness.WindowSeconds) * time.Second
}
