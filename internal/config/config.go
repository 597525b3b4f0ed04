// Package config loads runtime configuration from the environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/evidently/consentcam/internal/capture"
	"github.com/evidently/consentcam/internal/session"
	"github.com/evidently/consentcam/internal/sink"
)

// Config is the full runtime configuration tree.
type Config struct {
	Recording Recording `mapstructure:"recording"`
	Capture   Capture   `mapstructure:"capture"`
	Sink      Sink      `mapstructure:"sink"`
}

// Recording bounds one consent-recording session.
type Recording struct {
	MaxSeconds int `mapstructure:"max_seconds"`
}

// Capture selects devices and the mux process.
type Capture struct {
	FFmpegBinary  string `mapstructure:"ffmpeg_binary"`
	VideoDevice   string `mapstructure:"video_device"`
	AudioDevice   string `mapstructure:"audio_device"`
	FragmentBytes int    `mapstructure:"fragment_bytes"`
}

// Sink identifies the target object-store bucket.
type Sink struct {
	Bucket         string `mapstructure:"bucket"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

// Loaded pairs a parsed config with its source path ("" for env-only).
type Loaded struct {
	Config Config
	Path   string
}

// Load reads configuration from CONSENTCAM_* environment variables, plus an
// optional YAML file when path is non-empty.
func Load(path string) (Loaded, error) {
	v := viper.New()

	v.SetDefault("recording.max_seconds", session.DefaultMaxSeconds)
	v.SetDefault("capture.ffmpeg_binary", "ffmpeg")
	v.SetDefault("capture.video_device", "/dev/video0")
	v.SetDefault("capture.audio_device", "default")
	v.SetDefault("capture.fragment_bytes", 32<<10)
	v.SetDefault("sink.bucket", "")
	v.SetDefault("sink.region", "")
	v.SetDefault("sink.endpoint", "")
	v.SetDefault("sink.force_path_style", false)

	v.SetEnvPrefix("consentcam")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Loaded{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Loaded{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Loaded{}, err
	}
	return Loaded{Config: cfg, Path: path}, nil
}

// Validate rejects configurations a recording session cannot run with.
func (c Config) Validate() error {
	if c.Recording.MaxSeconds <= 0 {
		return errors.New("recording.max_seconds must be positive")
	}
	if c.Capture.FFmpegBinary == "" {
		return errors.New("capture.ffmpeg_binary must not be empty")
	}
	if c.Capture.FragmentBytes <= 0 {
		return errors.New("capture.fragment_bytes must be positive")
	}
	return nil
}

// FFmpeg maps the capture section onto the acquirer config.
func (c Config) FFmpeg() capture.FFmpegConfig {
	return capture.FFmpegConfig{
		Binary:        c.Capture.FFmpegBinary,
		VideoDevice:   c.Capture.VideoDevice,
		AudioDevice:   c.Capture.AudioDevice,
		FragmentBytes: c.Capture.FragmentBytes,
	}
}

// S3 maps the sink section onto the blob-sink config.
func (c Config) S3() sink.Config {
	return sink.Config{
		Bucket:         c.Sink.Bucket,
		Region:         c.Sink.Region,
		Endpoint:       c.Sink.Endpoint,
		ForcePathStyle: c.Sink.ForcePathStyle,
	}
}
