package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const envPrefix = "SCENEGIF_"

// Config holds all tunables of a run.
type Config struct {
	VideosDir  string   `yaml:"videos_dir" env:"VIDEOS_DIR"`
	Extensions []string `yaml:"extensions" env:"EXTENSIONS" envSeparator:","`
	OutDir     string   `yaml:"out_dir"    env:"OUT_DIR"`
	TempName   string   `yaml:"temp_name"  env:"TEMP_NAME"`

	Width  int `yaml:"width"  env:"WIDTH"`
	Height int `yaml:"height" env:"HEIGHT"`

	// Scene search
	MinFrames           int     `yaml:"min_frames"           env:"MIN_FRAMES"`
	MaxFrames           int     `yaml:"max_frames"           env:"MAX_FRAMES"`
	TransitionThreshold float64 `yaml:"transition_threshold" env:"TRANSITION_THRESHOLD"`
	MinDynamicness      float64 `yaml:"min_dynamicness"      env:"MIN_DYNAMICNESS"`

	// Rendering
	Workers    int           `yaml:"workers"     env:"WORKERS"`
	FrameDelay time.Duration `yaml:"frame_delay" env:"FRAME_DELAY"`

	FFmpegPath  string `yaml:"ffmpeg_path"  env:"FFMPEG_PATH"`
	FFprobePath string `yaml:"ffprobe_path" env:"FFPROBE_PATH"`

	LogLevel    string `yaml:"log_level"    env:"LOG_LEVEL"`
	MetricsFile string `yaml:"metrics_file" env:"METRICS_FILE"`
}

func Default() Config {
	return Config{
		VideosDir:           "./videos",
		Extensions:          []string{"mkv", "mp4"},
		OutDir:              "./temp",
		TempName:            "random.gif",
		Width:               640,
		Height:              360,
		MinFrames:           30,
		MaxFrames:           160,
		TransitionThreshold: 45,
		MinDynamicness:      0.34,
		Workers:             4,
		FrameDelay:          40 * time.Millisecond,
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
		LogLevel:            "info",
	}
}

// Load applies, in order: defaults, the YAML file, SCENEGIF_* environment
// variables. An explicit path must exist; a discovered one is optional.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case explicit || !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("env: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.VideosDir) == "" {
		return errors.New("videos dir is empty")
	}
	if strings.TrimSpace(c.OutDir) == "" {
		return errors.New("out dir is empty")
	}
	if len(c.Extensions) == 0 {
		return errors.New("at least one video extension is required")
	}
	for _, ext := range c.Extensions {
		if strings.Trim(strings.TrimSpace(ext), ".") == "" {
			return fmt.Errorf("invalid extension %q", ext)
		}
	}
	if c.TempName == "" || strings.ContainsAny(c.TempName, `/\`) {
		return fmt.Errorf("temp name must be a bare file name, got %q", c.TempName)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("resolution must be > 0, got %dx%d", c.Width, c.Height)
	}
	if c.MinFrames < 1 {
		return fmt.Errorf("min frames must be >= 1")
	}
	if c.MaxFrames < c.MinFrames {
		return fmt.Errorf("max frames must be >= min frames")
	}
	if c.TransitionThreshold <= 0 {
		return fmt.Errorf("transition threshold must be > 0")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1")
	}
	if c.FrameDelay <= 0 {
		return fmt.Errorf("frame delay must be > 0")
	}
	return nil
}

func findConfigFile() string {
	candidates := []string{
		"./scenegif.yaml",
		"./scenegif.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".scenegif", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
