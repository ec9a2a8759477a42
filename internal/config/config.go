package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port      int    `yaml:"port"`
		DataPath  string `yaml:"data_path"`
		UIEnabled bool   `yaml:"ui_enabled"`
		Debug     bool   `yaml:"debug"`
	} `yaml:"app"`

	TMDB TMDBConfig `yaml:"tmdb"`

	Catalog struct {
		// Cron spec for re-fetching every row; "@every 1h" by default.
		RefreshSchedule string      `yaml:"refresh_schedule"`
		Rows            []RowConfig `yaml:"rows"`
	} `yaml:"catalog"`

	Carousel CarouselConfig `yaml:"carousel"`

	Notifications struct {
		Pushbullet struct {
			Enabled bool   `yaml:"enabled"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"pushbullet"`
	} `yaml:"notifications"`
}

type TMDBConfig struct {
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	ImageBaseURL      string  `yaml:"image_base_url"`
	Language          string  `yaml:"language"`
	VideoLanguages    string  `yaml:"video_languages"` // include_video_language
	ItemLimit         int     `yaml:"item_limit"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	RetryAttempts     uint    `yaml:"retry_attempts"`
}

// RowConfig names one browsable row, e.g. trending movies this week.
type RowConfig struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`   // movie, tv or all
	Window string `yaml:"window"` // day or week
}

type CarouselConfig struct {
	AutoPlayInterval time.Duration `yaml:"autoplay_interval"`
	TrailerDelay     time.Duration `yaml:"trailer_delay"`
	SampleInterval   time.Duration `yaml:"sample_interval"`
	StallThreshold   int           `yaml:"stall_threshold"`
	StallEpsilon     float64       `yaml:"stall_epsilon"`
	QualityLadder    []string      `yaml:"quality_ladder"`
	EndPolicy        string        `yaml:"end_policy"` // stop or loop
	ProviderSite     string        `yaml:"provider_site"`
	StartMuted       bool          `yaml:"start_muted"`
	PlayerLanguage   string        `yaml:"player_language"`
	Target           string        `yaml:"target"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	loadFromEnv(cfg)
	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.App.Port = 8081
	cfg.App.DataPath = "./data"
	cfg.App.UIEnabled = true
	cfg.App.Debug = false

	cfg.TMDB.BaseURL = "https://api.themoviedb.org/3"
	cfg.TMDB.ImageBaseURL = "https://image.tmdb.org/t/p"
	cfg.TMDB.Language = "es-ES"
	cfg.TMDB.VideoLanguages = "en,es"
	cfg.TMDB.ItemLimit = 5
	cfg.TMDB.RequestsPerSecond = 40
	cfg.TMDB.RetryAttempts = 3

	cfg.Catalog.RefreshSchedule = "@every 1h"
	cfg.Catalog.Rows = []RowConfig{
		{Name: "home", Kind: "all", Window: "week"},
		{Name: "movies", Kind: "movie", Window: "week"},
		{Name: "series", Kind: "tv", Window: "week"},
	}

	cfg.Carousel.AutoPlayInterval = 8 * time.Second
	cfg.Carousel.TrailerDelay = 2 * time.Second
	cfg.Carousel.SampleInterval = 2 * time.Second
	cfg.Carousel.StallThreshold = 3
	cfg.Carousel.StallEpsilon = 0.1
	cfg.Carousel.QualityLadder = []string{"highres", "hd1080", "hd720"}
	cfg.Carousel.EndPolicy = "stop"
	cfg.Carousel.ProviderSite = "YouTube"
	cfg.Carousel.StartMuted = false
	cfg.Carousel.PlayerLanguage = "es-419"
	cfg.Carousel.Target = "hero-player"
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("TMDB_API_KEY"); v != "" {
		cfg.TMDB.APIKey = v
	}
	if v := os.Getenv("PUSHBULLET_API_KEY"); v != "" {
		cfg.Notifications.Pushbullet.APIKey = v
	}
	if v := os.Getenv("MARQUEE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.App.Port = port
		}
	}
	if v := os.Getenv("MARQUEE_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			cfg.App.Debug = debug
		}
	}
	if v := os.Getenv("MARQUEE_DATA_PATH"); v != "" {
		cfg.App.DataPath = v
	}
}

// Validate rejects configurations the carousel cannot run with.
func Validate(cfg *Config) error {
	var errs []error

	c := cfg.Carousel
	if c.AutoPlayInterval <= 0 {
		errs = append(errs, errors.New("carousel.autoplay_interval must be positive"))
	}
	if c.TrailerDelay <= 0 {
		errs = append(errs, errors.New("carousel.trailer_delay must be positive"))
	}
	if c.SampleInterval <= 0 {
		errs = append(errs, errors.New("carousel.sample_interval must be positive"))
	}
	if c.StallThreshold <= 0 {
		errs = append(errs, errors.New("carousel.stall_threshold must be positive"))
	}
	if len(c.QualityLadder) == 0 {
		errs = append(errs, errors.New("carousel.quality_ladder must not be empty"))
	}
	switch strings.ToLower(c.EndPolicy) {
	case "stop", "loop":
	default:
		errs = append(errs, fmt.Errorf("carousel.end_policy %q: want stop or loop", c.EndPolicy))
	}

	if _, err := cron.ParseStandard(cfg.Catalog.RefreshSchedule); err != nil {
		errs = append(errs, fmt.Errorf("catalog.refresh_schedule: %w", err))
	}
	seen := make(map[string]bool)
	for _, row := range cfg.Catalog.Rows {
		if row.Name == "" {
			errs = append(errs, errors.New("catalog.rows: row without name"))
			continue
		}
		if seen[row.Name] {
			errs = append(errs, fmt.Errorf("catalog.rows: duplicate row %q", row.Name))
		}
		seen[row.Name] = true
		switch row.Kind {
		case "movie", "tv", "all":
		default:
			errs = append(errs, fmt.Errorf("catalog.rows[%s].kind %q: want movie, tv or all", row.Name, row.Kind))
		}
		switch row.Window {
		case "day", "week":
		default:
			errs = append(errs, fmt.Errorf("catalog.rows[%s].window %q: want day or week", row.Name, row.Window))
		}
	}

	if cfg.Notifications.Pushbullet.Enabled && cfg.Notifications.Pushbullet.APIKey == "" {
		errs = append(errs, errors.New("notifications.pushbullet.api_key is required when enabled"))
	}

	if cfg.TMDB.ItemLimit <= 0 {
		errs = append(errs, errors.New("tmdb.item_limit must be positive"))
	}

	return errors.Join(errs...)
}
