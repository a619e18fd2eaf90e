package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/selfmusic/player/internal/platform"
)

type Config struct {
	Debug bool `mapstructure:"debug"`

	API struct {
		BaseURL   string `mapstructure:"base_url"`
		Token     string `mapstructure:"token"`
		RateLimit struct {
			RequestsPerSecond int `mapstructure:"requests_per_second"`
			BurstSize         int `mapstructure:"burst_size"`
		} `mapstructure:"rate_limit"`
		Timeout   int    `mapstructure:"timeout"`
		Retries   int    `mapstructure:"retries"`
		UserAgent string `mapstructure:"user_agent"`
	} `mapstructure:"api"`

	Storage struct {
		DatabasePath string `mapstructure:"database_path"`
		EnableWAL    bool   `mapstructure:"enable_wal"`
		HistoryLimit int    `mapstructure:"history_limit"`
	} `mapstructure:"storage"`

	Audio struct {
		SampleRate    int     `mapstructure:"sample_rate"`
		BufferSize    int     `mapstructure:"buffer_size"`
		DefaultVolume float64 `mapstructure:"default_volume"`
	} `mapstructure:"audio"`

	Playback struct {
		HotSongsFetchLimit int `mapstructure:"hot_songs_fetch_limit"`
		BootstrapSize      int `mapstructure:"bootstrap_size"`
		FallbackPageSize   int `mapstructure:"fallback_page_size"`
		ProgressIntervalMs int `mapstructure:"progress_interval_ms"`
	} `mapstructure:"playback"`

	Search struct {
		MaxResults int `mapstructure:"max_results"`
	} `mapstructure:"search"`
}

func Load(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		configDir, err := platform.GetConfigDir()
		if err != nil {
			return nil, err
		}
		viper.AddConfigPath(configDir)
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("SELFMUSIC")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("debug", false)

	viper.SetDefault("api.base_url", "https://music.selfhosted.app")
	viper.SetDefault("api.rate_limit.requests_per_second", 50)
	viper.SetDefault("api.rate_limit.burst_size", 10)
	viper.SetDefault("api.timeout", 30)
	viper.SetDefault("api.retries", 3)
	viper.SetDefault("api.user_agent", "SelfMusicPlayer/1.0.0")

	dataDir, _ := platform.GetDataDir()

	viper.SetDefault("storage.database_path", filepath.Join(dataDir, "player.db"))
	viper.SetDefault("storage.enable_wal", true)
	viper.SetDefault("storage.history_limit", 10)

	viper.SetDefault("audio.sample_rate", 44100)
	viper.SetDefault("audio.buffer_size", getDefaultBufferSize())
	viper.SetDefault("audio.default_volume", 0.7)

	viper.SetDefault("playback.hot_songs_fetch_limit", 50)
	viper.SetDefault("playback.bootstrap_size", 30)
	viper.SetDefault("playback.fallback_page_size", 100)
	viper.SetDefault("playback.progress_interval_ms", 500)

	viper.SetDefault("search.max_results", 100)
}

func getDefaultBufferSize() int {
	switch runtime.GOOS {
	case "windows", "darwin":
		return 8192
	default:
		return 16384
	}
}

func ensureDirectories(cfg *Config) error {
	return os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755)
}

func (c *Config) Save() error {
	configDir, err := platform.GetConfigDir()
	if err != nil {
		return err
	}

	configFile := filepath.Join(configDir, "config.yaml")
	return viper.WriteConfigAs(configFile)
}
