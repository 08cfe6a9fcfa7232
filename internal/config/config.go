package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type MediaConfig struct {
	// WHIPBaseURL is the external media server's negotiation surface
	// (offer in, answer out). APIBaseURL is its path-management API,
	// HLSBaseURL the segmented playback surface.
	WHIPBaseURL string `mapstructure:"whip_base_url"`
	APIBaseURL  string `mapstructure:"api_base_url"`
	HLSBaseURL  string `mapstructure:"hls_base_url"`

	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	APITimeout     time.Duration `mapstructure:"api_timeout"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
}

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	Secret         string        `mapstructure:"secret"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	Media          MediaConfig   `mapstructure:"media"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("send_buffer", 32)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("media.whip_base_url", "http://127.0.0.1:8889")
	v.SetDefault("media.api_base_url", "http://127.0.0.1:9997")
	v.SetDefault("media.hls_base_url", "http://127.0.0.1:8888")
	v.SetDefault("media.publish_timeout", "8s")
	v.SetDefault("media.api_timeout", "5s")
	v.SetDefault("media.probe_timeout", "2s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
