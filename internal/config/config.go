package config

import (
	"time"

	"github.com/spf13/viper"
)

type AppCfg struct {
	Env      string `mapstructure:"env"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

type MongoCfg struct {
	URI          string `mapstructure:"uri"`
	Database     string `mapstructure:"database"`
	Transactions bool   `mapstructure:"transactions"`
}

type RedisCfg struct {
	Addr           string `mapstructure:"addr"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	ProfileTTLSecs int    `mapstructure:"profile_ttl_seconds"`
}

type KafkaCfg struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type CloudinaryCfg struct {
	CloudName string `mapstructure:"cloud_name"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Folder    string `mapstructure:"folder"`
}

type S3Cfg struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Bucket  string `mapstructure:"bucket"`
}

type JWTCfg struct {
	Secret string `mapstructure:"secret"`
}

type Config struct {
	App        AppCfg        `mapstructure:"app"`
	Mongo      MongoCfg      `mapstructure:"mongo"`
	Redis      RedisCfg      `mapstructure:"redis"`
	Kafka      KafkaCfg      `mapstructure:"kafka"`
	Cloudinary CloudinaryCfg `mapstructure:"cloudinary"`
	S3         S3Cfg         `mapstructure:"s3"`
	JWT        JWTCfg        `mapstructure:"jwt"`

	// derived
	ProfileTTL time.Duration
}

func (c *Config) Development() bool { return c.App.Env != "production" }

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Port == 0 {
		cfg.App.Port = 8084
	}
	if cfg.Mongo.URI == "" {
		cfg.Mongo.URI = "mongodb://localhost:27017"
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "skillup_chat"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "chat.events"
	}
	if cfg.Cloudinary.Folder == "" {
		cfg.Cloudinary.Folder = "assignments"
	}
	if cfg.Redis.ProfileTTLSecs == 0 {
		cfg.Redis.ProfileTTLSecs = 300
	}
	cfg.ProfileTTL = time.Duration(cfg.Redis.ProfileTTLSecs) * time.Second
}
