package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	envPrefix  = "MEMOBOT"
	dataDirEnv = "MEMOBOT_HOME"
	appDir     = ".memobot"
)

// Config keeps runtime settings.
type Config struct {
	DataDir        string `mapstructure:"-"`
	DatabasePath   string `mapstructure:"database_path" validate:"required"`
	LogLevel       string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFile        string `mapstructure:"log_file"`
	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID int64  `mapstructure:"telegram_chat_id"`
	RemindAt       string `mapstructure:"remind_at"`
}

// BotSettings is the subset of Config the Telegram front end requires.
type BotSettings struct {
	Token  string `validate:"required"`
	ChatID int64  `validate:"required"`
}

// Load reads configuration from MEMOBOT_* environment variables, then an
// optional config.yaml in the data directory, then defaults.
func Load() (Config, error) {
	dataDir, err := DataDir()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetDefault("database_path", filepath.Join(dataDir, "db.sqlite"))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", filepath.Join(dataDir, "memobot.log"))
	v.SetDefault("telegram_token", "")
	v.SetDefault("telegram_chat_id", 0)
	v.SetDefault("remind_at", "09:00")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dataDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.DataDir = dataDir
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.RemindAt = strings.TrimSpace(cfg.RemindAt)

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Bot returns the Telegram settings, failing when they are incomplete.
func (c Config) Bot() (BotSettings, error) {
	s := BotSettings{Token: c.TelegramToken, ChatID: c.TelegramChatID}
	if err := validator.New().Struct(s); err != nil {
		return s, fmt.Errorf("MEMOBOT_TELEGRAM_TOKEN and MEMOBOT_TELEGRAM_CHAT_ID are required: %w", err)
	}
	return s, nil
}

// DataDir is where the database, log and config file live: $MEMOBOT_HOME or
// ~/.memobot.
func DataDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(dataDirEnv)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return appDir, nil
	}
	return filepath.Join(home, appDir), nil
}
