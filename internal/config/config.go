// Package config 加载 CLI 的运行配置。
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/nerdneilsfield/notebook-translator/internal/translator"
)

// Config 保存翻译器的所有配置
type Config struct {
	Mode         string `mapstructure:"mode"`          // 输出模式：replace 或 bilingual
	EnableStats  bool   `mapstructure:"enable_stats"`  // 是否记录用量日志
	StatsFile    string `mapstructure:"stats_file"`    // 用量日志路径
	CacheDir     string `mapstructure:"cache_dir"`     // 翻译缓存目录
	UseCache     bool   `mapstructure:"use_cache"`     // 是否启用翻译缓存
	ProfilesFile string `mapstructure:"profiles_file"` // 配置档文件路径
	Debug        bool   `mapstructure:"debug"`         // 调试日志

	// RequestTimeout 单次后端请求的超时秒数，0 表示使用各后端的默认值
	RequestTimeout int `mapstructure:"request_timeout"`
}

// DefaultConfig 返回默认配置，路径落在用户主目录下
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".nbtranslate")

	return &Config{
		Mode:         translator.ModeBilingual,
		EnableStats:  false,
		StatsFile:    filepath.Join(base, "usage.jsonl"),
		CacheDir:     filepath.Join(base, "cache"),
		UseCache:     true,
		ProfilesFile: filepath.Join(base, "profiles.json"),
	}
}

// LoadConfig 从文件加载配置，找不到文件时返回默认配置
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("mode", defaults.Mode)
	v.SetDefault("enable_stats", defaults.EnableStats)
	v.SetDefault("stats_file", defaults.StatsFile)
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("use_cache", defaults.UseCache)
	v.SetDefault("profiles_file", defaults.ProfilesFile)
	v.SetDefault("debug", defaults.Debug)
	v.SetDefault("request_timeout", defaults.RequestTimeout)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigName(".nbtranslate")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// 没有配置文件：用默认值
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.Mode != translator.ModeReplace && config.Mode != translator.ModeBilingual {
		return nil, fmt.Errorf("invalid mode %q, must be %s or %s", config.Mode, translator.ModeReplace, translator.ModeBilingual)
	}
	if config.RequestTimeout < 0 {
		return nil, fmt.Errorf("request_timeout must not be negative, got %d", config.RequestTimeout)
	}
	return &config, nil
}
