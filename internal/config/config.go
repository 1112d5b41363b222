package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "relay"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("venues.jupiter.enabled", true)
	v.SetDefault("venues.jupiter.base_url", "https://quote-api.jup.ag/v6")
	v.SetDefault("venues.jupiter.slippage_bps", 50)

	v.SetDefault("venues.hyperliquid.enabled", true)
	v.SetDefault("venues.hyperliquid.api_key", "")
	v.SetDefault("venues.hyperliquid.api_secret", "")
	v.SetDefault("venues.hyperliquid.use_sandbox", false)

	v.SetDefault("venues.polymarket.enabled", true)
	v.SetDefault("venues.polymarket.base_url", "https://clob.polymarket.com")
	v.SetDefault("venues.polymarket.api_key", "")
	v.SetDefault("venues.polymarket.api_secret", "")
	v.SetDefault("venues.polymarket.api_password", "")

	v.SetDefault("venues.retry.max_attempts", 3)
	v.SetDefault("venues.retry.min_delay", "500ms")
	v.SetDefault("venues.retry.max_delay", "5s")
	v.SetDefault("venues.call_timeout", "15s")

	v.SetDefault("monitor.interval", "15s")
	v.SetDefault("monitor.max_exec_attempts", 5)
	v.SetDefault("monitor.price_workers", 4)

	v.SetDefault("interpreter.enabled", false)
	v.SetDefault("interpreter.base_url", "https://api.openai.com/v1")
	v.SetDefault("interpreter.model", "gpt-4.1-mini")
	v.SetDefault("interpreter.timeout", "15s")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("telegram.timeout", "10s")

	v.SetDefault("database.path", "data/traderelay.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8787)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
