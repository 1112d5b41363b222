package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了中继系统运行所需的全部配置项。
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Venues      VenuesConfig      `mapstructure:"venues"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
	Interpreter InterpreterConfig `mapstructure:"interpreter"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Server      ServerConfig      `mapstructure:"server"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// VenuesConfig 描述三个外部交易场所的连接信息。
type VenuesConfig struct {
	Jupiter     JupiterConfig     `mapstructure:"jupiter"`
	Hyperliquid HyperliquidConfig `mapstructure:"hyperliquid"`
	Polymarket  PolymarketConfig  `mapstructure:"polymarket"`
	Retry       RetryConfig       `mapstructure:"retry"`
	CallTimeout time.Duration     `mapstructure:"call_timeout"`
}

// JupiterConfig 描述现货聚合器接入参数。
type JupiterConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BaseURL     string `mapstructure:"base_url"`
	SlippageBps int    `mapstructure:"slippage_bps"`
}

// HyperliquidConfig 描述永续合约交易所接入参数。
type HyperliquidConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	UseSandbox bool   `mapstructure:"use_sandbox"`
}

// PolymarketConfig 描述预测市场接入参数。
type PolymarketConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	APIPass   string `mapstructure:"api_password"`
}

// RetryConfig 统一控制场所调用的重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// MonitorConfig 控制限价单巡检循环。
type MonitorConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	MaxExecAttempts int           `mapstructure:"max_exec_attempts"`
	PriceWorkers    int           `mapstructure:"price_workers"`
}

// InterpreterConfig 描述自然语言指令解析所用的大模型参数。
type InterpreterConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TelegramConfig 控制执行结果的消息推送。
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig 管理执行流水数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// ServerConfig 控制指令接口 HTTP 服务。
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}

	if !c.Venues.Jupiter.Enabled && !c.Venues.Hyperliquid.Enabled && !c.Venues.Polymarket.Enabled {
		err = multierr.Append(err, errors.New("venues 至少启用一个交易场所"))
	}
	if c.Venues.Jupiter.Enabled {
		if c.Venues.Jupiter.BaseURL == "" {
			err = multierr.Append(err, errors.New("venues.jupiter.base_url 不能为空"))
		}
		if c.Venues.Jupiter.SlippageBps < 0 || c.Venues.Jupiter.SlippageBps > 2000 {
			err = multierr.Append(err, errors.New("venues.jupiter.slippage_bps 必须位于[0,2000]"))
		}
	}
	if c.Venues.Polymarket.Enabled && c.Venues.Polymarket.BaseURL == "" {
		err = multierr.Append(err, errors.New("venues.polymarket.base_url 不能为空"))
	}
	if c.Venues.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("venues.retry.max_attempts 必须大于0"))
	}
	if c.Venues.Retry.MinDelay <= 0 || c.Venues.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("venues.retry.delay 必须为正"))
	}
	if c.Venues.Retry.MinDelay > c.Venues.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("venues.retry.min_delay 不能大于 max_delay"))
	}
	if c.Venues.CallTimeout < 5*time.Second || c.Venues.CallTimeout > 30*time.Second {
		err = multierr.Append(err, errors.New("venues.call_timeout 应位于[5s,30s]"))
	}

	if c.Monitor.Interval <= 0 {
		err = multierr.Append(err, errors.New("monitor.interval 必须大于0"))
	}
	if c.Monitor.MaxExecAttempts <= 0 {
		err = multierr.Append(err, errors.New("monitor.max_exec_attempts 必须大于0"))
	}
	if c.Monitor.PriceWorkers <= 0 {
		err = multierr.Append(err, errors.New("monitor.price_workers 必须大于0"))
	}

	if c.Interpreter.Enabled {
		if c.Interpreter.APIKey == "" {
			err = multierr.Append(err, errors.New("interpreter.api_key 不能为空"))
		}
		if c.Interpreter.Model == "" {
			err = multierr.Append(err, errors.New("interpreter.model 不能为空"))
		}
		if c.Interpreter.Timeout <= 0 {
			err = multierr.Append(err, errors.New("interpreter.timeout 必须大于0"))
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			err = multierr.Append(err, errors.New("telegram.bot_token 不能为空"))
		}
		if c.Telegram.Timeout <= 0 {
			err = multierr.Append(err, errors.New("telegram.timeout 必须大于0"))
		}
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		err = multierr.Append(err, errors.New("server.port 必须位于(0,65535]"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
