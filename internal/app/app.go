package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"traderelay/internal/command"
	"traderelay/internal/config"
	"traderelay/internal/journal"
	"traderelay/internal/monitor"
	"traderelay/internal/notify"
	"traderelay/internal/order"
	"traderelay/internal/venue"
)

// 雪花节点固定为0：单进程单注册表，无多节点协调需求。
const snowflakeNode = 0

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	journal *journal.Journal
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, j *journal.Journal) *App {
	return &App{
		cfg:     cfg,
		logger:  logger,
		journal: j,
	}
}

// Run 装配各组件并驱动巡检循环直到收到退出信号。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("交易中继已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.Duration("monitor_interval", a.cfg.Monitor.Interval),
	)

	registry := buildRegistry(a.cfg.Venues, a.logger)

	store, err := order.NewStore(snowflakeNode)
	if err != nil {
		return fmt.Errorf("初始化订单注册表失败: %w", err)
	}

	var notifier notify.Notifier = notify.Nop{}
	if a.cfg.Telegram.Enabled {
		notifier = notify.NewTelegram(a.cfg.Telegram, a.logger)
	}

	var interp *command.Interpreter
	if a.cfg.Interpreter.Enabled {
		interp, err = command.NewInterpreter(a.cfg.Interpreter, a.logger)
		if err != nil {
			return fmt.Errorf("初始化指令解析器失败: %w", err)
		}
	}

	router := command.NewRouter(store, a.journal, notifier, interp, a.logger)

	mon := monitor.New(store, registry, a.journal, notifier, monitor.Options{
		MaxExecAttempts: a.cfg.Monitor.MaxExecAttempts,
		PriceWorkers:    a.cfg.Monitor.PriceWorkers,
	}, a.logger)

	if a.cfg.Server.Enabled {
		if err := startAPIServer(ctx, router, a.journal, a.cfg.Server.Port, a.logger); err != nil {
			return fmt.Errorf("启动指令接口失败: %w", err)
		}
	}

	interval := a.cfg.Monitor.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	// 单协程定时循环：周期之间严格串行，慢周期只会推迟而不会
	// 与自身并发，订单不存在被重叠周期二次执行的窗口。
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("系统异常退出: %w", err)
			}
			a.logger.Info("系统收到退出信号，正在停止")
			return nil
		case <-ticker.C:
			stats := mon.RunCycle(ctx)
			if stats.Scanned > 0 {
				a.logger.Debug("巡检周期完成",
					zap.Int("scanned", stats.Scanned),
					zap.Int("executed", stats.Executed),
					zap.Int("failed", stats.Failed),
					zap.Int("skipped", stats.Skipped),
				)
			}
		}
	}
}

// buildRegistry 按配置装配启用的场所适配器。
func buildRegistry(cfg config.VenuesConfig, logger *zap.Logger) *venue.Registry {
	adapters := make([]venue.Adapter, 0, 3)
	if cfg.Jupiter.Enabled {
		adapters = append(adapters, venue.NewJupiter(cfg.Jupiter, cfg, logger))
	}
	if cfg.Hyperliquid.Enabled {
		adapters = append(adapters, venue.NewHyperliquid(cfg.Hyperliquid, cfg, logger))
	}
	if cfg.Polymarket.Enabled {
		adapters = append(adapters, venue.NewPolymarket(cfg.Polymarket, cfg, logger))
	}
	return venue.NewRegistry(adapters...)
}
