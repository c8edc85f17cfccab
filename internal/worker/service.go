package worker

import (
	"context"
	"errors"
	"time"

	"github.com/subgift/subgift/internal/config"
	"github.com/subgift/subgift/internal/logger"
	"github.com/subgift/subgift/internal/queue"

	"github.com/hibiken/asynq"
)

const defaultSweepInterval = 10 * time.Minute

// Service 异步队列服务（任务消费 + 到期礼物清扫）
type Service struct {
	name          string
	server        *asynq.Server
	mux           *asynq.ServeMux
	consumer      *Consumer
	sweepInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, giftCfg *config.GiftConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	sweepInterval := defaultSweepInterval
	if giftCfg != nil && giftCfg.SweepIntervalMinutes > 0 {
		sweepInterval = time.Duration(giftCfg.SweepIntervalMinutes) * time.Minute
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:          "worker",
		server:        server,
		mux:           mux,
		consumer:      consumer,
		sweepInterval: sweepInterval,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.GiftService != nil {
		go s.runGiftExpireSweepLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runGiftExpireSweepLoop 周期清扫到期未兑换的礼物
func (s *Service) runGiftExpireSweepLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.GiftService == nil {
		return
	}
	runOnce := func() {
		if _, err := s.consumer.GiftService.ExpireDueGifts(time.Now().UTC()); err != nil {
			logger.Warnw("worker_gift_expire_sweep_failed", "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
