package worker

import (
	"context"
	"encoding/json"

	"github.com/subgift/subgift/internal/logger"
	"github.com/subgift/subgift/internal/provider"
	"github.com/subgift/subgift/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskGiftNotify, c.handleGiftNotify)
}

func (c *Consumer) handleGiftNotify(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_gift_notify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.GiftNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_gift_notify_unmarshal_failed", "error", err)
		return err
	}
	if payload.GiftID == 0 {
		logger.Debugw("worker_gift_notify_skip_invalid_payload", "gift_id", payload.GiftID)
		return nil
	}
	if c.NotificationService == nil {
		logger.Warnw("worker_gift_notify_skip_service_nil", "gift_id", payload.GiftID)
		return nil
	}
	if err := c.NotificationService.DeliverGiftEvent(payload); err != nil {
		logger.Warnw("worker_gift_notify_deliver_failed",
			"gift_id", payload.GiftID,
			"event", payload.Event,
			"error", err,
		)
		return err
	}
	return nil
}
