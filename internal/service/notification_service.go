package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/subgift/subgift/internal/config"
	"github.com/subgift/subgift/internal/logger"
	"github.com/subgift/subgift/internal/models"
	"github.com/subgift/subgift/internal/queue"
)

// NotificationService 礼物事件通知服务
// 事件先进入异步队列，由 worker 回推聊天端网关的 webhook；
// 通知失败不影响礼物状态流转。
type NotificationService struct {
	queueClient *queue.Client
	cfg         *config.NotifyConfig
	httpClient  *http.Client
}

// NewNotificationService 创建通知服务
func NewNotificationService(queueClient *queue.Client, cfg *config.NotifyConfig) *NotificationService {
	timeout := 3 * time.Second
	if cfg != nil && cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	return &NotificationService{
		queueClient: queueClient,
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// NotifyGiftEvent 投递礼物事件通知任务
func (s *NotificationService) NotifyGiftEvent(gift *models.Gift, event string) {
	if s == nil || gift == nil {
		return
	}
	payload := queue.GiftNotifyPayload{
		GiftID:      gift.ID,
		Event:       event,
		DonorUserID: gift.DonorUserID,
	}
	if gift.RecipientUserID != nil {
		payload.RecipientUserID = *gift.RecipientUserID
	}
	if err := s.queueClient.EnqueueGiftNotify(payload); err != nil {
		logger.Warnw("gift_notify_enqueue_failed",
			"gift_id", gift.ID,
			"event", event,
			"error", err,
		)
	}
}

// DeliverGiftEvent 回推礼物事件到聊天端网关
// 由 worker 消费通知任务时调用；返回错误触发 asynq 重试。
func (s *NotificationService) DeliverGiftEvent(payload queue.GiftNotifyPayload) error {
	if s == nil || s.cfg == nil || !s.cfg.Enabled {
		logger.Debugw("gift_notify_skipped", "gift_id", payload.GiftID, "event", payload.Event)
		return nil
	}
	webhookURL := strings.TrimSpace(s.cfg.WebhookURL)
	if webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Post(webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("gift notify webhook status %d", resp.StatusCode)
	}
	logger.Infow("gift_notify_delivered",
		"gift_id", payload.GiftID,
		"event", payload.Event,
	)
	return nil
}
