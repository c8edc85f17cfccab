package queue

import (
	"encoding/json"

	"github.com/subgift/subgift/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskGiftNotify 礼物事件通知任务
	TaskGiftNotify = constants.TaskGiftNotify
)

// GiftNotifyPayload 礼物事件通知任务载荷
type GiftNotifyPayload struct {
	GiftID          uint   `json:"gift_id"`
	Event           string `json:"event"`
	DonorUserID     uint   `json:"donor_user_id"`
	RecipientUserID uint   `json:"recipient_user_id,omitempty"`
}

// NewGiftNotifyTask 创建礼物事件通知任务
func NewGiftNotifyTask(payload GiftNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGiftNotify, body), nil
}
