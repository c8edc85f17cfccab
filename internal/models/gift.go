package models

import (
	"time"

	"gorm.io/gorm"
)

// Gift 礼物订阅表
type Gift struct {
	ID                uint           `gorm:"primarykey" json:"id"`                              // 主键
	Code              string         `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"` // 兑换码
	DonorUserID       uint           `gorm:"index;not null" json:"donor_user_id"`               // 赠送人用户ID
	DonorUsername     string         `gorm:"type:varchar(64)" json:"donor_username"`            // 赠送人用户名快照
	RecipientType     string         `gorm:"type:varchar(16);not null" json:"recipient_type"`   // 接收方式（direct/random）
	RecipientUserID   *uint          `gorm:"index" json:"recipient_user_id,omitempty"`          // 接收人用户ID
	RecipientUsername string         `gorm:"type:varchar(64)" json:"recipient_username"`        // 接收人用户名快照
	TariffID          uint           `gorm:"index;not null" json:"tariff_id"`                   // 套餐ID
	Price             Money          `gorm:"type:decimal(20,2);not null" json:"price"`          // 下单时套餐价格
	Currency          string         `gorm:"type:varchar(16);not null" json:"currency"`         // 币种
	DurationDays      int            `gorm:"not null;default:0" json:"duration_days"`           // 下单时套餐时长快照（天）
	Message           string         `gorm:"type:text" json:"message"`                          // 赠言
	Metadata          JSON           `gorm:"type:json" json:"metadata,omitempty"`               // 创建方透传数据，原样保存
	Status            string         `gorm:"type:varchar(24);index:idx_gifts_status_expires,priority:1;not null;default:'pending_payment'" json:"status"` // 礼物状态
	IdempotencyKey    *string        `gorm:"type:varchar(64);uniqueIndex" json:"-"`             // 创建幂等键
	PaymentID         *uint          `gorm:"uniqueIndex" json:"payment_id,omitempty"`           // 成功支付ID
	SubscriptionID    *uint          `gorm:"index" json:"subscription_id,omitempty"`            // 激活生成的订阅ID
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`                           // 创建时间
	UpdatedAt         time.Time      `gorm:"index" json:"updated_at"`                           // 更新时间
	PaidAt            *time.Time     `gorm:"index" json:"paid_at"`                              // 支付时间
	ActivatedAt       *time.Time     `gorm:"index" json:"activated_at"`                         // 激活时间
	ExpiresAt         *time.Time     `gorm:"index:idx_gifts_status_expires,priority:2" json:"expires_at"` // 兑换截止时间
	CancelledAt       *time.Time     `json:"cancelled_at"`                                      // 取消时间
	RefundedAt        *time.Time     `json:"refunded_at"`                                       // 退款时间
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`                                    // 软删除时间
	Tariff            *Tariff        `gorm:"foreignKey:TariffID" json:"tariff,omitempty"`       // 套餐信息
}

// TableName 指定表名
func (Gift) TableName() string {
	return "gifts"
}
