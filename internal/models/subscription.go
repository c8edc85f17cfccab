package models

import (
	"time"

	"gorm.io/gorm"
)

// Subscription 订阅表
type Subscription struct {
	ID          uint           `gorm:"primarykey" json:"id"`                       // 主键
	UserID      uint           `gorm:"index;not null" json:"user_id"`              // 所属用户ID
	TariffID    uint           `gorm:"index;not null" json:"tariff_id"`            // 套餐ID
	AccessToken string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"access_token"` // 访问凭证
	Source      string         `gorm:"type:varchar(24);not null" json:"source"`    // 来源（purchase/gift/admin）
	GiftID      *uint          `gorm:"index" json:"gift_id,omitempty"`             // 来源礼物ID
	Status      string         `gorm:"type:varchar(24);index;not null;default:'active'" json:"status"` // 订阅状态
	StartsAt    time.Time      `gorm:"index;not null" json:"starts_at"`            // 生效时间
	ExpiresAt   time.Time      `gorm:"index;not null" json:"expires_at"`           // 到期时间
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                    // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                    // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                             // 软删除时间
	Tariff      *Tariff        `gorm:"foreignKey:TariffID" json:"tariff,omitempty"` // 套餐信息
}

// TableName 指定表名
func (Subscription) TableName() string {
	return "subscriptions"
}
