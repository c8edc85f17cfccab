package models

import (
	"time"

	"gorm.io/gorm"
)

// Tariff 订阅套餐表
type Tariff struct {
	ID           uint           `gorm:"primarykey" json:"id"`                       // 主键
	Name         string         `gorm:"type:varchar(120);not null" json:"name"`     // 套餐名称
	DurationDays int            `gorm:"not null" json:"duration_days"`              // 订阅时长（天）
	Price        Money          `gorm:"type:decimal(20,2);not null" json:"price"`   // 套餐价格
	Currency     string         `gorm:"type:varchar(16);not null;default:'RUB'" json:"currency"` // 币种
	IsActive     bool           `gorm:"not null;index" json:"is_active"`            // 是否可售，业务层显式赋值
	SortOrder    int            `gorm:"not null;default:0" json:"sort_order"`       // 排序权重
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                    // 创建时间
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`                    // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                             // 软删除时间
}

// TableName 指定表名
func (Tariff) TableName() string {
	return "tariffs"
}
