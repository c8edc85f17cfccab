package models

import (
	"time"

	"gorm.io/gorm"
)

// User 用户表（聊天端用户，按外部 chat_user_id 关联）
type User struct {
	ID          uint           `gorm:"primarykey" json:"id"`                           // 主键
	ChatUserID  int64          `gorm:"uniqueIndex;not null" json:"chat_user_id"`       // 聊天平台用户ID
	Username    string         `gorm:"type:varchar(64);index" json:"username"`         // 聊天平台用户名
	DisplayName string         `gorm:"type:varchar(120);default:''" json:"display_name"` // 昵称
	Status      string         `gorm:"type:varchar(24);index;not null;default:'active'" json:"status"` // 账号状态
	LastSeenAt  *time.Time     `json:"last_seen_at"`                                   // 最后活跃时间
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                        // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                        // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                 // 软删除时间
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
