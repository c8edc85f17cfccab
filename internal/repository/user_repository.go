package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/subgift/subgift/internal/constants"
	"github.com/subgift/subgift/internal/models"

	"gorm.io/gorm"
)

// UserRepository 用户仓储接口
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByChatUserID(chatUserID int64) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	Upsert(chatUserID int64, username, displayName string) (*models.User, error)
	GetRandomActiveExcluding(excludeIDs []uint) (*models.User, error)
	Update(user *models.User) error
	WithTx(tx *gorm.DB) *GormUserRepository
}

// GormUserRepository GORM 用户仓储实现
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// WithTx 绑定事务
func (r *GormUserRepository) WithTx(tx *gorm.DB) *GormUserRepository {
	if tx == nil {
		return r
	}
	return &GormUserRepository{db: tx}
}

// Create 创建用户
func (r *GormUserRepository) Create(user *models.User) error {
	if user == nil {
		return errors.New("invalid user")
	}
	return r.db.Create(user).Error
}

// GetByID 根据 ID 查询用户
func (r *GormUserRepository) GetByID(id uint) (*models.User, error) {
	if id == 0 {
		return nil, nil
	}
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByChatUserID 根据聊天平台用户ID查询用户
func (r *GormUserRepository) GetByChatUserID(chatUserID int64) (*models.User, error) {
	if chatUserID == 0 {
		return nil, nil
	}
	var user models.User
	if err := r.db.Where("chat_user_id = ?", chatUserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByUsername 根据用户名查询用户
func (r *GormUserRepository) GetByUsername(username string) (*models.User, error) {
	username = strings.TrimSpace(strings.TrimPrefix(username, "@"))
	if username == "" {
		return nil, nil
	}
	var user models.User
	if err := r.db.Where("LOWER(username) = LOWER(?)", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Upsert 创建或刷新用户资料
func (r *GormUserRepository) Upsert(chatUserID int64, username, displayName string) (*models.User, error) {
	user, err := r.GetByChatUserID(chatUserID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if user == nil {
		user = &models.User{
			ChatUserID:  chatUserID,
			Username:    strings.TrimPrefix(strings.TrimSpace(username), "@"),
			DisplayName: strings.TrimSpace(displayName),
			Status:      constants.UserStatusActive,
			LastSeenAt:  &now,
		}
		if err := r.db.Create(user).Error; err != nil {
			return nil, err
		}
		return user, nil
	}
	user.Username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if displayName = strings.TrimSpace(displayName); displayName != "" {
		user.DisplayName = displayName
	}
	user.LastSeenAt = &now
	if err := r.db.Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// GetRandomActiveExcluding 随机挑选一名活跃用户（排除指定用户）
func (r *GormUserRepository) GetRandomActiveExcluding(excludeIDs []uint) (*models.User, error) {
	query := r.db.Where("status = ?", constants.UserStatusActive)
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}
	var user models.User
	if err := query.Order("RANDOM()").First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Update 更新用户
func (r *GormUserRepository) Update(user *models.User) error {
	if user == nil {
		return errors.New("invalid user")
	}
	return r.db.Save(user).Error
}
