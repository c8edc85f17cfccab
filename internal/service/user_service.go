package service

import (
	"github.com/subgift/subgift/internal/models"
	"github.com/subgift/subgift/internal/repository"
)

// UserService 用户服务
type UserService struct {
	repo repository.UserRepository
}

// NewUserService 创建用户服务
func NewUserService(repo repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// EnsureUser 按聊天平台身份创建或刷新用户
func (s *UserService) EnsureUser(chatUserID int64, username, displayName string) (*models.User, error) {
	if s == nil || s.repo == nil || chatUserID == 0 {
		return nil, ErrUserNotFound
	}
	user, err := s.repo.Upsert(chatUserID, username, displayName)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetByChatUserID 根据聊天平台用户ID查询用户
func (s *UserService) GetByChatUserID(chatUserID int64) (*models.User, error) {
	if s == nil || s.repo == nil {
		return nil, ErrUserNotFound
	}
	user, err := s.repo.GetByChatUserID(chatUserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
