package provider

import (
	"github.com/subgift/subgift/internal/cache"
	"github.com/subgift/subgift/internal/config"
	"github.com/subgift/subgift/internal/logger"
	"github.com/subgift/subgift/internal/models"
	"github.com/subgift/subgift/internal/queue"
	"github.com/subgift/subgift/internal/repository"
	"github.com/subgift/subgift/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo        repository.AdminRepository
	UserRepo         repository.UserRepository
	TariffRepo       repository.TariffRepository
	GiftRepo         repository.GiftRepository
	PaymentRepo      repository.PaymentRepository
	SubscriptionRepo repository.SubscriptionRepository

	// Services
	AuthService         *service.AuthService
	UserService         *service.UserService
	TariffService       *service.TariffService
	GiftLimitService    *service.GiftLimitService
	SubscriptionService *service.SubscriptionService
	NotificationService *service.NotificationService
	GiftService         *service.GiftService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.TariffRepo = repository.NewTariffRepository(db)
	c.GiftRepo = repository.NewGiftRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.SubscriptionRepo = repository.NewSubscriptionRepository(db)
}

func (c *Container) initServices() {
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.UserService = service.NewUserService(c.UserRepo)
	c.TariffService = service.NewTariffService(c.TariffRepo)
	c.GiftLimitService = service.NewGiftLimitService(
		c.GiftRepo,
		c.Config.Gift.MaxPerHour,
		c.Config.Gift.MaxPerDay,
		c.Config.Gift.MaxDailySpending,
	)
	c.SubscriptionService = service.NewSubscriptionService(c.SubscriptionRepo, c.TariffRepo)
	c.NotificationService = service.NewNotificationService(c.QueueClient, &c.Config.Notify)
	c.GiftService = service.NewGiftService(
		c.GiftRepo,
		c.UserRepo,
		c.TariffRepo,
		c.PaymentRepo,
		c.SubscriptionService,
		c.GiftLimitService,
		c.NotificationService,
		c.Config.Gift.ExpirationDays,
	)
}
