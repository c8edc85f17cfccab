package main

import (
	"github.com/subgift/subgift/internal/config"
	"github.com/subgift/subgift/internal/constants"
	"github.com/subgift/subgift/internal/logger"
	"github.com/subgift/subgift/internal/models"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 默认管理员
	if err := models.InitDefaultAdmin("", ""); err != nil {
		stdLog.Printf("Failed to init default admin: %v", err)
	}

	// 订阅套餐
	tariffs := []models.Tariff{
		{
			Name:         "1 个月",
			DurationDays: 30,
			Price:        models.NewMoneyFromDecimal(decimal.NewFromInt(199)),
			Currency:     "RUB",
			IsActive:     true,
			SortOrder:    1,
		},
		{
			Name:         "3 个月",
			DurationDays: 90,
			Price:        models.NewMoneyFromDecimal(decimal.NewFromInt(499)),
			Currency:     "RUB",
			IsActive:     true,
			SortOrder:    2,
		},
		{
			Name:         "6 个月",
			DurationDays: 180,
			Price:        models.NewMoneyFromDecimal(decimal.NewFromInt(899)),
			Currency:     "RUB",
			IsActive:     true,
			SortOrder:    3,
		},
		{
			Name:         "12 个月",
			DurationDays: 365,
			Price:        models.NewMoneyFromDecimal(decimal.NewFromInt(1599)),
			Currency:     "RUB",
			IsActive:     true,
			SortOrder:    4,
		},
	}

	for _, tariff := range tariffs {
		var existing models.Tariff
		if err := models.DB.Where("name = ?", tariff.Name).First(&existing).Error; err != nil {
			if err := models.DB.Create(&tariff).Error; err != nil {
				stdLog.Printf("Failed to create tariff %s: %v", tariff.Name, err)
			} else {
				stdLog.Printf("Created tariff: %s (%d days)", tariff.Name, tariff.DurationDays)
			}
		} else {
			stdLog.Printf("Tariff already exists: %s", tariff.Name)
		}
	}

	// 演示用户
	users := []models.User{
		{ChatUserID: 100001, Username: "alice_demo", DisplayName: "Alice", Status: constants.UserStatusActive},
		{ChatUserID: 100002, Username: "bob_demo", DisplayName: "Bob", Status: constants.UserStatusActive},
		{ChatUserID: 100003, Username: "carol_demo", DisplayName: "Carol", Status: constants.UserStatusActive},
	}

	for _, user := range users {
		var existing models.User
		if err := models.DB.Where("chat_user_id = ?", user.ChatUserID).First(&existing).Error; err != nil {
			if err := models.DB.Create(&user).Error; err != nil {
				stdLog.Printf("Failed to create user %s: %v", user.Username, err)
			} else {
				stdLog.Printf("Created user: %s (%d)", user.Username, user.ChatUserID)
			}
		} else {
			stdLog.Printf("User already exists: %s", user.Username)
		}
	}

	stdLog.Printf("Seed completed")
}
