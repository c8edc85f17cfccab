package router

import (
	"fmt"
	"strings"

	"github.com/subgift/subgift/internal/cache"
	"github.com/subgift/subgift/internal/config"
	adminhandlers "github.com/subgift/subgift/internal/http/handlers/admin"
	publichandlers "github.com/subgift/subgift/internal/http/handlers/public"
	"github.com/subgift/subgift/internal/logger"
	"github.com/subgift/subgift/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "sg"
	}
	redisClient := cache.Client()
	activateRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:activate", redisPrefix),
		WindowSeconds: cfg.Security.ActivateRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.ActivateRateLimit.MaxAttempts,
		Message:       "error.activate_too_many",
	}
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.ActivateRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.ActivateRateLimit.MaxAttempts,
		Message:       "error.login_too_many",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 内部业务接口（机器人网关持静态令牌调用）
		internal := apiV1.Group("")
		internal.Use(InternalTokenMiddleware(cfg.API.InternalToken))
		{
			internal.GET("/tariffs", publicHandler.ListTariffs)

			internal.POST("/gifts", publicHandler.CreateGift)
			internal.GET("/gifts/validate", publicHandler.ValidateGiftCode)
			internal.POST("/gifts/activate",
				RateLimitMiddleware(redisClient, activateRule, KeyByIPAndJSONField("redeemer.chat_user_id")),
				publicHandler.ActivateGift)
			internal.POST("/gifts/:id/cancel", publicHandler.CancelGift)
			internal.GET("/gifts/sent", publicHandler.ListSentGifts)
			internal.GET("/gifts/received", publicHandler.ListReceivedGifts)
			internal.GET("/gifts/stats", publicHandler.UserGiftStats)
			internal.GET("/gifts/random-recipient", publicHandler.RandomRecipient)

			internal.POST("/payments/webhook", publicHandler.PaymentWebhook)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIP), adminHandler.Login)

			// 需要鉴权的接口
			authorized := admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			{
				authorized.PUT("/password", adminHandler.UpdatePassword)

				// 礼物管理
				authorized.GET("/gifts", adminHandler.ListGifts)
				authorized.GET("/gifts/stats", adminHandler.GiftStats)
				authorized.GET("/gifts/:id", adminHandler.GetGift)
				authorized.POST("/gifts/:id/cancel", adminHandler.CancelGift)
				authorized.POST("/gifts/:id/refund", adminHandler.RefundGift)
				authorized.POST("/gifts/sweep", adminHandler.SweepExpiredGifts)

				// 套餐管理
				authorized.GET("/tariffs", adminHandler.ListTariffs)
				authorized.POST("/tariffs", adminHandler.CreateTariff)
				authorized.PUT("/tariffs/:id", adminHandler.UpdateTariff)
				authorized.DELETE("/tariffs/:id", adminHandler.DeleteTariff)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
