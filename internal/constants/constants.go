package constants

// 礼物状态常量
const (
	GiftStatusPendingPayment = "pending_payment"
	GiftStatusReady          = "ready"
	GiftStatusActivated      = "activated"
	GiftStatusExpired        = "expired"
	GiftStatusCancelled      = "cancelled"
	GiftStatusRefunded       = "refunded"
	GiftStatusPaymentFailed  = "payment_failed"
)

// 礼物接收方式常量
const (
	GiftRecipientTypeDirect = "direct"
	GiftRecipientTypeRandom = "random"
)

// 支付状态常量
const (
	PaymentStatusInitiated = "initiated"
	PaymentStatusPending   = "pending"
	PaymentStatusSuccess   = "success"
	PaymentStatusFailed    = "failed"
	PaymentStatusExpired   = "expired"
)

// 订阅状态常量
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusExpired  = "expired"
	SubscriptionStatusDisabled = "disabled"
)

// 订阅来源常量
const (
	SubscriptionSourcePurchase = "purchase"
	SubscriptionSourceGift     = "gift"
	SubscriptionSourceAdmin    = "admin"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 礼物码生成参数
const (
	GiftCodeLength      = 16
	GiftCodeMaxAttempts = 50
	GiftCodeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// 礼物创建限额参数
const (
	GiftMaxPerHour       = 3
	GiftMaxPerDay        = 10
	GiftMaxDailySpending = 10000
)

// 礼物有效期（天）
const GiftExpirationDays = 90

// 队列常量
const (
	QueueDefault             = "default"
	TaskGiftNotify           = "gift:notify"
	TaskGiftExpireSweep      = "gift:expire_sweep"
	TaskNotificationDispatch = "notification:dispatch"
)

// 礼物通知事件常量
const (
	GiftEventReady     = "gift_ready"
	GiftEventActivated = "gift_activated"
	GiftEventExpired   = "gift_expired"
	GiftEventCancelled = "gift_cancelled"
	GiftEventRefunded  = "gift_refunded"
	GiftEventPayFailed = "gift_payment_failed"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "sg"
)
