package service

import "errors"

// 礼物业务错误
var (
	ErrGiftInvalid            = errors.New("gift invalid")
	ErrGiftNotFound           = errors.New("gift not found")
	ErrGiftFetchFailed        = errors.New("gift fetch failed")
	ErrGiftCreateFailed       = errors.New("gift create failed")
	ErrGiftUpdateFailed       = errors.New("gift update failed")
	ErrGiftCodeSpaceExhausted = errors.New("gift code space exhausted")
	ErrGiftNotReady           = errors.New("gift not ready")
	ErrGiftAlreadyActivated   = errors.New("gift already activated")
	ErrGiftExpired            = errors.New("gift expired")
	ErrGiftCancelled          = errors.New("gift cancelled")
	ErrGiftRefunded           = errors.New("gift refunded")
	ErrGiftPaymentFailed      = errors.New("gift payment failed")
	ErrGiftNotRecipient       = errors.New("gift recipient mismatch")
	ErrGiftSelfRedeem         = errors.New("gift self redeem forbidden")
	ErrGiftNotCancellable     = errors.New("gift not cancellable")
	ErrGiftNotRefundable      = errors.New("gift not refundable")
	ErrGiftAccessDenied       = errors.New("gift access denied")
	ErrGiftFulfillmentFailed  = errors.New("gift fulfillment failed")
)

// 礼物创建限额错误
var (
	ErrGiftHourlyLimited = errors.New("gift hourly limit reached")
	ErrGiftDailyLimited  = errors.New("gift daily limit reached")
	ErrGiftSpendLimited  = errors.New("gift daily spending limit reached")
)

// 套餐与用户错误
var (
	ErrTariffNotFound    = errors.New("tariff not found")
	ErrTariffUnavailable = errors.New("tariff unavailable")
	ErrTariffInvalid     = errors.New("tariff invalid")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserDisabled      = errors.New("user disabled")
)

// 支付错误
var (
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrPaymentFetchFailed = errors.New("payment fetch failed")
)

// 订阅错误
var (
	ErrSubscriptionCreateFailed = errors.New("subscription create failed")
)

// 管理员认证错误
var (
	ErrAdminInvalidCredentials = errors.New("admin invalid credentials")
	ErrAdminTokenInvalid       = errors.New("admin token invalid")
	ErrAdminNotFound           = errors.New("admin not found")
	ErrAdminPasswordInvalid    = errors.New("admin password invalid")
	ErrAdminPasswordWeak       = errors.New("admin password too weak")
)
