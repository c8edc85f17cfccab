package public

import (
	handlershared "github.com/subgift/subgift/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

// ChatUserRequest 聊天平台用户身份载荷
type ChatUserRequest struct {
	ChatUserID  int64  `json:"chat_user_id" binding:"required"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}
