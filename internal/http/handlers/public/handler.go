package public

import "github.com/subgift/subgift/internal/provider"

// Handler 聊天端网关接口处理器入口
// 说明：该处理器由聊天端网关以服务令牌调用，请求中携带聊天平台用户身份。
type Handler struct {
	*provider.Container
}

// New 创建网关处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
