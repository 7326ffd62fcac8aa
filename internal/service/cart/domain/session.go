// internal/service/cart/domain/session.go
package domain

// Session 标识一次购物会话。
// AuthToken 为空时是游客会话，购物车只存在于本地存储；
// 非空时购物车以服务端为准，本地只做缓存。
type Session struct {
	ID        string
	AuthToken string
}

// Authenticated 报告该会话是否已登录。
// 后端选择只看这一处判断，不在各操作里散落 token 分支。
func (s Session) Authenticated() bool {
	return s.AuthToken != ""
}
