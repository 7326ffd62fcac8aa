// internal/service/voucher/port/gateway.go
package port

import (
	"context"

	"bazaar/internal/service/voucher/domain"
)

// CheckResult 是服务端校验一张券的结果。
type CheckResult struct {
	Valid             bool
	Message           string
	DiscountType      domain.DiscountType
	DiscountValue     int64
	MaxDiscountAmount *int64
	MinOrderAmount    int64
	DiscountAmount    int64
}

// VoucherGateway 是券校验的出站端口，由上游商城后端的 HTTP 适配器实现。
type VoucherGateway interface {
	Check(ctx context.Context, token, code string, orderAmount int64) (*CheckResult, error)
}

// ApplyFact 是本地预检规则的输入事实。
type ApplyFact struct {
	Code          string
	OrderAmount   int64
	SelectedCount int
}

// RulePrefilter 在发起远端校验前执行本地守卫规则。
// 返回第一个被违反规则对应的领域错误；全部通过时返回 nil。
type RulePrefilter interface {
	Evaluate(fact ApplyFact) error
}
