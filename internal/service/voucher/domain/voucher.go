// internal/service/voucher/domain/voucher.go
package domain

// DiscountType 区分按比例折扣与固定金额折扣。
type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE" // DiscountValue 为百分比点数 (0-100)
	DiscountFixed      DiscountType = "FIXED"      // DiscountValue 为固定金额
)

// AppliedVoucher 是一张已通过服务端校验并应用到会话上的代金券。
// 同一时刻最多只有一张生效券；应用新券前必须先移除旧券。
type AppliedVoucher struct {
	VoucherCode       string       `json:"voucherCode"`
	DiscountType      DiscountType `json:"discountType"`
	DiscountValue     int64        `json:"discountValue"`
	MaxDiscountAmount *int64       `json:"maxDiscountAmount,omitempty"` // 仅对 PERCENTAGE 生效的封顶
	MinOrderAmount    int64        `json:"minOrderAmount"`

	// DiscountAmount 是服务端校验时算出的折扣，只作展示提示；
	// 小计变化后的权威数值一律由 ComputeDiscount 现算。
	DiscountAmount int64 `json:"discountAmount"`
}

// ComputeDiscount 计算某个小计下该券的生效折扣。纯函数，无副作用。
// 规则：
//   - 券为 nil 时折扣为 0；
//   - 小计低于门槛时折扣为 0，但券保持"已应用"状态（调用方据此提示未达门槛，而非当作没有券）；
//   - PERCENTAGE 按比例计算，先按 MaxDiscountAmount 封顶；
//   - 任何情况下折扣不超过小计本身，总价永不为负。
//
// 小计每次变化（勾选切换、数量调整）后都必须重新调用本函数。
func ComputeDiscount(subtotal int64, v *AppliedVoucher) int64 {
	if v == nil || subtotal <= 0 {
		return 0
	}
	if subtotal < v.MinOrderAmount {
		return 0
	}

	var discount int64
	switch v.DiscountType {
	case DiscountPercentage:
		discount = subtotal * v.DiscountValue / 100
		if v.MaxDiscountAmount != nil && discount > *v.MaxDiscountAmount {
			discount = *v.MaxDiscountAmount
		}
	case DiscountFixed:
		discount = v.DiscountValue
	default:
		return 0
	}

	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
