// internal/service/checkout/domain/pricing.go
package domain

import (
	"fmt"
	"strings"
	"sync"

	cartdomain "bazaar/internal/service/cart/domain"
	voucherdomain "bazaar/internal/service/voucher/domain"
)

// FlatShippingFee 是单档平价运费，没有重量/距离模型。
const FlatShippingFee int64 = 20000

// Quote 是对 (购物车, 勾选集, 生效券) 的一次金额推导结果。
type Quote struct {
	Subtotal    int64 `json:"subtotal"`
	ShippingFee int64 `json:"shippingFee"`
	Discount    int64 `json:"discount"`
	Total       int64 `json:"total"`

	// SelectedCount 是参与计价的行数；为 0 时结算动作必须被禁用。
	SelectedCount int `json:"selectedCount"`

	// VoucherInert 表示有生效券但小计未达门槛，折扣被压为 0。
	// 调用方应据此提示"未满门槛"，而不是当作没有券。
	VoucherInert bool `json:"voucherInert"`
}

// ComputeQuote 推导小计、运费、折扣与总价。纯函数：
//   - 小计只累计被勾选的行，按生效单价计；
//   - 运费为平价单档，小计为 0 时免运费；
//   - 折扣由 voucher 域的 ComputeDiscount 现算；
//   - 总价 = max(0, 小计 + 运费 - 折扣)。
func ComputeQuote(items []cartdomain.CartItem, selection cartdomain.Selection, voucher *voucherdomain.AppliedVoucher) Quote {
	var subtotal int64
	selectedCount := 0
	for _, it := range items {
		if selection.Has(it.Key()) {
			subtotal += it.LineTotal()
			selectedCount++
		}
	}

	var shipping int64
	if subtotal > 0 {
		shipping = FlatShippingFee
	}

	discount := voucherdomain.ComputeDiscount(subtotal, voucher)

	total := subtotal + shipping - discount
	if total < 0 {
		total = 0
	}

	return Quote{
		Subtotal:      subtotal,
		ShippingFee:   shipping,
		Discount:      discount,
		Total:         total,
		SelectedCount: selectedCount,
		VoucherInert:  voucher != nil && subtotal > 0 && subtotal < voucher.MinOrderAmount,
	}
}

// QuoteCache 缓存最近一次的报价，输入指纹不变时直接复用。
// 计价本身很便宜，缓存的意义在于让高频轮询方（角标、报价接口）拿到稳定结果。
type QuoteCache struct {
	mu          sync.Mutex
	fingerprint string
	quote       Quote
}

// Get 返回输入对应的报价，必要时重算。
func (c *QuoteCache) Get(items []cartdomain.CartItem, selection cartdomain.Selection, voucher *voucherdomain.AppliedVoucher) Quote {
	fp := fingerprint(items, selection, voucher)

	c.mu.Lock()
	defer c.mu.Unlock()
	if fp == c.fingerprint {
		return c.quote
	}
	c.quote = ComputeQuote(items, selection, voucher)
	c.fingerprint = fp
	return c.quote
}

func fingerprint(items []cartdomain.CartItem, selection cartdomain.Selection, voucher *voucherdomain.AppliedVoucher) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "%s:%d:%d;", it.Key(), it.Quantity, it.EffectiveUnitPrice())
	}
	b.WriteString("|")
	for _, k := range selection.Keys() {
		b.WriteString(k)
		b.WriteString(",")
	}
	b.WriteString("|")
	if voucher != nil {
		fmt.Fprintf(&b, "%s:%s:%d:%d", voucher.VoucherCode, voucher.DiscountType, voucher.DiscountValue, voucher.MinOrderAmount)
		if voucher.MaxDiscountAmount != nil {
			fmt.Fprintf(&b, ":%d", *voucher.MaxDiscountAmount)
		}
	}
	return b.String()
}
