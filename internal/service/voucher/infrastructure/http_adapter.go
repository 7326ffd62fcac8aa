// internal/service/voucher/infrastructure/http_adapter.go
package infrastructure

import (
	"context"
	"net/url"
	"strconv"

	"bazaar/internal/pkg/constants"
	"bazaar/internal/pkg/httpclient"
	"bazaar/internal/service/voucher/domain"
	"bazaar/internal/service/voucher/port"
)

// wireVoucherCheck 是上游券校验接口的响应形态。
// 新旧两个版本的后端分别用 isValid / valid 字段，这里同时接住。
type wireVoucherCheck struct {
	IsValid           *bool  `json:"isValid"`
	Valid             *bool  `json:"valid"`
	Message           string `json:"message"`
	DiscountType      string `json:"discountType"`
	DiscountValue     int64  `json:"discountValue"`
	MaxDiscountAmount *int64 `json:"maxDiscountAmount"`
	MinOrderAmount    int64  `json:"minOrderAmount"`
	DiscountAmount    int64  `json:"discountAmount"`
}

func (w wireVoucherCheck) valid() bool {
	if w.IsValid != nil {
		return *w.IsValid
	}
	return w.Valid != nil && *w.Valid
}

// VoucherHTTPAdapter 实现 port.VoucherGateway。
type VoucherHTTPAdapter struct {
	client *httpclient.Client
}

// NewVoucherHTTPAdapter 创建券校验适配器。
func NewVoucherHTTPAdapter(client *httpclient.Client) *VoucherHTTPAdapter {
	return &VoucherHTTPAdapter{client: client}
}

func (a *VoucherHTTPAdapter) Check(ctx context.Context, token, code string, orderAmount int64) (*port.CheckResult, error) {
	params := url.Values{}
	params.Set("code", code)
	params.Set("orderAmount", strconv.FormatInt(orderAmount, 10))

	var wire wireVoucherCheck
	if err := a.client.Get(ctx, constants.CommerceBackend, constants.VoucherCheckPath, params, token, &wire); err != nil {
		return nil, err
	}

	return &port.CheckResult{
		Valid:             wire.valid(),
		Message:           wire.Message,
		DiscountType:      domain.DiscountType(wire.DiscountType),
		DiscountValue:     wire.DiscountValue,
		MaxDiscountAmount: wire.MaxDiscountAmount,
		MinOrderAmount:    wire.MinOrderAmount,
		DiscountAmount:    wire.DiscountAmount,
	}, nil
}

var _ port.VoucherGateway = (*VoucherHTTPAdapter)(nil)
