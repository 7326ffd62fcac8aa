// internal/service/checkout/infrastructure/payment_http_adapter.go
package infrastructure

import (
	"context"
	"fmt"
	"net/url"

	"bazaar/internal/pkg/constants"
	"bazaar/internal/pkg/httpclient"
)

// wireVNPayCreate 是 VNPAY 创建接口的响应形态。
type wireVNPayCreate struct {
	PaymentURL string `json:"paymentUrl"`
}

// PaymentHTTPAdapter 通过上游后端的支付接口实现支付端口。
// 真正的 VNPAY 签名与回调都在服务端完成，这里只拿跳转地址。
type PaymentHTTPAdapter struct {
	client *httpclient.Client
}

func NewPaymentHTTPAdapter(client *httpclient.Client) *PaymentHTTPAdapter {
	return &PaymentHTTPAdapter{client: client}
}

func (a *PaymentHTTPAdapter) CreateVNPayPayment(ctx context.Context, token, orderID string) (string, error) {
	params := url.Values{}
	params.Set("orderId", orderID)
	var out wireVNPayCreate
	if err := a.client.Post(ctx, constants.CommerceBackend, constants.VNPayCreatePath, params, token, nil, &out); err != nil {
		return "", err
	}
	if out.PaymentURL == "" {
		return "", fmt.Errorf("upstream returned empty payment url")
	}
	return out.PaymentURL, nil
}
