// internal/service/checkout/infrastructure/order_http_adapter.go
package infrastructure

import (
	"context"
	"fmt"
	"net/url"

	"bazaar/internal/pkg/constants"
	"bazaar/internal/pkg/httpclient"
	"bazaar/internal/service/checkout/domain"
	"bazaar/internal/service/checkout/port"
)

// wireOrder 是上游后端订单接口的线上形态。
type wireOrder struct {
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
}

// OrderHTTPAdapter 通过上游商城后端的 REST 接口实现订单端口。
type OrderHTTPAdapter struct {
	client *httpclient.Client
}

func NewOrderHTTPAdapter(client *httpclient.Client) *OrderHTTPAdapter {
	return &OrderHTTPAdapter{client: client}
}

func (a *OrderHTTPAdapter) CreateOrder(ctx context.Context, token string, req *port.CreateOrderRequest) (string, error) {
	var out wireOrder
	if err := a.client.Post(ctx, constants.CommerceBackend, constants.OrdersPath, nil, token, req, &out); err != nil {
		return "", err
	}
	if out.OrderID == "" {
		return "", fmt.Errorf("upstream returned empty order id")
	}
	return out.OrderID, nil
}

func (a *OrderHTTPAdapter) GetOrder(ctx context.Context, token, orderID string) (*port.OrderStatusInfo, error) {
	var out wireOrder
	path := fmt.Sprintf("%s/%s", constants.OrdersPath, orderID)
	if err := a.client.Get(ctx, constants.CommerceBackend, path, nil, token, &out); err != nil {
		return nil, err
	}
	return &port.OrderStatusInfo{
		OrderID:       orderID,
		Status:        domain.OrderStatus(out.Status),
		PaymentStatus: domain.PaymentStatus(out.PaymentStatus),
	}, nil
}

func (a *OrderHTTPAdapter) CancelOrder(ctx context.Context, token, orderID, reason string) error {
	params := url.Values{}
	params.Set("reason", reason)
	path := fmt.Sprintf("%s/%s/cancel", constants.OrdersPath, orderID)
	return a.client.Put(ctx, constants.CommerceBackend, path, params, token, nil, nil)
}
