// internal/service/checkout/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	cartdomain "bazaar/internal/service/cart/domain"
	"bazaar/internal/service/checkout/application"
	"bazaar/internal/service/checkout/domain"
)

// CheckoutHandler 封装了结算服务的 HTTP 处理器。
type CheckoutHandler struct {
	orch   *application.Orchestrator
	poller *application.PaymentPoller
}

// NewCheckoutHandler 创建一个新的 HTTP 处理器实例。
func NewCheckoutHandler(orch *application.Orchestrator, poller *application.PaymentPoller) *CheckoutHandler {
	return &CheckoutHandler{orch: orch, poller: poller}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *CheckoutHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/checkout/address", h.handleAddress)
	mux.HandleFunc("/checkout/quote", h.handleQuote)
	mux.HandleFunc("/checkout/confirm", h.handleConfirm)
	mux.HandleFunc("/checkout/await_payment", h.handleAwaitPayment)
	mux.HandleFunc("/checkout/cancel_order", h.handleCancelOrder)
	mux.HandleFunc("/checkout/history", h.handleHistory)
}

func sessionFromRequest(r *http.Request) (cartdomain.Session, bool) {
	sess := cartdomain.Session{ID: r.Header.Get("X-Session-Id")}
	if sess.ID == "" {
		sess.ID = r.URL.Query().Get("sessionId")
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		sess.AuthToken = strings.TrimPrefix(auth, "Bearer ")
	}
	return sess, sess.ID != ""
}

// writeCheckoutError 根据错误类型返回不同的 HTTP 状态码。
func writeCheckoutError(w http.ResponseWriter, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrMissingAddress),
		errors.Is(err, domain.ErrEmptySelection):
		statusCode = http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotCancellable):
		statusCode = http.StatusForbidden
	case errors.Is(err, domain.ErrOrderCreateFailed),
		errors.Is(err, domain.ErrPaymentInitFailed):
		statusCode = http.StatusBadGateway
	default:
		statusCode = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), statusCode)
}

func (h *CheckoutHandler) handleAddress(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	sess, ok := sessionFromRequest(r)
	if !ok {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		addr, err := h.orch.Address(ctx, sess)
		if err != nil {
			writeCheckoutError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(addr)

	case http.MethodPost:
		var addr domain.Address
		if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := h.orch.SelectAddress(ctx, sess, addr); err != nil {
			writeCheckoutError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"success": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CheckoutHandler) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	sess, ok := sessionFromRequest(r)
	if !ok {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}
	quote, err := h.orch.Quote(ctx, sess)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(quote)
}

// confirmResponse 是提交订单的响应。VNPAY 订单携带跳转地址。
type confirmResponse struct {
	OrderID     string           `json:"orderId"`
	FlowState   domain.FlowState `json:"flowState"`
	TotalAmount int64            `json:"totalAmount"`
	PaymentURL  string           `json:"paymentUrl,omitempty"`
}

func (h *CheckoutHandler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	sess, ok := sessionFromRequest(r)
	if !ok {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	var req struct {
		PaymentMethod string `json:"paymentMethod"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	method := domain.PaymentMethod(req.PaymentMethod)
	if method != domain.PaymentCOD && method != domain.PaymentVNPay {
		http.Error(w, "unsupported payment method", http.StatusBadRequest)
		return
	}

	result, err := h.orch.Confirm(ctx, sess, method)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(confirmResponse{
		OrderID:     result.Order.ID,
		FlowState:   result.Order.FlowState,
		TotalAmount: result.Order.TotalAmount,
		PaymentURL:  result.PaymentURL,
	})
}

// handleAwaitPayment 长轮询等待支付结果，客户端断开即停止。
func (h *CheckoutHandler) handleAwaitPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	sess, ok := sessionFromRequest(r)
	if !ok {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}
	orderID := r.URL.Query().Get("orderId")
	if orderID == "" {
		http.Error(w, "orderId is required", http.StatusBadRequest)
		return
	}

	state, err := h.poller.Await(ctx, sess, orderID)
	if err != nil {
		// 客户端断开或超时，支付仍在进行，可重新发起等待
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{"flowState": state})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"flowState": state})
}

func (h *CheckoutHandler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	sess, ok := sessionFromRequest(r)
	if !ok {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}
	var req struct {
		OrderID string `json:"orderId"`
		Reason  string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		http.Error(w, "orderId is required", http.StatusBadRequest)
		return
	}

	if err := h.orch.CancelOrder(ctx, sess, req.OrderID, req.Reason); err != nil {
		writeCheckoutError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

func (h *CheckoutHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	sess, ok := sessionFromRequest(r)
	if !ok {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}
	orders, err := h.orch.History(ctx, sess)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}

	type orderView struct {
		OrderID       string               `json:"orderId"`
		PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
		TotalAmount   int64                `json:"totalAmount"`
		FlowState     domain.FlowState     `json:"flowState"`
		PaymentStatus domain.PaymentStatus `json:"paymentStatus"`
		CreatedAt     string               `json:"createdAt"`
	}
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderView{
			OrderID:       o.ID,
			PaymentMethod: o.PaymentMethod,
			TotalAmount:   o.TotalAmount,
			FlowState:     o.FlowState,
			PaymentStatus: o.PaymentStatus,
			CreatedAt:     o.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
