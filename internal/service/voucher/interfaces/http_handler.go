// internal/service/voucher/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	cartdomain "bazaar/internal/service/cart/domain"
	checkoutdomain "bazaar/internal/service/checkout/domain"
	"bazaar/internal/service/voucher/application"
	"bazaar/internal/service/voucher/domain"
)

// QuoteProvider 提供当前勾选集的金额汇总，券校验以它的小计为订单金额。
type QuoteProvider interface {
	Quote(ctx context.Context, sess cartdomain.Session) (checkoutdomain.Quote, error)
}

// VoucherHandler 封装了代金券服务的 HTTP 处理器。
type VoucherHandler struct {
	engine *application.VoucherEngine
	quotes QuoteProvider
}

// NewVoucherHandler 创建一个新的 HTTP 处理器实例。
func NewVoucherHandler(engine *application.VoucherEngine, quotes QuoteProvider) *VoucherHandler {
	return &VoucherHandler{engine: engine, quotes: quotes}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *VoucherHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/voucher", h.handleVoucher)
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

func (h *VoucherHandler) handleVoucher(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	sess, ok := sessionFromRequest(r)
	if !ok {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleApplied(ctx, w, sess)
	case http.MethodPost:
		h.handleApply(ctx, w, r, sess)
	case http.MethodDelete:
		h.handleRemove(ctx, w, sess)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *VoucherHandler) handleApplied(ctx context.Context, w http.ResponseWriter, sess cartdomain.Session) {
	voucher, err := h.engine.Applied(ctx, sess)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"voucher": voucher})
}

func (h *VoucherHandler) handleApply(ctx context.Context, w http.ResponseWriter, r *http.Request, sess cartdomain.Session) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	quote, err := h.quotes.Quote(ctx, sess)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	voucher, err := h.engine.Apply(ctx, sess, req.Code, quote.Subtotal, quote.SelectedCount)
	if err != nil {
		// 根据错误类型返回不同的 HTTP 状态码
		var statusCode int
		switch {
		case errors.Is(err, domain.ErrEmptyCode),
			errors.Is(err, domain.ErrNoItemsSelected):
			statusCode = http.StatusBadRequest
		case errors.Is(err, domain.ErrInvalidVoucher),
			errors.Is(err, domain.ErrVoucherAlreadyApplied):
			statusCode = http.StatusForbidden
		case errors.Is(err, domain.ErrVoucherCheckFailed):
			statusCode = http.StatusBadGateway
		default:
			statusCode = http.StatusInternalServerError
		}
		http.Error(w, err.Error(), statusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"voucher": voucher, "discount": voucher.DiscountAmount})
}

func (h *VoucherHandler) handleRemove(ctx context.Context, w http.ResponseWriter, sess cartdomain.Session) {
	if err := h.engine.Remove(ctx, sess); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}
