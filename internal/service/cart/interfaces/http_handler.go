// internal/service/cart/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"bazaar/internal/service/cart/application"
	"bazaar/internal/service/cart/domain"
	checkoutdomain "bazaar/internal/service/checkout/domain"
)

var cartOpsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_cart_operations_total",
		Help: "购物车操作计数，按操作与结果分类",
	},
	[]string{"op", "result"},
)

func init() {
	prometheus.MustRegister(cartOpsTotal)
}

// QuoteProvider 为购物车视图提供金额汇总。
type QuoteProvider interface {
	Quote(ctx context.Context, sess domain.Session) (checkoutdomain.Quote, error)
}

// CartHandler 封装了购物车服务的 HTTP 处理器。
type CartHandler struct {
	cart      *application.CartService
	selection *application.SelectionManager
	quotes    QuoteProvider
	hub       *BadgeHub
}

// NewCartHandler 创建一个新的 HTTP 处理器实例。
func NewCartHandler(cart *application.CartService, selection *application.SelectionManager, quotes QuoteProvider, hub *BadgeHub) *CartHandler {
	return &CartHandler{cart: cart, selection: selection, quotes: quotes, hub: hub}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *CartHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/cart", h.handleCart)
	mux.HandleFunc("/cart/items", h.handleCartItems)
	mux.HandleFunc("/cart/sync", h.handleSync)
	mux.HandleFunc("/cart/selection/toggle", h.handleToggle)
	mux.HandleFunc("/cart/selection/toggle_all", h.handleToggleAll)
	if h.hub != nil {
		mux.HandleFunc("/ws/cart/badge", h.hub.ServeWs)
	}
}

// sessionFromRequest 解析会话：X-Session-Id 标识设备，
// Authorization 头携带登录令牌，两者都缺时拒绝请求。
func sessionFromRequest(r *http.Request) (domain.Session, bool) {
	sess := domain.Session{ID: r.Header.Get("X-Session-Id")}
	if sess.ID == "" {
		sess.ID = r.URL.Query().Get("sessionId")
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		sess.AuthToken = strings.TrimPrefix(auth, "Bearer ")
	}
	return sess, sess.ID != ""
}

func extractCtx(r *http.Request) context.Context {
	propagator := otel.GetTextMapPropagator()
	return propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

// writeCartError 根据错误类型返回不同的 HTTP 状态码。
func writeCartError(w http.ResponseWriter, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrExceedsStock),
		errors.Is(err, domain.ErrInvalidQuantity):
		statusCode = http.StatusForbidden
	default:
		statusCode = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), statusCode)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// cartView 是购物车页的完整视图：行、勾选集与金额汇总。
type cartView struct {
	Items        []domain.CartItem    `json:"items"`
	SelectedKeys []string             `json:"selectedKeys"`
	Quote        checkoutdomain.Quote `json:"quote"`
}

func (h *CartHandler) handleCart(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)
	sess, ok := sessionFromRequest(r)
	if !ok {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		items, err := h.cart.GetCart(ctx, sess)
		if err != nil {
			cartOpsTotal.WithLabelValues("get", "error").Inc()
			writeCartError(w, err)
			return
		}
		selection, err := h.selection.Load(ctx, sess, items)
		if err != nil {
			writeCartError(w, err)
			return
		}
		quote, err := h.quotes.Quote(ctx, sess)
		if err != nil {
			writeCartError(w, err)
			return
		}
		cartOpsTotal.WithLabelValues("get", "ok").Inc()
		writeJSON(w, cartView{Items: items, SelectedKeys: selection.Keys(), Quote: quote})

	case http.MethodDelete:
		if err := h.cart.ClearCart(ctx, sess); err != nil {
			cartOpsTotal.WithLabelValues("clear", "error").Inc()
			writeCartError(w, err)
			return
		}
		cartOpsTotal.WithLabelValues("clear", "ok").Inc()
		writeJSON(w, map[string]any{"success": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// addItemRequest 携带加购的商品快照；游客态没有服务端兜底，快照必须完整。
type addItemRequest struct {
	Product      domain.Product `json:"product"`
	Quantity     int64          `json:"quantity"`
	SelectedSize string         `json:"selectedSize"`
}

type updateItemRequest struct {
	ItemID       int64  `json:"itemId"`
	Quantity     int64  `json:"quantity"`
	SelectedSize string `json:"selectedSize"`
}

func (h *CartHandler) handleCartItems(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)
	sess, ok := sessionFromRequest(r)
	if !ok {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req addItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := h.cart.AddItem(ctx, sess, req.Product, req.Quantity, req.SelectedSize); err != nil {
			cartOpsTotal.WithLabelValues("add", "error").Inc()
			writeCartError(w, err)
			return
		}
		cartOpsTotal.WithLabelValues("add", "ok").Inc()
		writeJSON(w, map[string]any{"success": true})

	case http.MethodPut:
		var req updateItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := h.cart.UpdateQuantity(ctx, sess, req.ItemID, req.Quantity, req.SelectedSize); err != nil {
			cartOpsTotal.WithLabelValues("update", "error").Inc()
			writeCartError(w, err)
			return
		}
		cartOpsTotal.WithLabelValues("update", "ok").Inc()
		writeJSON(w, map[string]any{"success": true})

	case http.MethodDelete:
		itemID, err := strconv.ParseInt(r.URL.Query().Get("itemId"), 10, 64)
		if err != nil {
			http.Error(w, "itemId is required", http.StatusBadRequest)
			return
		}
		size := r.URL.Query().Get("size")
		if err := h.cart.RemoveItem(ctx, sess, itemID, size); err != nil {
			cartOpsTotal.WithLabelValues("remove", "error").Inc()
			writeCartError(w, err)
			return
		}
		cartOpsTotal.WithLabelValues("remove", "ok").Inc()
		writeJSON(w, map[string]any{"success": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSync 在登录后把游客购物车逐行合并到账号购物车。
// 返回逐条结果；存在失败行时游客缓存被保留，客户端可重试。
func (h *CartHandler) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := extractCtx(r)
	sess, ok := sessionFromRequest(r)
	if !ok || !sess.Authenticated() {
		http.Error(w, "authenticated session is required", http.StatusUnauthorized)
		return
	}

	result, err := h.cart.SyncAfterLogin(ctx, sess)
	if err != nil {
		cartOpsTotal.WithLabelValues("sync", "error").Inc()
		writeCartError(w, err)
		return
	}
	type lineResult struct {
		Key   string `json:"key"`
		Error string `json:"error,omitempty"`
	}
	out := make([]lineResult, 0, len(result.Results))
	for _, item := range result.Results {
		lr := lineResult{Key: item.Key}
		if item.Err != nil {
			lr.Error = item.Err.Error()
		}
		out = append(out, lr)
	}
	cartOpsTotal.WithLabelValues("sync", "ok").Inc()
	writeJSON(w, map[string]any{"success": result.AllOK(), "results": out})
}

func (h *CartHandler) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := extractCtx(r)
	sess, ok := sessionFromRequest(r)
	if !ok {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}
	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	items, err := h.cart.GetCart(ctx, sess)
	if err != nil {
		writeCartError(w, err)
		return
	}
	selection, err := h.selection.Toggle(ctx, sess, items, req.Key)
	if err != nil {
		writeCartError(w, err)
		return
	}
	writeJSON(w, map[string]any{"selectedKeys": selection.Keys()})
}

func (h *CartHandler) handleToggleAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := extractCtx(r)
	sess, ok := sessionFromRequest(r)
	if !ok {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	items, err := h.cart.GetCart(ctx, sess)
	if err != nil {
		writeCartError(w, err)
		return
	}
	selection, err := h.selection.ToggleAll(ctx, sess, items)
	if err != nil {
		writeCartError(w, err)
		return
	}
	writeJSON(w, map[string]any{"selectedKeys": selection.Keys()})
}
