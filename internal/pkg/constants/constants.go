// internal/pkg/constants/constants.go
package constants

// 上游商城后端的逻辑服务名（Nacos 注册名）。
const (
	CommerceBackend = "commerce-backend"
)

// 上游商城后端的 REST 路径。
const (
	CartPath         = "/api/cart"
	CartItemsPath    = "/api/cart/items"
	VoucherCheckPath = "/api/vouchers/check"
	OrdersPath       = "/api/orders"
	VNPayCreatePath  = "/api/payments/vnpay/create"
)

// 本地键值存储的键前缀。完整键为 "<prefix>:<sessionID>"。
const (
	GuestCartKeyPrefix       = "guest_cart"
	CartCacheKeyPrefix       = "cart_cache"
	SelectedItemsKeyPrefix   = "selected_items"
	AppliedVoucherKeyPrefix  = "applied_voucher"
	CheckoutAddressKeyPrefix = "checkout_address"
	// 下单时刻勾选键的快照，支付确认后据此清理。
	// 完整键为 "<prefix>:<sessionID>:<orderID>"，同会话多笔待支付订单互不干扰。
	PurchasedKeysKeyPrefix = "selected_cart_keys"
)
