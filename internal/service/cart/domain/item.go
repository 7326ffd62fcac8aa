// internal/service/cart/domain/item.go
package domain

import "fmt"

// CartItem 是购物车中的一行。
// ID 在游客态等于商品 ID，登录态等于服务端分配的行 ID，
// 跨越登录迁移时不保持稳定；(ProductID, SelectedSize) 才是行的业务身份。
type CartItem struct {
	ID            int64  `json:"id"`
	ProductID     int64  `json:"productId"`
	Name          string `json:"name"`
	Image         string `json:"image"`
	SalePrice     int64  `json:"salePrice"`
	DiscountPrice *int64 `json:"discountPrice,omitempty"`
	Quantity      int64  `json:"quantity"`
	SelectedSize  string `json:"selectedSize,omitempty"`
	Stock         int64  `json:"stock"`
}

// EffectiveUnitPrice 返回生效单价：
// 折扣价存在且低于原价时用折扣价，否则用原价。
func (i *CartItem) EffectiveUnitPrice() int64 {
	if i.DiscountPrice != nil && *i.DiscountPrice < i.SalePrice {
		return *i.DiscountPrice
	}
	return i.SalePrice
}

// LineTotal 返回该行的小计金额。
func (i *CartItem) LineTotal() int64 {
	return i.EffectiveUnitPrice() * i.Quantity
}

// Key 返回该行的复合键，勾选集与按键删除都以它为准。
func (i *CartItem) Key() string {
	return KeyOf(i.ID, i.SelectedSize)
}

// KeyOf 构造复合键 "{id}-{size}"，尺寸缺省时用 "default" 占位。
func KeyOf(id int64, selectedSize string) string {
	if selectedSize == "" {
		selectedSize = "default"
	}
	return fmt.Sprintf("%d-%s", id, selectedSize)
}

// Keys 返回购物车当前全部复合键。
func Keys(items []CartItem) []string {
	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, it.Key())
	}
	return keys
}

// FindLine 按 (productID, selectedSize) 查找行，返回下标，未找到时为 -1。
// 复合键对 ID 有歧义时（游客/登录两套 ID 空间），这是唯一可靠的查找方式。
func FindLine(items []CartItem, productID int64, selectedSize string) int {
	for idx, it := range items {
		if it.ProductID == productID && it.SelectedSize == selectedSize {
			return idx
		}
	}
	return -1
}

// Product 是加购时的商品快照，名称、图片、价格在此刻被反规范化进购物车行。
type Product struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Image         string `json:"image"`
	SalePrice     int64  `json:"salePrice"`
	DiscountPrice *int64 `json:"discountPrice,omitempty"`
	Stock         int64  `json:"stock"`
}
