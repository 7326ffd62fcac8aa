package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func price(v int64) *int64 { return &v }

func TestKeyOf(t *testing.T) {
	assert.Equal(t, "42-M", KeyOf(42, "M"))
	assert.Equal(t, "42-default", KeyOf(42, ""))
}

func TestEffectiveUnitPrice(t *testing.T) {
	item := CartItem{SalePrice: 150000}
	assert.Equal(t, int64(150000), item.EffectiveUnitPrice())

	item.DiscountPrice = price(120000)
	assert.Equal(t, int64(120000), item.EffectiveUnitPrice())

	// 折扣价不低于原价时忽略
	item.DiscountPrice = price(160000)
	assert.Equal(t, int64(150000), item.EffectiveUnitPrice())
}

func TestLineTotal(t *testing.T) {
	item := CartItem{SalePrice: 150000, DiscountPrice: price(120000), Quantity: 3}
	assert.Equal(t, int64(360000), item.LineTotal())
}

func TestFindLine(t *testing.T) {
	items := []CartItem{
		{ID: 1, ProductID: 10, SelectedSize: "M"},
		{ID: 2, ProductID: 10, SelectedSize: "L"},
		{ID: 3, ProductID: 11},
	}

	// 同商品不同尺寸是不同的行
	assert.Equal(t, 0, FindLine(items, 10, "M"))
	assert.Equal(t, 1, FindLine(items, 10, "L"))
	assert.Equal(t, 2, FindLine(items, 11, ""))
	assert.Equal(t, -1, FindLine(items, 10, "XL"))
}

func TestSelectionToggle(t *testing.T) {
	sel := NewSelection()
	sel.Toggle("10-M")
	assert.True(t, sel.Has("10-M"))
	sel.Toggle("10-M")
	assert.False(t, sel.Has("10-M"))
}

func TestSelectionIntersect(t *testing.T) {
	items := []CartItem{
		{ID: 1, SelectedSize: "M"},
		{ID: 2},
	}
	sel := NewSelection("1-M", "2-default", "3-default")

	pruned := sel.Intersect(items)
	assert.ElementsMatch(t, []string{"1-M", "2-default"}, pruned.Keys())
}

func TestSelectionSelectedItems(t *testing.T) {
	items := []CartItem{
		{ID: 1, SelectedSize: "M", Quantity: 1},
		{ID: 2, Quantity: 2},
		{ID: 3, Quantity: 3},
	}
	sel := NewSelection("1-M", "3-default")

	selected := sel.SelectedItems(items)
	assert.Len(t, selected, 2)
	assert.Equal(t, int64(1), selected[0].ID)
	assert.Equal(t, int64(3), selected[1].ID)
}
