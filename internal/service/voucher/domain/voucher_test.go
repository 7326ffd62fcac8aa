package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func amount(v int64) *int64 { return &v }

func TestComputeDiscountNilVoucher(t *testing.T) {
	assert.Equal(t, int64(0), ComputeDiscount(500000, nil))
	assert.Equal(t, int64(0), ComputeDiscount(0, &AppliedVoucher{DiscountType: DiscountFixed, DiscountValue: 50000}))
}

func TestComputeDiscountPercentage(t *testing.T) {
	v := &AppliedVoucher{
		DiscountType:      DiscountPercentage,
		DiscountValue:     10,
		MaxDiscountAmount: amount(50000),
	}

	assert.Equal(t, int64(30000), ComputeDiscount(300000, v))
	// 超出封顶时取封顶值
	assert.Equal(t, int64(50000), ComputeDiscount(800000, v))
}

func TestComputeDiscountFixed(t *testing.T) {
	v := &AppliedVoucher{DiscountType: DiscountFixed, DiscountValue: 50000}

	assert.Equal(t, int64(50000), ComputeDiscount(300000, v))
	// 固定折扣不超过小计本身
	assert.Equal(t, int64(30000), ComputeDiscount(30000, v))
}

func TestComputeDiscountBelowThreshold(t *testing.T) {
	v := &AppliedVoucher{
		DiscountType:   DiscountFixed,
		DiscountValue:  50000,
		MinOrderAmount: 200000,
	}

	// 未达门槛时折扣归零，券仍处于已应用状态
	assert.Equal(t, int64(0), ComputeDiscount(150000, v))
	// 达到门槛后折扣恢复
	assert.Equal(t, int64(50000), ComputeDiscount(200000, v))
}

func TestComputeDiscountRecomputesWithSubtotal(t *testing.T) {
	// 勾选变化引起小计变化时，折扣随之重算
	v := &AppliedVoucher{DiscountType: DiscountPercentage, DiscountValue: 20}

	assert.Equal(t, int64(40000), ComputeDiscount(200000, v))
	assert.Equal(t, int64(20000), ComputeDiscount(100000, v))
	assert.Equal(t, int64(0), ComputeDiscount(0, v))
}

func TestComputeDiscountUnknownType(t *testing.T) {
	v := &AppliedVoucher{DiscountType: "MYSTERY", DiscountValue: 50000}
	assert.Equal(t, int64(0), ComputeDiscount(300000, v))
}

func TestComputeDiscountNeverNegative(t *testing.T) {
	v := &AppliedVoucher{DiscountType: DiscountFixed, DiscountValue: -10000}
	assert.Equal(t, int64(0), ComputeDiscount(300000, v))
}
