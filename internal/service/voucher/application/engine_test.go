package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"bazaar/internal/pkg/kvstore"
	cartdomain "bazaar/internal/service/cart/domain"
	"bazaar/internal/service/voucher/domain"
	"bazaar/internal/service/voucher/infrastructure/rule"
	"bazaar/internal/service/voucher/port"
)

// stubGateway 返回预置的校验结果或错误。
type stubGateway struct {
	result *port.CheckResult
	err    error
	calls  int
}

func (s *stubGateway) Check(context.Context, string, string, int64) (*port.CheckResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

var sess = cartdomain.Session{ID: "s1", AuthToken: "jwt"}

func newTestEngine(t *testing.T, gateway *stubGateway) *VoucherEngine {
	t.Helper()
	prefilter, err := rule.NewCELPrefilter(rule.DefaultGuards())
	require.NoError(t, err)
	return NewVoucherEngine(gateway, prefilter, kvstore.NewMemoryStore(), otel.Tracer("test"))
}

func TestApplyValidVoucher(t *testing.T) {
	ctx := context.Background()
	gateway := &stubGateway{result: &port.CheckResult{
		Valid:          true,
		DiscountType:   domain.DiscountFixed,
		DiscountValue:  50000,
		MinOrderAmount: 200000,
		DiscountAmount: 50000,
	}}
	engine := newTestEngine(t, gateway)

	applied, err := engine.Apply(ctx, sess, "SAVE50K", 300000, 2)
	require.NoError(t, err)
	assert.Equal(t, "SAVE50K", applied.VoucherCode)

	// 券状态已持久化
	stored, err := engine.Applied(ctx, sess)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(50000), stored.DiscountValue)
}

func TestApplyPrefilterRejectsBeforeNetwork(t *testing.T) {
	ctx := context.Background()
	gateway := &stubGateway{result: &port.CheckResult{Valid: true}}
	engine := newTestEngine(t, gateway)

	_, err := engine.Apply(ctx, sess, "", 300000, 2)
	assert.ErrorIs(t, err, domain.ErrEmptyCode)

	// 纯空白的券码同样在本地被拦下
	_, err = engine.Apply(ctx, sess, "   ", 300000, 2)
	assert.ErrorIs(t, err, domain.ErrEmptyCode)

	_, err = engine.Apply(ctx, sess, "SAVE50K", 0, 0)
	assert.ErrorIs(t, err, domain.ErrNoItemsSelected)

	// 被守卫拦下的请求不触网
	assert.Zero(t, gateway.calls)
}

func TestApplyServerRejection(t *testing.T) {
	ctx := context.Background()
	gateway := &stubGateway{result: &port.CheckResult{Valid: false, Message: "voucher expired"}}
	engine := newTestEngine(t, gateway)

	_, err := engine.Apply(ctx, sess, "OLD", 300000, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidVoucher)
	assert.Contains(t, err.Error(), "voucher expired")

	// 被拒的券不落盘
	stored, _ := engine.Applied(ctx, sess)
	assert.Nil(t, stored)
}

func TestApplyCheckCallFailure(t *testing.T) {
	ctx := context.Background()
	gateway := &stubGateway{err: errors.New("connection refused")}
	engine := newTestEngine(t, gateway)

	_, err := engine.Apply(ctx, sess, "SAVE50K", 300000, 1)
	assert.ErrorIs(t, err, domain.ErrVoucherCheckFailed)
}

func TestApplyNoStacking(t *testing.T) {
	ctx := context.Background()
	gateway := &stubGateway{result: &port.CheckResult{Valid: true, DiscountType: domain.DiscountFixed, DiscountValue: 50000}}
	engine := newTestEngine(t, gateway)

	_, err := engine.Apply(ctx, sess, "FIRST", 300000, 1)
	require.NoError(t, err)

	// 已有生效券时直接拒绝，不能叠加
	_, err = engine.Apply(ctx, sess, "SECOND", 300000, 1)
	assert.ErrorIs(t, err, domain.ErrVoucherAlreadyApplied)

	// 移除后可以换一张
	require.NoError(t, engine.Remove(ctx, sess))
	_, err = engine.Apply(ctx, sess, "SECOND", 300000, 1)
	assert.NoError(t, err)
}

func TestAppliedEmptyState(t *testing.T) {
	engine := newTestEngine(t, &stubGateway{})
	stored, err := engine.Applied(context.Background(), sess)
	require.NoError(t, err)
	assert.Nil(t, stored)
}
