// internal/service/voucher/domain/errors.go
package domain

import "errors"

var (
	// ErrEmptyCode 券码为空白，本地直接拒绝。
	ErrEmptyCode = errors.New("voucher code must not be empty")

	// ErrNoItemsSelected 勾选的行为零，订单金额无从谈起，本地直接拒绝。
	ErrNoItemsSelected = errors.New("no items selected for this order")

	// ErrInvalidVoucher 服务端判定券无效，包装时附带服务端给出的原因。
	ErrInvalidVoucher = errors.New("voucher is not valid")

	// ErrVoucherCheckFailed 校验调用本身失败（网络/服务端错误），可重试。
	ErrVoucherCheckFailed = errors.New("voucher check failed")

	// ErrVoucherAlreadyApplied 已有一张生效券；不支持叠加，先移除再应用。
	ErrVoucherAlreadyApplied = errors.New("a voucher is already applied")
)
