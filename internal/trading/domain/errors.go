package domain

import "errors"

var (
	// ErrInvalidGrams 请求克数非正
	ErrInvalidGrams = errors.New("grams must be positive")
	// ErrUnknownAsset 未注册的资产符号
	ErrUnknownAsset = errors.New("unknown asset")
	// ErrPriceUnavailable 行情源没有可用价格
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrQuoteNotFound 报价不存在
	ErrQuoteNotFound = errors.New("quote not found")
	// ErrQuoteExpired 报价已过期，需要重新询价
	ErrQuoteExpired = errors.New("quote expired")
	// ErrQuoteAlreadyConsumed 报价已被消费，重复提交不会二次执行
	ErrQuoteAlreadyConsumed = errors.New("quote already consumed")
	// ErrInvalidSide 非法的交易方向
	ErrInvalidSide = errors.New("invalid trade side")
	// ErrMissingLimitPrice 限价单缺少限价
	ErrMissingLimitPrice = errors.New("limit price is required for limit orders")
	// ErrInsufficientBalance 账本返回余额不足
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrLedgerRejected 账本拒绝执行（含服务端价格校验失败）
	ErrLedgerRejected = errors.New("ledger rejected execution")
	// ErrNetworkTimeout 对外调用超时，可安全重试一次
	ErrNetworkTimeout = errors.New("network timeout")
)

// IsRetryable 判断错误是否可以用同一报价安全重试
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetworkTimeout)
}
