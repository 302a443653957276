package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AssetPrice 单个资产的当前价格
// 金属按每克报价，加密资产按每单位报价
type AssetPrice struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	AsOf   time.Time       `json:"as_of"`
}

// Usable 价格是否可用于报价
func (p AssetPrice) Usable(now time.Time, maxAge time.Duration) bool {
	if p.Price.LessThanOrEqual(decimal.Zero) {
		return false
	}
	if maxAge > 0 && now.Sub(p.AsOf) > maxAge {
		return false
	}
	return true
}

// PriceSnapshot 按符号索引的价格快照
type PriceSnapshot map[string]AssetPrice

// PriceFeed 行情源
// 由外部轮询填充，核心只读
type PriceFeed interface {
	// Price 获取单个资产的当前价格，价格不可用返回 ErrPriceUnavailable
	Price(ctx context.Context, symbol string) (AssetPrice, error)
	// Snapshot 获取当前完整快照
	Snapshot(ctx context.Context) (PriceSnapshot, error)
}
