// Package domain 包含金属代币交易引擎的领域模型
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// GramsPerTroyOunce 1 金衡盎司对应的克数
var GramsPerTroyOunce = decimal.NewFromFloat(31.1035)

// AssetKind 资产类别
type AssetKind string

const (
	// AssetKindMetal 金属代币（以克计量）
	AssetKindMetal AssetKind = "METAL"
	// AssetKindFiatPegged 法币锚定资产
	AssetKindFiatPegged AssetKind = "FIAT_PEGGED"
	// AssetKindCrypto 原生加密资产
	AssetKindCrypto AssetKind = "CRYPTO"
)

// Asset 资产定义
// 精度是资产自身的属性，不是全局常量
type Asset struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Kind      AssetKind `json:"kind"`
	Precision int32     `json:"precision"`
}

// AssetRegistry 资产注册表
type AssetRegistry struct {
	assets map[string]Asset
}

// NewAssetRegistry 创建带默认资产的注册表
func NewAssetRegistry() *AssetRegistry {
	r := &AssetRegistry{assets: make(map[string]Asset)}
	for _, a := range []Asset{
		{Symbol: "XAU", Name: "Gold", Kind: AssetKindMetal, Precision: 4},
		{Symbol: "XAG", Name: "Silver", Kind: AssetKindMetal, Precision: 4},
		{Symbol: "XPT", Name: "Platinum", Kind: AssetKindMetal, Precision: 4},
		{Symbol: "USD", Name: "US Dollar", Kind: AssetKindFiatPegged, Precision: 2},
		{Symbol: "USDT", Name: "Tether USD", Kind: AssetKindFiatPegged, Precision: 2},
		{Symbol: "USDC", Name: "USD Coin", Kind: AssetKindFiatPegged, Precision: 2},
		{Symbol: "BTC", Name: "Bitcoin", Kind: AssetKindCrypto, Precision: 6},
		{Symbol: "ETH", Name: "Ether", Kind: AssetKindCrypto, Precision: 6},
		{Symbol: "SOL", Name: "Solana", Kind: AssetKindCrypto, Precision: 4},
	} {
		r.assets[a.Symbol] = a
	}
	return r
}

// Register 注册或覆盖资产定义
func (r *AssetRegistry) Register(a Asset) {
	r.assets[a.Symbol] = a
}

// Get 按符号查找资产
func (r *AssetRegistry) Get(symbol string) (Asset, error) {
	a, ok := r.assets[symbol]
	if !ok {
		return Asset{}, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}
	return a, nil
}

// IsMetal 判断符号是否为金属代币
func (r *AssetRegistry) IsMetal(symbol string) bool {
	a, ok := r.assets[symbol]
	return ok && a.Kind == AssetKindMetal
}

// MetalToSettlement 将金属克数换算为结算资产数量
// 法币锚定资产：amount = grams * pricePerGram
// 加密资产：amount = (grams * pricePerGram) / settlementAssetPrice
// 结果按结算资产声明的精度四舍五入
func MetalToSettlement(grams, pricePerGram decimal.Decimal, settlement Asset, settlementAssetPrice decimal.Decimal) (decimal.Decimal, error) {
	if pricePerGram.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrPriceUnavailable
	}

	usdValue := grams.Mul(pricePerGram)

	switch settlement.Kind {
	case AssetKindFiatPegged:
		return usdValue.Round(settlement.Precision), nil
	case AssetKindCrypto:
		if settlementAssetPrice.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero, ErrPriceUnavailable
		}
		return usdValue.Div(settlementAssetPrice).Round(settlement.Precision), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: cannot settle into %s asset %s", ErrUnknownAsset, settlement.Kind, settlement.Symbol)
	}
}

// SettlementToMetal 将结算资产数量换算为金属克数
// MetalToSettlement 的逆运算，克数按金属精度四舍五入
func SettlementToMetal(amount decimal.Decimal, settlement Asset, settlementAssetPrice, pricePerGram decimal.Decimal, metal Asset) (decimal.Decimal, error) {
	if pricePerGram.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrPriceUnavailable
	}

	var usdValue decimal.Decimal
	switch settlement.Kind {
	case AssetKindFiatPegged:
		usdValue = amount
	case AssetKindCrypto:
		if settlementAssetPrice.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero, ErrPriceUnavailable
		}
		usdValue = amount.Mul(settlementAssetPrice)
	default:
		return decimal.Zero, fmt.Errorf("%w: cannot settle from %s asset %s", ErrUnknownAsset, settlement.Kind, settlement.Symbol)
	}

	return usdValue.Div(pricePerGram).Round(metal.Precision), nil
}
