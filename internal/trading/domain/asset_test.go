package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMetalToSettlementFiat(t *testing.T) {
	registry := NewAssetRegistry()
	usd, _ := registry.Get("USD")

	amount, err := MetalToSettlement(
		decimal.NewFromInt(1),
		decimal.RequireFromString("165"),
		usd,
		decimal.NewFromInt(1),
	)
	if err != nil {
		t.Fatalf("MetalToSettlement failed: %v", err)
	}
	if !amount.Equal(decimal.RequireFromString("165")) {
		t.Errorf("amount = %s, want 165", amount)
	}
	// 法币精度为 2 位小数
	if amount.Exponent() < -2 {
		t.Errorf("fiat amount exponent = %d, want >= -2", amount.Exponent())
	}
}

func TestMetalToSettlementFiatRounding(t *testing.T) {
	registry := NewAssetRegistry()
	usd, _ := registry.Get("USD")

	// 1.234 * 80.5 = 99.337，法币按 2 位四舍五入
	amount, err := MetalToSettlement(
		decimal.RequireFromString("1.234"),
		decimal.RequireFromString("80.5"),
		usd,
		decimal.NewFromInt(1),
	)
	if err != nil {
		t.Fatalf("MetalToSettlement failed: %v", err)
	}
	if !amount.Equal(decimal.RequireFromString("99.34")) {
		t.Errorf("amount = %s, want 99.34", amount)
	}
}

func TestMetalToSettlementCrypto(t *testing.T) {
	registry := NewAssetRegistry()
	eth, _ := registry.Get("ETH")

	// 10g * 100 USD/g = 1000 USD，ETH 价格 2700 -> 0.370370 ETH（6 位精度）
	amount, err := MetalToSettlement(
		decimal.NewFromInt(10),
		decimal.NewFromInt(100),
		eth,
		decimal.NewFromInt(2700),
	)
	if err != nil {
		t.Fatalf("MetalToSettlement failed: %v", err)
	}
	if !amount.Equal(decimal.RequireFromString("0.370370")) {
		t.Errorf("amount = %s, want 0.370370", amount)
	}
}

func TestMetalToSettlementErrors(t *testing.T) {
	registry := NewAssetRegistry()
	usd, _ := registry.Get("USD")
	eth, _ := registry.Get("ETH")
	xau, _ := registry.Get("XAU")

	if _, err := MetalToSettlement(decimal.NewFromInt(1), decimal.Zero, usd, decimal.NewFromInt(1)); !errors.Is(err, ErrPriceUnavailable) {
		t.Errorf("zero metal price: err = %v, want ErrPriceUnavailable", err)
	}
	if _, err := MetalToSettlement(decimal.NewFromInt(1), decimal.NewFromInt(100), eth, decimal.Zero); !errors.Is(err, ErrPriceUnavailable) {
		t.Errorf("zero crypto price: err = %v, want ErrPriceUnavailable", err)
	}
	if _, err := MetalToSettlement(decimal.NewFromInt(1), decimal.NewFromInt(100), xau, decimal.NewFromInt(1)); err == nil {
		t.Error("settling into a metal asset should fail")
	}
}

func TestSettlementToMetalRoundTrip(t *testing.T) {
	registry := NewAssetRegistry()
	usd, _ := registry.Get("USD")
	xau, _ := registry.Get("XAU")

	price := decimal.RequireFromString("165")
	grams, err := SettlementToMetal(decimal.RequireFromString("165"), usd, decimal.NewFromInt(1), price, xau)
	if err != nil {
		t.Fatalf("SettlementToMetal failed: %v", err)
	}
	if !grams.Equal(decimal.NewFromInt(1)) {
		t.Errorf("grams = %s, want 1", grams)
	}
}

func TestSettlementToMetalCrypto(t *testing.T) {
	registry := NewAssetRegistry()
	eth, _ := registry.Get("ETH")
	xag, _ := registry.Get("XAG")

	// 0.5 ETH * 2700 = 1350 USD，白银 2.7 USD/g -> 500g
	grams, err := SettlementToMetal(
		decimal.RequireFromString("0.5"),
		eth,
		decimal.NewFromInt(2700),
		decimal.RequireFromString("2.7"),
		xag,
	)
	if err != nil {
		t.Fatalf("SettlementToMetal failed: %v", err)
	}
	if !grams.Equal(decimal.NewFromInt(500)) {
		t.Errorf("grams = %s, want 500", grams)
	}
}

func TestAssetRegistry(t *testing.T) {
	registry := NewAssetRegistry()

	if !registry.IsMetal("XAU") {
		t.Error("XAU should be a metal")
	}
	if registry.IsMetal("USD") {
		t.Error("USD should not be a metal")
	}
	if _, err := registry.Get("DOGE"); !errors.Is(err, ErrUnknownAsset) {
		t.Errorf("unknown asset err = %v, want ErrUnknownAsset", err)
	}

	registry.Register(Asset{Symbol: "XPD", Name: "Palladium", Kind: AssetKindMetal, Precision: 4})
	if !registry.IsMetal("XPD") {
		t.Error("registered asset should be resolvable")
	}
}
