// Package redis 提供活跃报价的 Redis 镜像
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wyfcoding/metaltrading/internal/trading/domain"
	"github.com/wyfcoding/metaltrading/pkg/cache"
)

// QuoteMirror 活跃报价镜像
// 进程内单飞表为准，镜像带 TTL，进程崩溃后由 Redis 自行清理
type QuoteMirror struct {
	cache  *cache.RedisCache
	prefix string
}

// NewQuoteMirror 创建报价镜像
func NewQuoteMirror(c *cache.RedisCache) *QuoteMirror {
	return &QuoteMirror{
		cache:  c,
		prefix: "quote:active:",
	}
}

// mirrorEntry 镜像存储结构
type mirrorEntry struct {
	ID               string    `json:"id"`
	Account          string    `json:"account"`
	Side             string    `json:"side"`
	MetalSymbol      string    `json:"metal_symbol"`
	Grams            string    `json:"grams"`
	PricePerGram     string    `json:"price_per_gram"`
	SettlementAsset  string    `json:"settlement_asset"`
	SettlementAmount string    `json:"settlement_amount"`
	IssuedAt         time.Time `json:"issued_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// SaveActive 写入活跃报价，TTL 对齐报价剩余有效期
func (m *QuoteMirror) SaveActive(ctx context.Context, quote *domain.Quote) error {
	entry := mirrorEntry{
		ID:               quote.ID,
		Account:          quote.Account,
		Side:             string(quote.Side),
		MetalSymbol:      quote.MetalSymbol,
		Grams:            quote.Grams.String(),
		PricePerGram:     quote.PricePerGram.String(),
		SettlementAsset:  quote.SettlementAsset,
		SettlementAmount: quote.SettlementAmount.String(),
		IssuedAt:         quote.IssuedAt,
		ExpiresAt:        quote.ExpiresAt,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal quote mirror: %w", err)
	}

	ttl := time.Until(quote.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return m.cache.Set(ctx, m.key(quote.ID), string(data), ttl)
}

// Remove 删除镜像
func (m *QuoteMirror) Remove(ctx context.Context, quoteID string) error {
	return m.cache.Delete(ctx, m.key(quoteID))
}

func (m *QuoteMirror) key(quoteID string) string {
	return m.prefix + quoteID
}
