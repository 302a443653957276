package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteEventType 报价生命周期事件类型
type QuoteEventType string

const (
	QuoteEventIssued     QuoteEventType = "ISSUED"
	QuoteEventExpired    QuoteEventType = "EXPIRED"
	QuoteEventSuperseded QuoteEventType = "SUPERSEDED"
	QuoteEventCancelled  QuoteEventType = "CANCELLED"
	QuoteEventConsumed   QuoteEventType = "CONSUMED"
)

// QuoteEvent 报价生命周期事件
// 过期逻辑不依赖订阅者存在，事件仅供观察方消费
type QuoteEvent struct {
	Type        QuoteEventType `json:"type"`
	QuoteID     string         `json:"quote_id"`
	Account     string         `json:"account"`
	MetalSymbol string         `json:"metal_symbol"`
	Side        QuoteSide      `json:"side"`
	At          time.Time      `json:"at"`
}

// TradeExecutedEvent 成交完成事件，发往遥测通道
type TradeExecutedEvent struct {
	TradeID          string          `json:"trade_id"`
	QuoteID          string          `json:"quote_id,omitempty"`
	OrderID          string          `json:"order_id,omitempty"`
	Account          string          `json:"account"`
	Side             QuoteSide       `json:"side"`
	MetalSymbol      string          `json:"metal_symbol"`
	Grams            decimal.Decimal `json:"grams"`
	PricePerGram     decimal.Decimal `json:"price_per_gram"`
	SettlementAsset  string          `json:"settlement_asset"`
	SettlementAmount decimal.Decimal `json:"settlement_amount"`
	OrderType        OrderType       `json:"order_type"`
	ExecutedAt       time.Time       `json:"executed_at"`
}

// TelemetryPublisher 遥测发布接口
// fire-and-forget：发布失败绝不使交易本身失败
type TelemetryPublisher interface {
	PublishTradeExecuted(ctx context.Context, event TradeExecutedEvent)
}
