package domain

import (
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteSide 报价方向
type QuoteSide string

const (
	QuoteSideBuy  QuoteSide = "BUY"
	QuoteSideSell QuoteSide = "SELL"
)

// Valid 方向是否合法
func (s QuoteSide) Valid() bool {
	return s == QuoteSideBuy || s == QuoteSideSell
}

// QuoteStatus 报价状态
// 状态字用 int32 存储，所有离开 Active 的迁移都走 CAS，
// 保证 expire/consume/supersede 三者在同一报价上恰好一个胜出
type QuoteStatus int32

const (
	// QuoteStatusActive 活跃，价格锁定中
	QuoteStatusActive QuoteStatus = iota
	// QuoteStatusExecuting 正在提交账本，阻止并发消费和过期
	QuoteStatusExecuting
	// QuoteStatusConsumed 已成交，终态
	QuoteStatusConsumed
	// QuoteStatusExpired 已过期（含用户取消），终态
	QuoteStatusExpired
	// QuoteStatusSuperseded 被同键新报价取代，终态
	QuoteStatusSuperseded
)

// String 状态名
func (s QuoteStatus) String() string {
	switch s {
	case QuoteStatusActive:
		return "ACTIVE"
	case QuoteStatusExecuting:
		return "EXECUTING"
	case QuoteStatusConsumed:
		return "CONSUMED"
	case QuoteStatusExpired:
		return "EXPIRED"
	case QuoteStatusSuperseded:
		return "SUPERSEDED"
	default:
		return "UNKNOWN"
	}
}

// Terminal 是否终态
func (s QuoteStatus) Terminal() bool {
	return s == QuoteStatusConsumed || s == QuoteStatusExpired || s == QuoteStatusSuperseded
}

// QuoteKey 单飞键：同一 (账户, 金属, 方向) 任一时刻至多一个活跃报价
type QuoteKey struct {
	Account string
	Metal   string
	Side    QuoteSide
}

// Quote 价格锁定报价
// 发出后价格不可变，生命周期由状态字推进
type Quote struct {
	ID               string          `json:"id"`
	Account          string          `json:"account"`
	Side             QuoteSide       `json:"side"`
	MetalSymbol      string          `json:"metal_symbol"`
	Grams            decimal.Decimal `json:"grams"`
	PricePerGram     decimal.Decimal `json:"price_per_gram"`
	TotalValueUSD    decimal.Decimal `json:"total_value_usd"`
	SettlementAsset  string          `json:"settlement_asset"`
	SettlementAmount decimal.Decimal `json:"settlement_amount"`
	IssuedAt         time.Time       `json:"issued_at"`
	TTLSeconds       int             `json:"ttl_seconds"`
	ExpiresAt        time.Time       `json:"expires_at"`

	status atomic.Int32
	// 执行中被同键新报价盯上时置位，执行失败回退直接进入 Superseded
	supersedePending atomic.Bool
}

// NewQuote 创建活跃报价，价格在此刻冻结
func NewQuote(id, account string, side QuoteSide, metal string, grams, pricePerGram, totalUSD decimal.Decimal, settlementAsset string, settlementAmount decimal.Decimal, ttl time.Duration, now time.Time) *Quote {
	q := &Quote{
		ID:               id,
		Account:          account,
		Side:             side,
		MetalSymbol:      metal,
		Grams:            grams,
		PricePerGram:     pricePerGram,
		TotalValueUSD:    totalUSD,
		SettlementAsset:  settlementAsset,
		SettlementAmount: settlementAmount,
		IssuedAt:         now,
		TTLSeconds:       int(ttl / time.Second),
		ExpiresAt:        now.Add(ttl),
	}
	q.status.Store(int32(QuoteStatusActive))
	return q
}

// Key 返回单飞键
func (q *Quote) Key() QuoteKey {
	return QuoteKey{Account: q.Account, Metal: q.MetalSymbol, Side: q.Side}
}

// Status 当前状态
func (q *Quote) Status() QuoteStatus {
	return QuoteStatus(q.status.Load())
}

// Remaining 剩余秒数，永不为负，到达 ExpiresAt 时恰为 0
func (q *Quote) Remaining(now time.Time) int {
	if !now.Before(q.ExpiresAt) {
		return 0
	}
	// 向上取整，未到期的报价不会提前显示 0
	return int((q.ExpiresAt.Sub(now) + time.Second - 1) / time.Second)
}

// DueAt 给定时刻是否已过有效期
func (q *Quote) DueAt(now time.Time) bool {
	return now.After(q.ExpiresAt)
}

// BeginExecution 尝试从 Active 进入 Executing
// 胜出者获得提交账本的独占权；失败说明报价已被过期、取代或消费
func (q *Quote) BeginExecution() bool {
	return q.status.CompareAndSwap(int32(QuoteStatusActive), int32(QuoteStatusExecuting))
}

// FinishExecution 执行成功，Executing -> Consumed
func (q *Quote) FinishExecution() bool {
	return q.status.CompareAndSwap(int32(QuoteStatusExecuting), int32(QuoteStatusConsumed))
}

// AbortExecution 执行失败后回退
// 已被延迟取代的报价直接进入 Superseded，绝不带着旧价回到 Active；
// 否则时间允许则回到 Active 供重试，时间不够直接过期
func (q *Quote) AbortExecution(now time.Time) QuoteStatus {
	if q.supersedePending.Load() {
		q.status.CompareAndSwap(int32(QuoteStatusExecuting), int32(QuoteStatusSuperseded))
		return q.Status()
	}
	if now.Before(q.ExpiresAt) {
		if q.status.CompareAndSwap(int32(QuoteStatusExecuting), int32(QuoteStatusActive)) {
			return QuoteStatusActive
		}
	}
	q.status.CompareAndSwap(int32(QuoteStatusExecuting), int32(QuoteStatusExpired))
	return q.Status()
}

// Expire 尝试从 Active 过期（过期扫描和用户取消共用）
func (q *Quote) Expire() bool {
	return q.status.CompareAndSwap(int32(QuoteStatusActive), int32(QuoteStatusExpired))
}

// Supersede 尝试被同键新报价取代
func (q *Quote) Supersede() bool {
	return q.status.CompareAndSwap(int32(QuoteStatusActive), int32(QuoteStatusSuperseded))
}

// DeferSupersede 标记延迟取代
// 报价正在执行无法立即取代时置位，回退路径据此选择终态
func (q *Quote) DeferSupersede() {
	q.supersedePending.Store(true)
}
