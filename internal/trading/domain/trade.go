package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderType 订单类型
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// TradeIntent 用户声明的交易请求，询价前校验
type TradeIntent struct {
	Account         string          `json:"account"`
	Side            QuoteSide       `json:"side"`
	MetalSymbol     string          `json:"metal_symbol"`
	Grams           decimal.Decimal `json:"grams"`
	SettlementAsset string          `json:"settlement_asset"`
	OrderType       OrderType       `json:"order_type"`
	LimitPrice      decimal.Decimal `json:"limit_price"`
}

// Validate 同步校验，任何网络调用之前执行
func (i TradeIntent) Validate() error {
	if i.Grams.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidGrams
	}
	if !i.Side.Valid() {
		return ErrInvalidSide
	}
	if i.OrderType == OrderTypeLimit && i.LimitPrice.LessThanOrEqual(decimal.Zero) {
		return ErrMissingLimitPrice
	}
	return nil
}

// ErrorKind 执行结果的错误分类
type ErrorKind string

const (
	ErrorKindNone                ErrorKind = ""
	ErrorKindValidation          ErrorKind = "VALIDATION"
	ErrorKindQuoteExpired        ErrorKind = "QUOTE_EXPIRED"
	ErrorKindQuoteConsumed       ErrorKind = "QUOTE_ALREADY_CONSUMED"
	ErrorKindPriceUnavailable    ErrorKind = "PRICE_UNAVAILABLE"
	ErrorKindInsufficientBalance ErrorKind = "INSUFFICIENT_BALANCE"
	ErrorKindLedgerRejected      ErrorKind = "LEDGER_REJECTED"
	ErrorKindNetworkTimeout      ErrorKind = "NETWORK_TIMEOUT"
)

// Transaction 账本报告的成交明细
type Transaction struct {
	FromToken  string          `json:"from_token"`
	FromAmount decimal.Decimal `json:"from_amount"`
	ToToken    string          `json:"to_token"`
	ToAmount   decimal.Decimal `json:"to_amount"`
}

// ExecutionResult 一次报价消费或一次限价单提交的终态结果
type ExecutionResult struct {
	Success     bool         `json:"success"`
	Transaction *Transaction `json:"transaction,omitempty"`
	ErrorKind   ErrorKind    `json:"error_kind,omitempty"`
	Message     string       `json:"message,omitempty"`
	OrderID     string       `json:"order_id,omitempty"`
}

// Retryable 同一请求是否可以安全重试
func (r *ExecutionResult) Retryable() bool {
	return !r.Success && r.ErrorKind == ErrorKindNetworkTimeout
}

// LedgerRequest 账本执行请求
// 市价单必须携带 QuoteID，账本按 QuoteID 幂等
type LedgerRequest struct {
	Account      string          `json:"account"`
	FromAsset    string          `json:"from_asset"`
	ToAsset      string          `json:"to_asset"`
	Amount       decimal.Decimal `json:"amount"`
	QuoteID      string          `json:"quote_id,omitempty"`
	QuotedPrice  decimal.Decimal `json:"quoted_price"`
	QuotedGrams  decimal.Decimal `json:"quoted_grams"`
}

// LedgerResult 账本响应
type LedgerResult struct {
	Success     bool         `json:"success"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Code        string       `json:"code,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// Ledger 外部账本，市价成交的最终权威
// 服务端会重新校验报价价格，价格漂移以 stale_price 拒绝
type Ledger interface {
	Execute(ctx context.Context, req LedgerRequest) (*LedgerResult, error)
}

// LimitOrderClient 外部限价单服务
type LimitOrderClient interface {
	Place(ctx context.Context, intent TradeIntent) (string, error)
}

// Trade 成交审计记录
type Trade struct {
	gorm.Model
	TradeID          string          `gorm:"column:trade_id;type:varchar(36);uniqueIndex;not null" json:"trade_id"`
	QuoteID          string          `gorm:"column:quote_id;type:varchar(36);index" json:"quote_id"`
	Account          string          `gorm:"column:account;type:varchar(64);index;not null" json:"account"`
	Side             QuoteSide       `gorm:"column:side;type:varchar(8);not null" json:"side"`
	MetalSymbol      string          `gorm:"column:metal_symbol;type:varchar(16);not null" json:"metal_symbol"`
	Grams            decimal.Decimal `gorm:"column:grams;type:decimal(20,8);not null" json:"grams"`
	PricePerGram     decimal.Decimal `gorm:"column:price_per_gram;type:decimal(20,8);not null" json:"price_per_gram"`
	SettlementAsset  string          `gorm:"column:settlement_asset;type:varchar(16);not null" json:"settlement_asset"`
	SettlementAmount decimal.Decimal `gorm:"column:settlement_amount;type:decimal(20,8);not null" json:"settlement_amount"`
	ExecutedAt       time.Time       `gorm:"column:executed_at;index" json:"executed_at"`
}

// QuoteArchive 终态报价审计记录
type QuoteArchive struct {
	gorm.Model
	QuoteID          string          `gorm:"column:quote_id;type:varchar(36);uniqueIndex;not null" json:"quote_id"`
	Account          string          `gorm:"column:account;type:varchar(64);index;not null" json:"account"`
	Side             QuoteSide       `gorm:"column:side;type:varchar(8);not null" json:"side"`
	MetalSymbol      string          `gorm:"column:metal_symbol;type:varchar(16);not null" json:"metal_symbol"`
	Grams            decimal.Decimal `gorm:"column:grams;type:decimal(20,8);not null" json:"grams"`
	PricePerGram     decimal.Decimal `gorm:"column:price_per_gram;type:decimal(20,8);not null" json:"price_per_gram"`
	SettlementAsset  string          `gorm:"column:settlement_asset;type:varchar(16)" json:"settlement_asset"`
	SettlementAmount decimal.Decimal `gorm:"column:settlement_amount;type:decimal(20,8)" json:"settlement_amount"`
	FinalStatus      string          `gorm:"column:final_status;type:varchar(16);not null" json:"final_status"`
	IssuedAt         time.Time       `gorm:"column:issued_at" json:"issued_at"`
	ClosedAt         time.Time       `gorm:"column:closed_at" json:"closed_at"`
}

// TradeRepository 成交与报价审计仓储
type TradeRepository interface {
	// 保存成交记录
	SaveTrade(ctx context.Context, trade *Trade) error
	// 归档终态报价
	ArchiveQuote(ctx context.Context, archive *QuoteArchive) error
	// 获取成交记录
	GetTrade(ctx context.Context, tradeID string) (*Trade, error)
	// 获取账户成交列表
	ListTradesByAccount(ctx context.Context, account string, limit, offset int) ([]*Trade, int64, error)
}
