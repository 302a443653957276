package application

import (
	"time"

	"github.com/wyfcoding/metaltrading/internal/trading/domain"
)

// QuoteDTO 报价视图
type QuoteDTO struct {
	ID               string    `json:"id"`
	Account          string    `json:"account"`
	Side             string    `json:"side"`
	MetalSymbol      string    `json:"metal_symbol"`
	Grams            string    `json:"grams"`
	PricePerGram     string    `json:"price_per_gram"`
	TotalValueUSD    string    `json:"total_value_usd"`
	SettlementAsset  string    `json:"settlement_asset"`
	SettlementAmount string    `json:"settlement_amount"`
	Status           string    `json:"status"`
	IssuedAt         time.Time `json:"issued_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	TTLSeconds       int       `json:"ttl_seconds"`
	SecondsRemaining int       `json:"seconds_remaining"`
}

// ToQuoteDTO 组装报价视图
func ToQuoteDTO(q *domain.Quote, now time.Time) *QuoteDTO {
	return &QuoteDTO{
		ID:               q.ID,
		Account:          q.Account,
		Side:             string(q.Side),
		MetalSymbol:      q.MetalSymbol,
		Grams:            q.Grams.String(),
		PricePerGram:     q.PricePerGram.String(),
		TotalValueUSD:    q.TotalValueUSD.String(),
		SettlementAsset:  q.SettlementAsset,
		SettlementAmount: q.SettlementAmount.String(),
		Status:           q.Status().String(),
		IssuedAt:         q.IssuedAt,
		ExpiresAt:        q.ExpiresAt,
		TTLSeconds:       q.TTLSeconds,
		SecondsRemaining: q.Remaining(now),
	}
}
