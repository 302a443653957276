// Package mysql 提供成交与报价审计的 GORM 仓储实现
package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/metaltrading/internal/trading/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TradeRepository 成交仓储实现
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository 创建成交仓储
func NewTradeRepository(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// AutoMigrate 建表
func (r *TradeRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Trade{}, &domain.QuoteArchive{})
}

// SaveTrade 保存成交记录
func (r *TradeRepository) SaveTrade(ctx context.Context, trade *domain.Trade) error {
	if err := r.db.WithContext(ctx).Create(trade).Error; err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

// ArchiveQuote 归档终态报价
// 按 quote_id 幂等：同一报价重复归档只保留首条
func (r *TradeRepository) ArchiveQuote(ctx context.Context, archive *domain.QuoteArchive) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "quote_id"}},
		DoNothing: true,
	}).Create(archive).Error
	if err != nil {
		return fmt.Errorf("failed to archive quote: %w", err)
	}
	return nil
}

// GetTrade 获取成交记录
func (r *TradeRepository) GetTrade(ctx context.Context, tradeID string) (*domain.Trade, error) {
	var trade domain.Trade
	err := r.db.WithContext(ctx).Where("trade_id = ?", tradeID).First(&trade).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return &trade, nil
}

// ListTradesByAccount 获取账户成交列表
func (r *TradeRepository) ListTradesByAccount(ctx context.Context, account string, limit, offset int) ([]*domain.Trade, int64, error) {
	var trades []*domain.Trade
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Trade{}).Where("account = ?", account)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count trades: %w", err)
	}

	err := query.Order("executed_at DESC").Limit(limit).Offset(offset).Find(&trades).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list trades: %w", err)
	}

	return trades, total, nil
}
