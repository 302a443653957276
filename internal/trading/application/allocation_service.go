package application

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metaltrading/internal/trading/domain"
	"github.com/wyfcoding/metaltrading/pkg/logger"
)

// AllocationService 配额预览服务
// 仅适用于金属资产的买入；远端预览存在时以远端数字为准，
// 远端失败回退本地计算，预览从不阻止交易
type AllocationService struct {
	assets *domain.AssetRegistry
	remote domain.AllocationClient
}

// NewAllocationService 创建配额预览服务，remote 可为 nil
func NewAllocationService(assets *domain.AssetRegistry, remote domain.AllocationClient) *AllocationService {
	return &AllocationService{
		assets: assets,
		remote: remote,
	}
}

// Preview 计算买入克数的整克配额预览
func (s *AllocationService) Preview(ctx context.Context, account, metalSymbol string, totalGrams decimal.Decimal) (*domain.AllocationPreview, error) {
	if !s.assets.IsMetal(metalSymbol) {
		return nil, domain.ErrUnknownAsset
	}

	if s.remote != nil {
		preview, err := s.remote.Preview(ctx, account, metalSymbol, totalGrams)
		if err == nil {
			return preview, nil
		}
		logger.Warn(ctx, "Remote allocation preview failed, falling back to local",
			"account", account,
			"metal", metalSymbol,
			"error", err,
		)
	}

	return domain.ResolveAllocation(totalGrams)
}
