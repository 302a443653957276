package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// AllocationEpsilon 判定整克的容差
var AllocationEpsilon = decimal.New(1, -9)

// AllocationSuggestion 补足到下一整克的建议
type AllocationSuggestion struct {
	GramsToAdd  decimal.Decimal `json:"grams_to_add"`
	TargetGrams decimal.Decimal `json:"target_grams"`
}

// AllocationPreview 买入克数映射到整克实物配额的预览
// 派生值，不落库，每次买入请求重新计算
type AllocationPreview struct {
	TotalGrams           decimal.Decimal       `json:"total_grams"`
	AllocatedGrams       decimal.Decimal       `json:"allocated_grams"`
	NonAllocatedGrams    decimal.Decimal       `json:"non_allocated_grams"`
	HasPartialAllocation bool                  `json:"has_partial_allocation"`
	Suggestion           *AllocationSuggestion `json:"suggestion,omitempty"`
}

// ResolveAllocation 本地计算配额预览
// 实物配额只记整克，余数仍归用户所有但不入库房；
// 预览只提供决策信息，从不阻止交易
func ResolveAllocation(totalGrams decimal.Decimal) (*AllocationPreview, error) {
	if totalGrams.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidGrams
	}

	// 容差内视为整克，避免浮点输入导致 2.9999999999 被拆成 2 + 0.9999999999
	nearest := totalGrams.Round(0)
	if totalGrams.Sub(nearest).Abs().LessThanOrEqual(AllocationEpsilon) && nearest.GreaterThan(decimal.Zero) {
		return &AllocationPreview{
			TotalGrams:           totalGrams,
			AllocatedGrams:       nearest,
			NonAllocatedGrams:    decimal.Zero,
			HasPartialAllocation: false,
		}, nil
	}

	allocated := totalGrams.Floor()
	remainder := totalGrams.Sub(allocated)
	target := totalGrams.Ceil()

	return &AllocationPreview{
		TotalGrams:           totalGrams,
		AllocatedGrams:       allocated,
		NonAllocatedGrams:    remainder,
		HasPartialAllocation: true,
		Suggestion: &AllocationSuggestion{
			GramsToAdd:  target.Sub(totalGrams),
			TargetGrams: target,
		},
	}, nil
}

// AllocationClient 远端配额预览接口
// 远端存在时以远端数字为准，失败时调用方可回退本地计算
type AllocationClient interface {
	Preview(ctx context.Context, account, metal string, totalGrams decimal.Decimal) (*AllocationPreview, error)
}
