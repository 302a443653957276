package application

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metaltrading/internal/trading/domain"
)

type fakeAllocationClient struct {
	preview *domain.AllocationPreview
	err     error
}

func (c *fakeAllocationClient) Preview(ctx context.Context, account, metal string, totalGrams decimal.Decimal) (*domain.AllocationPreview, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.preview, nil
}

func TestAllocationPreviewLocal(t *testing.T) {
	s := NewAllocationService(domain.NewAssetRegistry(), nil)

	preview, err := s.Preview(context.Background(), "acct-1", "XAU", decimal.RequireFromString("2.35"))
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if !preview.AllocatedGrams.Equal(decimal.NewFromInt(2)) {
		t.Errorf("allocated = %s, want 2", preview.AllocatedGrams)
	}
	if !preview.HasPartialAllocation {
		t.Error("expected partial allocation")
	}
}

func TestAllocationPreviewRejectsNonMetal(t *testing.T) {
	s := NewAllocationService(domain.NewAssetRegistry(), nil)

	if _, err := s.Preview(context.Background(), "acct-1", "USD", decimal.NewFromInt(1)); !errors.Is(err, domain.ErrUnknownAsset) {
		t.Errorf("err = %v, want ErrUnknownAsset", err)
	}
}

func TestAllocationPreviewRemoteWins(t *testing.T) {
	remote := &fakeAllocationClient{preview: &domain.AllocationPreview{
		TotalGrams:           decimal.RequireFromString("2.35"),
		AllocatedGrams:       decimal.NewFromInt(1),
		NonAllocatedGrams:    decimal.RequireFromString("1.35"),
		HasPartialAllocation: true,
	}}
	s := NewAllocationService(domain.NewAssetRegistry(), remote)

	// 远端数字和本地算法不一致时以远端为准
	preview, err := s.Preview(context.Background(), "acct-1", "XAU", decimal.RequireFromString("2.35"))
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if !preview.AllocatedGrams.Equal(decimal.NewFromInt(1)) {
		t.Errorf("allocated = %s, want remote value 1", preview.AllocatedGrams)
	}
}

func TestAllocationPreviewFallsBackOnRemoteError(t *testing.T) {
	remote := &fakeAllocationClient{err: errors.New("connection refused")}
	s := NewAllocationService(domain.NewAssetRegistry(), remote)

	preview, err := s.Preview(context.Background(), "acct-1", "XAU", decimal.RequireFromString("2.35"))
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if !preview.AllocatedGrams.Equal(decimal.NewFromInt(2)) {
		t.Errorf("allocated = %s, want local value 2", preview.AllocatedGrams)
	}
}
