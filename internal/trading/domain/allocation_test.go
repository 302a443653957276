package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestResolveAllocationFractional(t *testing.T) {
	preview, err := ResolveAllocation(decimal.RequireFromString("2.35"))
	if err != nil {
		t.Fatalf("ResolveAllocation failed: %v", err)
	}

	if !preview.AllocatedGrams.Equal(decimal.NewFromInt(2)) {
		t.Errorf("allocated = %s, want 2", preview.AllocatedGrams)
	}
	if !preview.NonAllocatedGrams.Equal(decimal.RequireFromString("0.35")) {
		t.Errorf("non-allocated = %s, want 0.35", preview.NonAllocatedGrams)
	}
	if !preview.HasPartialAllocation {
		t.Error("expected partial allocation")
	}
	if preview.Suggestion == nil {
		t.Fatal("expected a top-up suggestion")
	}
	if !preview.Suggestion.GramsToAdd.Equal(decimal.RequireFromString("0.65")) {
		t.Errorf("grams to add = %s, want 0.65", preview.Suggestion.GramsToAdd)
	}
	if !preview.Suggestion.TargetGrams.Equal(decimal.NewFromInt(3)) {
		t.Errorf("target = %s, want 3", preview.Suggestion.TargetGrams)
	}

	// 配额加余数必须恰好等于总克数
	sum := preview.AllocatedGrams.Add(preview.NonAllocatedGrams)
	if !sum.Equal(preview.TotalGrams) {
		t.Errorf("allocated + non-allocated = %s, want %s", sum, preview.TotalGrams)
	}
}

func TestResolveAllocationWholeGrams(t *testing.T) {
	preview, err := ResolveAllocation(decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("ResolveAllocation failed: %v", err)
	}

	if preview.HasPartialAllocation {
		t.Error("whole grams should not produce a partial allocation")
	}
	if preview.Suggestion != nil {
		t.Error("whole grams should not produce a suggestion")
	}
	if !preview.AllocatedGrams.Equal(decimal.NewFromInt(5)) {
		t.Errorf("allocated = %s, want 5", preview.AllocatedGrams)
	}
	if !preview.NonAllocatedGrams.IsZero() {
		t.Errorf("non-allocated = %s, want 0", preview.NonAllocatedGrams)
	}
}

func TestResolveAllocationEpsilon(t *testing.T) {
	// 浮点输入的 2.9999999999 应视为整 3 克，不拆成 2 + 0.9999999999
	preview, err := ResolveAllocation(decimal.RequireFromString("2.9999999999"))
	if err != nil {
		t.Fatalf("ResolveAllocation failed: %v", err)
	}

	if preview.HasPartialAllocation {
		t.Error("value within epsilon of a whole gram should not be partial")
	}
	if !preview.AllocatedGrams.Equal(decimal.NewFromInt(3)) {
		t.Errorf("allocated = %s, want 3", preview.AllocatedGrams)
	}
}

func TestResolveAllocationBelowOneGram(t *testing.T) {
	preview, err := ResolveAllocation(decimal.RequireFromString("0.4"))
	if err != nil {
		t.Fatalf("ResolveAllocation failed: %v", err)
	}

	if !preview.AllocatedGrams.IsZero() {
		t.Errorf("allocated = %s, want 0", preview.AllocatedGrams)
	}
	if !preview.NonAllocatedGrams.Equal(decimal.RequireFromString("0.4")) {
		t.Errorf("non-allocated = %s, want 0.4", preview.NonAllocatedGrams)
	}
	if !preview.Suggestion.TargetGrams.Equal(decimal.NewFromInt(1)) {
		t.Errorf("target = %s, want 1", preview.Suggestion.TargetGrams)
	}
}

func TestResolveAllocationInvalidGrams(t *testing.T) {
	for _, grams := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-1)} {
		if _, err := ResolveAllocation(grams); !errors.Is(err, ErrInvalidGrams) {
			t.Errorf("ResolveAllocation(%s) error = %v, want ErrInvalidGrams", grams, err)
		}
	}
}
