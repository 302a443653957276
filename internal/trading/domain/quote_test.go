package domain

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestQuote(now time.Time, ttl time.Duration) *Quote {
	return NewQuote(
		"q-1",
		"acct-1",
		QuoteSideBuy,
		"XAU",
		decimal.NewFromInt(2),
		decimal.RequireFromString("165"),
		decimal.RequireFromString("330"),
		"USD",
		decimal.RequireFromString("330"),
		ttl,
		now,
	)
}

func TestQuoteLifecycle(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	q := newTestQuote(now, 25*time.Second)

	if q.Status() != QuoteStatusActive {
		t.Fatalf("new quote status = %s, want ACTIVE", q.Status())
	}
	if q.TTLSeconds != 25 {
		t.Errorf("ttl = %d, want 25", q.TTLSeconds)
	}

	if !q.BeginExecution() {
		t.Fatal("BeginExecution should win on an active quote")
	}
	if q.BeginExecution() {
		t.Error("second BeginExecution should fail")
	}
	if q.Status() != QuoteStatusExecuting {
		t.Errorf("status = %s, want EXECUTING", q.Status())
	}

	if !q.FinishExecution() {
		t.Fatal("FinishExecution should succeed from EXECUTING")
	}
	if q.Status() != QuoteStatusConsumed {
		t.Errorf("status = %s, want CONSUMED", q.Status())
	}
	if !q.Status().Terminal() {
		t.Error("CONSUMED should be terminal")
	}

	// 终态之后任何迁移都不生效
	if q.Expire() || q.Supersede() || q.BeginExecution() {
		t.Error("no transition should succeed from a terminal state")
	}
}

func TestQuoteRemaining(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	q := newTestQuote(now, 25*time.Second)

	if got := q.Remaining(now); got != 25 {
		t.Errorf("remaining at issue = %d, want 25", got)
	}
	// 剩余 4.2s 向上取整为 5，不提前显示 0
	if got := q.Remaining(now.Add(20*time.Second + 800*time.Millisecond)); got != 5 {
		t.Errorf("remaining = %d, want 5", got)
	}
	if got := q.Remaining(q.ExpiresAt); got != 0 {
		t.Errorf("remaining at expiry = %d, want 0", got)
	}
	if got := q.Remaining(q.ExpiresAt.Add(time.Hour)); got != 0 {
		t.Errorf("remaining after expiry = %d, want 0", got)
	}
}

func TestQuoteDueAt(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	q := newTestQuote(now, 25*time.Second)

	if q.DueAt(now) {
		t.Error("quote should not be due at issue")
	}
	if q.DueAt(q.ExpiresAt) {
		t.Error("quote is not due exactly at ExpiresAt")
	}
	if !q.DueAt(q.ExpiresAt.Add(time.Millisecond)) {
		t.Error("quote should be due after ExpiresAt")
	}
}

func TestQuoteAbortExecution(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	// 有效期内回到 Active，允许同一报价重试
	q := newTestQuote(now, 25*time.Second)
	q.BeginExecution()
	if status := q.AbortExecution(now.Add(5 * time.Second)); status != QuoteStatusActive {
		t.Errorf("abort within ttl: status = %s, want ACTIVE", status)
	}
	if !q.BeginExecution() {
		t.Error("quote should be executable again after abort")
	}

	// 超过有效期直接过期
	q2 := newTestQuote(now, 25*time.Second)
	q2.BeginExecution()
	if status := q2.AbortExecution(now.Add(30 * time.Second)); status != QuoteStatusExpired {
		t.Errorf("abort after ttl: status = %s, want EXPIRED", status)
	}
}

func TestQuoteDeferredSupersede(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	// 执行中被标记延迟取代的报价，失败回退直接进入 Superseded，
	// 即使有效期还没用完也不回到 Active
	q := newTestQuote(now, 25*time.Second)
	q.BeginExecution()
	q.DeferSupersede()
	if status := q.AbortExecution(now.Add(5 * time.Second)); status != QuoteStatusSuperseded {
		t.Errorf("abort with pending supersede: status = %s, want SUPERSEDED", status)
	}
	if q.BeginExecution() {
		t.Error("superseded quote should not be executable")
	}

	// 执行成功仍然以成交为准
	q2 := newTestQuote(now, 25*time.Second)
	q2.BeginExecution()
	q2.DeferSupersede()
	if !q2.FinishExecution() {
		t.Error("FinishExecution should win over a pending supersede")
	}
	if q2.Status() != QuoteStatusConsumed {
		t.Errorf("status = %s, want CONSUMED", q2.Status())
	}
}

func TestQuoteConcurrentExecution(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	q := newTestQuote(now, 25*time.Second)

	const workers = 64
	var wg sync.WaitGroup
	var winners int32
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if q.BeginExecution() {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("BeginExecution winners = %d, want exactly 1", winners)
	}
}
