package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metaltrading/internal/trading/domain"
)

// fakeFeed 固定价格的行情源
type fakeFeed struct {
	prices map[string]decimal.Decimal
	err    error
}

func (f *fakeFeed) Price(ctx context.Context, symbol string) (domain.AssetPrice, error) {
	if f.err != nil {
		return domain.AssetPrice{}, f.err
	}
	p, ok := f.prices[symbol]
	if !ok {
		return domain.AssetPrice{}, fmt.Errorf("%w: %s", domain.ErrPriceUnavailable, symbol)
	}
	return domain.AssetPrice{Symbol: symbol, Price: p, AsOf: time.Now()}, nil
}

func (f *fakeFeed) Snapshot(ctx context.Context) (domain.PriceSnapshot, error) {
	out := make(domain.PriceSnapshot, len(f.prices))
	for s, p := range f.prices {
		out[s] = domain.AssetPrice{Symbol: s, Price: p, AsOf: time.Now()}
	}
	return out, nil
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{prices: map[string]decimal.Decimal{
		"XAU": decimal.RequireFromString("165"),
		"XAG": decimal.RequireFromString("2.7"),
		"ETH": decimal.RequireFromString("2700"),
	}}
}

var testClock = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func newTestQuoteService(feed domain.PriceFeed) *QuoteService {
	s := NewQuoteService(feed, domain.NewAssetRegistry(), nil, nil, nil, QuoteServiceConfig{
		TTL:           25 * time.Second,
		SweepInterval: time.Second,
	})
	s.now = func() time.Time { return testClock }
	return s
}

func TestRequestQuoteFreezesPrice(t *testing.T) {
	feed := newFakeFeed()
	s := newTestQuoteService(feed)
	ctx := context.Background()

	q, err := s.RequestQuote(ctx, "acct-1", domain.QuoteSideBuy, "XAU", decimal.RequireFromString("2"), "USD")
	if err != nil {
		t.Fatalf("RequestQuote failed: %v", err)
	}

	if !q.PricePerGram.Equal(decimal.RequireFromString("165")) {
		t.Errorf("price = %s, want 165", q.PricePerGram)
	}
	if !q.SettlementAmount.Equal(decimal.RequireFromString("330")) {
		t.Errorf("settlement amount = %s, want 330", q.SettlementAmount)
	}
	if q.Status() != domain.QuoteStatusActive {
		t.Errorf("status = %s, want ACTIVE", q.Status())
	}

	// 发出后行情变动不影响已冻结的报价
	feed.prices["XAU"] = decimal.RequireFromString("180")
	got, err := s.Quote(q.ID)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if !got.PricePerGram.Equal(decimal.RequireFromString("165")) {
		t.Errorf("frozen price = %s, want 165", got.PricePerGram)
	}
}

func TestRequestQuoteCryptoSettlement(t *testing.T) {
	s := newTestQuoteService(newFakeFeed())

	// 10g * 165 = 1650 USD / 2700 = 0.611111 ETH
	q, err := s.RequestQuote(context.Background(), "acct-1", domain.QuoteSideBuy, "XAU", decimal.NewFromInt(10), "ETH")
	if err != nil {
		t.Fatalf("RequestQuote failed: %v", err)
	}
	if !q.SettlementAmount.Equal(decimal.RequireFromString("0.611111")) {
		t.Errorf("settlement amount = %s, want 0.611111", q.SettlementAmount)
	}
}

func TestRequestQuoteValidation(t *testing.T) {
	s := newTestQuoteService(newFakeFeed())
	ctx := context.Background()

	if _, err := s.RequestQuote(ctx, "acct-1", domain.QuoteSideBuy, "XAU", decimal.Zero, "USD"); !errors.Is(err, domain.ErrInvalidGrams) {
		t.Errorf("zero grams err = %v, want ErrInvalidGrams", err)
	}
	if _, err := s.RequestQuote(ctx, "acct-1", domain.QuoteSideBuy, "DOGE", decimal.NewFromInt(1), "USD"); !errors.Is(err, domain.ErrUnknownAsset) {
		t.Errorf("unknown metal err = %v, want ErrUnknownAsset", err)
	}
	// 结算资产不能作为报价标的
	if _, err := s.RequestQuote(ctx, "acct-1", domain.QuoteSideBuy, "USD", decimal.NewFromInt(1), "USD"); err == nil {
		t.Error("quoting a non-metal asset should fail")
	}
	if _, err := s.RequestQuote(ctx, "acct-1", "HOLD", "XAU", decimal.NewFromInt(1), "USD"); !errors.Is(err, domain.ErrInvalidSide) {
		t.Errorf("invalid side err = %v, want ErrInvalidSide", err)
	}
}

func TestRequestQuotePriceUnavailable(t *testing.T) {
	feed := newFakeFeed()
	feed.err = domain.ErrPriceUnavailable
	s := newTestQuoteService(feed)

	if _, err := s.RequestQuote(context.Background(), "acct-1", domain.QuoteSideBuy, "XAU", decimal.NewFromInt(1), "USD"); !errors.Is(err, domain.ErrPriceUnavailable) {
		t.Errorf("err = %v, want ErrPriceUnavailable", err)
	}
}

func TestRequestQuoteSupersedesSameKey(t *testing.T) {
	s := newTestQuoteService(newFakeFeed())
	ctx := context.Background()

	first, err := s.RequestQuote(ctx, "acct-1", domain.QuoteSideBuy, "XAU", decimal.NewFromInt(1), "USD")
	if err != nil {
		t.Fatalf("first RequestQuote failed: %v", err)
	}
	second, err := s.RequestQuote(ctx, "acct-1", domain.QuoteSideBuy, "XAU", decimal.NewFromInt(2), "USD")
	if err != nil {
		t.Fatalf("second RequestQuote failed: %v", err)
	}

	if first.Status() != domain.QuoteStatusSuperseded {
		t.Errorf("first quote status = %s, want SUPERSEDED", first.Status())
	}
	if _, err := s.Quote(first.ID); !errors.Is(err, domain.ErrQuoteNotFound) {
		t.Errorf("superseded quote lookup err = %v, want ErrQuoteNotFound", err)
	}
	if got, err := s.Quote(second.ID); err != nil || got.ID != second.ID {
		t.Errorf("second quote should remain active, got %v, err %v", got, err)
	}
}

func TestRequestQuoteDifferentKeysCoexist(t *testing.T) {
	s := newTestQuoteService(newFakeFeed())
	ctx := context.Background()

	buy, _ := s.RequestQuote(ctx, "acct-1", domain.QuoteSideBuy, "XAU", decimal.NewFromInt(1), "USD")
	sell, _ := s.RequestQuote(ctx, "acct-1", domain.QuoteSideSell, "XAU", decimal.NewFromInt(1), "USD")
	silver, _ := s.RequestQuote(ctx, "acct-1", domain.QuoteSideBuy, "XAG", decimal.NewFromInt(1), "USD")

	for _, q := range []*domain.Quote{buy, sell, silver} {
		if q.Status() != domain.QuoteStatusActive {
			t.Errorf("quote %s status = %s, want ACTIVE", q.ID, q.Status())
		}
	}
}

func TestRequestQuoteConcurrentSameKey(t *testing.T) {
	s := newTestQuoteService(newFakeFeed())
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.RequestQuote(ctx, "acct-1", domain.QuoteSideBuy, "XAU", decimal.NewFromInt(1), "USD"); err != nil {
				t.Errorf("RequestQuote failed: %v", err)
			}
		}()
	}
	wg.Wait()

	// 同键任一时刻至多一个活跃报价
	s.mu.Lock()
	activeCount := len(s.active)
	survivor := s.active[domain.QuoteKey{Account: "acct-1", Metal: "XAU", Side: domain.QuoteSideBuy}]
	s.mu.Unlock()

	if activeCount != 1 {
		t.Errorf("active quotes = %d, want 1", activeCount)
	}
	if survivor == nil || survivor.Status() != domain.QuoteStatusActive {
		t.Error("surviving quote should be active")
	}
}

func TestCountdown(t *testing.T) {
	s := newTestQuoteService(newFakeFeed())
	q, err := s.RequestQuote(context.Background(), "acct-1", domain.QuoteSideBuy, "XAU", decimal.NewFromInt(1), "USD")
	if err != nil {
		t.Fatalf("RequestQuote failed: %v", err)
	}

	if remaining, _ := s.Countdown(q.ID); remaining != 25 {
		t.Errorf("countdown at issue = %d, want 25", remaining)
	}

	// 剩余 4.2s 显示 5
	s.now = func() time.Time { return testClock.Add(20*time.Second + 800*time.Millisecond) }
	if remaining, _ := s.Countdown(q.ID); remaining != 5 {
		t.Errorf("countdown = %d, want 5", remaining)
	}

	s.now = func() time.Time { return testClock.Add(time.Minute) }
	if remaining, _ := s.Countdown(q.ID); remaining != 0 {
		t.Errorf("countdown after expiry = %d, want 0", remaining)
	}

	if _, err := s.Countdown("missing"); !errors.Is(err, domain.ErrQuoteNotFound) {
		t.Errorf("countdown on unknown quote err = %v, want ErrQuoteNotFound", err)
	}
}

func TestSweepExpiresDueQuotes(t *testing.T) {
	s := newTestQuoteService(newFakeFeed())
	ctx := context.Background()

	q, err := s.RequestQuote(ctx, "acct-1", domain.QuoteSideBuy, "XAU", decimal.NewFromInt(1), "USD")
	if err != nil {
		t.Fatalf("RequestQuote failed: %v", err)
	}

	events := s.Subscribe()
	// 消费掉缓冲里可能残留的事件
	drain(events)

	s.now = func() time.Time { return testClock.Add(26 * time.Second) }
	s.sweepOnce(ctx)

	if q.Status() != domain.QuoteStatusExpired {
		t.Errorf("status after sweep = %s, want EXPIRED", q.Status())
	}
	if _, err := s.Quote(q.ID); !errors.Is(err, domain.ErrQuoteNotFound) {
		t.Errorf("expired quote lookup err = %v, want ErrQuoteNotFound", err)
	}

	select {
	case ev := <-events:
		if ev.Type != domain.QuoteEventExpired || ev.QuoteID != q.ID {
			t.Errorf("event = %+v, want EXPIRED for %s", ev, q.ID)
		}
	default:
		t.Error("expected an EXPIRED event")
	}
}

func TestSweepLeavesFreshQuotes(t *testing.T) {
	s := newTestQuoteService(newFakeFeed())
	ctx := context.Background()

	q, _ := s.RequestQuote(ctx, "acct-1", domain.QuoteSideBuy, "XAU", decimal.NewFromInt(1), "USD")

	s.now = func() time.Time { return testClock.Add(10 * time.Second) }
	s.sweepOnce(ctx)

	if q.Status() != domain.QuoteStatusActive {
		t.Errorf("status = %s, want ACTIVE", q.Status())
	}
}

func TestCancelQuote(t *testing.T) {
	s := newTestQuoteService(newFakeFeed())
	ctx := context.Background()

	q, err := s.RequestQuote(ctx, "acct-1", domain.QuoteSideBuy, "XAU", decimal.NewFromInt(1), "USD")
	if err != nil {
		t.Fatalf("RequestQuote failed: %v", err)
	}

	if err := s.Cancel(ctx, q.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if q.Status() != domain.QuoteStatusExpired {
		t.Errorf("status after cancel = %s, want EXPIRED", q.Status())
	}

	// 取消后单飞键立即释放
	next, err := s.RequestQuote(ctx, "acct-1", domain.QuoteSideBuy, "XAU", decimal.NewFromInt(1), "USD")
	if err != nil {
		t.Fatalf("RequestQuote after cancel failed: %v", err)
	}
	if next.Status() != domain.QuoteStatusActive {
		t.Errorf("new quote status = %s, want ACTIVE", next.Status())
	}

	// 对未知报价和已终态报价幂等
	if err := s.Cancel(ctx, q.ID); err != nil {
		t.Errorf("repeated cancel returned %v", err)
	}
	if err := s.Cancel(ctx, "missing"); err != nil {
		t.Errorf("cancel of unknown quote returned %v", err)
	}
}

func TestSubscribeReceivesIssuedEvent(t *testing.T) {
	s := newTestQuoteService(newFakeFeed())
	events := s.Subscribe()

	q, err := s.RequestQuote(context.Background(), "acct-1", domain.QuoteSideBuy, "XAU", decimal.NewFromInt(1), "USD")
	if err != nil {
		t.Fatalf("RequestQuote failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Type != domain.QuoteEventIssued || ev.QuoteID != q.ID {
			t.Errorf("event = %+v, want ISSUED for %s", ev, q.ID)
		}
	default:
		t.Error("expected an ISSUED event")
	}
}

func drain(ch <-chan domain.QuoteEvent) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
