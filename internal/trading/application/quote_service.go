// Package application 实现报价锁定与成交编排的应用服务
package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metaltrading/internal/trading/domain"
	"github.com/wyfcoding/metaltrading/pkg/logger"
	"github.com/wyfcoding/metaltrading/pkg/metrics"
)

// QuoteMirror 活跃报价镜像（Redis），仅用于观察与恢复，进程内表为准
type QuoteMirror interface {
	SaveActive(ctx context.Context, quote *domain.Quote) error
	Remove(ctx context.Context, quoteID string) error
}

// closedRetention 终态报价在索引中的保留时长
// 覆盖客户端丢失响应后的重试窗口，重复提交据此判定幂等
const closedRetention = time.Hour

// closedQuote 已关闭报价的终态记录
type closedQuote struct {
	status   domain.QuoteStatus
	closedAt time.Time
}

// QuoteServiceConfig 报价服务配置
type QuoteServiceConfig struct {
	// 报价有效期
	TTL time.Duration
	// 过期扫描间隔
	SweepInterval time.Duration
}

// QuoteService 报价管理器
// 保证同一 (账户, 金属, 方向) 键任一时刻至多一个活跃报价；
// 价格在发出时冻结，之后由 1s 粒度的扫描负责过期
type QuoteService struct {
	feed   domain.PriceFeed
	assets *domain.AssetRegistry
	repo   domain.TradeRepository
	mirror QuoteMirror
	m      *metrics.Metrics
	cfg    QuoteServiceConfig

	mu     sync.Mutex
	active map[domain.QuoteKey]*domain.Quote
	byID   map[string]*domain.Quote

	closedMu sync.Mutex
	closed   map[string]closedQuote

	subMu sync.Mutex
	subs  []chan domain.QuoteEvent

	stopCh chan struct{}
	doneCh chan struct{}

	// 可注入时钟，便于测试
	now func() time.Time
}

// NewQuoteService 创建报价服务
// repo、mirror、m 均可为 nil（纯内存运行，用于测试）
func NewQuoteService(feed domain.PriceFeed, assets *domain.AssetRegistry, repo domain.TradeRepository, mirror QuoteMirror, m *metrics.Metrics, cfg QuoteServiceConfig) *QuoteService {
	if cfg.TTL <= 0 {
		cfg.TTL = 25 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Second
	}
	return &QuoteService{
		feed:   feed,
		assets: assets,
		repo:   repo,
		mirror: mirror,
		m:      m,
		cfg:    cfg,
		active: make(map[domain.QuoteKey]*domain.Quote),
		byID:   make(map[string]*domain.Quote),
		closed: make(map[string]closedQuote),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		now:    time.Now,
	}
}

// Start 启动过期扫描
func (s *QuoteService) Start() {
	go s.sweepLoop()
}

// Stop 停止过期扫描
func (s *QuoteService) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// Subscribe 订阅报价生命周期事件
// 过期逻辑不依赖任何订阅者；慢消费者会丢事件而不是阻塞扫描
func (s *QuoteService) Subscribe() <-chan domain.QuoteEvent {
	ch := make(chan domain.QuoteEvent, 64)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

// RequestQuote 发出新报价
// 同键已有活跃报价时先将其取代：新请求总是胜出
func (s *QuoteService) RequestQuote(ctx context.Context, account string, side domain.QuoteSide, metalSymbol string, grams decimal.Decimal, settlementAsset string) (*domain.Quote, error) {
	if grams.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidGrams
	}
	if !side.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSide, side)
	}
	if account == "" {
		return nil, fmt.Errorf("account is required")
	}

	metal, err := s.assets.Get(metalSymbol)
	if err != nil {
		return nil, err
	}
	if metal.Kind != domain.AssetKindMetal {
		return nil, fmt.Errorf("%w: %s is not a metal asset", domain.ErrUnknownAsset, metalSymbol)
	}
	settlement, err := s.assets.Get(settlementAsset)
	if err != nil {
		return nil, err
	}

	// 价格在此刻冻结；行情不可用则不产生报价
	metalPrice, err := s.feed.Price(ctx, metalSymbol)
	if err != nil {
		return nil, err
	}

	settlementPrice := decimal.NewFromInt(1)
	if settlement.Kind == domain.AssetKindCrypto {
		p, err := s.feed.Price(ctx, settlementAsset)
		if err != nil {
			return nil, err
		}
		settlementPrice = p.Price
	}

	settlementAmount, err := domain.MetalToSettlement(grams, metalPrice.Price, settlement, settlementPrice)
	if err != nil {
		return nil, err
	}
	totalUSD := grams.Mul(metalPrice.Price).Round(2)

	now := s.now()
	quote := domain.NewQuote(
		uuid.New().String(),
		account,
		side,
		metalSymbol,
		grams,
		metalPrice.Price,
		totalUSD,
		settlementAsset,
		settlementAmount,
		s.cfg.TTL,
		now,
	)

	key := quote.Key()

	s.mu.Lock()
	if prev, ok := s.active[key]; ok {
		if prev.Supersede() {
			delete(s.byID, prev.ID)
			s.closeQuote(ctx, prev, domain.QuoteEventSuperseded, now)
			if s.m != nil {
				s.m.QuotesSupersededTotal.Inc()
			}
		} else {
			// 执行中的报价无法立即取代：先标记延迟取代，执行失败回退时
			// 直接进入 Superseded 而不是带着旧价回到 Active。
			// 标记后再试一次立即取代，堵住回退恰好先于标记的竞争窗口
			prev.DeferSupersede()
			if prev.Supersede() {
				delete(s.byID, prev.ID)
				s.closeQuote(ctx, prev, domain.QuoteEventSuperseded, now)
				if s.m != nil {
					s.m.QuotesSupersededTotal.Inc()
				}
			}
		}
	}
	s.active[key] = quote
	s.byID[quote.ID] = quote
	activeCount := len(s.active)
	s.mu.Unlock()

	if s.mirror != nil {
		if err := s.mirror.SaveActive(ctx, quote); err != nil {
			logger.Warn(ctx, "Failed to mirror active quote", "quote_id", quote.ID, "error", err)
		}
	}
	if s.m != nil {
		s.m.QuotesIssuedTotal.Inc()
		s.m.QuotesActive.Set(float64(activeCount))
	}

	s.publish(domain.QuoteEvent{
		Type:        domain.QuoteEventIssued,
		QuoteID:     quote.ID,
		Account:     quote.Account,
		MetalSymbol: quote.MetalSymbol,
		Side:        quote.Side,
		At:          now,
	})

	logger.Info(ctx, "Quote issued",
		"quote_id", quote.ID,
		"account", account,
		"side", side,
		"metal", metalSymbol,
		"grams", grams.String(),
		"price_per_gram", metalPrice.Price.String(),
		"expires_at", quote.ExpiresAt,
	)

	return quote, nil
}

// Quote 按 ID 查找报价
func (s *QuoteService) Quote(quoteID string) (*domain.Quote, error) {
	s.mu.Lock()
	q, ok := s.byID[quoteID]
	s.mu.Unlock()
	if !ok {
		return nil, domain.ErrQuoteNotFound
	}
	return q, nil
}

// ClosedStatus 查询已关闭报价的终态
// 已消费报价的重复提交据此报告 already-consumed 而不是误导客户端重新询价
func (s *QuoteService) ClosedStatus(quoteID string) (domain.QuoteStatus, bool) {
	s.closedMu.Lock()
	entry, ok := s.closed[quoteID]
	s.closedMu.Unlock()
	return entry.status, ok
}

// Countdown 报价剩余秒数，永不为负
func (s *QuoteService) Countdown(quoteID string) (int, error) {
	q, err := s.Quote(quoteID)
	if err != nil {
		return 0, err
	}
	if q.Status() != domain.QuoteStatusActive && q.Status() != domain.QuoteStatusExecuting {
		return 0, nil
	}
	return q.Remaining(s.now()), nil
}

// Cancel 用户主动取消报价，立即释放单飞键
// 对已终态报价幂等
func (s *QuoteService) Cancel(ctx context.Context, quoteID string) error {
	s.mu.Lock()
	q, ok := s.byID[quoteID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if !q.Expire() {
		// 已终态或正在执行，取消不生效也不报错
		return nil
	}

	now := s.now()
	s.detach(q)
	s.closeQuote(ctx, q, domain.QuoteEventCancelled, now)
	if s.m != nil {
		s.m.QuotesCancelledTotal.Inc()
	}

	logger.Info(ctx, "Quote cancelled", "quote_id", quoteID)
	return nil
}

// sweepLoop 周期过期扫描
// 与 RequestQuote/Cancel/Commit 并发安全：离开 Active 的迁移是 CAS，
// 同一报价上 expire/consume/supersede 恰好一个胜出
func (s *QuoteService) sweepLoop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepOnce(context.Background())
		}
	}
}

// sweepOnce 执行一轮过期检查
func (s *QuoteService) sweepOnce(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []*domain.Quote
	for _, q := range s.active {
		if q.DueAt(now) {
			due = append(due, q)
		}
	}
	s.mu.Unlock()

	for _, q := range due {
		if q.Expire() {
			s.detach(q)
			s.closeQuote(ctx, q, domain.QuoteEventExpired, now)
			if s.m != nil {
				s.m.QuotesExpiredTotal.Inc()
			}
			logger.Debug(ctx, "Quote expired by sweep", "quote_id", q.ID)
		}
	}

	s.closedMu.Lock()
	for id, entry := range s.closed {
		if now.Sub(entry.closedAt) > closedRetention {
			delete(s.closed, id)
		}
	}
	s.closedMu.Unlock()
}

// expireDue 提交路径发现报价已到期时的即时过期
func (s *QuoteService) expireDue(ctx context.Context, q *domain.Quote) {
	if q.Expire() {
		s.detach(q)
		s.closeQuote(ctx, q, domain.QuoteEventExpired, s.now())
		if s.m != nil {
			s.m.QuotesExpiredTotal.Inc()
		}
	}
}

// closeTerminal 执行结束后按报价终态收尾：摘除索引、归档、发事件
func (s *QuoteService) closeTerminal(ctx context.Context, q *domain.Quote) {
	var event domain.QuoteEventType
	switch q.Status() {
	case domain.QuoteStatusConsumed:
		event = domain.QuoteEventConsumed
	case domain.QuoteStatusSuperseded:
		event = domain.QuoteEventSuperseded
		if s.m != nil {
			s.m.QuotesSupersededTotal.Inc()
		}
	default:
		event = domain.QuoteEventExpired
		if s.m != nil {
			s.m.QuotesExpiredTotal.Inc()
		}
	}
	s.detach(q)
	s.closeQuote(ctx, q, event, s.now())
}

// detach 从单飞表和 ID 索引中摘除报价
func (s *QuoteService) detach(q *domain.Quote) {
	s.mu.Lock()
	if cur, ok := s.active[q.Key()]; ok && cur.ID == q.ID {
		delete(s.active, q.Key())
	}
	delete(s.byID, q.ID)
	activeCount := len(s.active)
	s.mu.Unlock()

	if s.m != nil {
		s.m.QuotesActive.Set(float64(activeCount))
	}
}

// closeQuote 终态报价的公共收尾：终态索引、镜像清理、归档、事件
func (s *QuoteService) closeQuote(ctx context.Context, q *domain.Quote, event domain.QuoteEventType, now time.Time) {
	s.closedMu.Lock()
	s.closed[q.ID] = closedQuote{status: q.Status(), closedAt: now}
	s.closedMu.Unlock()

	if s.mirror != nil {
		if err := s.mirror.Remove(ctx, q.ID); err != nil {
			logger.Warn(ctx, "Failed to remove quote mirror", "quote_id", q.ID, "error", err)
		}
	}

	if s.repo != nil {
		archive := &domain.QuoteArchive{
			QuoteID:          q.ID,
			Account:          q.Account,
			Side:             q.Side,
			MetalSymbol:      q.MetalSymbol,
			Grams:            q.Grams,
			PricePerGram:     q.PricePerGram,
			SettlementAsset:  q.SettlementAsset,
			SettlementAmount: q.SettlementAmount,
			FinalStatus:      q.Status().String(),
			IssuedAt:         q.IssuedAt,
			ClosedAt:         now,
		}
		if err := s.repo.ArchiveQuote(ctx, archive); err != nil {
			logger.Warn(ctx, "Failed to archive quote", "quote_id", q.ID, "error", err)
		}
	}

	s.publish(domain.QuoteEvent{
		Type:        event,
		QuoteID:     q.ID,
		Account:     q.Account,
		MetalSymbol: q.MetalSymbol,
		Side:        q.Side,
		At:          now,
	})
}

// publish 向所有订阅者非阻塞投递事件
func (s *QuoteService) publish(event domain.QuoteEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
