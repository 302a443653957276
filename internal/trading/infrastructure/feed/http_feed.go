// Package feed 实现基于 HTTP 轮询的行情源
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metaltrading/internal/trading/domain"
	"github.com/wyfcoding/metaltrading/pkg/logger"
	"github.com/wyfcoding/metaltrading/pkg/metrics"
)

// Config 行情源配置
type Config struct {
	// 快照接口地址
	BaseURL string
	// 轮询间隔
	PollInterval time.Duration
	// 单次请求超时
	RequestTimeout time.Duration
	// 价格最大可用时长，超过视为不可用
	MaxAge time.Duration
}

// snapshotResponse 快照接口响应
type snapshotResponse struct {
	Prices map[string]struct {
		Price decimal.Decimal `json:"price"`
		AsOf  time.Time       `json:"as_of"`
	} `json:"prices"`
}

// HTTPFeed 轮询式行情源
// 周期拉取快照缓存在内存，读路径无网络调用
type HTTPFeed struct {
	baseURL string
	client  *http.Client
	maxAge  time.Duration
	poll    time.Duration
	m       *metrics.Metrics

	mu       sync.RWMutex
	snapshot domain.PriceSnapshot

	stopCh chan struct{}
	doneCh chan struct{}

	now func() time.Time
}

// New 创建行情源，m 可为 nil
func New(cfg Config, m *metrics.Metrics) *HTTPFeed {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Minute
	}
	return &HTTPFeed{
		baseURL:  cfg.BaseURL,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		maxAge:   cfg.MaxAge,
		poll:     cfg.PollInterval,
		m:        m,
		snapshot: make(domain.PriceSnapshot),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// Start 启动轮询，先同步拉取一次
func (f *HTTPFeed) Start(ctx context.Context) {
	if err := f.Refresh(ctx); err != nil {
		logger.Warn(ctx, "Initial price feed refresh failed", "error", err)
	}
	go f.pollLoop()
}

// Stop 停止轮询
func (f *HTTPFeed) Stop() {
	close(f.stopCh)
	<-f.doneCh
}

func (f *HTTPFeed) pollLoop() {
	defer close(f.doneCh)
	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), f.client.Timeout)
			if err := f.Refresh(ctx); err != nil {
				logger.Warn(ctx, "Price feed refresh failed", "error", err)
			}
			cancel()
		}
	}
}

// Refresh 拉取一次快照并替换缓存
func (f *HTTPFeed) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/v1/prices", nil)
	if err != nil {
		return err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if f.m != nil {
			f.m.FeedErrorsTotal.Inc()
		}
		if isTimeout(err) {
			return fmt.Errorf("%w: %v", domain.ErrNetworkTimeout, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if f.m != nil {
			f.m.FeedErrorsTotal.Inc()
		}
		return fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	var payload snapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if f.m != nil {
			f.m.FeedErrorsTotal.Inc()
		}
		return fmt.Errorf("failed to decode price snapshot: %w", err)
	}

	now := f.now()
	snapshot := make(domain.PriceSnapshot, len(payload.Prices))
	newest := time.Time{}
	for symbol, p := range payload.Prices {
		asOf := p.AsOf
		if asOf.IsZero() {
			asOf = now
		}
		snapshot[symbol] = domain.AssetPrice{
			Symbol: symbol,
			Price:  p.Price,
			AsOf:   asOf,
		}
		if asOf.After(newest) {
			newest = asOf
		}
	}

	f.mu.Lock()
	f.snapshot = snapshot
	f.mu.Unlock()

	if f.m != nil {
		f.m.FeedRefreshTotal.Inc()
		if !newest.IsZero() {
			f.m.FeedPriceAge.Set(now.Sub(newest).Seconds())
		}
	}

	logger.Debug(ctx, "Price snapshot refreshed", "symbols", len(snapshot))
	return nil
}

// Price 获取单个资产价格
func (f *HTTPFeed) Price(ctx context.Context, symbol string) (domain.AssetPrice, error) {
	f.mu.RLock()
	p, ok := f.snapshot[symbol]
	f.mu.RUnlock()

	if !ok || !p.Usable(f.now(), f.maxAge) {
		return domain.AssetPrice{}, fmt.Errorf("%w: %s", domain.ErrPriceUnavailable, symbol)
	}
	return p, nil
}

// Snapshot 获取当前完整快照的副本
func (f *HTTPFeed) Snapshot(ctx context.Context) (domain.PriceSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(domain.PriceSnapshot, len(f.snapshot))
	for k, v := range f.snapshot {
		out[k] = v
	}
	return out, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
