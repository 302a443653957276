package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/metaltrading/internal/trading/domain"
	"github.com/wyfcoding/metaltrading/pkg/logger"
	"github.com/wyfcoding/metaltrading/pkg/metrics"
)

// TradeService 成交执行器
// 消费仍然有效的报价，恰好一次地向外部账本提交；
// 限价单绕过报价直接提交给限价单服务
type TradeService struct {
	quotes     *QuoteService
	ledger     domain.Ledger
	limitOrder domain.LimitOrderClient
	repo       domain.TradeRepository
	telemetry  domain.TelemetryPublisher
	m          *metrics.Metrics

	now func() time.Time
}

// NewTradeService 创建成交执行器
// repo、telemetry、m 均可为 nil
func NewTradeService(quotes *QuoteService, ledger domain.Ledger, limitOrder domain.LimitOrderClient, repo domain.TradeRepository, telemetry domain.TelemetryPublisher, m *metrics.Metrics) *TradeService {
	return &TradeService{
		quotes:     quotes,
		ledger:     ledger,
		limitOrder: limitOrder,
		repo:       repo,
		telemetry:  telemetry,
		m:          m,
		now:        time.Now,
	}
}

// Commit 消费报价并提交账本
// 幂等保护：同一 quoteID 的重复提交在账本上至多产生一次状态变更；
// 可重试失败（超时）后报价在有效期内回到 Active，允许用同一报价重试
func (t *TradeService) Commit(ctx context.Context, quoteID string) (*domain.ExecutionResult, error) {
	q, err := t.quotes.Quote(quoteID)
	if err != nil {
		// 丢失成功响应后的重复提交必须报告已消费，而不是诱导客户端重新询价
		if status, ok := t.quotes.ClosedStatus(quoteID); ok && status == domain.QuoteStatusConsumed {
			return failure(domain.ErrorKindQuoteConsumed, "quote already consumed"), nil
		}
		return failure(domain.ErrorKindQuoteExpired, "quote not found, request a new quote"), nil
	}

	now := t.now()
	if q.DueAt(now) {
		t.quotes.expireDue(ctx, q)
		return failure(domain.ErrorKindQuoteExpired, "quote expired"), nil
	}

	// 只有拿到 Active -> Executing 的 CAS 才能提交账本，
	// 与过期扫描、同键取代、重复提交的竞争在这里一次性决出
	if !q.BeginExecution() {
		switch q.Status() {
		case domain.QuoteStatusConsumed, domain.QuoteStatusExecuting:
			return failure(domain.ErrorKindQuoteConsumed, "quote already consumed"), nil
		default:
			return failure(domain.ErrorKindQuoteExpired, "quote no longer active"), nil
		}
	}

	req := ledgerRequest(q)

	start := t.now()
	res, err := t.ledger.Execute(ctx, req)
	if t.m != nil {
		t.m.LedgerLatency.Observe(t.now().Sub(start).Seconds())
	}

	if err != nil {
		status := q.AbortExecution(t.now())
		if status.Terminal() {
			t.quotes.closeTerminal(ctx, q)
		}
		if t.m != nil {
			t.m.TradesFailedTotal.Inc()
		}
		logger.Error(ctx, "Ledger execution failed",
			"quote_id", quoteID,
			"quote_status", status.String(),
			"error", err,
		)
		if errors.Is(err, domain.ErrNetworkTimeout) {
			return failure(domain.ErrorKindNetworkTimeout, "ledger request timed out, retry is safe"), nil
		}
		return failure(domain.ErrorKindLedgerRejected, err.Error()), nil
	}

	if !res.Success {
		status := q.AbortExecution(t.now())
		if status.Terminal() {
			t.quotes.closeTerminal(ctx, q)
		}
		if t.m != nil {
			t.m.TradesFailedTotal.Inc()
		}
		kind := domain.ErrorKindLedgerRejected
		if res.Code == "insufficient_balance" {
			kind = domain.ErrorKindInsufficientBalance
		}
		logger.Warn(ctx, "Ledger rejected execution",
			"quote_id", quoteID,
			"code", res.Code,
			"message", res.Message,
		)
		return failure(kind, res.Message), nil
	}

	// 账本已确认，报价进入终态
	q.FinishExecution()
	t.quotes.closeTerminal(ctx, q)

	tx := res.Transaction
	if tx == nil {
		// 账本未回报明细时以报价冻结值为准
		tx = quotedTransaction(q)
	}

	tradeID := uuid.New().String()
	executedAt := t.now()

	if t.repo != nil {
		trade := &domain.Trade{
			TradeID:          tradeID,
			QuoteID:          q.ID,
			Account:          q.Account,
			Side:             q.Side,
			MetalSymbol:      q.MetalSymbol,
			Grams:            q.Grams,
			PricePerGram:     q.PricePerGram,
			SettlementAsset:  q.SettlementAsset,
			SettlementAmount: q.SettlementAmount,
			ExecutedAt:       executedAt,
		}
		if err := t.repo.SaveTrade(ctx, trade); err != nil {
			logger.Error(ctx, "Failed to persist trade record", "trade_id", tradeID, "error", err)
		}
	}

	if t.telemetry != nil {
		t.telemetry.PublishTradeExecuted(ctx, domain.TradeExecutedEvent{
			TradeID:          tradeID,
			QuoteID:          q.ID,
			Account:          q.Account,
			Side:             q.Side,
			MetalSymbol:      q.MetalSymbol,
			Grams:            q.Grams,
			PricePerGram:     q.PricePerGram,
			SettlementAsset:  q.SettlementAsset,
			SettlementAmount: q.SettlementAmount,
			OrderType:        domain.OrderTypeMarket,
			ExecutedAt:       executedAt,
		})
	}

	if t.m != nil {
		t.m.TradesExecutedTotal.Inc()
	}

	logger.Info(ctx, "Trade executed",
		"trade_id", tradeID,
		"quote_id", q.ID,
		"account", q.Account,
		"side", q.Side,
		"grams", q.Grams.String(),
	)

	return &domain.ExecutionResult{
		Success:     true,
		Transaction: tx,
	}, nil
}

// CommitLimit 提交限价单
// 不涉及报价和倒计时，执行被推迟，提交本身不会因价格漂移失败
func (t *TradeService) CommitLimit(ctx context.Context, intent domain.TradeIntent) (*domain.ExecutionResult, error) {
	intent.OrderType = domain.OrderTypeLimit
	if err := intent.Validate(); err != nil {
		return failure(domain.ErrorKindValidation, err.Error()), nil
	}

	orderID, err := t.limitOrder.Place(ctx, intent)
	if err != nil {
		if t.m != nil {
			t.m.TradesFailedTotal.Inc()
		}
		logger.Error(ctx, "Failed to place limit order",
			"account", intent.Account,
			"metal", intent.MetalSymbol,
			"error", err,
		)
		if errors.Is(err, domain.ErrNetworkTimeout) {
			return failure(domain.ErrorKindNetworkTimeout, "limit order request timed out, retry is safe"), nil
		}
		return failure(domain.ErrorKindLedgerRejected, err.Error()), nil
	}

	if t.m != nil {
		t.m.LimitOrdersTotal.Inc()
	}

	logger.Info(ctx, "Limit order placed",
		"order_id", orderID,
		"account", intent.Account,
		"metal", intent.MetalSymbol,
		"limit_price", intent.LimitPrice.String(),
	)

	return &domain.ExecutionResult{
		Success: true,
		OrderID: orderID,
	}, nil
}

// ledgerRequest 将报价翻译为账本执行请求
// 买入：结算资产 -> 金属；卖出：金属 -> 结算资产
func ledgerRequest(q *domain.Quote) domain.LedgerRequest {
	req := domain.LedgerRequest{
		Account:     q.Account,
		QuoteID:     q.ID,
		QuotedPrice: q.PricePerGram,
		QuotedGrams: q.Grams,
	}
	if q.Side == domain.QuoteSideBuy {
		req.FromAsset = q.SettlementAsset
		req.ToAsset = q.MetalSymbol
		req.Amount = q.SettlementAmount
	} else {
		req.FromAsset = q.MetalSymbol
		req.ToAsset = q.SettlementAsset
		req.Amount = q.Grams
	}
	return req
}

// quotedTransaction 以报价冻结值构造成交明细
func quotedTransaction(q *domain.Quote) *domain.Transaction {
	if q.Side == domain.QuoteSideBuy {
		return &domain.Transaction{
			FromToken:  q.SettlementAsset,
			FromAmount: q.SettlementAmount,
			ToToken:    q.MetalSymbol,
			ToAmount:   q.Grams,
		}
	}
	return &domain.Transaction{
		FromToken:  q.MetalSymbol,
		FromAmount: q.Grams,
		ToToken:    q.SettlementAsset,
		ToAmount:   q.SettlementAmount,
	}
}

func failure(kind domain.ErrorKind, message string) *domain.ExecutionResult {
	return &domain.ExecutionResult{
		Success:   false,
		ErrorKind: kind,
		Message:   message,
	}
}
