// Package http 提供交易引擎的 HTTP 处理器
package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metaltrading/internal/trading/application"
	"github.com/wyfcoding/metaltrading/internal/trading/domain"
	"github.com/wyfcoding/metaltrading/pkg/logger"
)

// TradingHandler HTTP 处理器
// 负责报价、配额预览与成交相关的 HTTP 请求
type TradingHandler struct {
	quotes     *application.QuoteService
	trades     *application.TradeService
	allocation *application.AllocationService
}

// NewTradingHandler 创建 HTTP 处理器实例
func NewTradingHandler(quotes *application.QuoteService, trades *application.TradeService, allocation *application.AllocationService) *TradingHandler {
	return &TradingHandler{
		quotes:     quotes,
		trades:     trades,
		allocation: allocation,
	}
}

// RegisterRoutes 注册路由
func (h *TradingHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/quotes", h.RequestQuote)           // 发出报价
		api.GET("/quotes/:id", h.GetQuote)            // 获取报价
		api.GET("/quotes/:id/countdown", h.Countdown) // 报价倒计时
		api.DELETE("/quotes/:id", h.CancelQuote)      // 取消报价
		api.POST("/allocations/preview", h.PreviewAllocation)
		api.POST("/trades", h.Commit)           // 市价成交
		api.POST("/orders/limit", h.PlaceLimit) // 限价单
	}
}

// RequestQuoteRequest 询价请求
type RequestQuoteRequest struct {
	Account         string          `json:"account" binding:"required"`
	Side            string          `json:"side" binding:"required"`
	MetalSymbol     string          `json:"metal_symbol" binding:"required"`
	Grams           decimal.Decimal `json:"grams"`
	SettlementAsset string          `json:"settlement_asset" binding:"required"`
}

// RequestQuote 发出报价
// 买入且克数非整时附带配额预览，预览只是决策信息，不拦截交易
func (h *TradingHandler) RequestQuote(c *gin.Context) {
	var req RequestQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	quote, err := h.quotes.RequestQuote(ctx, req.Account, domain.QuoteSide(req.Side), req.MetalSymbol, req.Grams, req.SettlementAsset)
	if err != nil {
		logger.Error(ctx, "Failed to issue quote", "account", req.Account, "error", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"quote": application.ToQuoteDTO(quote, time.Now())}

	if quote.Side == domain.QuoteSideBuy {
		preview, err := h.allocation.Preview(ctx, req.Account, req.MetalSymbol, req.Grams)
		if err != nil {
			logger.Warn(ctx, "Allocation preview failed", "quote_id", quote.ID, "error", err)
		} else if preview.HasPartialAllocation {
			resp["allocation_preview"] = preview
		}
	}

	c.JSON(http.StatusOK, resp)
}

// GetQuote 获取报价
func (h *TradingHandler) GetQuote(c *gin.Context) {
	quote, err := h.quotes.Quote(c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": application.ToQuoteDTO(quote, time.Now())})
}

// Countdown 报价剩余秒数
func (h *TradingHandler) Countdown(c *gin.Context) {
	remaining, err := h.quotes.Countdown(c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"seconds_remaining": remaining})
}

// CancelQuote 取消报价
func (h *TradingHandler) CancelQuote(c *gin.Context) {
	quoteID := c.Param("id")
	if err := h.quotes.Cancel(c.Request.Context(), quoteID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled", "quote_id": quoteID})
}

// PreviewAllocationRequest 配额预览请求
type PreviewAllocationRequest struct {
	Account     string          `json:"account" binding:"required"`
	MetalSymbol string          `json:"metal_symbol" binding:"required"`
	Grams       decimal.Decimal `json:"grams"`
}

// PreviewAllocation 配额预览
func (h *TradingHandler) PreviewAllocation(c *gin.Context) {
	var req PreviewAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	preview, err := h.allocation.Preview(c.Request.Context(), req.Account, req.MetalSymbol, req.Grams)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"preview": preview})
}

// CommitRequest 市价成交请求
type CommitRequest struct {
	QuoteID string `json:"quote_id" binding:"required"`
}

// Commit 消费报价并提交账本
// 类型化失败（过期、已消费、余额不足等）随 200 返回，调用方按 error_kind 区分
func (h *TradingHandler) Commit(c *gin.Context) {
	var req CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.trades.Commit(c.Request.Context(), req.QuoteID)
	if err != nil {
		logger.Error(c.Request.Context(), "Commit failed", "quote_id", req.QuoteID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// PlaceLimitRequest 限价单请求
type PlaceLimitRequest struct {
	Account         string          `json:"account" binding:"required"`
	Side            string          `json:"side" binding:"required"`
	MetalSymbol     string          `json:"metal_symbol" binding:"required"`
	Grams           decimal.Decimal `json:"grams"`
	SettlementAsset string          `json:"settlement_asset" binding:"required"`
	LimitPrice      decimal.Decimal `json:"limit_price"`
}

// PlaceLimit 提交限价单
func (h *TradingHandler) PlaceLimit(c *gin.Context) {
	var req PlaceLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	intent := domain.TradeIntent{
		Account:         req.Account,
		Side:            domain.QuoteSide(req.Side),
		MetalSymbol:     req.MetalSymbol,
		Grams:           req.Grams,
		SettlementAsset: req.SettlementAsset,
		OrderType:       domain.OrderTypeLimit,
		LimitPrice:      req.LimitPrice,
	}

	result, err := h.trades.CommitLimit(c.Request.Context(), intent)
	if err != nil {
		logger.Error(c.Request.Context(), "Limit order failed", "account", req.Account, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// statusFor 将领域错误映射到 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidGrams),
		errors.Is(err, domain.ErrUnknownAsset),
		errors.Is(err, domain.ErrInvalidSide),
		errors.Is(err, domain.ErrMissingLimitPrice):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrQuoteNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPriceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
