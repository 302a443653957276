package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wyfcoding/metaltrading/internal/trading/domain"
)

// LimitOrderHTTPClient 外部限价单服务客户端
type LimitOrderHTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewLimitOrderClient 创建限价单客户端
func NewLimitOrderClient(baseURL string, timeout time.Duration) *LimitOrderHTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LimitOrderHTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type placeOrderRequest struct {
	Account         string `json:"account"`
	Side            string `json:"side"`
	MetalSymbol     string `json:"metal_symbol"`
	Grams           string `json:"grams"`
	LimitPrice      string `json:"limit_price"`
	SettlementAsset string `json:"settlement_asset"`
}

type placeOrderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Place 提交限价单，返回外部订单号
func (c *LimitOrderHTTPClient) Place(ctx context.Context, intent domain.TradeIntent) (string, error) {
	body, err := json.Marshal(placeOrderRequest{
		Account:         intent.Account,
		Side:            string(intent.Side),
		MetalSymbol:     intent.MetalSymbol,
		Grams:           intent.Grams.String(),
		LimitPrice:      intent.LimitPrice.String(),
		SettlementAsset: intent.SettlementAsset,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal limit order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", wrapTransportError(err)
	}
	defer resp.Body.Close()

	var result placeOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode limit order response (status %d): %w", resp.StatusCode, err)
	}

	if !result.Success {
		return "", fmt.Errorf("%w: %s %s", domain.ErrLedgerRejected, result.Code, result.Message)
	}

	return result.OrderID, nil
}
