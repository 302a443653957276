// Package client 提供外部协作方（账本、限价单、配额预览）的 HTTP 客户端
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/wyfcoding/metaltrading/internal/trading/domain"
)

// LedgerClient 外部账本执行客户端
// 账本按 quote_id 幂等，超时后用同一请求重试是安全的
type LedgerClient struct {
	baseURL string
	client  *http.Client
}

// NewLedgerClient 创建账本客户端
func NewLedgerClient(baseURL string, timeout time.Duration) *LedgerClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LedgerClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Execute 提交执行请求
func (c *LedgerClient) Execute(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ledger request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/executions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	defer resp.Body.Close()

	var result domain.LedgerResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode ledger response (status %d): %w", resp.StatusCode, err)
	}

	return &result, nil
}

// wrapTransportError 将超时归入可重试的网络错误
// 请求要么在超时前到达账本要么没有，重试同一请求由账本幂等兜底
func wrapTransportError(err error) error {
	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrNetworkTimeout, err)
	}
	return fmt.Errorf("ledger request failed: %w", err)
}
