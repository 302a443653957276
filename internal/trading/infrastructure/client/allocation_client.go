package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metaltrading/internal/trading/domain"
)

// AllocationHTTPClient 远端配额预览客户端
// 远端存在时其数字优先于本地计算
type AllocationHTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewAllocationClient 创建配额预览客户端
func NewAllocationClient(baseURL string, timeout time.Duration) *AllocationHTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AllocationHTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Preview 请求远端配额预览
func (c *AllocationHTTPClient) Preview(ctx context.Context, account, metal string, totalGrams decimal.Decimal) (*domain.AllocationPreview, error) {
	q := url.Values{}
	q.Set("account", account)
	q.Set("metal", metal)
	q.Set("total_grams", totalGrams.String())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/allocations/preview?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("allocation preview returned status %d", resp.StatusCode)
	}

	var preview domain.AllocationPreview
	if err := json.NewDecoder(resp.Body).Decode(&preview); err != nil {
		return nil, fmt.Errorf("failed to decode allocation preview: %w", err)
	}

	return &preview, nil
}
