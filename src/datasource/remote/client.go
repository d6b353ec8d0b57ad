// client.go
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxBodySize 远程数据集允许的最大字节数
const MaxBodySize = 64 << 20

// Client 获取远程数据集的 HTTP 客户端
type Client struct {
	http    *http.Client
	timeout time.Duration
}

// NewClient 创建带超时的客户端
func NewClient(timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{},
		timeout: timeout,
	}
}

// StatusError 远程返回非 2xx 状态码
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("获取 %s 返回状态码 %d", e.URL, e.Status)
}

// Fetch 下载 url 的完整内容
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Accept", "text/csv, application/vnd.openxmlformats-officedocument.spreadsheetml.sheet, */*")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求 %s 失败: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("数据集超过 %d 字节限制", MaxBodySize)
	}
	return body, nil
}
