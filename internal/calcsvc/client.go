// Package calcsvc 实现合规计算服务的HTTP客户端
package calcsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/waypointhq/waypoint/internal/config"
	"github.com/waypointhq/waypoint/internal/model"
)

// Client 计算服务客户端接口
type Client interface {
	UploadCSV(ctx context.Context, token, testCode string, planYear int, filename string, csvData []byte) (json.RawMessage, error)
}

// HTTPClient 计算服务HTTP客户端
type HTTPClient struct {
	config     config.CalcServiceConfig
	httpClient *http.Client
}

// NewHTTPClient 创建计算服务客户端
func NewHTTPClient(cfg config.CalcServiceConfig) *HTTPClient {
	return &HTTPClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// UploadCSV 上传单个测试的CSV数据
// 网络级失败按指数退避重试，HTTP错误响应不重试并带回服务端消息
func (c *HTTPClient) UploadCSV(ctx context.Context, token, testCode string, planYear int, filename string, csvData []byte) (json.RawMessage, error) {
	var lastErr error

	maxRetries := c.config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			// 指数退避
			backoff := time.Duration(i*i) * c.config.RetryBaseDelay
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, retryable, err := c.uploadOnce(ctx, token, testCode, planYear, filename, csvData)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable {
			return nil, err
		}
	}

	return nil, model.NewServiceError(testCode, 0, "", lastErr)
}

// uploadOnce 单次上传尝试
// 第二个返回值表示该错误是否可重试
func (c *HTTPClient) uploadOnce(ctx context.Context, token, testCode string, planYear int, filename string, csvData []byte) (json.RawMessage, bool, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("test_type", testCode); err != nil {
		return nil, false, fmt.Errorf("构建表单字段失败: %w", err)
	}
	if err := writer.WriteField("plan_year", strconv.Itoa(planYear)); err != nil {
		return nil, false, fmt.Errorf("构建表单字段失败: %w", err)
	}

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, false, fmt.Errorf("构建表单文件失败: %w", err)
	}
	if _, err := part.Write(csvData); err != nil {
		return nil, false, fmt.Errorf("写入表单文件失败: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, false, fmt.Errorf("关闭表单失败: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/tests/%s/upload", c.config.BaseURL, testCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, false, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// 网络级错误，可重试
		return nil, true, fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, model.NewServiceError(testCode, resp.StatusCode, extractServerMessage(respBody), nil)
	}

	return json.RawMessage(respBody), false, nil
}

// extractServerMessage 从错误响应体中提取服务端消息
// 响应体不是预期结构时返回空串，由ServiceError退化为通用提示
func extractServerMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}
