// Package client 日记服务REST接口客户端
// 每个请求在构造时读取当前令牌，有令牌时附带 Authorization: Bearer <token>
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/weiwangfds/scijournal/config"
	apperrors "github.com/weiwangfds/scijournal/internal/errors"
	"github.com/weiwangfds/scijournal/internal/logger"
	"golang.org/x/time/rate"
)

const (
	// maxErrorBody 纯文本错误消息的最大长度
	maxErrorBody = 512
	// maxBodyRead 读取错误响应体的上限
	maxBodyRead = 64 << 10
)

// TokenSource 提供当前令牌，并在令牌失效时清除
type TokenSource interface {
	Token() string
	ClearIfCurrent(ctx context.Context, token string) (bool, error)
}

// Client REST接口客户端
type Client struct {
	baseURL             string
	http                *http.Client
	tokens              TokenSource
	limiter             *rate.Limiter
	userAgent           string
	clearOnUnauthorized bool
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 替换底层HTTP客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New 创建客户端，tokens 为空时所有请求都不带凭证
func New(cfg config.APIConfig, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:             strings.TrimRight(cfg.BaseURL, "/"),
		http:                &http.Client{Timeout: cfg.Timeout},
		tokens:              tokens,
		userAgent:           cfg.UserAgent,
		clearOnUnauthorized: cfg.ClearTokenOnUnauthorized,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL 接口根地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) currentToken() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// do 发送请求并把成功响应解码到out
// 传输失败返回 ErrNetwork，非2xx状态按服务端消息构造错误，不做自动重试
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return apperrors.Wrap(apperrors.ErrNetwork, "", err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInvalidParams, "", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidParams, "", err)
	}

	// 令牌在构造请求时同步读取
	token := c.currentToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Debugf("[接口] %s %s 请求失败 (request_id=%s): %v", method, path, requestID, err)
		return apperrors.Wrap(apperrors.ErrNetwork, "", err)
	}
	defer resp.Body.Close()

	logger.Debugf("[接口] %s %s -> %d (%v, request_id=%s)", method, path, resp.StatusCode, time.Since(start), requestID)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))
		appErr := apperrors.FromStatus(resp.StatusCode, extractMessage(raw))
		if resp.StatusCode == http.StatusUnauthorized && token != "" {
			c.handleUnauthorized(ctx, token)
		}
		return appErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(apperrors.ErrDecodeResponse, "", err)
	}
	return nil
}

// handleUnauthorized 带令牌的请求被拒绝时清除令牌，期间已换成新令牌则保留
func (c *Client) handleUnauthorized(ctx context.Context, token string) {
	if !c.clearOnUnauthorized || c.tokens == nil {
		return
	}
	cleared, err := c.tokens.ClearIfCurrent(context.WithoutCancel(ctx), token)
	if err != nil {
		logger.Warnf("[接口] 清除失效令牌失败: %v", err)
		return
	}
	if cleared {
		logger.Infof("[接口] 令牌已失效，会话已清除")
	}
}

// extractMessage 依次取JSON的error、message字段，其次是不超过512字节的纯文本
func extractMessage(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(trimmed, &payload) == nil {
		if msg := strings.TrimSpace(payload.Error); msg != "" {
			return msg
		}
		return strings.TrimSpace(payload.Message)
	}

	if len(trimmed) > maxErrorBody || trimmed[0] == '<' {
		return ""
	}
	return string(trimmed)
}
