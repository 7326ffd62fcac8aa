// internal/pkg/httpclient/client.go

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Resolver 把逻辑服务名解析为可访问的 base URL。
// 生产环境由 Nacos 客户端实现，测试里可以用固定地址替身。
type Resolver interface {
	Resolve(serviceName string) (string, error)
}

// StatusError 表示上游返回了非 2xx 状态码。
// Body 里保留服务端的原始响应，供上层提取用户可见的错误信息。
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// Client 是一个可追踪的、可注入的HTTP客户端。
type Client struct {
	Tracer     trace.Tracer
	HTTPClient *http.Client
	resolver   Resolver
	baseURL    string // resolver 缺席或解析失败时的兜底地址
}

// NewClient 创建一个新的客户端实例。
// resolver 可以为 nil，此时所有调用都落在 baseURL 上。
func NewClient(tracer trace.Tracer, resolver Resolver, baseURL string) *Client {
	// 不设置 Timeout 字段，让每次请求完全受控于传入的 context
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
	}
	return &Client{
		Tracer:     tracer,
		HTTPClient: httpClient,
		resolver:   resolver,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// CallJSON 向指定服务发起一次 JSON 调用并解码响应。
// body 非 nil 时编码为 JSON 请求体；out 非 nil 时解码响应体。
// token 非空时以 Bearer 形式附加到 Authorization 头。
func (c *Client) CallJSON(ctx context.Context, serviceName, path string, method string, params url.Values, token string, body, out any) error {
	base, err := c.resolveBase(serviceName)
	if err != nil {
		return err
	}

	endpoint, err := url.Parse(base + path)
	if err != nil {
		return err
	}
	if params != nil {
		q := endpoint.Query()
		for key, values := range params {
			for _, value := range values {
				q.Add(key, value)
			}
		}
		endpoint.RawQuery = q.Encode()
	}

	spanName := fmt.Sprintf("call-%s", serviceName)
	ctx, span := c.Tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			span.RecordError(err)
			return err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reqBody)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	span.SetAttributes(
		attribute.String("http.url", endpoint.String()),
		attribute.String("http.method", method),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		span.RecordError(statusErr)
		span.SetStatus(codes.Error, statusErr.Error())
		return statusErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to decode response from %s%s: %w", serviceName, path, err)
		}
	}
	return nil
}

// Get 是 CallJSON 的 GET 快捷方式。
func (c *Client) Get(ctx context.Context, serviceName, path string, params url.Values, token string, out any) error {
	return c.CallJSON(ctx, serviceName, path, http.MethodGet, params, token, nil, out)
}

// Post 是 CallJSON 的 POST 快捷方式。
func (c *Client) Post(ctx context.Context, serviceName, path string, params url.Values, token string, body, out any) error {
	return c.CallJSON(ctx, serviceName, path, http.MethodPost, params, token, body, out)
}

// Put 是 CallJSON 的 PUT 快捷方式。
func (c *Client) Put(ctx context.Context, serviceName, path string, params url.Values, token string, body, out any) error {
	return c.CallJSON(ctx, serviceName, path, http.MethodPut, params, token, body, out)
}

// Delete 是 CallJSON 的 DELETE 快捷方式。
func (c *Client) Delete(ctx context.Context, serviceName, path string, token string) error {
	return c.CallJSON(ctx, serviceName, path, http.MethodDelete, nil, token, nil, nil)
}

func (c *Client) resolveBase(serviceName string) (string, error) {
	if c.resolver != nil {
		base, err := c.resolver.Resolve(serviceName)
		if err == nil {
			return strings.TrimRight(base, "/"), nil
		}
		// 解析失败时回落到静态地址；两者都缺席才算错误
		if c.baseURL == "" {
			return "", fmt.Errorf("cannot resolve service %s: %w", serviceName, err)
		}
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("no resolver and no base url configured for service %s", serviceName)
	}
	return c.baseURL, nil
}
