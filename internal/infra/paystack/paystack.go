package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/example/goshop/internal/config"
	"github.com/example/goshop/internal/errs"
)

// Client Paystack 网关客户端，封装全部对外部支付处理器的调用。
type Client struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	httpClient    *http.Client
}

// New 创建网关客户端
func New(cfg *config.PaystackConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

// NewReference 生成本地引用号。引用号由我方生成后交给网关，
// 同一引用号重复初始化在网关侧是幂等的，重试才安全。
func NewReference() string {
	return "goshop-" + uuid.NewString()
}

// InitResult 初始化交易的返回
type InitResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// VerifyResult 校验交易的返回
type VerifyResult struct {
	Status    string `json:"status"` // success / failed / abandoned / ...
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"` // kobo
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize 调用 /transaction/initialize 开启托管支付会话。
// amountKobo 为最小货币单位金额，metadata 带上 order_id 以便回查。
func (c *Client) Initialize(ctx context.Context, email string, amountKobo int64, orderID int64, reference string) (*InitResult, error) {
	payload := map[string]any{
		"email":     email,
		"amount":    amountKobo,
		"reference": reference,
		"metadata": map[string]any{
			"order_id": orderID,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	data, err := c.call(ctx, http.MethodPost, "/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var res InitResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, errs.Gateway("decode initialize response: %v", err)
	}
	return &res, nil
}

// Verify 调用 /transaction/verify 同步查询交易结果。
// 网络超时按"结果未知"处理：调用方保持订单 pending，之后可重试。
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	data, err := c.call(ctx, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}

	var res VerifyResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, errs.Gateway("decode verify response: %v", err)
	}
	return &res, nil
}

// ValidSignature 校验回调签名：对原始请求体做 HMAC-SHA512，
// 与 x-paystack-signature 头做恒定时间比较。
func (c *Client) ValidSignature(body []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *Client) call(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Gateway("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Gateway("read response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.Gateway("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(raw, 512))
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errs.Gateway("decode envelope: %v", err)
	}
	if !env.Status {
		return nil, errs.Gateway("%s %s: %s", method, path, env.Message)
	}
	return env.Data, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return fmt.Sprintf("%s...(%d bytes)", b[:n], len(b))
}
