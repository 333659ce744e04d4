package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/goshop/internal/config"
)

const baseURL = "http://localhost:8080"

type orderResponse struct {
	Code int `json:"code"`
	Data struct {
		Order struct {
			ID            int64  `json:"id"`
			Subtotal      int64  `json:"subtotal"`
			Shipping      int64  `json:"shipping"`
			Total         int64  `json:"total"`
			PaymentStatus string `json:"paymentStatus"`
		} `json:"order"`
	} `json:"data"`
	Msg string `json:"msg"`
}

type initResponse struct {
	Code int `json:"code"`
	Data struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
	} `json:"data"`
	Msg string `json:"msg"`
}

// 端到端支付流程演练：下单 -> 发起支付 -> 模拟回调 -> 校验幂等。
// 需要 web 服务已启动，且配置了与本程序一致的 WebhookSecret。
func main() {
	fmt.Println("=== 支付对账流程测试 ===")
	cfg := config.DefaultConfig()

	// 1. 游客下单
	fmt.Println("步骤1: 创建游客订单...")
	orderID, total, err := createOrder()
	if err != nil {
		fmt.Printf("❌ 下单失败: %v\n", err)
		return
	}
	fmt.Printf("✅ 订单 #%d 创建成功，总价 %d\n", orderID, total)

	// 2. 发起支付会话
	fmt.Println("步骤2: 发起支付会话...")
	ref, err := initPayment(orderID)
	if err != nil {
		fmt.Printf("❌ 发起支付失败: %v\n", err)
		return
	}
	fmt.Printf("✅ 网关引用号: %s\n", ref)

	// 3. 重复发起应当被拒绝
	fmt.Println("步骤3: 重复发起支付（预期 409）...")
	if _, err := initPayment(orderID); err != nil {
		fmt.Printf("✅ 如预期被拒绝: %v\n", err)
	} else {
		fmt.Println("❌ 重复发起未被拒绝")
		return
	}

	// 4. 模拟 charge.success 回调，投两次验证幂等
	fmt.Println("步骤4: 投递签名回调（两次）...")
	for i := 1; i <= 2; i++ {
		status, err := sendWebhook(cfg.Paystack.WebhookSecret, ref)
		if err != nil {
			fmt.Printf("❌ 第%d次回调失败: %v\n", i, err)
			return
		}
		fmt.Printf("✅ 第%d次回调返回 %d\n", i, status)
	}

	// 5. 错误签名应 401
	fmt.Println("步骤5: 投递伪造签名回调（预期 401）...")
	status, err := sendWebhook("wrong-secret", ref)
	if err != nil {
		fmt.Printf("❌ 回调请求失败: %v\n", err)
		return
	}
	if status == 401 {
		fmt.Println("✅ 伪造签名如预期被拒绝")
	} else {
		fmt.Printf("❌ 伪造签名返回 %d\n", status)
	}
}

func createOrder() (int64, int64, error) {
	payload := map[string]any{
		"guestInfo": map[string]string{"email": "guest@example.com", "name": "Guest"},
		"items": []map[string]any{
			{"productId": 1, "quantity": 1},
			{"productId": 2, "quantity": 1},
		},
		"shippingAddress": map[string]string{
			"fullName": "Guest Buyer", "addressLine1": "1 Test Rd",
			"city": "Lagos", "state": "LA", "postalCode": "100001", "country": "NG",
		},
		"paymentMethod": "paystack",
	}
	body, _ := json.Marshal(payload)
	resp, err := http.Post(baseURL+"/api/orders", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	var out orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, 0, err
	}
	if resp.StatusCode != 201 {
		return 0, 0, fmt.Errorf("status %d: %s", resp.StatusCode, out.Msg)
	}
	return out.Data.Order.ID, out.Data.Order.Total, nil
}

func initPayment(orderID int64) (string, error) {
	body, _ := json.Marshal(map[string]any{"orderId": orderID})
	resp, err := http.Post(baseURL+"/api/payments/paystack/init", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out initResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, out.Msg)
	}
	return out.Data.Reference, nil
}

func sendWebhook(secret, reference string) (int, error) {
	event := map[string]any{
		"event": "charge.success",
		"data":  map[string]string{"reference": reference},
	}
	body, _ := json.Marshal(event)

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/payments/paystack/webhook", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-paystack-signature", signature)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
