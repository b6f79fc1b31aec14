package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven-backend/pkg/config"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := config.RazorpayConfig{
		KeyID:     "rzp_test_key",
		KeySecret: "secret",
		BaseURL:   baseURL,
		Timeout:   5 * time.Second,
	}
	c, err := NewClient(context.Background(), cfg, logger.New(logger.Options{}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewClientValidatesCredentials(t *testing.T) {
	logg := logger.New(logger.Options{})
	if _, err := NewClient(context.Background(), config.RazorpayConfig{KeySecret: "s"}, logg); err == nil {
		t.Fatalf("expected error for missing key id")
	}
	if _, err := NewClient(context.Background(), config.RazorpayConfig{KeyID: "k"}, logg); err == nil {
		t.Fatalf("expected error for missing key secret")
	}
	if _, err := NewClient(context.Background(), config.RazorpayConfig{KeyID: "k", KeySecret: "s"}, nil); err == nil {
		t.Fatalf("expected error for missing logger")
	}
}

func TestCreateOrderSendsPaise(t *testing.T) {
	var captured createOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test_key" || pass != "secret" {
			t.Errorf("missing or wrong basic auth")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Order{
			ID:       "order_abc",
			Amount:   captured.Amount,
			Currency: captured.Currency,
			Receipt:  captured.Receipt,
			Status:   "created",
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	order, err := c.CreateOrder(context.Background(), decimal.RequireFromString("1026.00"), "BH-20250901-000001", nil)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if captured.Amount != 102600 {
		t.Fatalf("expected 102600 paise, got %d", captured.Amount)
	}
	if captured.Currency != "INR" {
		t.Fatalf("expected INR, got %s", captured.Currency)
	}
	if order.ID != "order_abc" {
		t.Fatalf("unexpected order id %s", order.ID)
	}
}

func TestCreateOrderRejectsNonPositiveAmount(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0")
	_, err := c.CreateOrder(context.Background(), decimal.Zero, "r", nil)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if de := pkgerrors.As(err); de == nil || de.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
}

func TestCreateOrderMapsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":{"code":"SERVER_ERROR","description":"gateway down"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CreateOrder(context.Background(), decimal.NewFromInt(100), "r", nil)
	if err == nil {
		t.Fatalf("expected gateway error")
	}
	de := pkgerrors.As(err)
	if de == nil || de.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code, got %v", err)
	}
}

func TestVerifyPaymentSignature(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0")

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("order_abc|pay_xyz"))
	valid := hex.EncodeToString(mac.Sum(nil))

	if !c.VerifyPaymentSignature("order_abc", "pay_xyz", valid) {
		t.Fatalf("expected valid signature to verify")
	}
	if c.VerifyPaymentSignature("order_abc", "pay_xyz", "deadbeef") {
		t.Fatalf("expected invalid signature to fail")
	}
	if c.VerifyPaymentSignature("", "pay_xyz", valid) {
		t.Fatalf("expected empty order id to fail")
	}
}
