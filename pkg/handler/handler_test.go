package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v72"

	"github.com/mkovacic/sale-notifier/pkg/config"
	"github.com/mkovacic/sale-notifier/pkg/metrics"
	"github.com/mkovacic/sale-notifier/pkg/notifier"
	"github.com/mkovacic/sale-notifier/pkg/notifier/discord"
	"github.com/mkovacic/sale-notifier/pkg/notifier/slack"
	"github.com/mkovacic/sale-notifier/pkg/signature"
)

const testSecret = "test-signing-secret"

var orderPayload = []byte(`{
	"attributes": {
		"user_name": "Ana",
		"total": 4999,
		"currency": "eur",
		"first_order_item": {"product_name": "Widget"},
		"customer_address": {"country": "ES"}
	}
}`)

// countingSink records how many webhook POSTs it received and answers with
// the given status.
type countingSink struct {
	srv   *httptest.Server
	calls int64
}

func newCountingSink(status int) *countingSink {
	s := &countingSink{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.calls, 1)
		w.WriteHeader(status)
	}))
	return s
}

func (s *countingSink) Calls() int64 { return atomic.LoadInt64(&s.calls) }

// newTestRouter wires a router whose slack and discord sinks point at the
// given URLs. An empty URL leaves that sink disabled.
func newTestRouter(t *testing.T, slackURL, discordURL, stripeSecret string) *gin.Engine {
	t.Helper()

	cfg := config.Config{
		SigningSecret:       testSecret,
		StripeWebhookSecret: stripeSecret,
		NotifyTimeout:       5 * time.Second,
	}

	client := &http.Client{Timeout: 5 * time.Second}
	notifiers := []notifier.Notifier{
		slack.New(client, slackURL),
		discord.New(client, discordURL),
	}

	h, err := NewHandler(cfg, notifiers, metrics.New())
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return NewRouter(h)
}

func postWebhook(router http.Handler, body []byte, sig, eventName string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhook/lemonsqueezy", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set("X-Signature", sig)
	}
	if eventName != "" {
		req.Header.Set("X-Event-Name", eventName)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response JSON %q: %v", w.Body.String(), err)
	}
	return body
}

func TestWebhook_EndToEndDelivery(t *testing.T) {
	slackSink := newCountingSink(http.StatusOK)
	defer slackSink.srv.Close()
	discordSink := newCountingSink(http.StatusNoContent)
	defer discordSink.srv.Close()

	router := newTestRouter(t, slackSink.srv.URL, discordSink.srv.URL, "")
	sig := signature.Sign([]byte(testSecret), orderPayload)

	w := postWebhook(router, orderPayload, sig, EventOrderCreated)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["success"] != true {
		t.Fatalf("body = %v, want success:true", body)
	}
	if slackSink.Calls() != 1 || discordSink.Calls() != 1 {
		t.Fatalf("sink calls = %d/%d, want 1/1", slackSink.Calls(), discordSink.Calls())
	}
}

func TestWebhook_InvalidSignatureRejectedBeforeAnySink(t *testing.T) {
	slackSink := newCountingSink(http.StatusOK)
	defer slackSink.srv.Close()
	discordSink := newCountingSink(http.StatusOK)
	defer discordSink.srv.Close()

	router := newTestRouter(t, slackSink.srv.URL, discordSink.srv.URL, "")

	w := postWebhook(router, orderPayload, "deadbeef", EventOrderCreated)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != "Invalid signature" {
		t.Fatalf("body = %v", body)
	}
	if slackSink.Calls() != 0 || discordSink.Calls() != 0 {
		t.Fatal("sinks were called for a rejected event")
	}
}

func TestWebhook_MissingSignatureRejected(t *testing.T) {
	router := newTestRouter(t, "", "", "")

	w := postWebhook(router, orderPayload, "", EventOrderCreated)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestWebhook_OtherEventTypesAcknowledgedAndIgnored(t *testing.T) {
	slackSink := newCountingSink(http.StatusOK)
	defer slackSink.srv.Close()

	router := newTestRouter(t, slackSink.srv.URL, "", "")

	for _, eventName := range []string{"order_refunded", "subscription_created", ""} {
		body := orderPayload
		w := postWebhook(router, body, signature.Sign([]byte(testSecret), body), eventName)

		if w.Code != http.StatusOK {
			t.Fatalf("event %q: status = %d, want 200", eventName, w.Code)
		}
		if resp := decodeBody(t, w); resp["message"] != "Event ignored" {
			t.Fatalf("event %q: body = %v", eventName, resp)
		}
	}

	if slackSink.Calls() != 0 {
		t.Fatal("ignored events reached a sink")
	}
}

func TestWebhook_OneFailingSinkDoesNotFailTheRequest(t *testing.T) {
	failingSink := newCountingSink(http.StatusInternalServerError)
	defer failingSink.srv.Close()
	healthySink := newCountingSink(http.StatusOK)
	defer healthySink.srv.Close()

	router := newTestRouter(t, failingSink.srv.URL, healthySink.srv.URL, "")
	sig := signature.Sign([]byte(testSecret), orderPayload)

	w := postWebhook(router, orderPayload, sig, EventOrderCreated)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if healthySink.Calls() != 1 {
		t.Fatal("healthy sink was not attempted")
	}
	if failingSink.Calls() != 1 {
		t.Fatal("failing sink was not attempted")
	}
}

func TestWebhook_DisabledSinkNeverCalled(t *testing.T) {
	discordSink := newCountingSink(http.StatusOK)
	defer discordSink.srv.Close()

	// Slack has no URL configured; only discord should receive the sale.
	router := newTestRouter(t, "", discordSink.srv.URL, "")
	sig := signature.Sign([]byte(testSecret), orderPayload)

	w := postWebhook(router, orderPayload, sig, EventOrderCreated)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if discordSink.Calls() != 1 {
		t.Fatal("enabled sink was not called")
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, "", "", "")

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "ok" || body["version"] != Version {
		t.Fatalf("body = %v", body)
	}
}

func TestStripeRoute_DisabledWithoutSecret(t *testing.T) {
	router := newTestRouter(t, "", "", "")

	req := httptest.NewRequest("POST", "/webhook/stripe", bytes.NewReader([]byte("{}")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestStripeRoute_InvalidSignatureRejected(t *testing.T) {
	router := newTestRouter(t, "", "", "whsec_test")

	req := httptest.NewRequest("POST", "/webhook/stripe", bytes.NewReader([]byte(`{"type":"charge.succeeded"}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestStripeRoute_EndToEndDelivery(t *testing.T) {
	slackSink := newCountingSink(http.StatusOK)
	defer slackSink.srv.Close()

	const stripeSecret = "whsec_test"
	router := newTestRouter(t, slackSink.srv.URL, "", stripeSecret)

	body := []byte(`{
		"type": "charge.succeeded",
		"data": {
			"object": {
				"amount": 4999,
				"currency": "eur",
				"billing_details": {
					"name": "Ana",
					"email": "ana@example.com",
					"address": {"country": "ES"}
				}
			}
		}
	}`)

	req := httptest.NewRequest("POST", "/webhook/stripe", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", stripeSignature(stripeSecret, body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if resp := decodeBody(t, w); resp["success"] != true {
		t.Fatalf("body = %v, want success:true", resp)
	}
	if slackSink.Calls() != 1 {
		t.Fatal("sink was not called for a valid stripe event")
	}
}

func TestStripeSummary_Defaults(t *testing.T) {
	event := stripe.Event{Data: &stripe.EventData{Object: map[string]interface{}{}}}

	got := stripeSummary(event)

	if got.CustomerName != "Someone" || got.Total != "0.00" || got.Currency != "USD" {
		t.Fatalf("stripeSummary = %+v, defaults not applied", got)
	}
}

func TestStripeSummary_Extraction(t *testing.T) {
	event := stripe.Event{Data: &stripe.EventData{Object: map[string]interface{}{
		"amount":      float64(1999),
		"currency":    "usd",
		"description": "Widget",
		"billing_details": map[string]interface{}{
			"name":    "Ana",
			"email":   "ana@example.com",
			"address": map[string]interface{}{"country": "ES"},
		},
	}}}

	got := stripeSummary(event)

	if got.Total != "19.99" || got.Currency != "USD" || got.CustomerName != "Ana" ||
		got.ProductName != "Widget" || got.Country != "ES" {
		t.Fatalf("stripeSummary = %+v", got)
	}
}

// stripeSignature produces a Stripe-Signature header for the given payload,
// matching the scheme webhook.ConstructEvent expects.
func stripeSignature(secret string, body []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, body)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
