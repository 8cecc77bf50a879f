package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/mkovacic/sale-notifier/pkg/config"
	"github.com/mkovacic/sale-notifier/pkg/metrics"
	"github.com/mkovacic/sale-notifier/pkg/notifier"
	"github.com/mkovacic/sale-notifier/pkg/sale"
	"github.com/mkovacic/sale-notifier/pkg/signature"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Event types this service acts on; everything else is acknowledged and
// ignored so the provider does not retry.
const (
	EventOrderCreated    = "order_created"
	EventChargeSucceeded = "charge.succeeded"
)

// WebhookHandler relays provider sale events to the configured notifiers.
type WebhookHandler struct {
	signingSecret       string
	stripeWebhookSecret string
	notifyTimeout       time.Duration
	notifiers           []notifier.Notifier
	metrics             *metrics.Metrics
}

// NewHandler wires the handler with its dependencies.
func NewHandler(cfg config.Config, notifiers []notifier.Notifier, m *metrics.Metrics) (*WebhookHandler, error) {
	if cfg.SigningSecret == "" {
		return nil, errors.New("a signing secret cannot be empty")
	}

	timeout := cfg.NotifyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WebhookHandler{
		signingSecret:       cfg.SigningSecret,
		stripeWebhookSecret: cfg.StripeWebhookSecret,
		notifyTimeout:       timeout,
		notifiers:           notifiers,
		metrics:             m,
	}, nil
}

// NewRouter builds the HTTP surface: health, metrics and one webhook route
// per enabled provider. A panic anywhere in a handler is converted to a
// generic 500 body; the detail stays in the server log.
func NewRouter(h *WebhookHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Printf("Recovered from panic: %v", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}))

	r.GET("/", h.HandleHealth)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	r.POST("/webhook/lemonsqueezy", h.HandleLemonSqueezy)
	if h.stripeWebhookSecret != "" {
		r.POST("/webhook/stripe", h.HandleStripe)
	}

	return r
}

// HandleHealth reports service identity and version.
func (h *WebhookHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": Version})
}

// HandleLemonSqueezy processes a signed order webhook: verify, filter by
// event name, format and fan out to every sink.
func (h *WebhookHandler) HandleLemonSqueezy(c *gin.Context) {
	eventID := uuid.New().String()

	body, err := c.GetRawData()
	if err != nil {
		log.Printf("[%s] Could not read request body: %v", eventID, err)
		h.metrics.RecordEvent("lemonsqueezy", "failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if !signature.Verify([]byte(h.signingSecret), body, c.GetHeader("X-Signature")) {
		log.Printf("[%s] Rejected event with invalid signature", eventID)
		h.metrics.RecordEvent("lemonsqueezy", "rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	eventName := c.GetHeader("X-Event-Name")
	if eventName != EventOrderCreated {
		log.Printf("[%s] Ignoring event %q", eventID, eventName)
		h.metrics.RecordEvent("lemonsqueezy", "ignored")
		c.JSON(http.StatusOK, gin.H{"message": "Event ignored"})
		return
	}

	summary := sale.ParsePayload(body)
	log.Printf("[%s] order_created: %s", eventID, summary.Plain())

	h.dispatch(c.Request.Context(), "lemonsqueezy", eventID, summary)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleStripe processes a Stripe charge webhook through the same pipeline.
// Verification is delegated to the Stripe SDK.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	eventID := uuid.New().String()

	body, err := c.GetRawData()
	if err != nil {
		log.Printf("[%s] Could not read request body: %v", eventID, err)
		h.metrics.RecordEvent("stripe", "failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	event, err := webhook.ConstructEvent(body, c.GetHeader("Stripe-Signature"), h.stripeWebhookSecret)
	if err != nil {
		log.Printf("[%s] webhook.ConstructEvent: %v", eventID, err)
		h.metrics.RecordEvent("stripe", "rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	if event.Type != EventChargeSucceeded {
		log.Printf("[%s] Ignoring event %q", eventID, event.Type)
		h.metrics.RecordEvent("stripe", "ignored")
		c.JSON(http.StatusOK, gin.H{"message": "Event ignored"})
		return
	}

	summary := stripeSummary(event)
	log.Printf("[%s] charge.succeeded: %s", eventID, summary.Plain())

	h.dispatch(c.Request.Context(), "stripe", eventID, summary)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// dispatch fans the summary out to every notifier, bounded by the configured
// delivery timeout, and records each outcome. Per-sink failures are contained
// here; the caller responds success once every sink has settled.
func (h *WebhookHandler) dispatch(ctx context.Context, provider, eventID string, summary sale.Summary) {
	ctx, cancel := context.WithTimeout(ctx, h.notifyTimeout)
	defer cancel()

	results := notifier.Dispatch(ctx, h.notifiers, summary)
	for _, r := range results {
		h.metrics.RecordDelivery(r.Sink, r.Elapsed, r.Err)
		if r.Err != nil {
			log.Printf("[%s] Delivery to %s failed: %v", eventID, r.Sink, r.Err)
		} else {
			log.Printf("[%s] Delivered to %s in %v", eventID, r.Sink, r.Elapsed)
		}
	}

	h.metrics.RecordEvent(provider, "processed")
}

// stripeSummary maps a charge event onto the normalized summary, with the
// same defaults as the primary provider.
func stripeSummary(event stripe.Event) sale.Summary {
	summary := sale.Summary{
		CustomerName: sale.DefaultCustomerName,
		Total:        sale.DefaultTotal,
		Currency:     sale.DefaultCurrency,
		ProductName:  sale.DefaultProductName,
		Country:      sale.DefaultCountry,
	}

	if event.Data == nil {
		return summary
	}

	if amount, ok := event.Data.Object["amount"].(float64); ok {
		summary.Total = sale.FormatTotal(amount)
	}
	if currency, ok := event.Data.Object["currency"].(string); ok && currency != "" {
		summary.Currency = strings.ToUpper(currency)
	}
	if description, ok := event.Data.Object["description"].(string); ok && description != "" {
		summary.ProductName = description
	}

	billingDetails, ok := event.Data.Object["billing_details"].(map[string]interface{})
	if !ok {
		return summary
	}
	if name, ok := billingDetails["name"].(string); ok && name != "" {
		summary.CustomerName = name
	}
	if email, ok := billingDetails["email"].(string); ok {
		summary.CustomerEmail = email
	}
	if address, ok := billingDetails["address"].(map[string]interface{}); ok {
		if country, ok := address["country"].(string); ok && country != "" {
			summary.Country = country
		}
	}

	return summary
}
