// Package sale normalizes provider order payloads into a display-ready
// summary.
package sale

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Defaults used when the provider payload omits a field.
const (
	DefaultCustomerName = "Someone"
	DefaultCurrency     = "USD"
	DefaultProductName  = "your product"
	DefaultCountry      = "Unknown"
	DefaultTotal        = "0.00"
)

// Summary is the normalized record of a single sale. Total is already
// converted to major currency units and rendered with two decimals.
type Summary struct {
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	Total         string `json:"total"`
	Currency      string `json:"currency"`
	ProductName   string `json:"productName"`
	Country       string `json:"country"`
}

// ParsePayload extracts the sale attributes from a raw provider body.
// Every field is optional at every nesting level; absent or malformed
// values resolve to the package defaults. An absent or non-numeric total
// resolves to "0.00". ParsePayload never fails.
func ParsePayload(body []byte) Summary {
	summary := Summary{
		CustomerName: DefaultCustomerName,
		Total:        DefaultTotal,
		Currency:     DefaultCurrency,
		ProductName:  DefaultProductName,
		Country:      DefaultCountry,
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return summary
	}

	attributes, ok := payload["attributes"].(map[string]interface{})
	if !ok {
		return summary
	}

	if name, ok := attributes["user_name"].(string); ok && name != "" {
		summary.CustomerName = name
	}
	if email, ok := attributes["user_email"].(string); ok {
		summary.CustomerEmail = email
	}
	if total, ok := attributes["total"].(float64); ok {
		summary.Total = FormatTotal(total)
	}
	if currency, ok := attributes["currency"].(string); ok && currency != "" {
		summary.Currency = strings.ToUpper(currency)
	}
	if item, ok := attributes["first_order_item"].(map[string]interface{}); ok {
		if product, ok := item["product_name"].(string); ok && product != "" {
			summary.ProductName = product
		}
	}
	if address, ok := attributes["customer_address"].(map[string]interface{}); ok {
		if country, ok := address["country"].(string); ok && country != "" {
			summary.Country = country
		}
	}

	return summary
}

// FormatTotal converts a minor-unit amount (e.g. cents) to major units
// rendered with exactly two decimals.
func FormatTotal(minor float64) string {
	return fmt.Sprintf("%.2f", minor/100)
}

// Markdown renders the summary with lightweight emphasis markup for chat
// platforms that support it.
func (s Summary) Markdown() string {
	return fmt.Sprintf("🎉 New sale! *%s* just bought *%s* for *%s %s* from %s",
		s.CustomerName, s.ProductName, s.Total, s.Currency, s.Country)
}

// Plain renders the summary without any markup.
func (s Summary) Plain() string {
	return fmt.Sprintf("🎉 New sale! %s just bought %s for %s %s from %s",
		s.CustomerName, s.ProductName, s.Total, s.Currency, s.Country)
}
