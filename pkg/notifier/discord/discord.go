package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mkovacic/sale-notifier/pkg/sale"
)

// saleColor is the green accent used on sale embeds.
const saleColor = 0x2ECC71

// Notifier posts sale notifications to a Discord webhook.
// An empty webhook URL disables it.
type Notifier struct {
	client     *http.Client
	webhookURL string
	now        func() time.Time
}

type payload struct {
	Embeds []embed `json:"embeds"`
}

type embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Color       int     `json:"color"`
	Fields      []field `json:"fields"`
	Timestamp   string  `json:"timestamp"`
}

type field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func New(client *http.Client, webhookURL string) *Notifier {
	return &Notifier{
		client:     client,
		webhookURL: strings.TrimSpace(webhookURL),
		now:        time.Now,
	}
}

func (d *Notifier) Name() string {
	return "discord"
}

// Notify builds an embed from the summary and posts it.
func (d *Notifier) Notify(ctx context.Context, summary sale.Summary) error {
	if d.webhookURL == "" {
		return nil
	}

	fields := []field{
		{Name: "Customer", Value: summary.CustomerName, Inline: true},
		{Name: "Product", Value: summary.ProductName, Inline: true},
		{Name: "Amount", Value: fmt.Sprintf("%s %s", summary.Total, summary.Currency), Inline: true},
		{Name: "Country", Value: summary.Country, Inline: true},
	}
	if summary.CustomerEmail != "" {
		fields = append(fields, field{Name: "Email", Value: summary.CustomerEmail, Inline: true})
	}

	body, err := json.Marshal(payload{
		Embeds: []embed{{
			Title:       "New sale 🎉",
			Description: summary.Plain(),
			Color:       saleColor,
			Fields:      fields,
			Timestamp:   d.now().UTC().Format(time.RFC3339),
		}},
	})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, _ := http.NewRequestWithContext(ctx, "POST", d.webhookURL, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discord status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

func (d *Notifier) Close() error {
	return nil
}
