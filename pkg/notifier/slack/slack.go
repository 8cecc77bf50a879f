package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mkovacic/sale-notifier/pkg/sale"
)

// Notifier posts sale notifications to a Slack incoming webhook.
// An empty webhook URL disables it.
type Notifier struct {
	client     *http.Client
	webhookURL string
}

type payload struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks,omitempty"`
}

type block struct {
	Type   string  `json:"type"`
	Text   *text   `json:"text,omitempty"`
	Fields []*text `json:"fields,omitempty"`
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func New(client *http.Client, webhookURL string) *Notifier {
	return &Notifier{client: client, webhookURL: strings.TrimSpace(webhookURL)}
}

func (s *Notifier) Name() string {
	return "slack"
}

// Notify builds a Block Kit message from the summary and posts it.
func (s *Notifier) Notify(ctx context.Context, summary sale.Summary) error {
	if s.webhookURL == "" {
		return nil
	}

	fields := []*text{
		{Type: "mrkdwn", Text: "*Customer:*\n" + summary.CustomerName},
		{Type: "mrkdwn", Text: "*Product:*\n" + summary.ProductName},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Amount:*\n%s %s", summary.Total, summary.Currency)},
		{Type: "mrkdwn", Text: "*Country:*\n" + summary.Country},
	}
	if summary.CustomerEmail != "" {
		fields = append(fields, &text{Type: "mrkdwn", Text: "*Email:*\n" + summary.CustomerEmail})
	}

	body, err := json.Marshal(payload{
		Text: summary.Plain(),
		Blocks: []block{
			{Type: "section", Text: &text{Type: "mrkdwn", Text: summary.Markdown()}},
			{Type: "section", Fields: fields},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, _ := http.NewRequestWithContext(ctx, "POST", s.webhookURL, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

func (s *Notifier) Close() error {
	return nil
}
