package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notifier posts scrape outcomes to an outbound webhook endpoint, typically
// a messaging bridge that forwards them to the subscriber's chat.
type Notifier struct {
	client   *http.Client
	endpoint string
}

func NewNotifier(endpoint string) *Notifier {
	return &Notifier{
		client:   &http.Client{Timeout: 10 * time.Second},
		endpoint: endpoint,
	}
}

type notification struct {
	Type          string `json:"type"`
	LineUserID    string `json:"line_user_id"`
	PropertyName  string `json:"property_name,omitempty"`
	URL           string `json:"url"`
	PreviousPrice string `json:"previous_price,omitempty"`
	CurrentPrice  string `json:"current_price,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// NotifyPriceChange reports a detected price change for a watched listing.
func (n *Notifier) NotifyPriceChange(ctx context.Context, lineUserID, propertyName, url, previousPrice, currentPrice string) error {
	return n.post(ctx, notification{
		Type:          "price_change",
		LineUserID:    lineUserID,
		PropertyName:  propertyName,
		URL:           url,
		PreviousPrice: previousPrice,
		CurrentPrice:  currentPrice,
	})
}

// NotifyFailure reports a scrape the subscriber asked for that could not be
// completed.
func (n *Notifier) NotifyFailure(ctx context.Context, lineUserID, url, reason string) error {
	return n.post(ctx, notification{
		Type:       "scrape_failed",
		LineUserID: lineUserID,
		URL:        url,
		Reason:     reason,
	})
}

func (n *Notifier) post(ctx context.Context, payload notification) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}
	return nil
}
