package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/davidahmann/foundry/pkg/types"
)

// Client posts settlement events to an operator-configured webhook.
// Delivery is best effort; callers log and move on.
type Client struct {
	URL  string
	HTTP *http.Client
}

// SettlementEvent is the webhook payload for one completed pipeline run
// that reached the ledger (or tried to).
type SettlementEvent struct {
	RequestID            string                 `json:"request_id"`
	VerdictStatus        types.VerdictStatus    `json:"verdict_status"`
	PaymentStatus        types.SettlementStatus `json:"payment_status"`
	TransactionSignature string                 `json:"transaction_signature,omitempty"`
	ExplorerURL          string                 `json:"explorer_url,omitempty"`
	Timestamp            string                 `json:"timestamp"`
}

func (c *Client) PostSettlement(event SettlementEvent) error {
	if c.URL == "" {
		return fmt.Errorf("missing webhook url")
	}
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 10 * time.Second}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.URL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("webhook returned %d", res.StatusCode)
	}
	return nil
}
