// Package client holds the outbound HTTP clients for the sibling SBMS
// services: the party service owning counterparty balances and the
// smart-ops service tracking promotional offer usage.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PartyLedgerClient implements usecase.PartyLedgerClient against the
// party service's balance endpoint.
type PartyLedgerClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPartyLedgerClient creates a new PartyLedgerClient.
func NewPartyLedgerClient(baseURL string, timeout time.Duration) *PartyLedgerClient {
	return &PartyLedgerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AdjustBalance posts a signed adjustment to one party's running
// balance, forwarding the originating caller's bearer token.
func (c *PartyLedgerClient) AdjustBalance(ctx context.Context, partyID int64, amount decimal.Decimal, bearerToken string) error {
	body := struct {
		Amount json.Number `json:"amount"`
	}{Amount: json.Number(amount.String())}

	url := fmt.Sprintf("%s/api/Parties/%d/balance", c.baseURL, partyID)
	if err := postJSON(ctx, c.httpClient, url, bearerToken, body); err != nil {
		return fmt.Errorf("adjust balance for party %d: %w", partyID, err)
	}

	return nil
}

func postJSON(ctx context.Context, client *http.Client, url, bearerToken string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return nil
}
