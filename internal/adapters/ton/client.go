// Package ton reads incoming transfers of the deposit wallet from a
// toncenter-compatible HTTP API.
package ton

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dkeye/LuckyClick/internal/app"
	"github.com/dkeye/LuckyClick/internal/domain"
	"github.com/shopspring/decimal"
)

var _ app.TransferSource = (*Client)(nil)

type Client struct {
	api    string
	wallet string
	apiKey string
	client *http.Client
}

func NewClient(api, wallet, apiKey string) *Client {
	return &Client{
		api:    strings.TrimRight(api, "/"),
		wallet: wallet,
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type transactionsResponse struct {
	OK     bool          `json:"ok"`
	Error  string        `json:"error,omitempty"`
	Result []transaction `json:"result"`
}

type transaction struct {
	TransactionID struct {
		Hash string `json:"hash"`
	} `json:"transaction_id"`
	InMsg *struct {
		Source  string `json:"source"`
		Value   string `json:"value"`
		Message string `json:"message"`
	} `json:"in_msg"`
}

// RecentTransfers returns up to limit incoming transfers, newest first.
// Transactions without an inbound value are skipped.
func (c *Client) RecentTransfers(ctx context.Context, limit int) ([]app.Transfer, error) {
	q := url.Values{}
	q.Set("address", c.wallet)
	q.Set("limit", strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.api+"/getTransactions?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrUnavailable, resp.StatusCode)
	}

	var body transactionsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", domain.ErrUnavailable, err)
	}
	if !body.OK {
		return nil, fmt.Errorf("%w: api error: %s", domain.ErrUnavailable, body.Error)
	}

	out := make([]app.Transfer, 0, len(body.Result))
	for _, tx := range body.Result {
		if tx.InMsg == nil || tx.InMsg.Value == "" || tx.InMsg.Source == "" {
			continue
		}
		nano, err := decimal.NewFromString(tx.InMsg.Value)
		if err != nil {
			continue
		}
		out = append(out, app.Transfer{
			Hash:    tx.TransactionID.Hash,
			Comment: tx.InMsg.Message,
			Amount:  nano.Shift(-9),
		})
	}
	return out, nil
}
