// Package client is the Go client for the brtd HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/brojonat/brtgate/service/brt"
)

// Client is the HTTP client for the brtd ledger gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new gateway client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// APIError is an error response from the server. Code is the stable
// error code; errors.Is matches the brt domain error it stands for.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed: %s (%s)", e.Message, e.Code)
}

func (e *APIError) Is(target error) bool {
	return target != nil && brt.ErrorForCode(e.Code) == target
}

// do sends a request with an optional JSON body and decodes a JSON response
// into out when the status is one of ok.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, ok ...int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if len(ok) == 0 {
		ok = []int{http.StatusOK}
	}
	for _, status := range ok {
		if resp.StatusCode == status {
			if out == nil {
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return nil
		}
	}
	return c.parseErrorResponse(resp)
}

// Height returns the index of the latest closed ledger.
func (c *Client) Height(ctx context.Context) (uint64, error) {
	var resp struct {
		Height uint64 `json:"height"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/height", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Height, nil
}

// NetworkFee returns the network minimum fee in drops.
func (c *Client) NetworkFee(ctx context.Context) (sdkmath.Int, error) {
	var resp struct {
		MinimumFee string `json:"minimum_fee"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/fee", nil, &resp); err != nil {
		return sdkmath.Int{}, err
	}
	fee, err := brt.ParseDrops(resp.MinimumFee)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("invalid minimum_fee %q: %w", resp.MinimumFee, err)
	}
	return fee, nil
}

// TotalSupply returns the total coins in existence in drops, "0" when the
// server could not read it from the node.
func (c *Client) TotalSupply(ctx context.Context) (string, error) {
	var resp struct {
		TotalSupply string `json:"total_supply"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/supply", nil, &resp); err != nil {
		return "", err
	}
	return resp.TotalSupply, nil
}

// Block returns a closed ledger, with adapted payments when expand is set.
func (c *Client) Block(ctx context.Context, index uint64, expand bool) (*brt.Block, error) {
	path := "/api/v1/blocks/" + strconv.FormatUint(index, 10)
	if expand {
		path += "?expand=true"
	}
	var block brt.Block
	if err := c.do(ctx, http.MethodGet, path, nil, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// Transaction returns one payment by id.
func (c *Client) Transaction(ctx context.Context, hash string) (*brt.Transaction, error) {
	var tx brt.Transaction
	if err := c.do(ctx, http.MethodGet, "/api/v1/transactions/"+url.PathEscape(hash), nil, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Balance returns the balance of address in drops.
func (c *Client) Balance(ctx context.Context, address string) (string, error) {
	var resp struct {
		Balance string `json:"balance"`
	}
	path := fmt.Sprintf("/api/v1/addresses/%s/balance", url.PathEscape(address))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.Balance, nil
}

// AddressTransactions returns the payments of address keyed by id.
func (c *Client) AddressTransactions(ctx context.Context, address string) (map[string]*brt.Transaction, error) {
	var txs map[string]*brt.Transaction
	path := fmt.Sprintf("/api/v1/addresses/%s/transactions", url.PathEscape(address))
	if err := c.do(ctx, http.MethodGet, path, nil, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// IsAddressValid asks the server whether address is well formed.
func (c *Client) IsAddressValid(ctx context.Context, address string) (bool, error) {
	var resp struct {
		Valid bool `json:"valid"`
	}
	path := fmt.Sprintf("/api/v1/addresses/%s/valid", url.PathEscape(address))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// GenerateAddress asks the server for a new address and its key material.
func (c *Client) GenerateAddress(ctx context.Context) (string, *brt.Keypair, error) {
	var resp struct {
		Address string       `json:"address"`
		Keypair *brt.Keypair `json:"keypair"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/addresses", nil, &resp, http.StatusCreated); err != nil {
		return "", nil, err
	}
	c.logger.Debug("address generated", "address", resp.Address)
	return resp.Address, resp.Keypair, nil
}

// SignRequest describes a payment to sign. An empty Fee lets the server use
// the network minimum fee.
type SignRequest struct {
	From  string
	Seed  string
	To    string
	Value sdkmath.Int
	Fee   string
}

// Sign asks the server to build and sign a payment.
func (c *Client) Sign(ctx context.Context, r SignRequest) (*brt.SignedTransaction, error) {
	body := map[string]interface{}{
		"from": map[string]string{"address": r.From, "seed": r.Seed},
		"to":   map[string]string{"address": r.To, "value": r.Value.String()},
	}
	if r.Fee != "" {
		body["fee"] = r.Fee
	}

	var signed brt.SignedTransaction
	if err := c.do(ctx, http.MethodPost, "/api/v1/transactions/sign", body, &signed); err != nil {
		return nil, err
	}
	c.logger.Debug("transaction signed", "id", signed.ID)
	return &signed, nil
}

// Submit sends a signed transaction to the network. The id is returned even
// when the submission was rejected.
func (c *Client) Submit(ctx context.Context, signed *brt.SignedTransaction) (string, error) {
	data, err := json.Marshal(signed)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/transactions/submit", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return signed.ID, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var result struct {
		ID    string `json:"id"`
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return signed.ID, &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	if result.ID == "" {
		result.ID = signed.ID
	}

	if resp.StatusCode != http.StatusOK {
		return result.ID, &APIError{StatusCode: resp.StatusCode, Code: result.Code, Message: result.Error}
	}

	c.logger.Debug("transaction submitted", "id", result.ID)
	return result.ID, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned unhealthy status: %d", resp.StatusCode)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	return &APIError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
}
