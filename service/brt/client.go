package brt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/brtgate/service/metrics"
	"golang.org/x/sync/errgroup"
)

// Node RPC methods.
const (
	MethodLedger       = "ledger"
	MethodLedgerClosed = "ledger_closed"
	MethodTx           = "tx"
	MethodAccountInfo  = "account_info"
	MethodAccountTx    = "account_tx"
	MethodSubmit       = "submit"
	MethodFee          = "fee"
)

// Client adapts the node's RPC interface to the canonical block and
// transaction model. It holds no state between calls and is safe for
// concurrent use.
type Client struct {
	rpc      Gateway
	keys     KeypairProvider
	signer   Signer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // node host, used as the metrics endpoint label
}

// NewClient creates a new ledger client.
// endpoint labels RPC metrics; EndpointLabel derives it from the node URL.
// If metrics is nil, no metrics will be recorded.
func NewClient(gw Gateway, keys KeypairProvider, signer Signer, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:      gw,
		keys:     keys,
		signer:   signer,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

// HasMultipleOutputs is always false: a payment has exactly one destination.
func (c *Client) HasMultipleOutputs() bool {
	return false
}

// RequiredConfirmations is the number of confirmations after which a
// transaction is final.
func (c *Client) RequiredConfirmations() int {
	return 1
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	start := time.Now()
	err := c.rpc.Call(ctx, method, params, result)
	duration := time.Since(start).Seconds()

	status := "success"
	switch {
	case err == nil:
	case ctx.Err() != nil:
		status = "canceled"
		c.logger.DebugContext(ctx, "rpc call canceled",
			"method", method,
			"error", err,
		)
	default:
		status = "error"
		c.logger.WarnContext(ctx, "rpc call failed",
			"method", method,
			"error", err,
		)
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall(method, status, c.endpoint, duration)
	}
	return err
}

func (c *Client) recordAdapted(operation string, adapted, skipped int) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordTransactionsAdapted(operation, "adapted", adapted)
	c.metrics.RecordTransactionsAdapted(operation, "skipped", skipped)
}

type ledgerParams struct {
	LedgerIndex  any  `json:"ledger_index"` // number or "closed"
	Accounts     bool `json:"accounts"`
	Transactions bool `json:"transactions"`
	Expand       bool `json:"expand"`
}

type ledgerResult struct {
	LedgerHash  string `json:"ledger_hash"`
	LedgerIndex uint64 `json:"ledger_index"`
	Ledger      struct {
		Closed       bool              `json:"closed"`
		CloseTime    int64             `json:"close_time"`
		TotalCoins   string            `json:"total_coins"`
		Transactions []json.RawMessage `json:"transactions"`
	} `json:"ledger"`
}

type ledgerClosedResult struct {
	LedgerHash  string `json:"ledger_hash"`
	LedgerIndex uint64 `json:"ledger_index"`
}

// GetBlockNumber returns the index of the latest closed ledger. Every
// confirmation count is computed against it.
func (c *Client) GetBlockNumber(ctx context.Context) (uint64, error) {
	var res ledgerClosedResult
	if err := c.call(ctx, MethodLedgerClosed, nil, &res); err != nil {
		return 0, err
	}
	return res.LedgerIndex, nil
}

// GetBlock fetches a closed ledger. With expand set, transaction bodies are
// adapted and those without a canonical form are dropped; otherwise the
// transaction ids are returned as reported.
func (c *Client) GetBlock(ctx context.Context, index uint64, expand bool) (*Block, error) {
	var ledger ledgerResult
	err := c.call(ctx, MethodLedger, ledgerParams{
		LedgerIndex:  index,
		Transactions: true,
		Expand:       expand,
	}, &ledger)
	if err != nil {
		return nil, err
	}

	if !ledger.Ledger.Closed {
		return nil, fmt.Errorf("%w: ledger %d is not closed", ErrBlockNotFound, index)
	}

	height, err := c.GetBlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	block := &Block{
		Index:         ledger.LedgerIndex,
		Hash:          ledger.LedgerHash,
		Time:          LedgerTime(ledger.Ledger.CloseTime),
		Confirmations: Confirmations(height, ledger.LedgerIndex),
	}

	if !expand {
		block.TransactionIDs = make([]string, 0, len(ledger.Ledger.Transactions))
		for _, raw := range ledger.Ledger.Transactions {
			var id string
			if err := json.Unmarshal(raw, &id); err != nil {
				return nil, fmt.Errorf("ledger %d: unexpected transaction entry: %w", index, err)
			}
			block.TransactionIDs = append(block.TransactionIDs, id)
		}
		return block, nil
	}

	block.Transactions = make([]*Transaction, 0, len(ledger.Ledger.Transactions))
	skipped := 0
	for _, raw := range ledger.Ledger.Transactions {
		var tx RawTransaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, fmt.Errorf("ledger %d: failed to decode transaction: %w", index, err)
		}
		tx.LedgerIndex = ledger.LedgerIndex
		tx.Date = ledger.Ledger.CloseTime

		adapted, err := AdaptTransaction(&tx, height, "")
		if errors.Is(err, ErrTransactionNotAdaptable) {
			skipped++
			continue
		}
		if err != nil {
			return nil, err
		}
		block.Transactions = append(block.Transactions, adapted)
	}
	c.recordAdapted("get_block", len(block.Transactions), skipped)

	return block, nil
}

// GetTotalSupply returns the total coins of the closed ledger.
// Any failure degrades to "0" instead of an error so that display code never
// has to special-case an unknown supply. No other operation behaves this way.
func (c *Client) GetTotalSupply(ctx context.Context) string {
	var ledger ledgerResult
	err := c.call(ctx, MethodLedger, ledgerParams{LedgerIndex: "closed"}, &ledger)
	if err != nil || ledger.Ledger.TotalCoins == "" {
		c.logger.WarnContext(ctx, "total supply unavailable, reporting zero", "error", err)
		if c.metrics != nil {
			c.metrics.RecordTotalSupplyFallback()
		}
		return "0"
	}
	return ledger.Ledger.TotalCoins
}

type txParams struct {
	Transaction string `json:"transaction"`
	Binary      bool   `json:"binary"`
}

// fetchWithHeight runs fetch concurrently with a current height lookup.
// Both calls run to completion; a failure of one does not cancel the other.
func (c *Client) fetchWithHeight(ctx context.Context, fetch func(ctx context.Context) error) (uint64, error) {
	var height uint64
	var g errgroup.Group
	g.Go(func() error {
		return fetch(ctx)
	})
	g.Go(func() error {
		var err error
		height, err = c.GetBlockNumber(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return height, nil
}

func (c *Client) getRawTransaction(ctx context.Context, hash string) (*RawTransaction, uint64, error) {
	var tx RawTransaction
	height, err := c.fetchWithHeight(ctx, func(ctx context.Context) error {
		return c.call(ctx, MethodTx, txParams{Transaction: hash}, &tx)
	})
	if err != nil {
		return nil, 0, err
	}
	return &tx, height, nil
}

// GetTransaction fetches a transaction by hash and adapts it.
// ErrTransactionNotAdaptable is returned for transactions that are not
// successful native payments.
func (c *Client) GetTransaction(ctx context.Context, hash string) (*Transaction, error) {
	tx, height, err := c.getRawTransaction(ctx, hash)
	if err != nil {
		return nil, err
	}
	return AdaptTransaction(tx, height, "")
}

type accountInfoParams struct {
	Account Address `json:"account"`
}

type accountInfoResult struct {
	AccountData *struct {
		Account  Address `json:"Account"`
		Balance  string  `json:"Balance"`
		Sequence uint32  `json:"Sequence"`
	} `json:"account_data"`
}

// GetAddressBalance returns the balance in drops the ledger reports for address.
func (c *Client) GetAddressBalance(ctx context.Context, address Address) (string, error) {
	var info accountInfoResult
	if err := c.call(ctx, MethodAccountInfo, accountInfoParams{Account: address}, &info); err != nil {
		return "", err
	}
	if info.AccountData == nil {
		return "", fmt.Errorf("%w: no account data for %s", ErrRequestFailed, address)
	}
	return info.AccountData.Balance, nil
}

type accountTxParams struct {
	Account Address `json:"account"`
	Binary  bool    `json:"binary"`
	Forward bool    `json:"forward"`
	Limit   int     `json:"limit"`
}

type accountTxResult struct {
	Account      Address `json:"account"`
	Transactions []struct {
		Tx        RawTransaction `json:"tx"`
		Meta      *RawMeta       `json:"meta"`
		Validated bool           `json:"validated"`
	} `json:"transactions"`
}

// GetAddressTransactions returns the address history keyed by hash, adapted
// from the point of view of address. Entries without a canonical form are
// left out.
func (c *Client) GetAddressTransactions(ctx context.Context, address Address) (map[string]*Transaction, error) {
	var history accountTxResult
	height, err := c.fetchWithHeight(ctx, func(ctx context.Context) error {
		return c.call(ctx, MethodAccountTx, accountTxParams{Account: address}, &history)
	})
	if err != nil {
		return nil, err
	}

	result := make(map[string]*Transaction, len(history.Transactions))
	skipped := 0
	for i := range history.Transactions {
		entry := &history.Transactions[i]
		if entry.Tx.Meta == nil {
			entry.Tx.Meta = entry.Meta
		}
		adapted, err := AdaptTransaction(&entry.Tx, height, address)
		if errors.Is(err, ErrTransactionNotAdaptable) {
			skipped++
			continue
		}
		if err != nil {
			return nil, err
		}
		result[adapted.Hash] = adapted
	}
	c.recordAdapted("get_address_transactions", len(result), skipped)

	c.logger.DebugContext(ctx, "fetched address transactions",
		"address", address,
		"count", len(result),
		"skipped", skipped,
	)

	return result, nil
}

// IsAddressValid reports whether address is syntactically valid. It does not
// contact the node.
func (c *Client) IsAddressValid(address Address) bool {
	return c.keys.IsValidClassicAddress(address)
}

// IsTransactionIDValid reports whether hash has the shape of a transaction id.
func (c *Client) IsTransactionIDValid(hash string) bool {
	return IsTransactionIDValid(hash)
}
