package brt

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/cenkalti/backoff/v4"
)

// SignTransaction builds a payment of output.Value drops from input to
// output.Address and signs it with input's seed. The sequence number is read
// from the node; fee is used as given.
//
// Concurrent calls for the same account are not serialized: both may read the
// same sequence and the network will accept only one of the resulting
// transactions.
//
// It panics if input has no address or seed, or if the amount is not positive.
func (c *Client) SignTransaction(ctx context.Context, input Account, output Recipient, fee sdkmath.Int) (*SignedTransaction, error) {
	if input.Address == "" || input.Keypair == nil || input.Keypair.Seed == "" {
		panic("brt: SignTransaction requires an input account with address and seed")
	}
	if output.Value.IsNil() || !output.Value.IsPositive() {
		panic("brt: SignTransaction requires a positive amount")
	}
	if fee.IsNil() {
		fee = sdkmath.ZeroInt()
	}

	var info accountInfoResult
	if err := c.call(ctx, MethodAccountInfo, accountInfoParams{Account: input.Address}, &info); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSequenceUndefined, input.Address, err)
	}
	if info.AccountData == nil {
		return nil, fmt.Errorf("%w: no account data for %s", ErrSequenceUndefined, input.Address)
	}

	tx := &UnsignedTransaction{
		TransactionType: TransactionTypePayment,
		Account:         input.Address,
		Destination:     output.Address,
		Amount:          output.Value,
		Fee:             fee,
		Sequence:        info.AccountData.Sequence,
	}

	signed, err := c.signer.Sign(tx, input.Keypair.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSignature, err)
	}

	c.logger.DebugContext(ctx, "signed transaction",
		"id", signed.ID,
		"account", tx.Account,
		"destination", tx.Destination,
		"sequence", tx.Sequence,
	)

	return signed, nil
}

type submitParams struct {
	TxBlob string `json:"tx_blob"`
}

// SubmitTransaction submits a signed transaction. The returned id is set even
// when err is not nil so the caller can look the transaction up later. A
// transaction that was applied without moving funds returns
// ErrUnfundedPayment: it consumed its sequence number.
func (c *Client) SubmitTransaction(ctx context.Context, signed *SignedTransaction) (string, error) {
	var result SubmitResult
	callErr := c.call(ctx, MethodSubmit, submitParams{TxBlob: signed.Raw}, &result)

	res := &result
	engine := result.EngineResult
	if callErr != nil {
		res = nil
		engine = engineTransportFailure
	}

	err := ClassifySubmission(res, callErr)
	if c.metrics != nil {
		c.metrics.RecordSubmission(engine, ErrorCode(err))
	}
	if err != nil {
		c.logger.WarnContext(ctx, "transaction submission failed",
			"id", signed.ID,
			"engine_result", engine,
			"error", err,
		)
		return signed.ID, err
	}

	c.logger.InfoContext(ctx, "transaction submitted",
		"id", signed.ID,
		"hash", result.TxJSON.Hash,
	)

	if result.TxJSON.Hash == "" {
		return signed.ID, nil
	}
	return result.TxJSON.Hash, nil
}

type feeResult struct {
	Drops struct {
		BaseFee    string `json:"base_fee"`
		MinimumFee string `json:"minimum_fee"`
	} `json:"drops"`
}

// GetNetworkFee returns the minimum fee in drops. Callers pass it (or their
// own value) to SignTransaction.
func (c *Client) GetNetworkFee(ctx context.Context) (sdkmath.Int, error) {
	var res feeResult
	if err := c.call(ctx, MethodFee, nil, &res); err != nil {
		return sdkmath.Int{}, err
	}
	fee, err := ParseDrops(res.Drops.MinimumFee)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: fee: %w", ErrRequestFailed, err)
	}
	return fee, nil
}

// GenerateAddress creates a new keypair and its address without touching the
// network.
func (c *Client) GenerateAddress() (Address, *Keypair, error) {
	seed, err := c.keys.GenerateSeed()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate seed: %w", err)
	}
	public, private, err := c.keys.DeriveKeypair(seed)
	if err != nil {
		return "", nil, fmt.Errorf("failed to derive keypair: %w", err)
	}
	address, err := c.keys.DeriveAddress(public)
	if err != nil {
		return "", nil, fmt.Errorf("failed to derive address: %w", err)
	}
	return address, &Keypair{
		PublicKey:  public,
		PrivateKey: private,
		Seed:       seed,
	}, nil
}

const (
	DefaultWaitInitialInterval = 500 * time.Millisecond
	DefaultWaitMaxInterval     = 4 * time.Second
)

// WaitOptions configures WaitTransaction.
type WaitOptions struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// WaitTransaction polls the node until the transaction is in a validated
// ledger, then adapts it. It stops on ctx and on any error other than the
// node not knowing the transaction yet.
func (c *Client) WaitTransaction(ctx context.Context, hash string, opts WaitOptions) (*Transaction, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = DefaultWaitInitialInterval
	b.MaxInterval = DefaultWaitMaxInterval
	if opts.InitialInterval > 0 {
		b.InitialInterval = opts.InitialInterval
	}
	if opts.MaxInterval > 0 {
		b.MaxInterval = opts.MaxInterval
	}
	b.MaxElapsedTime = 0 // the context bounds the wait

	var (
		tx     *RawTransaction
		height uint64
	)
	err := backoff.Retry(func() error {
		var err error
		tx, height, err = c.getRawTransaction(ctx, hash)
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == "txnNotFound" {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		if !tx.Validated {
			return fmt.Errorf("transaction %s not yet validated", hash)
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, err
	}

	return AdaptTransaction(tx, height, "")
}
