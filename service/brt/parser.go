package brt

import (
	"encoding/json"
	"fmt"
)

// TransactionTypePayment is the only transaction type with a canonical form.
const TransactionTypePayment = "Payment"

// RawMeta is the part of the transaction metadata the adapter reads.
type RawMeta struct {
	TransactionResult string `json:"TransactionResult"`
}

// RawTransaction is a transaction as returned by the node's JSON API.
type RawTransaction struct {
	TransactionType string          `json:"TransactionType"`
	Account         string          `json:"Account"`
	Destination     string          `json:"Destination"`
	Amount          json.RawMessage `json:"Amount"`
	Fee             string          `json:"Fee"`
	Sequence        uint32          `json:"Sequence"`
	Hash            string          `json:"hash"`
	LedgerIndex     uint64          `json:"ledger_index"`
	Date            int64           `json:"date"`
	Validated       bool            `json:"validated"`
	Meta            *RawMeta        `json:"meta,omitempty"`
	MetaData        *RawMeta        `json:"metaData,omitempty"` // ledger listings use this name
}

func (tx *RawTransaction) result() string {
	if tx.Meta != nil {
		return tx.Meta.TransactionResult
	}
	if tx.MetaData != nil {
		return tx.MetaData.TransactionResult
	}
	return ""
}

// AdaptTransaction converts a raw transaction to canonical form as seen by
// viewpoint (may be empty). Anything other than a successful native payment
// yields ErrTransactionNotAdaptable.
func AdaptTransaction(tx *RawTransaction, currentHeight uint64, viewpoint Address) (*Transaction, error) {
	if tx.TransactionType != TransactionTypePayment || tx.result() != ResultSuccess {
		return nil, fmt.Errorf("%w: %s %s", ErrTransactionNotAdaptable, tx.TransactionType, tx.result())
	}

	value, ok, err := scalarAmount(tx.Amount)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", tx.Hash, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: non-native amount", ErrTransactionNotAdaptable)
	}

	fee, err := ParseDrops(tx.Fee)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: fee: %w", tx.Hash, err)
	}

	var account *Address
	if viewpoint != "" {
		account = &viewpoint
	}

	return &Transaction{
		Hash:          tx.Hash,
		Value:         value,
		Time:          LedgerTime(tx.Date),
		Confirmations: Confirmations(currentHeight, tx.LedgerIndex),
		Block:         tx.LedgerIndex,
		Fee:           fee,
		Account:       account,
		Balance:       SignedBalance(value, tx.Account, viewpoint),
		From:          []Address{tx.Account},
		To: []Recipient{{
			Address: tx.Destination,
			Value:   value,
		}},
	}, nil
}
