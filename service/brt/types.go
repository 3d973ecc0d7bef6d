package brt

import (
	"encoding/json"
	"time"

	sdkmath "cosmossdk.io/math"
)

// Address is a checksum-encoded classic account address.
type Address = string

// Keypair is the key material for one account. The seed alone is enough to
// re-derive the keys and to sign; PrivateKey is informational.
type Keypair struct {
	PublicKey  string `json:"public"`
	PrivateKey string `json:"private"`
	Seed       string `json:"seed"`
}

// Account is a funded account able to sign payments.
type Account struct {
	Address Address  `json:"address"`
	Keypair *Keypair `json:"secret,omitempty"`
}

// Recipient is the destination side of a payment.
type Recipient struct {
	Address Address     `json:"address"`
	Value   sdkmath.Int `json:"value"`
}

// UnsignedTransaction is a Payment ready to be handed to a Signer.
// The JSON form matches the ledger's transaction object.
type UnsignedTransaction struct {
	TransactionType string      `json:"TransactionType"`
	Account         Address     `json:"Account"`
	Destination     Address     `json:"Destination"`
	Amount          sdkmath.Int `json:"Amount"`
	Fee             sdkmath.Int `json:"Fee"`
	Sequence        uint32      `json:"Sequence"`
}

// SignedTransaction is the output of a Signer. Raw is the hex encoded blob
// submitted to the network, ID the uppercase transaction hash.
type SignedTransaction struct {
	Raw string `json:"raw"`
	ID  string `json:"id"`
}

// Block is a closed ledger in canonical form.
// Transactions is set when the block was fetched expanded, TransactionIDs
// otherwise. The field that was set is always encoded, even when empty.
type Block struct {
	Index          uint64         `json:"block"`
	Hash           string         `json:"hash"`
	Time           time.Time      `json:"time"`
	Confirmations  uint64         `json:"confirmations"`
	Transactions   []*Transaction `json:"txs,omitempty"`
	TransactionIDs []string       `json:"tx_ids,omitempty"`
}

// MarshalJSON omits only the listing that was not requested.
func (b Block) MarshalJSON() ([]byte, error) {
	out := struct {
		Index          uint64          `json:"block"`
		Hash           string          `json:"hash"`
		Time           time.Time       `json:"time"`
		Confirmations  uint64          `json:"confirmations"`
		Transactions   *[]*Transaction `json:"txs,omitempty"`
		TransactionIDs *[]string       `json:"tx_ids,omitempty"`
	}{
		Index:         b.Index,
		Hash:          b.Hash,
		Time:          b.Time,
		Confirmations: b.Confirmations,
	}
	if b.Transactions != nil {
		out.Transactions = &b.Transactions
	}
	if b.TransactionIDs != nil {
		out.TransactionIDs = &b.TransactionIDs
	}
	return json.Marshal(out)
}

// Transaction is a successful native payment in canonical form.
type Transaction struct {
	Hash          string      `json:"hash"`
	Value         sdkmath.Int `json:"value"`
	Time          time.Time   `json:"time"`
	Confirmations uint64      `json:"confirmations"`
	Block         uint64      `json:"block"`
	Fee           sdkmath.Int `json:"fee"`
	Account       *Address    `json:"account"`
	Balance       sdkmath.Int `json:"balance"` // negative when Account sent the payment
	From          []Address   `json:"from"`
	To            []Recipient `json:"to"`
}

// SubmitResult is the node's answer to a submit call.
type SubmitResult struct {
	EngineResult        string `json:"engine_result"`
	EngineResultCode    int    `json:"engine_result_code"`
	EngineResultMessage string `json:"engine_result_message"`
	Applied             bool   `json:"applied"`
	Accepted            bool   `json:"accepted"`
	TxJSON              struct {
		Hash string `json:"hash"`
	} `json:"tx_json"`
}
