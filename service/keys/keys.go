// Package keys implements brt.KeypairProvider and brt.Signer on top of the
// xrpl-go key, address and binary codecs. The ledger shares their formats.
package keys

import (
	"fmt"
	"strings"

	addresscodec "github.com/Peersyst/xrpl-go/address-codec"
	"github.com/Peersyst/xrpl-go/keypairs"
	"github.com/Peersyst/xrpl-go/pkg/crypto"
	"github.com/Peersyst/xrpl-go/pkg/random"
	"github.com/Peersyst/xrpl-go/xrpl/wallet"

	"github.com/brojonat/brtgate/service/brt"
)

// Provider generates secp256k1 seeds and derives keys and classic addresses.
type Provider struct{}

// NewProvider returns a Provider.
func NewProvider() *Provider {
	return &Provider{}
}

// GenerateSeed returns a new random family seed.
func (p *Provider) GenerateSeed() (string, error) {
	return keypairs.GenerateSeed("", crypto.SECP256K1(), random.NewRandomizer())
}

// DeriveKeypair returns the hex encoded public and private keys of seed.
func (p *Provider) DeriveKeypair(seed string) (string, string, error) {
	private, public, err := keypairs.DeriveKeypair(seed, false)
	if err != nil {
		return "", "", err
	}
	return public, private, nil
}

// DeriveAddress returns the classic address of a hex encoded public key.
func (p *Provider) DeriveAddress(publicKey string) (brt.Address, error) {
	return keypairs.DeriveClassicAddress(publicKey)
}

// IsValidClassicAddress checks the address checksum and prefix.
func (p *Provider) IsValidClassicAddress(address string) bool {
	return addresscodec.IsValidClassicAddress(address)
}

// Signer signs payments with a wallet derived from the seed.
type Signer struct{}

// NewSigner returns a Signer.
func NewSigner() *Signer {
	return &Signer{}
}

// Sign serializes tx canonically, signs it and returns the blob and hash.
func (s *Signer) Sign(tx *brt.UnsignedTransaction, seed string) (*brt.SignedTransaction, error) {
	w, err := wallet.FromSeed(seed, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet from seed: %w", err)
	}
	if string(w.ClassicAddress) != tx.Account {
		return nil, fmt.Errorf("seed does not belong to %s", tx.Account)
	}

	blob, hash, err := w.Sign(map[string]interface{}{
		"TransactionType": tx.TransactionType,
		"Account":         tx.Account,
		"Destination":     tx.Destination,
		"Amount":          tx.Amount.String(),
		"Fee":             tx.Fee.String(),
		"Sequence":        tx.Sequence,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return &brt.SignedTransaction{
		Raw: blob,
		ID:  strings.ToUpper(hash),
	}, nil
}
