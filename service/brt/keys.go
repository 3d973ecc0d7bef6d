package brt

// KeypairProvider derives keys and addresses. Implementations live outside
// this package (see service/keys).
type KeypairProvider interface {
	GenerateSeed() (string, error)
	DeriveKeypair(seed string) (publicKey, privateKey string, err error)
	DeriveAddress(publicKey string) (Address, error)
	IsValidClassicAddress(address string) bool
}

// Signer serializes, signs and hashes a transaction with the given seed.
type Signer interface {
	Sign(tx *UnsignedTransaction, seed string) (*SignedTransaction, error)
}
