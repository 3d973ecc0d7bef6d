package brt

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/tidwall/gjson"
)

// EpochOffset is the Unix time of the network's epoch. Ledger close times
// and transaction dates count seconds from it.
const EpochOffset int64 = 1614556800

var (
	transactionIDRegex = regexp.MustCompile(`^[0-9A-F]{64}$`)
	dropsRegex         = regexp.MustCompile(`^[0-9]+$`)
)

// LedgerTime converts a ledger timestamp to wall clock time.
func LedgerTime(ts int64) time.Time {
	return time.Unix(ts+EpochOffset, 0).UTC()
}

// Confirmations returns how many ledgers closed after height. A height above
// current means the current reading is stale; that is reported as zero.
func Confirmations(current, height uint64) uint64 {
	if height > current {
		return 0
	}
	return current - height
}

// IsTransactionIDValid reports whether hash has the shape of a transaction
// id: 64 uppercase hex characters. It says nothing about existence.
func IsTransactionIDValid(hash string) bool {
	return transactionIDRegex.MatchString(hash)
}

// ParseDrops parses a non-negative integer amount of drops.
func ParseDrops(s string) (sdkmath.Int, error) {
	if !dropsRegex.MatchString(s) {
		return sdkmath.Int{}, fmt.Errorf("invalid amount %q", s)
	}
	// Leading zeros would otherwise be read as an octal prefix.
	digits := strings.TrimLeft(s, "0")
	if digits == "" {
		return sdkmath.ZeroInt(), nil
	}
	v, ok := sdkmath.NewIntFromString(digits)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// scalarAmount returns the drops of a native amount. Issued currency amounts
// are JSON objects and are reported with ok=false.
func scalarAmount(raw []byte) (v sdkmath.Int, ok bool, err error) {
	res := gjson.ParseBytes(raw)
	if res.Type != gjson.String {
		return sdkmath.Int{}, false, nil
	}
	v, err = ParseDrops(res.String())
	if err != nil {
		return sdkmath.Int{}, false, err
	}
	return v, true, nil
}

// SignedBalance is the effect of a payment of amount on viewpoint's balance.
func SignedBalance(amount sdkmath.Int, source, viewpoint Address) sdkmath.Int {
	if viewpoint != "" && viewpoint == source {
		return amount.Neg()
	}
	return amount
}
