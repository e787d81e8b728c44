package ledger

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Transaction id prefixes by initiating context.
const (
	PrefixTransaction = "TXN" // engine-applied operations
	PrefixAdjustment  = "ADJ" // manual admin adjustments
)

// NewTransactionID produces an id of the shape PREFIX+YYYYMMDD+6
// random decimal digits, e.g. TXN20260830492017. The id is
// human-traceable but not guaranteed unique; the transactions table
// enforces uniqueness and the engine regenerates on collision.
func NewTransactionID(prefix string) string {
	return prefix + time.Now().UTC().Format("20060102") + randomDigits(6)
}

func randomDigits(n int) string {
	max := big.NewInt(1)
	for i := 0; i < n; i++ {
		max.Mul(max, big.NewInt(10))
	}
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// fall back to the clock rather than abort a money movement.
		v = big.NewInt(time.Now().UnixNano())
		v.Mod(v, max)
	}
	return fmt.Sprintf("%0*d", n, v)
}
