package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// MintTransactionID mints the correlation identifier shared with the
// payment provider: a fixed prefix, a millisecond timestamp and a random
// suffix. The timestamp keeps identifiers sortable; the crypto/rand suffix
// makes collisions between attempts minted in the same millisecond
// practically impossible.
func MintTransactionID() string {
	return fmt.Sprintf("KANZ-%d-%s", time.Now().UnixMilli(), randomSuffix(9))
}

// MintTicketID mints the public, QR-encodable ticket identifier with the
// same uniqueness shape. Upper-cased for readability at the door.
func MintTicketID() string {
	return fmt.Sprintf("TKT-%d-%s", time.Now().UnixMilli(), strings.ToUpper(randomSuffix(6)))
}

func randomSuffix(n int) string {
	var b strings.Builder
	b.Grow(n)
	max := big.NewInt(int64(len(idAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// fall back to a timestamp-derived character rather than panic.
			idx = big.NewInt(time.Now().UnixNano() % int64(len(idAlphabet)))
		}
		b.WriteByte(idAlphabet[idx.Int64()])
	}
	return b.String()
}
