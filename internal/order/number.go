package order

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

const numberSuffixLen = 6

// newOrderNumber returns a short, human readable order number such as
// 261016-4ZkP9q. The date prefix keeps numbers readable over the phone; the
// random suffix makes collisions rare and the store rejects the rest.
func newOrderNumber(now time.Time) (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate order number: %w", err)
	}

	suffix := base58.Encode(b)
	for len(suffix) < numberSuffixLen {
		suffix = "1" + suffix
	}

	return now.UTC().Format("060102") + "-" + suffix[:numberSuffixLen], nil
}
