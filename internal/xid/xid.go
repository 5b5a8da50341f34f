package xid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func New(prefix string) string {
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), suffix())
}

// SaleToken derives a transaction token from the clock, the product id and a
// random suffix. Uniqueness is probabilistic.
func SaleToken(productID int64, at time.Time) string {
	return fmt.Sprintf("tx-%d-%d-%s", at.UnixNano(), productID, suffix())
}

func suffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
