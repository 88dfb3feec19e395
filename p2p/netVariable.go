package p2p

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/sha3"
)

const (
	TCP             = "tcp"
	ADDRESS_FMT     = "localhost:%s"
	DEFAULT_TRACKER = "localhost:3000"
)

func NodeAddress(port string) string {
	return fmt.Sprintf(ADDRESS_FMT, port)
}

func IsSameAddress(a string, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ShortId is a compact label for an address, used in logs.
func ShortId(address string) string {
	sum := sha3.Sum256([]byte(address))
	return base58.Encode(sum[:6])
}
