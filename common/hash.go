package common

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	HASH_HEX_LEN = 64
)

// ZeroHash is the all-zero digest used for the genesis previous hash
// and for the merkle root of an empty transaction list.
var ZeroHash = strings.Repeat("0", HASH_HEX_LEN)

func HashBytes(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashPair combines two hex digests by hashing their concatenation.
func HashPair(left string, right string) string {
	return HashBytes([]byte(left + right))
}

// Canonical serializes v as compact JSON. Map keys come out sorted at
// every level, which makes the output independent of insertion order.
func Canonical(v interface{}) ([]byte, error) {
	buff := new(bytes.Buffer)
	encoder := json.NewEncoder(buff)
	encoder.SetEscapeHTML(false)
	err := encoder.Encode(v)
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(buff.Bytes(), "\n"), nil
}

func HashCanonical(v interface{}) (string, error) {
	enc, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return HashBytes(enc), nil
}

func HasLeadingZeros(hash string, n int) bool {
	if n <= 0 {
		return true
	}
	if len(hash) < n {
		return false
	}
	for i := 0; i < n; i++ {
		if hash[i] != '0' {
			return false
		}
	}
	return true
}

func IsHexDigest(s string) bool {
	if len(s) != HASH_HEX_LEN {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
