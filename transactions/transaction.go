package transactions

import (
	"errors"
	"simple-ledger-go/common"
)

// Transaction is an application-defined payload. No schema is enforced.
type Transaction map[string]interface{}

var ErrNilTransaction = errors.New("transaction is nil")

func (tx Transaction) Hash() (string, error) {
	if tx == nil {
		return "", ErrNilTransaction
	}
	return common.HashCanonical(map[string]interface{}(tx))
}

// Clone deep-copies tx through its JSON form.
func (tx Transaction) Clone() (Transaction, error) {
	if tx == nil {
		return nil, ErrNilTransaction
	}
	enc, err := common.Encode(tx)
	if err != nil {
		return nil, err
	}
	cloned, err := common.Decode[Transaction](enc)
	if err != nil {
		return nil, err
	}
	return *cloned, nil
}
