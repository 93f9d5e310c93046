package enums

import "fmt"

// TransactionKind describes the allowed values for the `kind` column in stock_transactions.
type TransactionKind string

const (
	TransactionKindRestock TransactionKind = "RESTOCK"
	TransactionKindConsume TransactionKind = "CONSUME"
)

var validTransactionKinds = []TransactionKind{
	TransactionKindRestock,
	TransactionKindConsume,
}

// IsValid reports whether the value matches the canonical transaction kind enum.
func (k TransactionKind) IsValid() bool {
	for _, candidate := range validTransactionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseTransactionKind converts the raw string to TransactionKind.
func ParseTransactionKind(value string) (TransactionKind, error) {
	for _, candidate := range validTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction kind %q", value)
}
