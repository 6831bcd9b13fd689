package txassemble

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// SignPrebuilt implements §4.6 Path A: deserialize the provider-supplied
// bytes as a versioned transaction, replace its signatures with one over
// the message signed by the delegate key, and verify the post-signing size
// stays within budget. Per the spec, the assembler never attempts to
// shrink a prebuilt payload that's already too large — that's treated as a
// server bug, not something to recover from locally.
func SignPrebuilt(transactionBytes []byte, delegate solana.PrivateKey) (*solana.Transaction, error) {
	tx, err := solana.TransactionFromBytes(transactionBytes)
	if err != nil {
		return nil, fmt.Errorf("decoding prebuilt transaction: %w", err)
	}

	delegatePub := delegate.PublicKey()
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(delegatePub) {
			return &delegate
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("signing prebuilt transaction: %w", err)
	}

	serialized, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshaling signed prebuilt transaction: %w", err)
	}
	if len(serialized) > MaxTransactionSize {
		return nil, fmt.Errorf("too_large: prebuilt transaction is %d bytes, ceiling is %d", len(serialized), MaxTransactionSize)
	}
	return tx, nil
}
