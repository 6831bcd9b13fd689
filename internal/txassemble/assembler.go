// Package txassemble implements the transaction assembler (C6): turns a
// winning quote into a signed, size-legal versioned transaction, via
// either the prebuilt-transaction path or the raw-instructions path, with
// address lookup tables compressing the account key list as needed.
package txassemble

import (
	"context"
	"fmt"
	"math/big"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"ridgeline/titan-swap/internal/delegation"
	"ridgeline/titan-swap/internal/wire"
)

// Assembled is the result of a successful assembly: either a Path A
// *solana.Transaction or a Path B *VersionedTransaction, never both.
// Callers only need the final serialized bytes and signature, which both
// paths expose uniformly through Serialize/Signature.
type Assembled struct {
	legacyStyle *solana.Transaction  // Path A
	versioned   *VersionedTransaction // Path B
}

// Serialize returns the wire bytes regardless of which path produced them.
func (a Assembled) Serialize() ([]byte, error) {
	if a.legacyStyle != nil {
		return a.legacyStyle.MarshalBinary()
	}
	return a.versioned.Serialize()
}

// Signature returns the delegate's signature, the one the submitter
// tracks for confirmation polling.
func (a Assembled) Signature() solana.Signature {
	if a.legacyStyle != nil && len(a.legacyStyle.Signatures) > 0 {
		return a.legacyStyle.Signatures[0]
	}
	if a.versioned != nil && len(a.versioned.Signatures) > 0 {
		return a.versioned.Signatures[0]
	}
	return solana.Signature{}
}

// Assembler binds a chain RPC client to the act of turning one winning
// quote into a signed transaction.
type Assembler struct {
	client *rpc.Client
	log    *logrus.Entry
}

// New constructs an Assembler.
func New(client *rpc.Client, log *logrus.Entry) *Assembler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Assembler{client: client, log: log.WithField("component", "txassemble")}
}

// Request bundles everything Assemble needs beyond the client it already
// holds: the winning quote, the delegation to check and sign with, and the
// input-side notional the delegation's cap checks against (§4.6
// preconditions #3).
type Request struct {
	Quote            wire.Quote
	Delegation       delegation.Delegation
	IsNativeSOLInput bool
	InputAmount      *big.Int
	FeePayer         solana.PublicKey
}

// Assemble runs §4.6 top to bottom: preconditions first (any failure
// refuses to sign with a specific delegation_invalid reason and never
// touches the signer), then dispatches to Path A or Path B based on the
// quote's payload variant.
func (a *Assembler) Assemble(ctx context.Context, req Request) (Assembled, error) {
	now := time.Now()
	if err := req.Delegation.Validate(now, req.IsNativeSOLInput, req.InputAmount); err != nil {
		return Assembled{}, fmt.Errorf("delegation_invalid: %w", err)
	}

	switch payload := req.Quote.Payload.(type) {
	case wire.Prebuilt:
		return a.assemblePrebuilt(payload, req.Delegation)
	case wire.Instructions:
		return a.assembleInstructions(ctx, payload, req)
	default:
		return Assembled{}, fmt.Errorf("quote payload has unknown variant %T", payload)
	}
}

func (a *Assembler) assemblePrebuilt(payload wire.Prebuilt, del delegation.Delegation) (Assembled, error) {
	tx, err := SignPrebuilt(payload.TransactionBytes, del.DelegateKeypair)
	if err != nil {
		return Assembled{}, err
	}
	if !del.SignerMatches(tx.Message.AccountKeys) {
		return Assembled{}, fmt.Errorf("delegation_invalid: delegate key is not a signer of the prebuilt message")
	}
	return Assembled{legacyStyle: tx}, nil
}

func (a *Assembler) assembleInstructions(ctx context.Context, payload wire.Instructions, req Request) (Assembled, error) {
	native, err := ToNativeInstructions(payload.Instructions)
	if err != nil {
		return Assembled{}, fmt.Errorf("converting provider instructions: %w", err)
	}

	lookupTables := make([]solana.PublicKey, 0, len(payload.LookupTables))
	for _, raw := range payload.LookupTables {
		var pk solana.PublicKey
		copy(pk[:], raw[:])
		lookupTables = append(lookupTables, pk)
	}

	message, err := BuildVersionedMessage(ctx, a.client, req.FeePayer, native, lookupTables)
	if err != nil {
		return Assembled{}, fmt.Errorf("building versioned message: %w", err)
	}

	if !req.Delegation.SignerMatches(message.StaticAccountKeys[:message.NumRequiredSignatures]) {
		return Assembled{}, fmt.Errorf("delegation_invalid: delegate key is not a required signer of the assembled message")
	}

	tx := VersionedTransaction{
		Signatures: make([]solana.Signature, message.NumRequiredSignatures),
		Message:    message,
	}

	feePayerIndex := indexOf(message.StaticAccountKeys, req.FeePayer)
	if feePayerIndex != 0 {
		return Assembled{}, fmt.Errorf("delegation_invalid: fee payer must occupy signer index 0, got %d", feePayerIndex)
	}

	sig, err := req.Delegation.DelegateKeypair.Sign(message.SigningMessageBytes())
	if err != nil {
		return Assembled{}, fmt.Errorf("signing assembled message: %w", err)
	}
	tx.Signatures[feePayerIndex] = sig

	if _, err := tx.Serialize(); err != nil {
		lookupKeys := 0
		for _, lut := range message.AddressTableLookups {
			lookupKeys += len(lut.WritableIndexes) + len(lut.ReadonlyIndexes)
		}
		return Assembled{}, fmt.Errorf("%w (static_keys=%d, alt_compressed_keys=%d, instructions=%d)",
			err, len(message.StaticAccountKeys), lookupKeys, len(message.Instructions))
	}

	return Assembled{versioned: &tx}, nil
}

func indexOf(keys []solana.PublicKey, target solana.PublicKey) int {
	for i, k := range keys {
		if k.Equals(target) {
			return i
		}
	}
	return -1
}
