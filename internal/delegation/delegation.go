// Package delegation holds the delegation authorization type and the
// precondition checks the transaction assembler (C6) runs before it will
// sign anything.
package delegation

import (
	"math/big"
	"time"

	solana "github.com/gagliardetto/solana-go"
)

// requiredProgram is the program name the delegation must allow for this
// core to use it at all (§3, §4.6 precondition #2).
const requiredProgram = "Titan"

// Delegation mirrors spec.md §3: a time-bounded, program-allowlisted,
// capped authorization to sign on behalf of a user. Created outside the
// core; consumed read-only.
type Delegation struct {
	DelegateKeypair solana.PrivateKey
	AllowedPrograms map[string]struct{}
	MaxSOLPerTx     *big.Int // base units (lamports)
	MaxTokenPerTx   *big.Int // base units, applies to non-SOL input mints
	ExpiresAt       time.Time
}

// Reason enumerates why Validate refused, for the delegation_invalid
// error's "clear reason" requirement (§7).
type Reason string

const (
	ReasonExpired           Reason = "expired"
	ReasonProgramDisallowed Reason = "program_disallowed"
	ReasonOverCap           Reason = "over_cap"
)

// ValidationError names which precondition failed.
type ValidationError struct {
	Reason Reason
}

func (e *ValidationError) Error() string {
	return string(e.Reason)
}

// Validate runs the §4.6 precondition checks against the requested
// input-side notional. isNativeSOL indicates whether the input mint is
// wrapped SOL, selecting which cap applies (§4.6: SOL uses MaxSOLPerTx,
// every other mint uses MaxTokenPerTx — output-side caps are explicitly
// out of scope per the spec's Open Question decision).
func (d Delegation) Validate(now time.Time, isNativeSOL bool, inputAmount *big.Int) error {
	if !now.Before(d.ExpiresAt) {
		return &ValidationError{Reason: ReasonExpired}
	}
	if _, ok := d.AllowedPrograms[requiredProgram]; !ok {
		return &ValidationError{Reason: ReasonProgramDisallowed}
	}

	cap := d.MaxTokenPerTx
	if isNativeSOL {
		cap = d.MaxSOLPerTx
	}
	if cap != nil && inputAmount != nil && inputAmount.Cmp(cap) > 0 {
		return &ValidationError{Reason: ReasonOverCap}
	}
	return nil
}

// SignerMatches reports whether the delegate's public key appears among
// the given signer accounts, the fourth §4.6 precondition.
func (d Delegation) SignerMatches(signers []solana.PublicKey) bool {
	delegatePub := d.DelegateKeypair.PublicKey()
	for _, s := range signers {
		if s.Equals(delegatePub) {
			return true
		}
	}
	return false
}
