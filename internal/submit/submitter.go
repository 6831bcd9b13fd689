// Package submit implements the submitter (C7): send a signed transaction to
// chain RPC with preflight simulation, classify preflight failure, and poll
// confirmation status up to a configured deadline.
package submit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/sirupsen/logrus"

	swap "ridgeline/titan-swap"
)

// Status is one of the terminal (or pending) confirmation states §4.7 names.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusConfirmed Status = "confirmed"
	StatusFinalized Status = "finalized"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// Outcome is the submitter's return value, §4.7's SubmitOutcome.
type Outcome struct {
	Signature   solana.Signature
	Status      Status
	ExplorerURL string
}

// Submitter binds a chain RPC client plus the commitment level confirmation
// polls against.
type Submitter struct {
	client          *rpc.Client
	log             *logrus.Entry
	pollEvery       time.Duration
	confirmTimeout  time.Duration
	commitment      rpc.CommitmentType
	explorerCluster string
}

// New constructs a Submitter. commitment defaults to "confirmed" per §4.7.
func New(client *rpc.Client, pollEvery, confirmTimeout time.Duration, log *logrus.Entry) *Submitter {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Submitter{
		client:         client,
		log:            log.WithField("component", "submit"),
		pollEvery:      pollEvery,
		confirmTimeout: confirmTimeout,
		commitment:     rpc.CommitmentConfirmed,
	}
}

// Submit implements §4.7 top to bottom: preflight send, classify any
// preflight failure, then poll confirmation status on success.
func (s *Submitter) Submit(ctx context.Context, serialized []byte) (Outcome, error) {
	tx := mustDecodeTx(serialized)
	sig, err := s.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return Outcome{}, classifyPreflightError(err)
	}

	s.log.WithField("signature", sig.String()).Info("transaction submitted, polling confirmation")
	status, confirmErr := s.pollConfirmation(ctx, sig, tx.Message.RecentBlockhash)
	outcome := Outcome{
		Signature:   sig,
		Status:      status,
		ExplorerURL: explorerURL(sig),
	}
	if confirmErr != nil {
		return outcome, confirmErr
	}
	return outcome, nil
}

func mustDecodeTx(serialized []byte) *solana.Transaction {
	tx, err := solana.TransactionFromBytes(serialized)
	if err != nil {
		// Callers always pass bytes produced by internal/txassemble, which
		// never emits something solana-go itself can't parse back.
		panic(fmt.Sprintf("submit: serialized transaction failed to decode: %v", err))
	}
	return tx
}

// classifyPreflightError maps an RPC preflight failure to one of §4.7's four
// named classifications. account_not_found has no dedicated top-level §7
// kind — it folds into simulation_failed, the catch-all, with the original
// RPC message preserved so the distinction survives for the caller to read.
func classifyPreflightError(err error) error {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return swap.NewError(swap.KindSimulationFailed, "preflight simulation failed", err)
	}
	msg := strings.ToLower(rpcErr.Message)
	switch {
	case strings.Contains(msg, "insufficient funds") || strings.Contains(msg, "insufficient lamports"):
		return swap.NewError(swap.KindInsufficientFunds, rpcErr.Message, err)
	case strings.Contains(msg, "slippage") || strings.Contains(msg, "exceeds desired slippage"):
		return swap.NewError(swap.KindSlippageExceeded, rpcErr.Message, err)
	case strings.Contains(msg, "could not find account") || rpcErr.Code == -32602:
		return swap.NewError(swap.KindSimulationFailed, "account_not_found: "+rpcErr.Message, err)
	default:
		return swap.NewError(swap.KindSimulationFailed, rpcErr.Message, err)
	}
}

// pollConfirmation polls at s.pollEvery up to s.confirmTimeout, returning the
// terminal status, or a confirmation_timeout error if none is reached.
// recentBlockhash is the submitted transaction's own blockhash, needed to
// tell an expired transaction apart from one still waiting to land.
func (s *Submitter) pollConfirmation(ctx context.Context, sig solana.Signature, recentBlockhash solana.Hash) (Status, error) {
	pollCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	for {
		status, done, err := s.checkOnce(pollCtx, sig, recentBlockhash)
		if err != nil {
			return StatusPending, err
		}
		if done {
			return status, nil
		}

		select {
		case <-pollCtx.Done():
			return StatusPending, swap.NewError(swap.KindConfirmationTimeout,
				fmt.Sprintf("signature %s did not reach %s within %s", sig, s.commitment, s.confirmTimeout), pollCtx.Err())
		case <-ticker.C:
		}
	}
}

// checkOnce asks for the signature's current status. done is true once a
// terminal state (confirmed/finalized/failed/expired) is reached.
func (s *Submitter) checkOnce(ctx context.Context, sig solana.Signature, recentBlockhash solana.Hash) (Status, bool, error) {
	resp, err := s.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		if isAccountMissingErr(err) {
			return StatusPending, false, nil
		}
		return StatusPending, false, nil
	}
	if resp == nil || len(resp.Value) == 0 || resp.Value[0] == nil {
		if expired, err := s.blockhashExpired(ctx, recentBlockhash); err == nil && expired {
			return StatusExpired, true, nil
		}
		return StatusPending, false, nil
	}

	val := resp.Value[0]
	if val.Err != nil {
		return StatusFailed, true, nil
	}

	switch val.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		return StatusFinalized, s.commitmentSatisfiedBy(StatusFinalized), nil
	case rpc.ConfirmationStatusConfirmed:
		return StatusConfirmed, s.commitmentSatisfiedBy(StatusConfirmed), nil
	case rpc.ConfirmationStatusProcessed:
		return StatusProcessed, s.commitmentSatisfiedBy(StatusProcessed), nil
	default:
		return StatusPending, false, nil
	}
}

// commitmentSatisfiedBy reports whether reaching `reached` already meets the
// submitter's configured commitment level.
func (s *Submitter) commitmentSatisfiedBy(reached Status) bool {
	rank := map[Status]int{StatusProcessed: 0, StatusConfirmed: 1, StatusFinalized: 2}
	want := map[rpc.CommitmentType]int{
		rpc.CommitmentProcessed: 0,
		rpc.CommitmentConfirmed: 1,
		rpc.CommitmentFinalized: 2,
	}[s.commitment]
	return rank[reached] >= want
}

// blockhashExpired checks whether the transaction's own recent blockhash has
// aged out of the validator's retention window, the only way a
// never-confirmed signature with no status resolves to a terminal "expired"
// rather than staying pending forever. A not-found signature by itself
// proves nothing about expiry (it's also what a still-in-flight transaction
// looks like before it lands), so this asks the chain about the blockhash
// directly rather than inferring expiry from GetTransaction's absence.
func (s *Submitter) blockhashExpired(ctx context.Context, recentBlockhash solana.Hash) (bool, error) {
	resp, err := s.client.IsBlockhashValid(ctx, recentBlockhash, rpc.CommitmentProcessed)
	if err != nil {
		return false, err
	}
	return !resp.Value, nil
}

func isAccountMissingErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, rpc.ErrNotFound) {
		return true
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		if rpcErr.Code == -32602 || strings.Contains(strings.ToLower(rpcErr.Message), "could not find account") {
			return true
		}
	}
	return false
}

func explorerURL(sig solana.Signature) string {
	return fmt.Sprintf("https://explorer.solana.com/tx/%s", sig.String())
}
