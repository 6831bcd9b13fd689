// Package swap is the streaming swap-quote aggregation and
// transaction-assembly core: given an input token, an output token, and a
// human-units amount, it streams ranked quotes from the remote service,
// lets the caller pick a display strategy to surface the winner, assembles
// a size-legal versioned transaction for it, and submits it to chain.
//
// cmd/swap is the only caller in this repository; Run is exported so the
// core can also be driven from an agent runtime or a test harness without
// going through a process boundary.
package swap

import (
	"context"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"ridgeline/titan-swap/internal/delegation"
	"ridgeline/titan-swap/internal/quotes"
	"ridgeline/titan-swap/internal/submit"
	"ridgeline/titan-swap/internal/tokens"
	"ridgeline/titan-swap/internal/txassemble"
	"ridgeline/titan-swap/internal/wire"
)

// Display is the live quote UI's contract (§4.5): consume Updates (and the
// manager's own cancellation) until the user confirms or cancels. Run uses
// whichever implementation Params.Display carries; cmd/swap picks
// internal/display's TUI or plain implementation based on whether stdout
// is a terminal (or --no-tui is set).
type Display interface {
	// Watch drives the display loop until the user confirms a winner
	// (returning it) or cancels (returning a user_cancelled *Error).
	Watch(ctx context.Context, updates <-chan quotes.Update, streamErrs <-chan error) (*quotes.WinningQuote, error)
}

// TokenAware is an optional Display capability: Run configures the
// resolved symbols and decimals onto the display before watching, since
// amount formatting (§4.5) needs C3's per-mint decimals and those aren't
// known until after token resolution runs.
type TokenAware interface {
	SetTokenInfo(inputSymbol, outputSymbol string, inputDecimals, outputDecimals uint8)
}

// Params bundles everything one swap invocation needs, per §6's
// "swap(input, output, amount)" user-visible surface plus what the
// surrounding CLI must also supply (config, delegation, display).
type Params struct {
	Config     EnvConfig
	Delegation delegation.Delegation

	InputSymbolOrAddress  string
	OutputSymbolOrAddress string
	AmountHuman           string // decimal, human units, input-side

	FeePayer solana.PublicKey
	Display  Display

	Log *logrus.Entry
}

// Result is the §6 "ok{signature}" success case, enriched with the status
// and explorer link the submitter produced.
type Result struct {
	Signature   solana.Signature
	Status      submit.Status
	ExplorerURL string
}

// Run executes one swap end to end: resolve tokens, open the wire session,
// stream and display quotes, assemble and submit the winner's transaction.
// Failures in validation, token resolution, dialing, opening the stream,
// serialization and submission are returned as a *Error carrying one of
// §7's named kinds. Errors from Display.Watch and from the assembler are
// returned unchanged: those are a *Error only for user cancellation and an
// empty stream; stream, terminal and assembly failures are plain errors
// whose message starts with the kind name.
func Run(ctx context.Context, p Params) (Result, error) {
	log := p.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	cfg := p.Config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if p.Display == nil {
		return Result{}, NewError(KindConfigMissing, "no display implementation supplied", nil)
	}

	rpcClient := rpc.New(cfg.ChainRPCURL)
	registry := tokens.New(rpcClient, log)

	rpcCtx, cancelRPC := context.WithTimeout(ctx, cfg.RPCDeadline)
	inputInfo, err := registry.Resolve(rpcCtx, p.InputSymbolOrAddress)
	if err != nil {
		cancelRPC()
		return Result{}, NewError(KindConfigMissing, fmt.Sprintf("resolving input token %q", p.InputSymbolOrAddress), err)
	}
	outputInfo, err := registry.Resolve(rpcCtx, p.OutputSymbolOrAddress)
	cancelRPC()
	if err != nil {
		return Result{}, NewError(KindConfigMissing, fmt.Sprintf("resolving output token %q", p.OutputSymbolOrAddress), err)
	}

	inputBaseUnits, err := ToBaseUnits(p.AmountHuman, inputInfo.Decimals)
	if err != nil {
		return Result{}, NewError(KindConfigMissing, fmt.Sprintf("amount %q is not exact at %d decimals", p.AmountHuman, inputInfo.Decimals), err)
	}
	if !inputBaseUnits.IsUint64() {
		return Result{}, NewError(KindConfigMissing, "amount exceeds representable range", nil)
	}

	if aware, ok := p.Display.(TokenAware); ok {
		aware.SetTokenInfo(inputInfo.Symbol, outputInfo.Symbol, inputInfo.Decimals, outputInfo.Decimals)
	}

	session, err := wire.Dial(ctx, cfg.WireEndpoint, cfg.WireAuth, log)
	if err != nil {
		return Result{}, NewError(KindAuthRejected, "connecting to quote stream", err)
	}
	defer session.Close()

	manager := quotes.NewManager(session, cfg.FirstQuoteDeadline, log)

	streamCtx, cancelStream := context.WithCancel(ctx)
	defer cancelStream()

	updates, streamErrs, err := manager.StreamQuotes(streamCtx, quotes.Request{
		InputMint:         inputInfo.Mint,
		OutputMint:        outputInfo.Mint,
		InputAmount:       inputBaseUnits.Uint64(),
		UserPubkey:        p.FeePayer,
		SlippageBps:       defaultSlippageBps,
		MaxQuotesPerBatch: defaultMaxQuotes,
		UpdateIntervalMs:  defaultUpdateIntervalMs,
	})
	if err != nil {
		return Result{}, NewError(KindTransportBroken, "opening quote stream", err)
	}

	winning, err := p.Display.Watch(streamCtx, updates, streamErrs)
	cancelStream()
	if err != nil {
		return Result{}, err
	}
	if winning == nil {
		return Result{}, NewError(KindUserCancelled, "swap cancelled before a quote was confirmed", nil)
	}

	assembler := txassemble.New(rpcClient, log)
	assembleCtx, cancelAssemble := context.WithTimeout(ctx, cfg.RPCDeadline)
	defer cancelAssemble()

	assembled, err := assembler.Assemble(assembleCtx, txassemble.Request{
		Quote:            winning.Quote,
		Delegation:       p.Delegation,
		IsNativeSOLInput: inputInfo.Mint == wrappedSOLPubkey(),
		InputAmount:      inputBaseUnits,
		FeePayer:         p.FeePayer,
	})
	if err != nil {
		return Result{}, err
	}

	serialized, err := assembled.Serialize()
	if err != nil {
		return Result{}, NewError(KindTooLarge, "serializing assembled transaction", err)
	}

	submitter := submit.New(rpcClient, cfg.ConfirmPollEvery, cfg.ConfirmTimeout, log)
	outcome, err := submitter.Submit(ctx, serialized)
	if err != nil {
		return Result{Signature: outcome.Signature, Status: outcome.Status, ExplorerURL: outcome.ExplorerURL}, err
	}

	return Result{
		Signature:   outcome.Signature,
		Status:      outcome.Status,
		ExplorerURL: outcome.ExplorerURL,
	}, nil
}

const (
	defaultSlippageBps      = 50
	defaultMaxQuotes        = 8
	defaultUpdateIntervalMs = 500
)

func wrappedSOLPubkey() solana.PublicKey {
	return solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
}
