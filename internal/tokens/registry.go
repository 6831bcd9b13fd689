// Package tokens implements the token registry (C3): symbol/address
// resolution and on-chain decimals lookup with a logged fallback.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
)

// fallbackDecimals is the legacy-compatible fallback used when a mint's
// decimals can't be read (RPC failure or unparseable account data). Kept
// at 6 per the spec's explicit "follow the shipped behavior" decision
// rather than refusing outright.
const fallbackDecimals = 6

// wrappedSOLDecimals is hard-known rather than fetched: the native mint's
// decimals never change and querying it is pure overhead.
const wrappedSOLDecimals = 9

var wrappedSOLMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

// wellKnownMints seeds the static symbol table with common mainnet mints.
// Unlike the teacher's makeSymbolMapping (built dynamically per-pool from
// on-chain metadata), there is no single pool to enumerate tokens from
// here, so the table is fixed.
var wellKnownMints = map[string]solana.PublicKey{
	"SOL":  wrappedSOLMint,
	"USDC": solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
	"USDT": solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"),
	"MSOL": solana.MustPublicKeyFromBase58("mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So"),
	"BONK": solana.MustPublicKeyFromBase58("DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"),
}

// TokenInfo mirrors spec.md §3: mint, decimals in [0,18], optional symbol.
type TokenInfo struct {
	Mint    solana.PublicKey
	Decimals uint8
	Symbol  string
}

// Registry resolves symbols/addresses to TokenInfo and caches decimals for
// the life of the process, per §3 ("invalidated never — decimals are
// immutable on-chain").
type Registry struct {
	client *rpc.Client
	log    *logrus.Entry

	cache map[solana.PublicKey]TokenInfo
}

// New constructs a Registry bound to a chain RPC client.
func New(client *rpc.Client, log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		client: client,
		log:    log.WithField("component", "tokens.registry"),
		cache:  make(map[solana.PublicKey]TokenInfo),
	}
}

// Resolve implements §4.3's resolve operation: a 32-byte base58 pubkey is
// used directly, otherwise the input is looked up (case-insensitively) in
// the static symbol table. Decimals are always fetched per-mint except for
// SOL's wrapped-native mint, which is known statically — the legacy
// "hard-code 6 for everything" bug is explicitly not reproduced.
func (r *Registry) Resolve(ctx context.Context, symbolOrAddress string) (TokenInfo, error) {
	mint, symbol, err := classify(symbolOrAddress)
	if err != nil {
		return TokenInfo{}, err
	}

	if cached, ok := r.cache[mint]; ok {
		return cached, nil
	}

	decimals := r.decimalsFor(ctx, mint)
	info := TokenInfo{Mint: mint, Decimals: decimals, Symbol: symbol}
	r.cache[mint] = info
	return info, nil
}

// classify decides whether the input is already a base58 pubkey or needs a
// static-table symbol lookup.
func classify(symbolOrAddress string) (solana.PublicKey, string, error) {
	trimmed := strings.TrimSpace(symbolOrAddress)
	if looksLikeBase58Pubkey(trimmed) {
		mint, err := solana.PublicKeyFromBase58(trimmed)
		if err != nil {
			return solana.PublicKey{}, "", fmt.Errorf("address %q is not a valid base58 pubkey: %w", trimmed, err)
		}
		return mint, "", nil
	}
	symbol := strings.ToUpper(trimmed)
	mint, ok := wellKnownMints[symbol]
	if !ok {
		return solana.PublicKey{}, "", fmt.Errorf("unknown token symbol %q", symbolOrAddress)
	}
	return mint, symbol, nil
}

// looksLikeBase58Pubkey reports whether s decodes as exactly 32 bytes of
// base58, the same sanity gate the teacher applies before trusting a
// user-provided address (indirectly, via solana-go's own base58 use).
func looksLikeBase58Pubkey(s string) bool {
	decoded, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(decoded) == 32
}

// decimalsFor fetches a mint's decimals from chain, with the §4.3 fallback
// behavior on any failure.
func (r *Registry) decimalsFor(ctx context.Context, mint solana.PublicKey) uint8 {
	if mint.Equals(wrappedSOLMint) {
		return wrappedSOLDecimals
	}

	decimals, err := r.fetchMintDecimals(ctx, mint)
	if err != nil {
		r.log.WithError(err).WithField("mint", mint.String()).
			Warnf("degraded mode: falling back to decimals=%d", fallbackDecimals)
		return fallbackDecimals
	}
	return decimals
}

// fetchMintDecimals reads the `decimals` byte directly out of the SPL-Token
// mint account layout (offset 44, per the standard Mint struct:
// mintAuthorityOption(4) + mintAuthority(32) + supply(8) + decimals(1)),
// the same GetAccountInfoWithOpts + owner-aware read the teacher's
// tokenMetadata helper uses, simplified to the one field C3 actually needs.
func (r *Registry) fetchMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	const decimalsOffset = 44

	res, err := r.client.GetAccountInfoWithOpts(ctx, mint, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return 0, fmt.Errorf("rpc getAccountInfo for mint %s: %w", mint, err)
	}
	if res == nil || res.Value == nil {
		return 0, errors.New("mint account data empty")
	}
	data := res.Value.Data.GetBinary()
	if len(data) <= decimalsOffset {
		return 0, fmt.Errorf("mint account data too short (%d bytes) to contain decimals", len(data))
	}
	return data[decimalsOffset], nil
}
