package tokens

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go/rpc"
)

func TestClassifyWellKnownSymbolCaseInsensitive(t *testing.T) {
	mint, symbol, err := classify("usdc")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if symbol != "USDC" {
		t.Fatalf("got symbol %q, want USDC", symbol)
	}
	if mint != wellKnownMints["USDC"] {
		t.Fatalf("got mint %s, want %s", mint, wellKnownMints["USDC"])
	}
}

func TestClassifyUnknownSymbol(t *testing.T) {
	if _, _, err := classify("NOTATOKEN"); err == nil {
		t.Fatal("expected error for unknown symbol, got nil")
	}
}

func TestClassifyBase58Address(t *testing.T) {
	addr := wrappedSOLMint.String()
	mint, symbol, err := classify(addr)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if symbol != "" {
		t.Fatalf("expected empty symbol for raw address, got %q", symbol)
	}
	if mint != wrappedSOLMint {
		t.Fatalf("got mint %s, want %s", mint, wrappedSOLMint)
	}
}

func TestClassifyRejectsMalformedAddress(t *testing.T) {
	if _, _, err := classify("not-a-valid-address-or-symbol!!"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestLooksLikeBase58Pubkey(t *testing.T) {
	if !looksLikeBase58Pubkey(wrappedSOLMint.String()) {
		t.Fatal("expected wrapped SOL mint to look like a pubkey")
	}
	if looksLikeBase58Pubkey("USDC") {
		t.Fatal("expected a plain symbol not to look like a pubkey")
	}
	if looksLikeBase58Pubkey("") {
		t.Fatal("expected empty string not to look like a pubkey")
	}
}

func TestResolveWrappedSOLSkipsRPCLookup(t *testing.T) {
	// wrapped SOL's decimals are hard-known (wrappedSOLDecimals), so Resolve
	// must not need a live RPC client to answer this one.
	r := New(rpc.New("http://127.0.0.1:1"), nil)
	info, err := r.Resolve(context.Background(), "sol")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if info.Decimals != wrappedSOLDecimals {
		t.Fatalf("got decimals %d, want %d", info.Decimals, wrappedSOLDecimals)
	}
	if info.Symbol != "SOL" {
		t.Fatalf("got symbol %q, want SOL", info.Symbol)
	}
	if info.Mint != wrappedSOLMint {
		t.Fatalf("got mint %s, want %s", info.Mint, wrappedSOLMint)
	}
}

func TestResolveCachesByMint(t *testing.T) {
	r := New(rpc.New("http://127.0.0.1:1"), nil)
	first, err := r.Resolve(context.Background(), "SOL")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := r.cache[first.Mint]; !ok {
		t.Fatal("expected resolved mint to populate the cache")
	}
	second, err := r.Resolve(context.Background(), "sol")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if second != first {
		t.Fatalf("expected cached result to match, got %+v vs %+v", second, first)
	}
}

func TestResolveUnknownTokenErrors(t *testing.T) {
	r := New(rpc.New("http://127.0.0.1:1"), nil)
	if _, err := r.Resolve(context.Background(), "NOPE"); err == nil {
		t.Fatal("expected error for unknown token, got nil")
	}
}
