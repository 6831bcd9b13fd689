package txassemble

import (
	"testing"

	solana "github.com/gagliardetto/solana-go"
)

func TestParseLookupTableDataSkipsHeader(t *testing.T) {
	addr1 := solana.NewWallet().PublicKey()
	addr2 := solana.NewWallet().PublicKey()

	data := make([]byte, altHeaderSize)
	data = append(data, addr1[:]...)
	data = append(data, addr2[:]...)

	got := ParseLookupTableData(data)
	if len(got) != 2 {
		t.Fatalf("got %d addresses, want 2", len(got))
	}
	if !got[0].Equals(addr1) || !got[1].Equals(addr2) {
		t.Fatalf("addresses mismatch: got %v", got)
	}
}

func TestParseLookupTableDataTruncatesPartialChunk(t *testing.T) {
	addr1 := solana.NewWallet().PublicKey()

	data := make([]byte, altHeaderSize)
	data = append(data, addr1[:]...)
	data = append(data, []byte{1, 2, 3}...) // trailing partial chunk, dropped

	got := ParseLookupTableData(data)
	if len(got) != 1 {
		t.Fatalf("got %d addresses, want 1 (partial chunk truncated)", len(got))
	}
	if !got[0].Equals(addr1) {
		t.Fatalf("address mismatch: got %v, want %v", got[0], addr1)
	}
}

func TestParseLookupTableDataShorterThanHeaderIsEmpty(t *testing.T) {
	data := make([]byte, altHeaderSize-1)
	got := ParseLookupTableData(data)
	if got != nil {
		t.Fatalf("expected nil/empty address list, got %v", got)
	}
}

func TestParseLookupTableDataExactlyHeaderSizeIsEmpty(t *testing.T) {
	data := make([]byte, altHeaderSize)
	got := ParseLookupTableData(data)
	if len(got) != 0 {
		t.Fatalf("expected no addresses for header-only data, got %d", len(got))
	}
}
