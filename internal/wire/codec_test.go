package wire

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	payload := []byte("hello quote stream")
	frame, err := EncodeFrame(payload)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	got, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, payload)
	}
}

func TestDecodeFrameGzip(t *testing.T) {
	inner := []byte("gzip-compressed payload")
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(inner); err != nil {
		t.Fatalf("writing gzip payload: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("closing gzip writer: %v", err)
	}

	raw, err := msgpack.Marshal(Frame{ContentEncoding: EncodingGzip, Payload: buf.Bytes()})
	if err != nil {
		t.Fatalf("marshaling frame: %v", err)
	}
	got, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if !bytes.Equal(got, inner) {
		t.Fatalf("gzip round trip mismatch: got %q, want %q", got, inner)
	}
}

func TestEncodeClientMessageBareTagForGetInfo(t *testing.T) {
	body, err := EncodeClientMessage(GetInfo{})
	if err != nil {
		t.Fatalf("EncodeClientMessage: %v", err)
	}
	msg, err := DecodeClientMessage(body)
	if err != nil {
		t.Fatalf("DecodeClientMessage: %v", err)
	}
	if _, ok := msg.(GetInfo); !ok {
		t.Fatalf("expected GetInfo, got %T", msg)
	}
}

func TestEncodeDecodeClientMessageNewSwapQuoteStream(t *testing.T) {
	req := NewSwapQuoteStream{
		CorrelationID: uuid.New(),
		InputMint:     [32]byte{1, 2, 3},
		OutputMint:    [32]byte{4, 5, 6},
		Amount:        1_000_000,
		SlippageBps:   50,
		MaxQuotes:     8,
		IntervalMs:    500,
	}
	body, err := EncodeClientMessage(req)
	if err != nil {
		t.Fatalf("EncodeClientMessage: %v", err)
	}
	decoded, err := DecodeClientMessage(body)
	if err != nil {
		t.Fatalf("DecodeClientMessage: %v", err)
	}
	got, ok := decoded.(NewSwapQuoteStream)
	if !ok {
		t.Fatalf("expected NewSwapQuoteStream, got %T", decoded)
	}
	if got.CorrelationID != req.CorrelationID || got.Amount != req.Amount || got.SlippageBps != req.SlippageBps {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, req)
	}
}

func TestDecodeServerMessageResponse(t *testing.T) {
	id := uuid.New()
	msg := Response{CorrelationID: id, Payload: []byte("payload")}
	body, err := EncodeServerMessage(msg)
	if err != nil {
		t.Fatalf("EncodeServerMessage: %v", err)
	}
	decoded, err := DecodeServerMessage(body)
	if err != nil {
		t.Fatalf("DecodeServerMessage: %v", err)
	}
	got, ok := decoded.(Response)
	if !ok {
		t.Fatalf("expected Response, got %T", decoded)
	}
	if got.CorrelationID != msg.CorrelationID || !bytes.Equal(got.Payload, msg.Payload) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, msg)
	}
}

func TestDecodeServerMessageErrorAndStreamEnd(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name string
		msg  ServerMessage
	}{
		{"Error", ServerError{CorrelationID: id, Code: "no_quotes", Message: "no usable quote"}},
		{"StreamEnd", StreamEnd{CorrelationID: id, Reason: "done"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := EncodeServerMessage(tt.msg)
			if err != nil {
				t.Fatalf("EncodeServerMessage: %v", err)
			}
			decoded, err := DecodeServerMessage(body)
			if err != nil {
				t.Fatalf("DecodeServerMessage: %v", err)
			}
			if decoded != tt.msg {
				t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, tt.msg)
			}
		})
	}
}

func TestQuoteWithPrebuiltPayloadRoundTrips(t *testing.T) {
	q := Quote{
		ProviderID:     "jupiter",
		RouteDesc:      []string{"USDC", "SOL"},
		InAmount:       1_000_000,
		OutAmount:      5_000_000,
		PriceImpactBps: 10,
		PlatformFeeBps: 5,
		ComputeUnits:   200_000,
		Payload:        Prebuilt{TransactionBytes: []byte{1, 2, 3, 4}},
	}
	batch := QuoteBatch{Quotes: []Quote{q}}
	body, err := EncodeServerMessage(StreamData{CorrelationID: uuid.New(), Payload: batch})
	if err != nil {
		t.Fatalf("EncodeServerMessage: %v", err)
	}
	decoded, err := DecodeServerMessage(body)
	if err != nil {
		t.Fatalf("DecodeServerMessage: %v", err)
	}
	sd, ok := decoded.(StreamData)
	if !ok {
		t.Fatalf("expected StreamData, got %T", decoded)
	}
	if len(sd.Payload.Quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(sd.Payload.Quotes))
	}
	got := sd.Payload.Quotes[0]
	prebuilt, ok := got.Payload.(Prebuilt)
	if !ok {
		t.Fatalf("expected Prebuilt payload, got %T", got.Payload)
	}
	if !bytes.Equal(prebuilt.TransactionBytes, []byte{1, 2, 3, 4}) {
		t.Fatalf("prebuilt bytes mismatch: got %v", prebuilt.TransactionBytes)
	}
	if got.ProviderID != q.ProviderID || got.OutAmount != q.OutAmount {
		t.Fatalf("quote fields mismatch: got %+v", got)
	}
}

func TestQuoteWithInstructionsPayloadRoundTrips(t *testing.T) {
	q := Quote{
		ProviderID: "raydium",
		OutAmount:  42,
		Payload: Instructions{
			Instructions: []ProviderInstruction{{
				ProgramID: [32]byte{9},
				Accounts:  []AccountMeta{{Pubkey: [32]byte{1}, IsSigner: true, IsWritable: true}},
				Data:      []byte{0xAA},
			}},
			LookupTables: [][32]byte{{7}},
		},
	}
	body, err := EncodeServerMessage(StreamData{CorrelationID: uuid.New(), Payload: QuoteBatch{Quotes: []Quote{q}}})
	if err != nil {
		t.Fatalf("EncodeServerMessage: %v", err)
	}
	decoded, err := DecodeServerMessage(body)
	if err != nil {
		t.Fatalf("DecodeServerMessage: %v", err)
	}
	sd := decoded.(StreamData)
	ix, ok := sd.Payload.Quotes[0].Payload.(Instructions)
	if !ok {
		t.Fatalf("expected Instructions payload, got %T", sd.Payload.Quotes[0].Payload)
	}
	if len(ix.Instructions) != 1 || len(ix.LookupTables) != 1 {
		t.Fatalf("instructions payload mismatch: %+v", ix)
	}
}

func TestQuoteWithNilPayloadRoundTrips(t *testing.T) {
	q := Quote{ProviderID: "noop", OutAmount: 0}
	body, err := EncodeServerMessage(StreamData{CorrelationID: uuid.New(), Payload: QuoteBatch{Quotes: []Quote{q}}})
	if err != nil {
		t.Fatalf("EncodeServerMessage: %v", err)
	}
	decoded, err := DecodeServerMessage(body)
	if err != nil {
		t.Fatalf("DecodeServerMessage: %v", err)
	}
	sd := decoded.(StreamData)
	if sd.Payload.Quotes[0].Payload != nil {
		t.Fatalf("expected nil payload, got %T", sd.Payload.Quotes[0].Payload)
	}
}

func TestSplitTaggedRejectsMultiKeyMap(t *testing.T) {
	raw, err := msgpack.Marshal(map[string]any{"A": 1, "B": 2})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, _, err := splitTagged(raw); err == nil {
		t.Fatal("expected error for multi-key tagged object, got nil")
	}
}
