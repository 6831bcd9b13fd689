// Package wire implements the binary MessagePack-framed WebSocket protocol
// spoken to the remote quote-streaming service: frame codec (C1) and the
// authenticated session with request/response + streaming multiplexing (C2).
package wire

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoding tags the outer frame's content-encoding, per §4.1. Decode must
// accept all four; encode always picks Identity.
type Encoding string

const (
	EncodingIdentity Encoding = "identity"
	EncodingGzip     Encoding = "gzip"
	EncodingBrotli   Encoding = "brotli"
	EncodingZstd     Encoding = "zstd"
)

// Frame is the outer MessagePack envelope. Payload is the (possibly
// compressed) encoding of a ClientMessage or ServerMessage.
type Frame struct {
	ContentEncoding Encoding `msgpack:"content_encoding"`
	Payload         []byte   `msgpack:"payload"`
}

// Quote mirrors spec.md §3's Quote, with its payload variant expressed as
// a Go interface (QuotePayload) rather than a wire-level tag on this struct
// directly — the tag lives one level down, on the payload itself. Quote
// implements msgpack.CustomEncoder/CustomDecoder itself so the interface
// field round-trips through the same bare-string/object-wrapped tagging
// convention as the top-level client/server messages.
type Quote struct {
	ProviderID     string
	RouteDesc      []string
	InAmount       uint64
	OutAmount      uint64
	PriceImpactBps uint64
	PlatformFeeBps uint64
	ComputeUnits   uint64
	Payload        QuotePayload
}

// quoteWire is Quote's plain-data shadow, used for the CustomEncoder /
// CustomDecoder implementations below so reflection-based msgpack struct
// tags still do the field-level work; only Payload needs hand-written
// tagging logic.
type quoteWire struct {
	ProviderID     string             `msgpack:"provider_id"`
	RouteDesc      []string           `msgpack:"route_description"`
	InAmount       uint64             `msgpack:"in_amount"`
	OutAmount      uint64             `msgpack:"out_amount"`
	PriceImpactBps uint64             `msgpack:"price_impact_bps"`
	PlatformFeeBps uint64             `msgpack:"platform_fees_bps"`
	ComputeUnits   uint64             `msgpack:"compute_units"`
	Payload        msgpack.RawMessage `msgpack:"payload"`
}

// QuotePayload is the sum type for Quote.payload: either a fully serialized
// Prebuilt transaction or a provider-supplied Instructions list. Expressed
// as an interface + type switch, matching the "tagged-union wire variants"
// redesign note (§9) rather than a struct with both fields populated/unset.
type QuotePayload interface {
	isQuotePayload()
}

// Prebuilt is a complete, server-assembled versioned transaction.
type Prebuilt struct {
	TransactionBytes []byte `msgpack:"transaction_bytes"`
}

func (Prebuilt) isQuotePayload() {}

// AccountMeta mirrors a provider-supplied instruction account reference.
type AccountMeta struct {
	Pubkey     [32]byte
	IsSigner   bool
	IsWritable bool
}

// ProviderInstruction is one instruction as the remote service describes it,
// before it's converted to a txassemble.NativeInstruction in internal/txassemble.
type ProviderInstruction struct {
	ProgramID [32]byte
	Accounts  []AccountMeta
	Data      []byte
}

// Instructions is the Path B payload variant: raw instructions plus the
// ALTs the assembler should use to compress the account key list.
type Instructions struct {
	Instructions []ProviderInstruction
	LookupTables [][32]byte
}

func (Instructions) isQuotePayload() {}

// QuoteBatch is one server-emitted update: the current candidate set, not a
// delta (§3).
type QuoteBatch struct {
	Quotes []Quote `msgpack:"quotes"`
}

// ClientMessage is the sum type for the three client-originated frame
// variants in §6: bare-string tag when there's no associated data
// (GetInfo), object-wrapped tag when there is.
type ClientMessage interface {
	isClientMessage()
}

// GetInfo is a bare probe with no payload.
type GetInfo struct{}

func (GetInfo) isClientMessage() {}

// NewSwapQuoteStream opens a quote stream for the given request parameters.
type NewSwapQuoteStream struct {
	CorrelationID uuid.UUID `msgpack:"correlation_id"`
	InputMint     [32]byte  `msgpack:"input_mint"`
	OutputMint    [32]byte  `msgpack:"output_mint"`
	Amount        uint64    `msgpack:"amount"`
	UserPubkey    [32]byte  `msgpack:"user_pubkey"`
	SlippageBps   uint16    `msgpack:"slippage_bps"`
	MaxQuotes     uint8     `msgpack:"max_quotes"`
	IntervalMs    uint16    `msgpack:"interval_ms"`
}

func (NewSwapQuoteStream) isClientMessage() {}

// StopStream cancels an in-flight stream by correlation id.
type StopStream struct {
	CorrelationID uuid.UUID `msgpack:"correlation_id"`
}

func (StopStream) isClientMessage() {}

// ServerMessage is the sum type for the four server-originated frame
// variants in §6.
type ServerMessage interface {
	isServerMessage()
}

// Response answers a request/response-pattern client message.
type Response struct {
	CorrelationID uuid.UUID `msgpack:"correlation_id"`
	Payload       []byte    `msgpack:"payload"`
}

func (Response) isServerMessage() {}

// ServerError is either an out-of-band session error (CorrelationID is the
// zero UUID) or a response to a specific pending request/stream.
type ServerError struct {
	CorrelationID uuid.UUID `msgpack:"correlation_id"`
	Code          string    `msgpack:"code"`
	Message       string    `msgpack:"message"`
}

func (ServerError) isServerMessage() {}

func (e ServerError) Error() string {
	return fmt.Sprintf("wire error %s: %s", e.Code, e.Message)
}

// StreamData carries one QuoteBatch update for an open stream.
type StreamData struct {
	CorrelationID uuid.UUID  `msgpack:"correlation_id"`
	Payload       QuoteBatch `msgpack:"payload"`
}

func (StreamData) isServerMessage() {}

// StreamEnd terminates a stream normally (as opposed to a ServerError).
type StreamEnd struct {
	CorrelationID uuid.UUID `msgpack:"correlation_id"`
	Reason        string    `msgpack:"reason"`
}

func (StreamEnd) isServerMessage() {}
