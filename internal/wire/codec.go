package wire

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// EncodeFrame packs an already-msgpack-encoded payload into the outer
// frame. Per §4.1, encoding always chooses identity — the core never
// compresses what it sends, only decompresses what it receives.
func EncodeFrame(payload []byte) ([]byte, error) {
	return msgpack.Marshal(Frame{ContentEncoding: EncodingIdentity, Payload: payload})
}

// DecodeFrame unwraps the outer frame and returns the decompressed inner
// payload. All four content encodings must be accepted on receive.
func DecodeFrame(raw []byte) ([]byte, error) {
	var f Frame
	if err := msgpack.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decoding outer frame: %w", err)
	}
	switch f.ContentEncoding {
	case EncodingIdentity, "":
		return f.Payload, nil
	case EncodingGzip:
		r, err := gzip.NewReader(bytes.NewReader(f.Payload))
		if err != nil {
			return nil, fmt.Errorf("opening gzip payload: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case EncodingBrotli:
		return io.ReadAll(brotli.NewReader(bytes.NewReader(f.Payload)))
	case EncodingZstd:
		dec, err := zstd.NewReader(bytes.NewReader(f.Payload))
		if err != nil {
			return nil, fmt.Errorf("opening zstd payload: %w", err)
		}
		defer dec.Close()
		return io.ReadAll(dec)
	default:
		return nil, fmt.Errorf("unknown content encoding %q", f.ContentEncoding)
	}
}

// tagOf returns the wire tag for each known message type. Kept as a single
// switch rather than a method on each type so the tag vocabulary is visible
// in one place.
func tagOf(msg any) (string, bool) {
	switch msg.(type) {
	case GetInfo:
		return "GetInfo", true
	case NewSwapQuoteStream:
		return "NewSwapQuoteStream", true
	case StopStream:
		return "StopStream", true
	case Response:
		return "Response", true
	case ServerError:
		return "Error", true
	case StreamData:
		return "StreamData", true
	case StreamEnd:
		return "StreamEnd", true
	}
	return "", false
}

// hasData reports whether the tagged variant carries associated fields. A
// variant with no fields (GetInfo) is encoded as a bare string tag; every
// other variant is object-wrapped as {tag: value}, per §4.1.
func hasData(tag string) bool {
	return tag != "GetInfo"
}

// EncodeClientMessage encodes a tagged client message to its inner
// (pre-frame) msgpack bytes.
func EncodeClientMessage(msg ClientMessage) ([]byte, error) {
	tag, ok := tagOf(msg)
	if !ok {
		return nil, fmt.Errorf("unknown client message type %T", msg)
	}
	return encodeTagged(tag, msg)
}

// EncodeServerMessage mirrors EncodeClientMessage for the server side; it
// exists mainly so test doubles (a mock server) can produce legal frames.
func EncodeServerMessage(msg ServerMessage) ([]byte, error) {
	tag, ok := tagOf(msg)
	if !ok {
		return nil, fmt.Errorf("unknown server message type %T", msg)
	}
	return encodeTagged(tag, msg)
}

func encodeTagged(tag string, msg any) ([]byte, error) {
	if !hasData(tag) {
		return msgpack.Marshal(tag)
	}
	return msgpack.Marshal(map[string]any{tag: msg})
}

// DecodeServerMessage decodes frame-unwrapped bytes into the concrete
// ServerMessage variant. Decoding failure here is, per §4.1, a fatal
// session error — the caller is expected to tear down the session.
func DecodeServerMessage(raw []byte) (ServerMessage, error) {
	tag, body, err := splitTagged(raw)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "Response":
		var m Response
		if err := msgpack.Unmarshal(body, &m); err != nil {
			return nil, fmt.Errorf("decoding Response: %w", err)
		}
		return m, nil
	case "Error":
		var m ServerError
		if err := msgpack.Unmarshal(body, &m); err != nil {
			return nil, fmt.Errorf("decoding Error: %w", err)
		}
		return m, nil
	case "StreamData":
		var m StreamData
		if err := msgpack.Unmarshal(body, &m); err != nil {
			return nil, fmt.Errorf("decoding StreamData: %w", err)
		}
		return m, nil
	case "StreamEnd":
		var m StreamEnd
		if err := msgpack.Unmarshal(body, &m); err != nil {
			return nil, fmt.Errorf("decoding StreamEnd: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown or unsupported server message tag %q", tag)
	}
}

// DecodeClientMessage is the server-side mirror, used by tests that
// simulate a remote server reading what the session wrote.
func DecodeClientMessage(raw []byte) (ClientMessage, error) {
	tag, body, err := splitTagged(raw)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "GetInfo":
		return GetInfo{}, nil
	case "NewSwapQuoteStream":
		var m NewSwapQuoteStream
		if err := msgpack.Unmarshal(body, &m); err != nil {
			return nil, fmt.Errorf("decoding NewSwapQuoteStream: %w", err)
		}
		return m, nil
	case "StopStream":
		var m StopStream
		if err := msgpack.Unmarshal(body, &m); err != nil {
			return nil, fmt.Errorf("decoding StopStream: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown or unsupported client message tag %q", tag)
	}
}

// payloadTagOf and decodePayload mirror tagOf and the message decoders for
// the one-level-down QuotePayload tagged union (§3's Quote.payload).
func payloadTagOf(p QuotePayload) (string, bool) {
	switch p.(type) {
	case Prebuilt:
		return "Prebuilt", true
	case Instructions:
		return "Instructions", true
	}
	return "", false
}

func decodePayload(tag string, body []byte) (QuotePayload, error) {
	switch tag {
	case "Prebuilt":
		var p Prebuilt
		if err := msgpack.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("decoding Prebuilt payload: %w", err)
		}
		return p, nil
	case "Instructions":
		var p Instructions
		if err := msgpack.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("decoding Instructions payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown quote payload tag %q", tag)
	}
}

// EncodeMsgpack implements msgpack.CustomEncoder so Quote's interface-typed
// Payload field round-trips through the same tag-wrapped-object convention
// used for ClientMessage/ServerMessage, one level down.
func (q Quote) EncodeMsgpack(enc *msgpack.Encoder) error {
	var payloadRaw msgpack.RawMessage
	if q.Payload != nil {
		tag, ok := payloadTagOf(q.Payload)
		if !ok {
			return fmt.Errorf("unknown quote payload variant %T", q.Payload)
		}
		encoded, err := msgpack.Marshal(map[string]any{tag: q.Payload})
		if err != nil {
			return fmt.Errorf("encoding quote payload: %w", err)
		}
		payloadRaw = encoded
	}
	return enc.Encode(quoteWire{
		ProviderID:     q.ProviderID,
		RouteDesc:      q.RouteDesc,
		InAmount:       q.InAmount,
		OutAmount:      q.OutAmount,
		PriceImpactBps: q.PriceImpactBps,
		PlatformFeeBps: q.PlatformFeeBps,
		ComputeUnits:   q.ComputeUnits,
		Payload:        payloadRaw,
	})
}

// DecodeMsgpack implements msgpack.CustomDecoder, the mirror of EncodeMsgpack.
func (q *Quote) DecodeMsgpack(dec *msgpack.Decoder) error {
	var w quoteWire
	if err := dec.Decode(&w); err != nil {
		return err
	}
	q.ProviderID = w.ProviderID
	q.RouteDesc = w.RouteDesc
	q.InAmount = w.InAmount
	q.OutAmount = w.OutAmount
	q.PriceImpactBps = w.PriceImpactBps
	q.PlatformFeeBps = w.PlatformFeeBps
	q.ComputeUnits = w.ComputeUnits

	if len(w.Payload) == 0 {
		q.Payload = nil
		return nil
	}
	tag, body, err := splitTagged(w.Payload)
	if err != nil {
		return fmt.Errorf("decoding quote payload: %w", err)
	}
	payload, err := decodePayload(tag, body)
	if err != nil {
		return err
	}
	q.Payload = payload
	return nil
}

// splitTagged decodes the outer shape (bare string, or single-key map) and
// returns the tag plus the tag's associated msgpack-encoded value (nil body
// for a bare string tag).
func splitTagged(raw []byte) (string, []byte, error) {
	var asString string
	if err := msgpack.Unmarshal(raw, &asString); err == nil {
		return asString, nil, nil
	}

	var asMap map[string]msgpack.RawMessage
	if err := msgpack.Unmarshal(raw, &asMap); err != nil {
		return "", nil, fmt.Errorf("message is neither a bare tag nor a tag-wrapped object: %w", err)
	}
	if len(asMap) != 1 {
		return "", nil, fmt.Errorf("tag-wrapped object must have exactly one key, got %d", len(asMap))
	}
	for tag, body := range asMap {
		return tag, body, nil
	}
	return "", nil, fmt.Errorf("unreachable")
}
