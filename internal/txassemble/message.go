package txassemble

import (
	"bytes"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// MaxTransactionSize is the hard wire-size ceiling from spec.md §3/§4.6.
const MaxTransactionSize = 1232

// CompiledInstruction is one instruction after key compression: indices
// into the versioned message's final account-key layout rather than raw
// pubkeys.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndices []uint8
	Data           []byte
}

// AddressTableLookup names one ALT this message draws accounts from, split
// into the writable and read-only index lists the ALT resolves (§4.6 step
// 4-6).
type AddressTableLookup struct {
	AccountKey      solana.PublicKey
	WritableIndexes []uint8
	ReadonlyIndexes []uint8
}

// VersionedMessage is the hand-assembled message body: header, static key
// list, recent blockhash, compiled instructions, and ALT references. This
// mirrors spec.md §3's VersionedTransaction description field-for-field
// rather than delegating to solana-go's own versioned-message compiler,
// per the Path B design note in SPEC_FULL.md.
type VersionedMessage struct {
	NumRequiredSignatures      uint8
	NumReadonlySignedAccounts  uint8
	NumReadonlyUnsignedAccounts uint8

	StaticAccountKeys []solana.PublicKey
	RecentBlockhash   solana.Hash
	Instructions      []CompiledInstruction
	AddressTableLookups []AddressTableLookup
}

// VersionedTransaction is the signed wire object handed to the submitter.
type VersionedTransaction struct {
	Signatures []solana.Signature
	Message    VersionedMessage
}

// Serialize renders the transaction in Solana's versioned wire format:
// signature count + signatures, a 0x80-flagged version byte, the message
// header, compact-array account keys, the blockhash, compact-array
// instructions, and compact-array ALT lookups. Compact (variable-length)
// array lengths use Solana's "compact-u16" varint encoding.
func (tx VersionedTransaction) Serialize() ([]byte, error) {
	var buf bytes.Buffer

	writeCompactArrayLen(&buf, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		buf.Write(sig[:])
	}

	buf.WriteByte(0x80) // version 0 (versioned transaction marker)

	buf.WriteByte(tx.Message.NumRequiredSignatures)
	buf.WriteByte(tx.Message.NumReadonlySignedAccounts)
	buf.WriteByte(tx.Message.NumReadonlyUnsignedAccounts)

	writeCompactArrayLen(&buf, len(tx.Message.StaticAccountKeys))
	for _, k := range tx.Message.StaticAccountKeys {
		buf.Write(k[:])
	}

	buf.Write(tx.Message.RecentBlockhash[:])

	writeCompactArrayLen(&buf, len(tx.Message.Instructions))
	for _, ix := range tx.Message.Instructions {
		buf.WriteByte(ix.ProgramIDIndex)
		writeCompactArrayLen(&buf, len(ix.AccountIndices))
		buf.Write(ix.AccountIndices)
		writeCompactArrayLen(&buf, len(ix.Data))
		buf.Write(ix.Data)
	}

	writeCompactArrayLen(&buf, len(tx.Message.AddressTableLookups))
	for _, lut := range tx.Message.AddressTableLookups {
		buf.Write(lut.AccountKey[:])
		writeCompactArrayLen(&buf, len(lut.WritableIndexes))
		buf.Write(lut.WritableIndexes)
		writeCompactArrayLen(&buf, len(lut.ReadonlyIndexes))
		buf.Write(lut.ReadonlyIndexes)
	}

	if buf.Len() > MaxTransactionSize {
		return buf.Bytes(), fmt.Errorf("too_large: serialized size %d exceeds %d-byte ceiling", buf.Len(), MaxTransactionSize)
	}
	return buf.Bytes(), nil
}

// writeCompactArrayLen encodes n as a Solana compact-u16 varint (7 bits
// per byte, high bit set to continue).
func writeCompactArrayLen(buf *bytes.Buffer, n int) {
	v := uint16(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf.WriteByte(b | 0x80)
			continue
		}
		buf.WriteByte(b)
		return
	}
}

// SigningMessageBytes serializes the message body alone (everything after
// the signature vector), the payload the delegate key actually signs.
func (m VersionedMessage) SigningMessageBytes() []byte {
	var buf bytes.Buffer
	buf.WriteByte(0x80)
	buf.WriteByte(m.NumRequiredSignatures)
	buf.WriteByte(m.NumReadonlySignedAccounts)
	buf.WriteByte(m.NumReadonlyUnsignedAccounts)
	writeCompactArrayLen(&buf, len(m.StaticAccountKeys))
	for _, k := range m.StaticAccountKeys {
		buf.Write(k[:])
	}
	buf.Write(m.RecentBlockhash[:])
	writeCompactArrayLen(&buf, len(m.Instructions))
	for _, ix := range m.Instructions {
		buf.WriteByte(ix.ProgramIDIndex)
		writeCompactArrayLen(&buf, len(ix.AccountIndices))
		buf.Write(ix.AccountIndices)
		writeCompactArrayLen(&buf, len(ix.Data))
		buf.Write(ix.Data)
	}
	writeCompactArrayLen(&buf, len(m.AddressTableLookups))
	for _, lut := range m.AddressTableLookups {
		buf.Write(lut.AccountKey[:])
		writeCompactArrayLen(&buf, len(lut.WritableIndexes))
		buf.Write(lut.WritableIndexes)
		writeCompactArrayLen(&buf, len(lut.ReadonlyIndexes))
		buf.Write(lut.ReadonlyIndexes)
	}
	return buf.Bytes()
}
