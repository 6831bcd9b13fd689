package txassemble

import (
	solana "github.com/gagliardetto/solana-go"
)

// NativeInstruction is a provider instruction converted to native form
// (§4.6 step 1): account references preserved verbatim, program id
// validated to be a real pubkey.
type NativeInstruction struct {
	ProgramID solana.PublicKey
	Accounts  []NativeAccountMeta
	Data      []byte
}

// NativeAccountMeta mirrors solana.AccountMeta without importing the
// instruction-builder machinery this package deliberately avoids for Path
// B compilation.
type NativeAccountMeta struct {
	PublicKey  solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

// keyUniverse is the set of every pubkey referenced by the instruction set,
// plus fee payer / signers (§4.6 step 2), along with enough per-key
// metadata to run the compression partition in step 4.
type keyUniverse struct {
	order []solana.PublicKey
	meta  map[solana.PublicKey]*keyAttributes
}

type keyAttributes struct {
	isSigner      bool
	isWritable    bool
	usedAsProgram bool
}

func newKeyUniverse() *keyUniverse {
	return &keyUniverse{meta: make(map[solana.PublicKey]*keyAttributes)}
}

func (u *keyUniverse) touch(pk solana.PublicKey) *keyAttributes {
	a, ok := u.meta[pk]
	if !ok {
		a = &keyAttributes{}
		u.meta[pk] = a
		u.order = append(u.order, pk)
	}
	return a
}

// collectKeyUniverse builds U from the fee payer (marked as a writable
// signer) and every instruction's program id and account references (§4.6
// step 2).
func collectKeyUniverse(feePayer solana.PublicKey, instructions []NativeInstruction) *keyUniverse {
	u := newKeyUniverse()

	payerAttrs := u.touch(feePayer)
	payerAttrs.isSigner = true
	payerAttrs.isWritable = true

	for _, ix := range instructions {
		progAttrs := u.touch(ix.ProgramID)
		progAttrs.usedAsProgram = true

		for _, acct := range ix.Accounts {
			a := u.touch(acct.PublicKey)
			if acct.IsSigner {
				a.isSigner = true
			}
			if acct.IsWritable {
				a.isWritable = true
			}
		}
	}
	return u
}

// compressedKeys is the result of §4.6 step 4: the key universe partitioned
// into the static key list (in versioned-message-legal order: writable
// signers, readonly signers, writable non-signers, readonly non-signers)
// and the per-ALT lookup resolutions.
type compressedKeys struct {
	static []solana.PublicKey
	// index in `static`; lookup-resolved keys have no entry
	staticIndex map[solana.PublicKey]int

	// counts needed for the versioned-message header (§4.6 step 6),
	// derived from the static partition's fixed ordering: writable
	// signers, readonly signers, writable non-signers, readonly
	// non-signers.
	writableSignerCount int
	readonlySignerCount int
	readonlyNonSignerCount int

	// per ALT pubkey: writable/readonly resolved pubkeys in the order they
	// were assigned an index (so their final position in the versioned
	// message's trailing lookup region is derivable positionally).
	lookupWritable map[solana.PublicKey][]solana.PublicKey
	lookupReadonly map[solana.PublicKey][]solana.PublicKey
	// which ALT (and in-ALT index) resolves a given key
	resolution map[solana.PublicKey]lookupResolution
}

type lookupResolution struct {
	table        solana.PublicKey
	writable     bool
	inTableIndex uint8
}

// compressAccountKeys implements §4.6 steps 4: static keys are the fee
// payer, all signers, any writable key used as a program id, and any key
// not findable in any loaded ALT. Every remaining key is resolved against
// the first ALT (in the order given) that contains it.
func compressAccountKeys(u *keyUniverse, tables []LookupTable) compressedKeys {
	membership := buildMembershipIndex(tables)

	var writableSigners, readonlySigners, writableNonSigners, readonlyNonSigners []solana.PublicKey
	resolution := make(map[solana.PublicKey]lookupResolution)
	lookupWritable := make(map[solana.PublicKey][]solana.PublicKey)
	lookupReadonly := make(map[solana.PublicKey][]solana.PublicKey)

	for _, pk := range u.order {
		attrs := u.meta[pk]

		mustBeStatic := attrs.isSigner || (attrs.usedAsProgram && attrs.isWritable)
		loc, inTable := membership[pk]

		if !mustBeStatic && inTable {
			resolution[pk] = lookupResolution{table: loc.table, writable: attrs.isWritable, inTableIndex: uint8(loc.index)}
			if attrs.isWritable {
				lookupWritable[loc.table] = append(lookupWritable[loc.table], pk)
			} else {
				lookupReadonly[loc.table] = append(lookupReadonly[loc.table], pk)
			}
			continue
		}

		switch {
		case attrs.isSigner && attrs.isWritable:
			writableSigners = append(writableSigners, pk)
		case attrs.isSigner && !attrs.isWritable:
			readonlySigners = append(readonlySigners, pk)
		case !attrs.isSigner && attrs.isWritable:
			writableNonSigners = append(writableNonSigners, pk)
		default:
			readonlyNonSigners = append(readonlyNonSigners, pk)
		}
	}

	static := make([]solana.PublicKey, 0, len(writableSigners)+len(readonlySigners)+len(writableNonSigners)+len(readonlyNonSigners))
	static = append(static, writableSigners...)
	static = append(static, readonlySigners...)
	static = append(static, writableNonSigners...)
	static = append(static, readonlyNonSigners...)

	staticIndex := make(map[solana.PublicKey]int, len(static))
	for i, pk := range static {
		staticIndex[pk] = i
	}

	return compressedKeys{
		static:                 static,
		staticIndex:            staticIndex,
		writableSignerCount:    len(writableSigners),
		readonlySignerCount:    len(readonlySigners),
		readonlyNonSignerCount: len(readonlyNonSigners),
		lookupWritable:         lookupWritable,
		lookupReadonly:         lookupReadonly,
		resolution:             resolution,
	}
}

type tableMembership struct {
	table solana.PublicKey
	index int
}

// buildMembershipIndex maps every address in every ALT to the *first* ALT
// (in the given order) that contains it, per §4.6 step 4's
// "find the first ALT that contains it" rule.
func buildMembershipIndex(tables []LookupTable) map[solana.PublicKey]tableMembership {
	idx := make(map[solana.PublicKey]tableMembership)
	for _, t := range tables {
		for i, addr := range t.Addresses {
			if _, exists := idx[addr]; exists {
				continue
			}
			idx[addr] = tableMembership{table: t.Pubkey, index: i}
		}
	}
	return idx
}

// header returns the versioned-message header fields (§4.6 step 6).
func (c compressedKeys) header() (numRequired, numReadonlySigned, numReadonlyUnsigned uint8) {
	numRequired = uint8(c.writableSignerCount + c.readonlySignerCount)
	numReadonlySigned = uint8(c.readonlySignerCount)
	numReadonlyUnsigned = uint8(c.readonlyNonSignerCount)
	return
}
