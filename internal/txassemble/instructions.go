package txassemble

import (
	"context"
	"fmt"
	"sort"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"ridgeline/titan-swap/internal/wire"
)

// ToNativeInstructions implements §4.6 Path B step 1: convert each
// provider instruction into native form, preserving account references
// verbatim and validating the program id is a legal pubkey.
func ToNativeInstructions(provided []wire.ProviderInstruction) ([]NativeInstruction, error) {
	out := make([]NativeInstruction, 0, len(provided))
	for i, pi := range provided {
		var programID solana.PublicKey
		copy(programID[:], pi.ProgramID[:])
		if programID.IsZero() {
			return nil, fmt.Errorf("instruction %d: program id is zero/invalid", i)
		}

		accounts := make([]NativeAccountMeta, 0, len(pi.Accounts))
		for _, a := range pi.Accounts {
			var pk solana.PublicKey
			copy(pk[:], a.Pubkey[:])
			accounts = append(accounts, NativeAccountMeta{
				PublicKey:  pk,
				IsSigner:   a.IsSigner,
				IsWritable: a.IsWritable,
			})
		}
		out = append(out, NativeInstruction{ProgramID: programID, Accounts: accounts, Data: pi.Data})
	}
	return out, nil
}

// BuildVersionedMessage runs §4.6 Path B steps 2-6: collect the key
// universe, fetch and parse the named ALTs, compress the key set, compile
// each instruction against the final layout, and assemble the message
// header with a fresh blockhash.
func BuildVersionedMessage(ctx context.Context, client *rpc.Client, feePayer solana.PublicKey, instructions []NativeInstruction, lookupTablePubkeys []solana.PublicKey) (VersionedMessage, error) {
	universe := collectKeyUniverse(feePayer, instructions)

	tables, err := FetchLookupTables(ctx, client, lookupTablePubkeys)
	if err != nil {
		return VersionedMessage{}, fmt.Errorf("fetching address lookup tables: %w", err)
	}

	compressed := compressAccountKeys(universe, tables)

	compiled, err := compileInstructions(instructions, compressed)
	if err != nil {
		return VersionedMessage{}, err
	}

	recent, err := client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return VersionedMessage{}, fmt.Errorf("rpc getLatestBlockhash: %w", err)
	}

	numRequired, numReadonlySigned, numReadonlyUnsigned := compressed.header()

	return VersionedMessage{
		NumRequiredSignatures:       numRequired,
		NumReadonlySignedAccounts:   numReadonlySigned,
		NumReadonlyUnsignedAccounts: numReadonlyUnsigned,
		StaticAccountKeys:           compressed.static,
		RecentBlockhash:             recent.Value.Blockhash,
		Instructions:                compiled,
		AddressTableLookups:         buildAddressTableLookups(compressed),
	}, nil
}

// compileInstructions implements §4.6 step 5: translate each native
// instruction's program id and account references into indices against the
// final key layout (static region first, lookup-resolved keys past it: the
// writable lookup keys of every table first, then the readonly ones, as the
// versioned-message account ordering defines).
func compileInstructions(instructions []NativeInstruction, c compressedKeys) ([]CompiledInstruction, error) {
	lookupIndex := buildLookupPositionIndex(c)

	out := make([]CompiledInstruction, 0, len(instructions))
	for i, ix := range instructions {
		programIdx, err := resolveIndex(ix.ProgramID, c, lookupIndex, len(c.static))
		if err != nil {
			return nil, fmt.Errorf("instruction %d: program id: %w", i, err)
		}

		accountIndices := make([]uint8, 0, len(ix.Accounts))
		for _, acct := range ix.Accounts {
			idx, err := resolveIndex(acct.PublicKey, c, lookupIndex, len(c.static))
			if err != nil {
				return nil, fmt.Errorf("instruction %d: account %s: %w", i, acct.PublicKey, err)
			}
			accountIndices = append(accountIndices, idx)
		}

		out = append(out, CompiledInstruction{
			ProgramIDIndex: programIdx,
			AccountIndices: accountIndices,
			Data:           ix.Data,
		})
	}
	return out, nil
}

// resolveIndex finds pk's final index: in the static region if it's a
// static key, otherwise past the static region in the lookup-resolved
// region. An account found in neither violates §4.6's "every account
// referenced by an instruction appears either in the static key list or
// is resolvable via one of the listed ALTs" invariant.
func resolveIndex(pk solana.PublicKey, c compressedKeys, lookupIndex map[solana.PublicKey]int, staticLen int) (uint8, error) {
	if i, ok := c.staticIndex[pk]; ok {
		return uint8(i), nil
	}
	if i, ok := lookupIndex[pk]; ok {
		return uint8(staticLen + i), nil
	}
	return 0, fmt.Errorf("account %s not found in static keys or any loaded lookup table", pk)
}

// buildLookupPositionIndex assigns each lookup-resolved key a position
// past the static region: per the versioned-message account ordering,
// writable lookup-resolved keys (across all tables, in table order) come
// first, then readonly lookup-resolved keys.
func buildLookupPositionIndex(c compressedKeys) map[solana.PublicKey]int {
	tablesInOrder := sortedTableKeys(c)

	idx := make(map[solana.PublicKey]int)
	pos := 0
	for _, table := range tablesInOrder {
		for _, pk := range c.lookupWritable[table] {
			idx[pk] = pos
			pos++
		}
	}
	for _, table := range tablesInOrder {
		for _, pk := range c.lookupReadonly[table] {
			idx[pk] = pos
			pos++
		}
	}
	return idx
}

func sortedTableKeys(c compressedKeys) []solana.PublicKey {
	seen := make(map[solana.PublicKey]struct{})
	var tables []solana.PublicKey
	for t := range c.lookupWritable {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			tables = append(tables, t)
		}
	}
	for t := range c.lookupReadonly {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			tables = append(tables, t)
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].String() < tables[j].String() })
	return tables
}

// buildAddressTableLookups renders the per-ALT writable/readonly index
// lists (into the *ALT's own* address array, not the final message
// layout) for the versioned message's trailing lookup section.
func buildAddressTableLookups(c compressedKeys) []AddressTableLookup {
	tablesInOrder := sortedTableKeys(c)

	lookups := make([]AddressTableLookup, 0, len(tablesInOrder))
	for _, table := range tablesInOrder {
		writable := c.lookupWritable[table]
		readonly := c.lookupReadonly[table]
		if len(writable) == 0 && len(readonly) == 0 {
			continue
		}
		lookups = append(lookups, AddressTableLookup{
			AccountKey:      table,
			WritableIndexes: indicesWithinTable(table, writable, c),
			ReadonlyIndexes: indicesWithinTable(table, readonly, c),
		})
	}
	return lookups
}

// indicesWithinTable looks up each key's own position within the ALT's
// address array (found via the resolution map, which retains the in-table
// index from buildMembershipIndex).
func indicesWithinTable(table solana.PublicKey, keys []solana.PublicKey, c compressedKeys) []uint8 {
	out := make([]uint8, 0, len(keys))
	for _, pk := range keys {
		res, ok := c.resolution[pk]
		if !ok || res.table != table {
			continue
		}
		out = append(out, res.inTableIndex)
	}
	return out
}
