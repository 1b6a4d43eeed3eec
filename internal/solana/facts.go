package solana

import (
	"errors"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

// TxFacts is the transport-free reduction of a confirmed transaction: just
// the fields classification needs, in plain Go types.
type TxFacts struct {
	AccountKeys  []string // static keys followed by loaded table addresses
	PreBalances  []uint64 // lamports, aligned with AccountKeys
	PostBalances []uint64
	PreTokens    int // token-balance entries on each side
	PostTokens   int
	ProgramIDs   []string // one per top-level instruction
	BlockTime    time.Time
}

var errMalformedResult = errors.New("malformed transaction result")

// reduceTransaction flattens an RPC result into TxFacts. Results missing the
// meta or message sections are rejected rather than guessed at.
func reduceTransaction(res *rpc.GetTransactionResult) (TxFacts, error) {
	if res == nil || res.Meta == nil || res.Transaction == nil {
		return TxFacts{}, errMalformedResult
	}
	tx, err := res.Transaction.GetTransaction()
	if err != nil || tx == nil {
		return TxFacts{}, errMalformedResult
	}

	keys := make([]string, 0, len(tx.Message.AccountKeys))
	for _, k := range tx.Message.AccountKeys {
		keys = append(keys, k.String())
	}
	// Balance arrays cover loaded lookup-table addresses too, in
	// writable-then-readonly order after the static keys.
	for _, k := range res.Meta.LoadedAddresses.Writable {
		keys = append(keys, k.String())
	}
	for _, k := range res.Meta.LoadedAddresses.ReadOnly {
		keys = append(keys, k.String())
	}

	programs := make([]string, 0, len(tx.Message.Instructions))
	for _, ix := range tx.Message.Instructions {
		if int(ix.ProgramIDIndex) < len(keys) {
			programs = append(programs, keys[ix.ProgramIDIndex])
		}
	}

	facts := TxFacts{
		AccountKeys:  keys,
		PreBalances:  res.Meta.PreBalances,
		PostBalances: res.Meta.PostBalances,
		PreTokens:    len(res.Meta.PreTokenBalances),
		PostTokens:   len(res.Meta.PostTokenBalances),
		ProgramIDs:   programs,
	}
	if res.BlockTime != nil {
		facts.BlockTime = time.Unix(int64(*res.BlockTime), 0).UTC()
	}
	return facts, nil
}
