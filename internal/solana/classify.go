package solana

import (
	"solmon"
)

// splTokenProgram moves SPL tokens; paired with multiple token-balance
// entries it marks a swap even when the venue program is unknown.
const splTokenProgram = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

// dexPrograms maps known DEX and AMM program ids to venue names. Touching
// any of these makes a transaction a trade regardless of its lamport delta.
var dexPrograms = map[string]string{
	"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8": "Raydium V4",
	"CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK": "Raydium CLMM",
	"9W959DqEETiGZocYWCQPaJ6sBmUzgfxXfqGeTEdp3aQP": "Orca",
	"whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc":  "Orca Whirlpool",
	"DjVE6JNiYqPL2QXyCUUh8rNjHrbz9hXHNYt99MQ59qw1": "Orca V1",
	"JUP4Fb2cqiRUcaTHdrPC8h2gNsA2ETXiPDD33WcGuJB":  "Jupiter V4",
	"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4":  "Jupiter V6",
	"PhoeNiXZ8ByJGLkxNfZRnkUfjvmuYqLR89jjFHGqdXY":  "Phoenix",
	"MarBmsSgKXdrN1egZf5sqe1TMai9K1rChYNDJgjq7aD":  "Mango",
	"5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1": "GooseFX",
	"SSwpkEEcbUqx4vtoEByFjSkhKdCT862DNVb52nZg1UZ":  "Saber",
	"AMM55ShdkoGRB5jVYPjWzTURSGdQnQ8LbtE4jktMTG8P": "Aldrin",
	"EhYXEhg6JT5p2ZnhbRSFzKHigPuKFZuL9EGo7ZtDC5VY": "Serum",
	"srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX":  "Serum V3",
	"22Y43yTVxuUkoRKdm9thyRhQ3SdgQS7c7kB6UNCiaczD": "Meteora",
	"LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo":  "Lifinity",
	"EewxydAPCCVuNEyrVN68PuSYdQ7wKn27V9Gjeoi8dy3S": "Lifinity V2",
}

// DEXName returns the venue name for a known DEX program id.
func DEXName(programID string) (string, bool) {
	name, ok := dexPrograms[programID]
	return name, ok
}

// Classify derives the event for a watched account from transaction facts.
// It is a pure function of its inputs: trades are detected first (known DEX
// program, then the SPL-token multi-balance heuristic), then the lamport
// delta's sign decides between receive, send and generic. Dust is not
// decided here; the notification threshold belongs to the emission path.
func Classify(signature string, facts TxFacts, account string) solmon.Event {
	ev := solmon.Event{
		Signature: signature,
		Account:   account,
		Kind:      solmon.KindGeneric,
		BlockTime: facts.BlockTime,
	}

	idx := -1
	for i, key := range facts.AccountKeys {
		if key == account {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= len(facts.PreBalances) || idx >= len(facts.PostBalances) {
		return ev
	}
	ev.Lamports = int64(facts.PostBalances[idx]) - int64(facts.PreBalances[idx])

	switch {
	case touchesDEX(facts.ProgramIDs):
		ev.Kind = solmon.KindTrade
	case touchesProgram(facts.ProgramIDs, splTokenProgram) && (facts.PreTokens >= 2 || facts.PostTokens >= 2):
		ev.Kind = solmon.KindTrade
	case ev.Lamports > 0:
		ev.Kind = solmon.KindReceive
	case ev.Lamports < 0:
		ev.Kind = solmon.KindSend
	}

	if ev.Kind == solmon.KindSend {
		ev.Counterparty = counterparty(facts, idx)
	}
	return ev
}

// counterparty picks the first other account whose balance grew: the best
// guess at the receiving side of an outgoing transfer.
func counterparty(facts TxFacts, watched int) string {
	for i, key := range facts.AccountKeys {
		if i == watched || i >= len(facts.PreBalances) || i >= len(facts.PostBalances) {
			continue
		}
		if facts.PostBalances[i] > facts.PreBalances[i] {
			return key
		}
	}
	return ""
}

func touchesDEX(programs []string) bool {
	for _, p := range programs {
		if _, ok := dexPrograms[p]; ok {
			return true
		}
	}
	return false
}

func touchesProgram(programs []string, id string) bool {
	for _, p := range programs {
		if p == id {
			return true
		}
	}
	return false
}
