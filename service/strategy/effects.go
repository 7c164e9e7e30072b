package strategy

import (
	"github.com/gagliardetto/solana-go"
)

// EffectKind names a ledger call the host must make after a transition.
type EffectKind string

const (
	// EffectMint issues synthetic tokens to To.
	EffectMint EffectKind = "mint"
	// EffectTransfer moves collateral From -> To.
	EffectTransfer EffectKind = "transfer"
	// EffectCreateMaster registers an edition master with an optional cap.
	EffectCreateMaster EffectKind = "create_master"
	// EffectPrintEdition prints edition Number of Master to To.
	EffectPrintEdition EffectKind = "print_edition"
	// EffectBurnEdition burns the single unit of Edition held by From.
	EffectBurnEdition EffectKind = "burn_edition"
)

// Effect is one collaborator call.
type Effect struct {
	Kind      EffectKind       `json:"kind"`
	From      solana.PublicKey `json:"from,omitempty"`
	To        solana.PublicKey `json:"to,omitempty"`
	Amount    uint64           `json:"amount,omitempty"`
	Master    solana.PublicKey `json:"master,omitempty"`
	Edition   solana.PublicKey `json:"edition,omitempty"`
	Number    uint64           `json:"number,omitempty"`
	SupplyCap *uint64          `json:"supply_cap,omitempty"`
}

func mintEffect(to solana.PublicKey, amount uint64) Effect {
	return Effect{Kind: EffectMint, To: to, Amount: amount}
}

func transferEffect(from, to solana.PublicKey, amount uint64) Effect {
	return Effect{Kind: EffectTransfer, From: from, To: to, Amount: amount}
}

func createMasterEffect(master solana.PublicKey, supplyCap *uint64) Effect {
	return Effect{Kind: EffectCreateMaster, Master: master, SupplyCap: supplyCap}
}

func printEditionEffect(master, edition solana.PublicKey, number uint64, to solana.PublicKey) Effect {
	return Effect{Kind: EffectPrintEdition, Master: master, Edition: edition, Number: number, To: to}
}

func burnEditionEffect(edition, holder solana.PublicKey) Effect {
	return Effect{Kind: EffectBurnEdition, Edition: edition, From: holder, Amount: 1}
}
