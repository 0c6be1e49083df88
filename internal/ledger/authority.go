package ledger

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/davidahmann/foundry/pkg/types"
)

// Authority executes the settlement implied by a verdict: at most one
// fixed-amount transfer per request, guarded by a balance check. The
// in-process reservation counter keeps concurrent requests from
// overcommitting the custodial balance between the balance read and the
// transfer; cross-process races still resolve on the ledger itself.
type Authority struct {
	Client         Client
	AmountLamports uint64
	FeeReserve     uint64
	Cluster        string

	mu       sync.Mutex
	reserved uint64
}

// Settle maps an authorized verdict to a transfer and an unauthorized
// one to FROZEN. It never returns an error: settlement failure is a
// terminal outcome, and the failure reason is appended to the verdict's
// analysis so the caller sees both in one place.
func (a *Authority) Settle(ctx context.Context, v *types.Verdict, recipient string) types.SettlementOutcome {
	if !v.PaymentAuthorized {
		return types.SettlementOutcome{PaymentStatus: types.SettlementFrozen}
	}

	to, err := a.resolveRecipient(recipient)
	if err != nil {
		return a.fail(v, fmt.Sprintf("invalid recipient: %v", err))
	}

	need := a.AmountLamports + a.FeeReserve
	outstanding := a.reserve(need)
	defer a.release(need)

	balance, err := a.Client.Balance(ctx)
	if err != nil {
		return a.fail(v, fmt.Sprintf("balance query failed: %v", err))
	}
	if balance < outstanding {
		return a.fail(v, fmt.Sprintf("insufficient balance: have %d lamports, need %d", balance, outstanding))
	}

	sig, err := a.Client.Transfer(ctx, to, a.AmountLamports)
	if err != nil {
		return a.fail(v, fmt.Sprintf("transfer failed: %v", err))
	}

	log.Printf("settled %d lamports to %s (%s)", a.AmountLamports, to, sig)
	return types.SettlementOutcome{
		PaymentStatus:        types.SettlementPaid,
		TransactionSignature: sig.String(),
		ExplorerURL:          a.explorerURL(sig),
	}
}

// resolveRecipient validates a supplied base58 address, or generates an
// ephemeral wallet when none was given. The generated account is a
// stand-in for a real recipient supplied out of band.
func (a *Authority) resolveRecipient(recipient string) (solana.PublicKey, error) {
	if recipient == "" {
		return solana.NewWallet().PublicKey(), nil
	}
	return solana.PublicKeyFromBase58(recipient)
}

func (a *Authority) reserve(need uint64) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reserved += need
	return a.reserved
}

func (a *Authority) release(need uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reserved -= need
}

func (a *Authority) fail(v *types.Verdict, reason string) types.SettlementOutcome {
	log.Printf("settlement failed: %s", reason)
	v.Analysis += " [settlement: " + reason + "]"
	return types.SettlementOutcome{PaymentStatus: types.SettlementFailed}
}

func (a *Authority) explorerURL(sig solana.Signature) string {
	url := "https://explorer.solana.com/tx/" + sig.String()
	if a.Cluster != "" && a.Cluster != "mainnet-beta" {
		url += "?cluster=" + a.Cluster
	}
	return url
}
