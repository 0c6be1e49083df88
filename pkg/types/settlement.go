package types

type SettlementStatus string

const (
	SettlementSkipped SettlementStatus = "SKIPPED"
	SettlementPaid    SettlementStatus = "PAID"
	SettlementFailed  SettlementStatus = "FAILED"
	SettlementFrozen  SettlementStatus = "FROZEN"
)

// SettlementOutcome records what happened to the transfer implied by a
// verdict. It is created only after a verdict is known and never mutated
// once set.
type SettlementOutcome struct {
	PaymentStatus        SettlementStatus `json:"paymentStatus"`
	TransactionSignature string           `json:"transactionSignature,omitempty"`
	ExplorerURL          string           `json:"explorerUrl,omitempty"`
}
