package types

type VerdictStatus string

const (
	StatusHealthy  VerdictStatus = "HEALTHY"
	StatusCritical VerdictStatus = "CRITICAL"
)

type VerdictSource string

const (
	SourceInference VerdictSource = "inference"
	SourceFallback  VerdictSource = "fallback"
)

// Verdict is the health/payment decision derived from uploaded evidence.
//
// PaymentAuthorized is re-derived locally from Status and Confidence; a
// model reply claiming authorization for a non-HEALTHY or low-confidence
// verdict is downgraded before settlement ever sees it.
type Verdict struct {
	Status            VerdictStatus `json:"status"`
	Confidence        int           `json:"confidence"`
	Analysis          string        `json:"analysis"`
	PaymentAuthorized bool          `json:"paymentAuthorized"`

	// Source distinguishes a genuine inference result from the
	// deterministic offline fallback.
	Source         VerdictSource `json:"source"`
	FallbackReason string        `json:"fallbackReason,omitempty"`
}
