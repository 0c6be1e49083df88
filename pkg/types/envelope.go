package types

// ResponseEnvelope is the sole externally observed artifact of one
// pipeline run: the verdict, the settlement outcome, and a timestamp.
type ResponseEnvelope struct {
	RequestID string `json:"requestId"`
	Verdict
	SettlementOutcome
	Timestamp string `json:"timestamp"`
}
