package verdict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/davidahmann/foundry/pkg/types"
)

// authorizationThreshold is the confidence floor for payment: a verdict
// authorizes payment only above it, and only when HEALTHY.
const authorizationThreshold = 70

// Engine is the multimodal inference capability: instruction plus media
// in, free-form text expected to contain a JSON object out.
type Engine interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type FallbackMode string

const (
	// FallbackGeneric returns a canned authorized verdict whenever the
	// live inference path fails.
	FallbackGeneric FallbackMode = "generic"
	// FallbackFilename inspects the primary evidence's original name for
	// trigger tokens, making degraded-mode demonstrations reproducible.
	FallbackFilename FallbackMode = "filename"
)

// fallbackTriggers are matched case-insensitively against the primary
// evidence's original filename in FallbackFilename mode.
var fallbackTriggers = []string{"bad", "fail", "broken", "error", "damaged"}

// Interpreter turns an inference request into a verdict. Interpret never
// fails: every call-level and parse-level error is absorbed into a
// deterministic offline fallback so the pipeline can always complete.
type Interpreter struct {
	Engine Engine
	Mode   FallbackMode
}

func (i *Interpreter) Interpret(ctx context.Context, req Request, primaryName string) types.Verdict {
	raw, err := i.Engine.Generate(ctx, req)
	if err != nil {
		log.Printf("inference call failed, using fallback: %v", err)
		return i.fallback(primaryName, fmt.Sprintf("inference call failed: %v", err))
	}

	v, err := parseVerdict(raw)
	if err != nil {
		log.Printf("inference reply unparseable, using fallback: %v", err)
		return i.fallback(primaryName, fmt.Sprintf("unparseable reply: %v", err))
	}
	return v
}

// rawVerdict is the model's declared output contract. Pointer fields
// distinguish absent from zero-valued: a reply missing any required
// field triggers fallback.
type rawVerdict struct {
	Status            string `json:"status"`
	Confidence        *int   `json:"confidence"`
	Analysis          string `json:"analysis"`
	DeviationDetected string `json:"deviation_detected"`
	PaymentAuthorized *bool  `json:"paymentAuthorized"`
}

func parseVerdict(reply string) (types.Verdict, error) {
	payload, err := extractJSON([]byte(reply))
	if err != nil {
		return types.Verdict{}, err
	}

	var raw rawVerdict
	if err := json.Unmarshal(payload, &raw); err != nil {
		return types.Verdict{}, fmt.Errorf("unmarshal verdict: %w", err)
	}

	status := types.VerdictStatus(strings.ToUpper(strings.TrimSpace(raw.Status)))
	if status != types.StatusHealthy && status != types.StatusCritical {
		return types.Verdict{}, fmt.Errorf("invalid status %q", raw.Status)
	}
	if raw.Confidence == nil {
		return types.Verdict{}, fmt.Errorf("missing confidence")
	}
	if raw.PaymentAuthorized == nil {
		return types.Verdict{}, fmt.Errorf("missing paymentAuthorized")
	}

	confidence := *raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	analysis := raw.Analysis
	if analysis == "" {
		analysis = raw.DeviationDetected
	}
	if analysis == "" {
		return types.Verdict{}, fmt.Errorf("missing analysis")
	}

	v := types.Verdict{
		Status:     status,
		Confidence: confidence,
		Analysis:   analysis,
		Source:     types.SourceInference,
	}

	// The model is instructed to authorize only HEALTHY verdicts above
	// the threshold, but the field is not trusted verbatim: authorization
	// is re-derived here and downgrades are recorded.
	claimed := *raw.PaymentAuthorized
	v.PaymentAuthorized = claimed && status == types.StatusHealthy && confidence > authorizationThreshold
	if claimed && !v.PaymentAuthorized {
		v.Analysis += " [authorization downgraded: verdict outside payment policy]"
	}
	return v, nil
}

// extractJSON strips markdown code fences, then slices from the first
// '{' to the last '}'. Models often wrap the JSON object in prose or
// ```json fences; both are discarded.
func extractJSON(data []byte) ([]byte, error) {
	s := bytes.TrimSpace(data)
	if bytes.HasPrefix(s, []byte("```")) {
		if idx := bytes.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
		if bytes.HasSuffix(s, []byte("```")) {
			s = s[:len(s)-3]
		}
		s = bytes.TrimSpace(s)
	}

	start := bytes.IndexByte(s, '{')
	end := bytes.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in reply")
	}
	return s[start : end+1], nil
}

func (i *Interpreter) fallback(primaryName, reason string) types.Verdict {
	if i.Mode == FallbackFilename && triggered(primaryName) {
		return types.Verdict{
			Status:            types.StatusCritical,
			Confidence:        90,
			Analysis:          "Offline fallback verdict: evidence flagged by filename trigger; machine treated as failed.",
			PaymentAuthorized: false,
			Source:            types.SourceFallback,
			FallbackReason:    reason,
		}
	}
	return types.Verdict{
		Status:            types.StatusHealthy,
		Confidence:        85,
		Analysis:          "Offline fallback verdict: live inference unavailable; machine treated as nominal.",
		PaymentAuthorized: true,
		Source:            types.SourceFallback,
		FallbackReason:    reason,
	}
}

func triggered(name string) bool {
	lower := strings.ToLower(name)
	for _, token := range fallbackTriggers {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
