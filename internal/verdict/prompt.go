package verdict

import (
	"fmt"

	"github.com/davidahmann/foundry/internal/evidence"
)

// standardInstruction is the fixed policy document sent with evidence
// when no benchmark report is attached. The output contract at the end
// is what the interpreter parses against.
const standardInstruction = `You are an industrial machine condition auditor.

First, determine whether the attached evidence plausibly depicts an
industrial machine (motor, pump, compressor, lathe, conveyor, generator,
or similar equipment). If it does not, the subject is rejected: report
status CRITICAL, confidence 95, and explain that the evidence does not
show an industrial machine.

If it is a machine, assess its condition against these criteria:
- physical damage: cracks, dents, deformation, missing parts
- corrosion: rust, pitting, surface degradation
- assembly integrity: loose fasteners, misalignment, missing guards
- safety hazards: exposed wiring, leaking fluids, damaged insulation
- operational readiness: whether the machine could run safely today

Respond with exactly one JSON object and nothing else:
{"status": "HEALTHY" or "CRITICAL", "confidence": <integer 0-100>, "analysis": "<your reasoning>", "paymentAuthorized": <boolean>}

paymentAuthorized may be true only if status is HEALTHY and confidence
is above 70. Otherwise it must be false.`

// benchmarkInstruction is used when a benchmark report accompanies the
// evidence. The delta rules are strict: any single out-of-tolerance
// reading fails the machine.
const benchmarkInstruction = `You are an industrial machine condition auditor performing a delta
comparison between observed evidence and a benchmark report.

First, determine whether the attached evidence plausibly depicts an
industrial machine. If it does not, report status CRITICAL, confidence
95, and explain that the evidence does not show an industrial machine.

The final attachment is the machine's benchmark report stating nominal
tolerances. Compare every observable quantity against it:
- any audio frequency outside the report's stated tolerance band fails
- any visible wear exceeding the report's wear tolerance fails
- any RPM or pitch mismatch against the report's nominal values fails

A machine that fails any single rule is CRITICAL.

Respond with exactly one JSON object and nothing else:
{"status": "HEALTHY" or "CRITICAL", "confidence": <integer 0-100>, "deviation_detected": "<description of deviations, or none>", "paymentAuthorized": <boolean>}

paymentAuthorized may be true only if status is HEALTHY and confidence
is above 70. Otherwise it must be false.`

// Part is one evidence attachment: inlined bytes plus a media-type tag.
type Part struct {
	MediaType string
	Data      []byte
}

// Request is an ordered inference request: one instruction block
// followed by the evidence parts. Immutable once built.
type Request struct {
	Instruction string
	Parts       []Part
}

// BuildRequest assembles the inference request from the staged set.
// Parts are attached in a stable order: primary visual, secondary
// audio, benchmark report. The benchmark instruction is selected when a
// report is present.
func BuildRequest(store *evidence.Store, set evidence.Set) (Request, error) {
	req := Request{Instruction: standardInstruction}
	if _, ok := set[evidence.RoleBenchmarkReport]; ok {
		req.Instruction = benchmarkInstruction
	}

	order := []evidence.Role{
		evidence.RolePrimaryVisual,
		evidence.RoleSecondaryAudio,
		evidence.RoleBenchmarkReport,
	}
	for _, role := range order {
		f, ok := set[role]
		if !ok {
			continue
		}
		data, err := store.ReadAll(f)
		if err != nil {
			return Request{}, fmt.Errorf("read %s: %w", role, err)
		}
		req.Parts = append(req.Parts, Part{MediaType: f.MediaType, Data: data})
	}
	return req, nil
}
