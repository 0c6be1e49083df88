package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/davidahmann/foundry/internal/evidence"
	"github.com/davidahmann/foundry/internal/ledger"
	"github.com/davidahmann/foundry/internal/notify"
	"github.com/davidahmann/foundry/internal/verdict"
	"github.com/davidahmann/foundry/pkg/types"
)

var ErrNoEvidence = errors.New("missing required evidence")

// Upload is one named file field from the intake request, not yet
// validated or staged.
type Upload struct {
	Role      evidence.Role
	Name      string
	MediaType string
	Body      io.Reader
}

type pipelineState string

const (
	stateReceived        pipelineState = "RECEIVED"
	stateValidated       pipelineState = "VALIDATED"
	stateVerdictObtained pipelineState = "VERDICT_OBTAINED"
	stateSettled         pipelineState = "SETTLED"
)

// InspectService owns one request's pipeline: stage evidence, obtain a
// verdict, settle, purge, respond. Evidence purge is deferred before
// anything can fail, so it runs on every path including panics.
type InspectService struct {
	Evidence    *evidence.Store
	Interpreter *verdict.Interpreter
	Settlement  *ledger.Authority
	Notifier    *notify.Client
	Idem        *InMemoryIdemStore
}

func (s *InspectService) Run(ctx context.Context, uploads []Upload, recipient, idemKey string) (env types.ResponseEnvelope, err error) {
	if idemKey != "" {
		if stored, ok := s.Idem.Get(idemKey); ok {
			return stored, nil
		}
	}

	state := stateReceived
	set := evidence.Set{}
	defer s.Evidence.Purge(set)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("inspect pipeline panic after %s: %v", state, r)
			env = types.ResponseEnvelope{}
			err = fmt.Errorf("internal pipeline failure")
		}
	}()

	for _, u := range uploads {
		staged, stageErr := s.Evidence.Stage(u.Role, u.Name, u.MediaType, u.Body)
		if stageErr != nil {
			return types.ResponseEnvelope{}, stageErr
		}
		set[u.Role] = staged
	}

	primary, ok := set[evidence.RolePrimaryVisual]
	if !ok {
		return types.ResponseEnvelope{}, ErrNoEvidence
	}
	state = stateValidated

	req, err := verdict.BuildRequest(s.Evidence, set)
	if err != nil {
		return types.ResponseEnvelope{}, err
	}

	v := s.Interpreter.Interpret(ctx, req, primary.OriginalName)
	state = stateVerdictObtained

	outcome := s.Settlement.Settle(ctx, &v, recipient)
	state = stateSettled

	env = types.ResponseEnvelope{
		RequestID:         uuid.NewString(),
		Verdict:           v,
		SettlementOutcome: outcome,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	}

	s.notifySettlement(env)
	if idemKey != "" {
		s.Idem.Put(idemKey, env)
	}
	return env, nil
}

// notifySettlement announces outcomes that reached (or failed to reach)
// the ledger. Best effort: a webhook problem never fails the request.
func (s *InspectService) notifySettlement(env types.ResponseEnvelope) {
	if s.Notifier == nil {
		return
	}
	if env.PaymentStatus != types.SettlementPaid && env.PaymentStatus != types.SettlementFailed {
		return
	}
	event := notify.SettlementEvent{
		RequestID:            env.RequestID,
		VerdictStatus:        env.Status,
		PaymentStatus:        env.PaymentStatus,
		TransactionSignature: env.TransactionSignature,
		ExplorerURL:          env.ExplorerURL,
		Timestamp:            env.Timestamp,
	}
	if err := s.Notifier.PostSettlement(event); err != nil {
		log.Printf("settlement webhook: %v", err)
	}
}
