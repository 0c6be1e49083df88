package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/davidahmann/foundry/internal/evidence"
	"github.com/davidahmann/foundry/internal/ledger"
	"github.com/davidahmann/foundry/internal/notify"
	"github.com/davidahmann/foundry/internal/verdict"
	"github.com/davidahmann/foundry/pkg/types"
)

type panicEngine struct{}

func (panicEngine) Generate(_ context.Context, _ verdict.Request) (string, error) {
	panic("inference client bug")
}

func newTestService(t *testing.T, eng verdict.Engine, client ledger.Client) *InspectService {
	t.Helper()
	store, err := evidence.NewStore(t.TempDir(), 10<<20)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return &InspectService{
		Evidence:    store,
		Interpreter: &verdict.Interpreter{Engine: eng, Mode: verdict.FallbackFilename},
		Settlement:  &ledger.Authority{Client: client, AmountLamports: 10_000_000, FeeReserve: 5_000},
		Idem:        NewInMemoryIdemStore(),
	}
}

func TestRunPurgesOnRejectedUpload(t *testing.T) {
	svc := newTestService(t, &fakeEngine{reply: healthyReply}, &fakeLedger{balance: 1_000_000_000})

	uploads := []Upload{
		{Role: evidence.RolePrimaryVisual, Name: "sample.jpg", MediaType: "image/jpeg", Body: strings.NewReader("ok")},
		{Role: evidence.RoleSecondaryAudio, Name: "hum.exe", MediaType: "application/x-msdownload", Body: strings.NewReader("nope")},
	}
	_, err := svc.Run(context.Background(), uploads, "", "")
	if !errors.Is(err, evidence.ErrMediaType) {
		t.Fatalf("expected media type rejection, got %v", err)
	}

	// The already-staged primary file must be gone.
	entries, readErr := os.ReadDir(svc.Evidence.Dir)
	if readErr != nil {
		t.Fatalf("readdir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("expected purged staging dir after rejection, found %d entries", len(entries))
	}
}

func TestRunContainsPanic(t *testing.T) {
	svc := newTestService(t, panicEngine{}, &fakeLedger{balance: 1_000_000_000})

	uploads := []Upload{
		{Role: evidence.RolePrimaryVisual, Name: "sample.jpg", MediaType: "image/jpeg", Body: strings.NewReader("ok")},
	}
	_, err := svc.Run(context.Background(), uploads, "", "")
	if err == nil {
		t.Fatalf("expected contained panic to surface as error")
	}
	if errors.Is(err, evidence.ErrMediaType) || errors.Is(err, ErrNoEvidence) {
		t.Fatalf("panic must not masquerade as a client error, got %v", err)
	}

	entries, readErr := os.ReadDir(svc.Evidence.Dir)
	if readErr != nil {
		t.Fatalf("readdir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("cleanup must run on the panic path, found %d entries", len(entries))
	}
}

func TestRunNotifiesOnPaid(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := newTestService(t, &fakeEngine{reply: healthyReply}, &fakeLedger{balance: 1_000_000_000})
	svc.Notifier = &notify.Client{URL: srv.URL}

	uploads := []Upload{
		{Role: evidence.RolePrimaryVisual, Name: "sample.jpg", MediaType: "image/jpeg", Body: strings.NewReader("ok")},
	}
	env, err := svc.Run(context.Background(), uploads, "", "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if env.PaymentStatus != types.SettlementPaid {
		t.Fatalf("expected PAID, got %s", env.PaymentStatus)
	}
	if hits != 1 {
		t.Fatalf("expected one webhook delivery, got %d", hits)
	}
}

func TestRunSkipsWebhookWhenFrozen(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := newTestService(t, &fakeEngine{reply: `{"status":"CRITICAL","confidence":95,"analysis":"cracked","paymentAuthorized":false}`}, &fakeLedger{balance: 1_000_000_000})
	svc.Notifier = &notify.Client{URL: srv.URL}

	uploads := []Upload{
		{Role: evidence.RolePrimaryVisual, Name: "sample.jpg", MediaType: "image/jpeg", Body: strings.NewReader("ok")},
	}
	env, err := svc.Run(context.Background(), uploads, "", "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if env.PaymentStatus != types.SettlementFrozen {
		t.Fatalf("expected FROZEN, got %s", env.PaymentStatus)
	}
	if hits != 0 {
		t.Fatalf("frozen outcome must not notify, got %d deliveries", hits)
	}
}

func TestRunOversizedUpload(t *testing.T) {
	store, err := evidence.NewStore(t.TempDir(), 8)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	svc := newTestService(t, &fakeEngine{reply: healthyReply}, &fakeLedger{balance: 1_000_000_000})
	svc.Evidence = store

	uploads := []Upload{
		{Role: evidence.RolePrimaryVisual, Name: "big.jpg", MediaType: "image/jpeg", Body: strings.NewReader("way too many bytes")},
	}
	_, err = svc.Run(context.Background(), uploads, "", "")
	if !errors.Is(err, evidence.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}
