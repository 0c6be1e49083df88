package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"

	"github.com/davidahmann/foundry/internal/api"
	"github.com/davidahmann/foundry/internal/config"
	"github.com/davidahmann/foundry/internal/evidence"
	"github.com/davidahmann/foundry/internal/inference"
	"github.com/davidahmann/foundry/internal/ledger"
	"github.com/davidahmann/foundry/internal/notify"
	"github.com/davidahmann/foundry/internal/verdict"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	server, custodian, err := newServer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("gateway setup: %v", err)
	}

	log.Printf("foundry-gateway listening on %s (custodian %s)", cfg.ListenAddr, custodian)
	if err := serve(server); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func newServer(ctx context.Context, cfg config.Config) (*http.Server, string, error) {
	wallet, err := solana.PrivateKeyFromBase58(cfg.WalletSecret)
	if err != nil {
		return nil, "", fmt.Errorf("decode wallet secret: %w", err)
	}
	custodian := wallet.PublicKey().String()

	store, err := evidence.NewStore(cfg.StagingDir, cfg.MaxUploadBytes)
	if err != nil {
		return nil, "", err
	}

	engine, err := inference.NewGemini(ctx, cfg.GeminiAPIKey, cfg.Model)
	if err != nil {
		return nil, "", err
	}

	service := &api.InspectService{
		Evidence: store,
		Interpreter: &verdict.Interpreter{
			Engine: engine,
			Mode:   verdict.FallbackMode(cfg.FallbackMode),
		},
		Settlement: &ledger.Authority{
			Client:         ledger.NewRPCClient(cfg.RPCURL, cfg.WSURL, wallet),
			AmountLamports: cfg.TransferLamports(),
			FeeReserve:     cfg.FeeReserveLamports,
			Cluster:        cfg.Cluster,
		},
		Idem: api.NewInMemoryIdemStore(),
	}
	if cfg.WebhookURL != "" {
		service.Notifier = &notify.Client{URL: cfg.WebhookURL}
	}

	handler := &api.Handler{Service: service, Custodian: custodian}
	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}, custodian, nil
}

func serve(server *http.Server) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
