package ledger

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	confirm "github.com/gagliardetto/solana-go/rpc/sendAndConfirmTransaction"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

// Client is the ledger capability the settlement authority consumes:
// custodial balance query and single-instruction transfer with
// confirmation. The RPC implementation talks to Solana; tests inject a
// fake.
type Client interface {
	Balance(ctx context.Context) (uint64, error)
	Transfer(ctx context.Context, recipient solana.PublicKey, lamports uint64) (solana.Signature, error)
}

// RPCClient implements Client against a Solana RPC endpoint, signing
// with the custodial wallet and waiting for confirmed commitment over
// the websocket endpoint.
type RPCClient struct {
	rpc    *rpc.Client
	wsURL  string
	wallet solana.PrivateKey
}

func NewRPCClient(rpcURL, wsURL string, wallet solana.PrivateKey) *RPCClient {
	return &RPCClient{
		rpc:    rpc.New(rpcURL),
		wsURL:  wsURL,
		wallet: wallet,
	}
}

func (c *RPCClient) Balance(ctx context.Context) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, c.wallet.PublicKey(), rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return out.Value, nil
}

func (c *RPCClient) Transfer(ctx context.Context, recipient solana.PublicKey, lamports uint64) (solana.Signature, error) {
	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("latest blockhash: %w", err)
	}

	payer := c.wallet.PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, payer, recipient).Build(),
		},
		recent.Value.Blockhash,
		solana.TransactionPayer(payer),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &c.wallet
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	wsClient, err := ws.Connect(ctx, c.wsURL)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("ws connect: %w", err)
	}
	defer wsClient.Close()

	sig, err := confirm.SendAndConfirmTransaction(ctx, c.rpc, wsClient, tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send and confirm: %w", err)
	}
	return sig, nil
}
