package solana

import (
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	defaultConfirmTimeout = 60 * time.Second
	defaultPollInterval   = time.Second
)

// ClientOptions configures a Client
type ClientOptions struct {
	// WSURL enables websocket confirmation; empty means polling only
	WSURL          string
	Commitment     rpc.CommitmentType
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// Client is the ledger client used by the linker: balance and account
// reads, and sending transactions built with the blocto SDK.
type Client struct {
	rpc            *rpc.Client
	confirmer      Confirmer
	commitment     rpc.CommitmentType
	confirmTimeout time.Duration
}

// NewClient creates a Client for the given JSON-RPC endpoint
func NewClient(rpcURL string, opts ClientOptions) *Client {
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = defaultConfirmTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	client := rpc.New(rpcURL)
	poller := NewPollConfirmer(client, opts.Commitment, opts.PollInterval)

	var confirmer Confirmer = poller
	if opts.WSURL != "" {
		confirmer = NewWSConfirmer(opts.WSURL, opts.Commitment, poller)
	}

	return &Client{
		rpc:            client,
		confirmer:      confirmer,
		commitment:     opts.Commitment,
		confirmTimeout: opts.ConfirmTimeout,
	}
}

func toSolanaKey(pk common.PublicKey) solana.PublicKey {
	return solana.PublicKeyFromBytes(pk.Bytes())
}

func fromSolanaKey(pk solana.PublicKey) common.PublicKey {
	return common.PublicKeyFromBytes(pk.Bytes())
}
