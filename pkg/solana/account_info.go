package solana

import (
	"context"
	"errors"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"
)

// ErrAccountNotFound is returned when the ledger has no account at an address
var ErrAccountNotFound = errors.New("account not found")

// AccountInfo is the subset of an on-chain account the linker reads
type AccountInfo struct {
	Address  common.PublicKey
	Owner    common.PublicKey
	Lamports uint64
	Data     []byte
}

// GetSolBalance returns the owner's balance in lamports
func (c *Client) GetSolBalance(ctx context.Context, owner common.PublicKey) (uint64, error) {
	resp, err := c.rpc.GetBalance(ctx, toSolanaKey(owner), c.commitment)
	if err != nil {
		log.Errorf("Failed to get SOL balance of %s: %v", owner.ToBase58(), err)
		return 0, fmt.Errorf("failed to get balance of %s: %w", owner.ToBase58(), err)
	}
	return resp.Value, nil
}

// GetAccount fetches an account; a missing account yields ErrAccountNotFound
func (c *Client) GetAccount(ctx context.Context, address common.PublicKey) (*AccountInfo, error) {
	resp, err := c.rpc.GetAccountInfoWithOpts(ctx, toSolanaKey(address), &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address.ToBase58())
		}
		return nil, fmt.Errorf("failed to fetch account %s: %w", address.ToBase58(), err)
	}
	if resp == nil || resp.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address.ToBase58())
	}

	var data []byte
	if resp.Value.Data != nil {
		data = resp.Value.Data.GetBinary()
	}

	return &AccountInfo{
		Address:  address,
		Owner:    fromSolanaKey(resp.Value.Owner),
		Lamports: resp.Value.Lamports,
		Data:     data,
	}, nil
}
