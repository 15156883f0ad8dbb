package solana

import (
	"context"
	"fmt"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"
)

// SendAndConfirm builds a transaction from instructions, signs it with the fee
// payer and any extra signers, sends it with preflight and waits for the
// client's commitment. The signature is returned even when confirmation fails.
func (c *Client) SendAndConfirm(
	ctx context.Context,
	feePayer types.Account,
	instructions []types.Instruction,
	signers ...types.Account,
) (string, error) {
	bh, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return "", fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	tx, err := types.NewTransaction(types.NewTransactionParam{
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        feePayer.PublicKey,
			RecentBlockhash: bh.Value.Blockhash.String(),
			Instructions:    instructions,
		}),
		Signers: uniqueSigners(feePayer, signers),
	})
	if err != nil {
		return "", fmt.Errorf("failed to build transaction: %w", err)
	}

	raw, err := tx.Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}

	sig, err := c.rpc.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return "", newSendError(err)
	}
	log.WithField("signature", sig.String()).Info("Transaction sent, waiting for confirmation")

	confirmCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	if err := c.confirmer.Confirm(confirmCtx, sig); err != nil {
		return sig.String(), err
	}

	log.WithField("signature", sig.String()).Infof("Transaction reached %s", c.commitment)
	return sig.String(), nil
}

func uniqueSigners(feePayer types.Account, signers []types.Account) []types.Account {
	out := []types.Account{feePayer}
	seen := map[string]bool{feePayer.PublicKey.ToBase58(): true}
	for _, s := range signers {
		key := s.PublicKey.ToBase58()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
