// Package metaplex looks up, creates and updates Metaplex token metadata
// accounts for SPL mints.
package metaplex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/types"
	log "github.com/sirupsen/logrus"

	mlsolana "metalink/pkg/solana"
)

// Ledger is what the service needs from the ledger client
type Ledger interface {
	GetAccount(ctx context.Context, address common.PublicKey) (*mlsolana.AccountInfo, error)
	SendAndConfirm(ctx context.Context, feePayer types.Account, instructions []types.Instruction, signers ...types.Account) (string, error)
}

// Fields are the metadata values the linker manages
type Fields struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
}

// Record is a decoded metadata account
type Record struct {
	Address             common.PublicKey
	Mint                common.PublicKey
	UpdateAuthority     common.PublicKey
	Fields              Fields
	IsMutable           bool
	PrimarySaleHappened bool

	// carried through updates unchanged
	Creators   *[]token_metadata.Creator
	Collection *token_metadata.Collection
	Uses       *token_metadata.Uses
}

// Service talks to the token metadata program through a Ledger
type Service struct {
	ledger Ledger

	// MatchNotFoundText classifies lookup errors whose text names a missing
	// metadata account as NotFound. Typed ErrAccountNotFound always wins.
	MatchNotFoundText bool
}

// NewService creates a metadata service
func NewService(ledger Ledger) *Service {
	return &Service{
		ledger:            ledger,
		MatchNotFoundText: true,
	}
}

// MetadataAddress derives the metadata PDA of a mint
func MetadataAddress(mint common.PublicKey) (common.PublicKey, error) {
	address, err := token_metadata.GetTokenMetaPubkey(mint)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("failed to derive metadata address: %w", err)
	}
	return address, nil
}

// FindByMint looks up the metadata account of mint
func (s *Service) FindByMint(ctx context.Context, mint common.PublicKey) LookupResult {
	address, err := MetadataAddress(mint)
	if err != nil {
		return Failed(err)
	}

	account, err := s.ledger.GetAccount(ctx, address)
	if err != nil {
		if errors.Is(err, mlsolana.ErrAccountNotFound) {
			return NotFound()
		}
		if s.MatchNotFoundText && looksLikeMissingMetadata(err) {
			log.WithField("mint", mint.ToBase58()).Warnf("Treating lookup error as missing metadata: %v", err)
			return NotFound()
		}
		return Failed(fmt.Errorf("failed to fetch metadata account %s: %w", address.ToBase58(), err))
	}

	if len(account.Data) == 0 {
		return NotFound()
	}
	if account.Owner != common.MetaplexTokenMetaProgramID {
		return Failed(fmt.Errorf("account %s is owned by %s, not the token metadata program", address.ToBase58(), account.Owner.ToBase58()))
	}

	meta, err := token_metadata.MetadataDeserialize(account.Data)
	if err != nil {
		return Failed(fmt.Errorf("failed to decode metadata account %s: %w", address.ToBase58(), err))
	}
	if meta.Mint != mint {
		return Failed(fmt.Errorf("metadata account %s belongs to mint %s", address.ToBase58(), meta.Mint.ToBase58()))
	}

	return Found(recordFromMetadata(address, meta))
}

// looksLikeMissingMetadata matches error text from SDKs that report a
// missing metadata account without a typed error. Best effort only.
func looksLikeMissingMetadata(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "AccountNotFound") || strings.Contains(msg, "Metadata")
}

func recordFromMetadata(address common.PublicKey, meta token_metadata.Metadata) *Record {
	return &Record{
		Address:         address,
		Mint:            meta.Mint,
		UpdateAuthority: meta.UpdateAuthority,
		Fields: Fields{
			Name:                 trimPadding(meta.Data.Name),
			Symbol:               trimPadding(meta.Data.Symbol),
			URI:                  trimPadding(meta.Data.Uri),
			SellerFeeBasisPoints: meta.Data.SellerFeeBasisPoints,
		},
		IsMutable:           meta.IsMutable,
		PrimarySaleHappened: meta.PrimarySaleHappened,
		Creators:            meta.Data.Creators,
		Collection:          meta.Collection,
		Uses:                meta.Uses,
	}
}

// on-chain strings are padded with NUL bytes to their maximum length
func trimPadding(s string) string {
	return strings.TrimRight(s, "\x00")
}
