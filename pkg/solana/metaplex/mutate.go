package metaplex

import (
	"context"
	"errors"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/types"
	log "github.com/sirupsen/logrus"
)

// CreateRequest creates metadata for a mint whose mint authority is Payer
type CreateRequest struct {
	Mint      common.PublicKey
	Fields    Fields
	IsMutable bool
	Payer     types.Account
}

// CreateResult holds the new metadata account and the transaction signature
type CreateResult struct {
	Metadata  common.PublicKey
	Signature string
}

// UpdateRequest rewrites the managed fields of an existing record
type UpdateRequest struct {
	Record    *Record
	Fields    Fields
	Authority types.Account
}

// UpdateResult holds the transaction signature of an update
type UpdateResult struct {
	Signature string
}

// Create sends CreateMetadataAccountV3. The payer is mint authority, update
// authority and sole verified creator.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	address, err := MetadataAddress(req.Mint)
	if err != nil {
		return nil, err
	}

	creators := []token_metadata.Creator{
		{
			Address:  req.Payer.PublicKey,
			Verified: true,
			Share:    100,
		},
	}

	ix := token_metadata.CreateMetadataAccountV3(token_metadata.CreateMetadataAccountV3Param{
		Metadata:                address,
		Mint:                    req.Mint,
		MintAuthority:           req.Payer.PublicKey,
		Payer:                   req.Payer.PublicKey,
		UpdateAuthority:         req.Payer.PublicKey,
		UpdateAuthorityIsSigner: true,
		IsMutable:               req.IsMutable,
		Data: token_metadata.DataV2{
			Name:                 req.Fields.Name,
			Symbol:               req.Fields.Symbol,
			Uri:                  req.Fields.URI,
			SellerFeeBasisPoints: req.Fields.SellerFeeBasisPoints,
			Creators:             &creators,
		},
	})

	log.WithFields(log.Fields{
		"mint":     req.Mint.ToBase58(),
		"metadata": address.ToBase58(),
	}).Info("Creating metadata account")

	sig, err := s.ledger.SendAndConfirm(ctx, req.Payer, []types.Instruction{ix})
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata for mint %s: %w", req.Mint.ToBase58(), err)
	}

	return &CreateResult{Metadata: address, Signature: sig}, nil
}

// Update sends UpdateMetadataAccountV2 with the new name, symbol, uri and
// royalty. Creators, collection and uses are kept from the record; the
// update authority, primary sale flag and mutability are left unchanged.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (*UpdateResult, error) {
	if req.Record == nil {
		return nil, errors.New("update requires an existing metadata record")
	}

	data := token_metadata.DataV2{
		Name:                 req.Fields.Name,
		Symbol:               req.Fields.Symbol,
		Uri:                  req.Fields.URI,
		SellerFeeBasisPoints: req.Fields.SellerFeeBasisPoints,
		Creators:             req.Record.Creators,
		Collection:           req.Record.Collection,
		Uses:                 req.Record.Uses,
	}

	ix := token_metadata.UpdateMetadataAccountV2(token_metadata.UpdateMetadataAccountV2Param{
		MetadataAccount: req.Record.Address,
		UpdateAuthority: req.Authority.PublicKey,
		Data:            &data,
	})

	log.WithFields(log.Fields{
		"mint":     req.Record.Mint.ToBase58(),
		"metadata": req.Record.Address.ToBase58(),
	}).Info("Updating metadata account")

	sig, err := s.ledger.SendAndConfirm(ctx, req.Authority, []types.Instruction{ix})
	if err != nil {
		return nil, fmt.Errorf("failed to update metadata %s: %w", req.Record.Address.ToBase58(), err)
	}

	return &UpdateResult{Signature: sig}, nil
}
