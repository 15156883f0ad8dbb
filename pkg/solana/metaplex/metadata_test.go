package metaplex

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mlsolana "metalink/pkg/solana"
)

// metadataAccountSize is the fixed size of a v1 metadata account
const metadataAccountSize = 679

type fakeLedger struct {
	account *mlsolana.AccountInfo
	getErr  error
	sendErr error
	sig     string

	gets  int
	sent  [][]types.Instruction
	payer []types.Account
}

func (f *fakeLedger) GetAccount(_ context.Context, address common.PublicKey) (*mlsolana.AccountInfo, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.account == nil {
		return nil, fmt.Errorf("%w: %s", mlsolana.ErrAccountNotFound, address.ToBase58())
	}
	return f.account, nil
}

func (f *fakeLedger) SendAndConfirm(_ context.Context, feePayer types.Account, instructions []types.Instruction, _ ...types.Account) (string, error) {
	f.sent = append(f.sent, instructions)
	f.payer = append(f.payer, feePayer)
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return f.sig, nil
}

func writeString(buf *bytes.Buffer, s string, size int) {
	padded := make([]byte, size)
	copy(padded, s)
	_ = binary.Write(buf, binary.LittleEndian, uint32(size))
	buf.Write(padded)
}

// encodeMetadata lays out a metadata account the way the program stores it:
// NUL padded strings and zero padding up to the account size.
func encodeMetadata(mint, authority common.PublicKey, fields Fields, mutable bool, creators []token_metadata.Creator) []byte {
	var buf bytes.Buffer
	buf.WriteByte(4) // Key::MetadataV1
	buf.Write(authority.Bytes())
	buf.Write(mint.Bytes())
	writeString(&buf, fields.Name, 32)
	writeString(&buf, fields.Symbol, 10)
	writeString(&buf, fields.URI, 200)
	_ = binary.Write(&buf, binary.LittleEndian, fields.SellerFeeBasisPoints)

	if creators == nil {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(creators)))
		for _, c := range creators {
			buf.Write(c.Address.Bytes())
			if c.Verified {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
			buf.WriteByte(c.Share)
		}
	}

	buf.WriteByte(0) // primary sale happened
	if mutable {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	out := make([]byte, metadataAccountSize)
	copy(out, buf.Bytes())
	return out
}

func metadataAccount(t *testing.T, mint, authority common.PublicKey, fields Fields, creators []token_metadata.Creator) *mlsolana.AccountInfo {
	t.Helper()
	address, err := MetadataAddress(mint)
	require.NoError(t, err)
	return &mlsolana.AccountInfo{
		Address:  address,
		Owner:    common.MetaplexTokenMetaProgramID,
		Lamports: 5616720,
		Data:     encodeMetadata(mint, authority, fields, true, creators),
	}
}

func TestMetadataAddress(t *testing.T) {
	mint := common.PublicKeyFromString("34G3jKGHaUm28SV21HMmojH8KNwZZedJsQqVXMLEVtXf")

	got, err := MetadataAddress(mint)
	require.NoError(t, err)

	// standard seeds: ["metadata", programID, mint]
	programID := solana.MustPublicKeyFromBase58(common.MetaplexTokenMetaProgramID.ToBase58())
	want, _, err := solana.FindProgramAddress([][]byte{
		[]byte("metadata"),
		programID.Bytes(),
		mint.Bytes(),
	}, programID)
	require.NoError(t, err)

	assert.Equal(t, want.String(), got.ToBase58())
}

func TestFindByMint(t *testing.T) {
	mint := types.NewAccount().PublicKey
	authority := types.NewAccount()
	fields := Fields{
		Name:   "TOGI Token",
		Symbol: "TOGI",
		URI:    "https://ym747.github.io/yogi-token/metadata.json",
	}

	t.Run("Found", func(t *testing.T) {
		creators := []token_metadata.Creator{{Address: authority.PublicKey, Verified: true, Share: 100}}
		ledger := &fakeLedger{account: metadataAccount(t, mint, authority.PublicKey, fields, creators)}

		res := NewService(ledger).FindByMint(context.Background(), mint)
		require.Equal(t, LookupFound, res.Status, "err: %v", res.Err)
		require.NotNil(t, res.Record)

		assert.Equal(t, ledger.account.Address, res.Record.Address)
		assert.Equal(t, mint, res.Record.Mint)
		assert.Equal(t, authority.PublicKey, res.Record.UpdateAuthority)
		assert.Equal(t, fields, res.Record.Fields)
		assert.True(t, res.Record.IsMutable)
		require.NotNil(t, res.Record.Creators)
		assert.Equal(t, creators, *res.Record.Creators)
		assert.Equal(t, 1, ledger.gets)
	})

	t.Run("Missing Account", func(t *testing.T) {
		res := NewService(&fakeLedger{}).FindByMint(context.Background(), mint)
		assert.Equal(t, LookupNotFound, res.Status)
		assert.Nil(t, res.Record)
		assert.NoError(t, res.Err)
	})

	t.Run("Closed Account", func(t *testing.T) {
		ledger := &fakeLedger{account: &mlsolana.AccountInfo{Owner: common.SystemProgramID}}
		res := NewService(ledger).FindByMint(context.Background(), mint)
		assert.Equal(t, LookupNotFound, res.Status)
	})

	t.Run("Error Text Names Missing Metadata", func(t *testing.T) {
		ledger := &fakeLedger{getErr: errors.New("Account of type [Metadata] was not found")}

		res := NewService(ledger).FindByMint(context.Background(), mint)
		assert.Equal(t, LookupNotFound, res.Status)

		strict := NewService(ledger)
		strict.MatchNotFoundText = false
		res = strict.FindByMint(context.Background(), mint)
		assert.Equal(t, LookupFailed, res.Status)
		assert.Error(t, res.Err)
	})

	t.Run("Network Error", func(t *testing.T) {
		ledger := &fakeLedger{getErr: errors.New("dial tcp: connection refused")}
		res := NewService(ledger).FindByMint(context.Background(), mint)
		assert.Equal(t, LookupFailed, res.Status)
		assert.ErrorContains(t, res.Err, "connection refused")
	})

	t.Run("Foreign Owner", func(t *testing.T) {
		account := metadataAccount(t, mint, authority.PublicKey, fields, nil)
		account.Owner = common.TokenProgramID
		res := NewService(&fakeLedger{account: account}).FindByMint(context.Background(), mint)
		assert.Equal(t, LookupFailed, res.Status)
		assert.ErrorContains(t, res.Err, "not the token metadata program")
	})

	t.Run("Undecodable Data", func(t *testing.T) {
		account := &mlsolana.AccountInfo{Owner: common.MetaplexTokenMetaProgramID, Data: []byte{4, 1, 2}}
		res := NewService(&fakeLedger{account: account}).FindByMint(context.Background(), mint)
		assert.Equal(t, LookupFailed, res.Status)
		assert.Error(t, res.Err)
	})
}

func TestCreate(t *testing.T) {
	mint := types.NewAccount().PublicKey
	payer := types.NewAccount()
	fields := Fields{Name: "YOGI Token", Symbol: "YOGI", URI: "https://ym747.github.io/yogi-token/metadata.json"}

	t.Run("Sends CreateMetadataAccountV3", func(t *testing.T) {
		ledger := &fakeLedger{sig: "sig-create"}
		res, err := NewService(ledger).Create(context.Background(), CreateRequest{
			Mint:      mint,
			Fields:    fields,
			IsMutable: true,
			Payer:     payer,
		})
		require.NoError(t, err)

		want, err := MetadataAddress(mint)
		require.NoError(t, err)
		assert.Equal(t, want, res.Metadata)
		assert.Equal(t, "sig-create", res.Signature)

		require.Len(t, ledger.sent, 1)
		require.Len(t, ledger.sent[0], 1)
		ix := ledger.sent[0][0]
		assert.Equal(t, common.MetaplexTokenMetaProgramID, ix.ProgramID)
		assert.Equal(t, want, ix.Accounts[0].PubKey)
		assert.Equal(t, mint, ix.Accounts[1].PubKey)
		assert.Equal(t, byte(33), ix.Data[0], "CreateMetadataAccountV3 discriminator")
		assert.Equal(t, payer.PublicKey, ledger.payer[0].PublicKey)
	})

	t.Run("Send Failure", func(t *testing.T) {
		sendErr := &mlsolana.TransactionError{Err: errors.New("insufficient funds"), Logs: []string{"Program log: out of lamports"}}
		ledger := &fakeLedger{sendErr: sendErr}

		_, err := NewService(ledger).Create(context.Background(), CreateRequest{Mint: mint, Fields: fields, IsMutable: true, Payer: payer})
		require.Error(t, err)
		assert.ErrorIs(t, err, sendErr)
		assert.Equal(t, []string{"Program log: out of lamports"}, mlsolana.TransactionLogs(err))
	})
}

func TestUpdate(t *testing.T) {
	mint := types.NewAccount().PublicKey
	authority := types.NewAccount()
	creators := []token_metadata.Creator{{Address: authority.PublicKey, Verified: true, Share: 100}}

	ledger := &fakeLedger{account: metadataAccount(t, mint, authority.PublicKey, Fields{Name: "old", Symbol: "OLD", URI: "https://old"}, creators)}
	service := NewService(ledger)

	found := service.FindByMint(context.Background(), mint)
	require.Equal(t, LookupFound, found.Status, "err: %v", found.Err)

	ledger.sig = "sig-update"
	res, err := service.Update(context.Background(), UpdateRequest{
		Record:    found.Record,
		Fields:    Fields{Name: "TOGI Token", Symbol: "TOGI", URI: "https://new"},
		Authority: authority,
	})
	require.NoError(t, err)
	assert.Equal(t, "sig-update", res.Signature)

	require.Len(t, ledger.sent, 1)
	ix := ledger.sent[0][0]
	assert.Equal(t, common.MetaplexTokenMetaProgramID, ix.ProgramID)
	assert.Equal(t, found.Record.Address, ix.Accounts[0].PubKey)
	assert.Equal(t, authority.PublicKey, ix.Accounts[1].PubKey)
	assert.Equal(t, byte(15), ix.Data[0], "UpdateMetadataAccountV2 discriminator")

	_, err = service.Update(context.Background(), UpdateRequest{Authority: authority})
	assert.Error(t, err)
}

func TestLookupStatusString(t *testing.T) {
	assert.Equal(t, "found", LookupFound.String())
	assert.Equal(t, "not_found", LookupNotFound.String())
	assert.Equal(t, "failed", LookupFailed.String())
}
