// Package linker ensures that a mint's token metadata matches a desired state.
package linker

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	log "github.com/sirupsen/logrus"

	mlsolana "metalink/pkg/solana"
	"metalink/pkg/solana/metaplex"
)

// Ledger reads balances
type Ledger interface {
	GetSolBalance(ctx context.Context, owner common.PublicKey) (uint64, error)
}

// MetadataService looks up, creates and updates token metadata
type MetadataService interface {
	FindByMint(ctx context.Context, mint common.PublicKey) metaplex.LookupResult
	Create(ctx context.Context, req metaplex.CreateRequest) (*metaplex.CreateResult, error)
	Update(ctx context.Context, req metaplex.UpdateRequest) (*metaplex.UpdateResult, error)
}

// KeyLoader turns a key file path into a signing account
type KeyLoader func(path string) (types.Account, error)

// Config is fixed for the lifetime of a Linker
type Config struct {
	Mint        common.PublicKey
	Fields      metaplex.Fields
	KeypairPath string
	// MinBalance is in lamports
	MinBalance uint64
	// ExpectedWallet is a base58 address; empty disables the check
	ExpectedWallet string
	Cluster        string
	// RPCURL is shown in the airdrop hint
	RPCURL string
}

// Linker runs the metadata linking flow
type Linker struct {
	cfg      Config
	ledger   Ledger
	metadata MetadataService
	loadKey  KeyLoader
	out      io.Writer
	errOut   io.Writer
}

// Option customizes a Linker
type Option func(*Linker)

// WithKeyLoader replaces the key file loader
func WithKeyLoader(loader KeyLoader) Option {
	return func(l *Linker) {
		l.loadKey = loader
	}
}

// WithOutput redirects the console report
func WithOutput(out, errOut io.Writer) Option {
	return func(l *Linker) {
		l.out = out
		l.errOut = errOut
	}
}

// New creates a Linker
func New(cfg Config, ledger Ledger, metadata MetadataService, opts ...Option) *Linker {
	l := &Linker{
		cfg:      cfg,
		ledger:   ledger,
		metadata: metadata,
		loadKey:  mlsolana.LoadKeypairFile,
		out:      os.Stdout,
		errOut:   os.Stderr,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// createIsMutable is the mutability of metadata created by the linker
const createIsMutable = true

// Run performs one pass: load key, verify wallet, check balance, then update
// or create the metadata and print the explorer link. Failures are reported
// on the console and in the returned Outcome; nothing is retried.
func (l *Linker) Run(ctx context.Context) (outcome Outcome) {
	mint := l.cfg.Mint.ToBase58()
	outcome = Outcome{Mint: mint}

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = StatusFatal
			outcome.Err = fmt.Errorf("panic: %v", r)
			outcome.ExplorerURL = ""
			l.errorf("Fatal error: %v\n", outcome.Err)
		}
	}()

	payer, err := l.loadKey(l.cfg.KeypairPath)
	if err != nil {
		log.WithError(err).Error("Failed to load wallet keypair")
		l.errorf("Fatal error: %v\n", err)
		return outcome.fail(StatusKeyLoadFailed, err)
	}
	wallet := payer.PublicKey.ToBase58()
	outcome.Wallet = wallet
	l.printf("Wallet: %s\n", wallet)

	if l.cfg.ExpectedWallet != "" && wallet != l.cfg.ExpectedWallet {
		l.errorf("ERROR: this run must use wallet %s\n", l.cfg.ExpectedWallet)
		return outcome.fail(StatusWalletMismatch, fmt.Errorf("wallet %s does not match expected wallet %s", wallet, l.cfg.ExpectedWallet))
	}

	l.printf("Linking %s metadata...\n", l.cfg.Fields.Name)
	l.printf("Mint:   %s\n", mint)

	balance, err := l.ledger.GetSolBalance(ctx, payer.PublicKey)
	if err != nil {
		l.errorf("Fatal error: %v\n", err)
		return outcome.fail(StatusFatal, err)
	}
	outcome.Balance = balance
	l.printf("Balance: %s SOL\n", mlsolana.FormatSOL(balance))

	if balance < l.cfg.MinBalance {
		need := mlsolana.FormatSOL(l.cfg.MinBalance)
		l.errorf("ERROR: Insufficient balance. Need at least %s SOL on %s to create/update metadata.\n", need, l.clusterName())
		l.errorf("Use: solana airdrop 2 --url %s\n", l.cfg.RPCURL)
		return outcome.fail(StatusInsufficientBalance, fmt.Errorf("balance %d lamports is below minimum %d", balance, l.cfg.MinBalance))
	}

	l.reconcile(ctx, payer, &outcome)

	outcome.ExplorerURL = mlsolana.ExplorerAddressURL(mint, l.cfg.Cluster)
	l.printf("\nView your token:\n")
	l.printf("%s\n", outcome.ExplorerURL)

	return outcome
}

// reconcile does one lookup and at most one of update or create
func (l *Linker) reconcile(ctx context.Context, payer types.Account, outcome *Outcome) {
	logger := log.WithFields(log.Fields{
		"mint":   outcome.Mint,
		"wallet": outcome.Wallet,
	})

	lookup := l.metadata.FindByMint(ctx, l.cfg.Mint)
	switch lookup.Status {
	case metaplex.LookupFound:
		outcome.MetadataAddress = lookup.Record.Address.ToBase58()
		res, err := l.metadata.Update(ctx, metaplex.UpdateRequest{
			Record:    lookup.Record,
			Fields:    l.cfg.Fields,
			Authority: payer,
		})
		if err != nil {
			logger.WithError(err).Error("Metadata update failed")
			l.errorf("Error: %v\n", err)
			l.printLogs(err)
			outcome.fail(StatusUpdateFailed, err)
			return
		}
		outcome.Status = StatusUpdated
		outcome.Signature = res.Signature
		l.printf("SUCCESS! Metadata updated.\n")
		l.printf("Transaction: %s\n", mlsolana.ExplorerTxURL(res.Signature, l.cfg.Cluster))

	case metaplex.LookupNotFound:
		l.printf("Metadata not found, creating new metadata...\n")
		fields := l.cfg.Fields
		fields.SellerFeeBasisPoints = 0
		res, err := l.metadata.Create(ctx, metaplex.CreateRequest{
			Mint:      l.cfg.Mint,
			Fields:    fields,
			IsMutable: createIsMutable,
			Payer:     payer,
		})
		if err != nil {
			logger.WithError(err).Error("Metadata create failed")
			l.errorf("Create error: %v\n", err)
			l.printLogs(err)
			outcome.fail(StatusCreateFailed, err)
			return
		}
		outcome.Status = StatusCreated
		outcome.Signature = res.Signature
		outcome.MetadataAddress = res.Metadata.ToBase58()
		l.printf("Metadata CREATED! %s\n", outcome.MetadataAddress)
		l.printf("Transaction: %s\n", mlsolana.ExplorerTxURL(res.Signature, l.cfg.Cluster))

	default:
		logger.WithError(lookup.Err).Error("Metadata lookup failed")
		l.errorf("Error: %v\n", lookup.Err)
		outcome.fail(StatusLookupFailed, lookup.Err)
	}
}

func (l *Linker) printLogs(err error) {
	logs := mlsolana.TransactionLogs(err)
	if len(logs) == 0 {
		return
	}
	l.errorf("Logs:\n")
	for _, line := range logs {
		l.errorf("  %s\n", line)
	}
}

func (l *Linker) clusterName() string {
	if l.cfg.Cluster == "" {
		return "devnet"
	}
	return l.cfg.Cluster
}

func (l *Linker) printf(format string, args ...interface{}) {
	fmt.Fprintf(l.out, format, args...)
}

func (l *Linker) errorf(format string, args ...interface{}) {
	fmt.Fprintf(l.errOut, format, args...)
}
