package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"metalink/internal/linker"
	"metalink/internal/models"
	"metalink/pkg/config"
	mlsolana "metalink/pkg/solana"
	"metalink/pkg/solana/metaplex"
)

const (
	rabbitMQDialAttempts = 3
	rabbitMQRetryDelay   = 2 * time.Second
)

// loadConfig reads configuration with command line flags on top
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(config.LoadOptions{
		ConfigFile: c.String(configFlag.Name),
		Overrides:  flagOverrides(c),
	})
	if err != nil {
		return nil, err
	}
	setupLogging(cfg)
	return cfg, nil
}

func flagOverrides(c *cli.Context) map[string]string {
	return map[string]string{
		config.ProfileKey: c.String(profileFlag.Name),
		config.Keypair:    c.String(keypairFlag.Name),
		config.Mint:       c.String(mintFlag.Name),
		config.Cluster:    c.String(clusterFlag.Name),
		config.RPCURLs:    c.String(rpcURLFlag.Name),
		config.WSURL:      c.String(wsURLFlag.Name),
		config.LogLevel:   c.String(logLevelFlag.Name),
		config.LogFormat:  c.String(logFormatFlag.Name),
	}
}

func setupLogging(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
}

// runtime holds the clients one command needs
type runtime struct {
	cfg       *config.Config
	rpcURL    string
	client    *mlsolana.Client
	metadata  *metaplex.Service
	conn      *amqp.Connection
	publisher *config.Publisher

	eventsOnce sync.Once
}

// checkKeyFile reads the wallet key so a bad file fails before any
// endpoint or broker is contacted
func checkKeyFile(cfg *config.Config) error {
	_, err := mlsolana.LoadKeypairFile(cfg.KeypairPath)
	return err
}

func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	rpcURL, err := mlsolana.PickHealthyRPC(ctx, cfg.RPCURLs, cfg.RPCProbeTimeout)
	if err != nil {
		return nil, err
	}

	client := mlsolana.NewClient(rpcURL, mlsolana.ClientOptions{
		WSURL:          cfg.WSURL,
		Commitment:     cfg.Commitment,
		ConfirmTimeout: cfg.ConfirmTimeout,
	})

	metadata := metaplex.NewService(client)
	metadata.MatchNotFoundText = cfg.MatchNotFoundText

	log.WithFields(log.Fields{
		"rpc":     rpcURL,
		"ws":      cfg.WSURL,
		"cluster": cfg.Cluster,
	}).Debug("Ledger client ready")

	return &runtime{
		cfg:      cfg,
		rpcURL:   rpcURL,
		client:   client,
		metadata: metadata,
	}, nil
}

// connectEvents sets up the event publisher when a broker is configured.
// A broker that cannot be reached only disables publishing. It is called
// on the first publish so the broker is dialed after the run.
func (r *runtime) connectEvents(ctx context.Context) {
	if !r.cfg.RabbitMQ.Enabled() {
		return
	}
	conn, err := config.DialRabbitMQ(ctx, r.cfg.RabbitMQ, rabbitMQDialAttempts, rabbitMQRetryDelay)
	if err != nil {
		log.WithError(err).Warn("Link events will not be published")
		return
	}
	publisher, err := config.NewPublisher(conn, r.cfg.RabbitMQ.Queue)
	if err != nil {
		log.WithError(err).Warn("Link events will not be published")
		_ = conn.Close()
		return
	}
	r.conn = conn
	r.publisher = publisher
}

func (r *runtime) Close() {
	if r.publisher != nil {
		_ = r.publisher.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}

func (r *runtime) linkerConfig() (linker.Config, error) {
	mint, err := parseMint(r.cfg.Mint)
	if err != nil {
		return linker.Config{}, err
	}
	return linker.Config{
		Mint: mint,
		Fields: metaplex.Fields{
			Name:                 r.cfg.Name,
			Symbol:               r.cfg.Symbol,
			URI:                  r.cfg.URI,
			SellerFeeBasisPoints: r.cfg.SellerFeeBasisPoints,
		},
		KeypairPath:    r.cfg.KeypairPath,
		MinBalance:     r.cfg.MinBalanceLamports(),
		ExpectedWallet: r.cfg.ExpectedWallet,
		Cluster:        r.cfg.Cluster,
		RPCURL:         r.rpcURL,
	}, nil
}

// runLink does one linker run and publishes its outcome
func (r *runtime) runLink(ctx context.Context) (linker.Outcome, error) {
	lcfg, err := r.linkerConfig()
	if err != nil {
		return linker.Outcome{}, err
	}

	outcome := linker.New(lcfg, r.client, r.metadata).Run(ctx)

	entry := log.WithFields(log.Fields{
		"mint":   outcome.Mint,
		"wallet": outcome.Wallet,
		"status": outcome.Status,
	})
	if outcome.Signature != "" {
		entry = entry.WithField("signature", outcome.Signature)
	}
	if outcome.OK() {
		entry.Info("Link run finished")
	} else {
		entry.WithError(outcome.Err).Warn("Link run finished")
	}

	r.publish(ctx, outcome)
	return outcome, nil
}

func (r *runtime) publish(ctx context.Context, outcome linker.Outcome) {
	r.eventsOnce.Do(func() { r.connectEvents(ctx) })
	if r.publisher == nil {
		return
	}
	event := models.NewLinkEvent(r.cfg.Profile, r.cfg.Cluster, outcome)
	if err := r.publisher.Publish(ctx, event); err != nil {
		log.WithError(err).Warn("Failed to publish link event")
	}
}

func parseMint(mint string) (common.PublicKey, error) {
	key := common.PublicKeyFromString(mint)
	if key == (common.PublicKey{}) {
		return common.PublicKey{}, fmt.Errorf("invalid mint %q", mint)
	}
	return key, nil
}
