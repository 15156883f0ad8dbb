package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	"github.com/mr-tron/base58"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	mlsolana "metalink/pkg/solana"
)

// Config is the immutable run configuration
type Config struct {
	Profile string

	Mint                 string
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16

	KeypairPath    string
	MinBalance     string
	ExpectedWallet string

	Cluster         string
	RPCURLs         []string
	WSURL           string
	Commitment      rpc.CommitmentType
	ConfirmTimeout  time.Duration
	RPCProbeTimeout time.Duration
	// MatchNotFoundText keeps the error text fallback of the metadata lookup
	MatchNotFoundText bool

	LogLevel      string
	LogFormat     string
	WatchSchedule string

	RabbitMQ RabbitMQConfig

	minBalanceLamports uint64
}

// MinBalanceLamports is MinBalance converted to lamports
func (c *Config) MinBalanceLamports() uint64 {
	return c.minBalanceLamports
}

// RPCURL is the first configured endpoint
func (c *Config) RPCURL() string {
	if len(c.RPCURLs) == 0 {
		return ""
	}
	return c.RPCURLs[0]
}

// Keys double as METALINK_<KEY> environment variable names
var (
	ProfileKey           = "PROFILE"
	Mint                 = "MINT"
	Name                 = "NAME"
	Symbol               = "SYMBOL"
	URI                  = "URI"
	SellerFeeBasisPoints = "SELLER_FEE_BASIS_POINTS"
	Keypair              = "KEYPAIR"
	MinBalance           = "MIN_BALANCE"
	ExpectedWallet       = "EXPECTED_WALLET"
	Cluster              = "CLUSTER"
	RPCURLs              = "RPC_URLS"
	WSURL                = "WS_URL"
	Commitment           = "COMMITMENT"
	ConfirmTimeout       = "CONFIRM_TIMEOUT"
	RPCProbeTimeout      = "RPC_PROBE_TIMEOUT"
	MatchNotFoundText    = "MATCH_NOT_FOUND_TEXT"
	LogLevel             = "LOG_LEVEL"
	LogFormat            = "LOG_FORMAT"
	WatchSchedule        = "WATCH_SCHEDULE"
	RabbitMQHost         = "RABBITMQ_HOST"
	RabbitMQPort         = "RABBITMQ_PORT"
	RabbitMQUser         = "RABBITMQ_USER"
	RabbitMQPassword     = "RABBITMQ_PASSWORD"
	RabbitMQVHost        = "RABBITMQ_VHOST"
	RabbitMQQueue        = "RABBITMQ_QUEUE"

	envPrefix = "METALINK"

	defaultProfile          = "togi"
	defaultCluster          = "devnet"
	defaultCommitment       = string(rpc.CommitmentConfirmed)
	defaultConfirmTimeout   = 60 * time.Second
	defaultRPCProbeTimeout  = 5 * time.Second
	defaultLogLevel         = "info"
	defaultLogFormat        = "text"
	defaultWatchSchedule    = "0 */10 * * * *"
	defaultRabbitMQPort     = "5672"
	defaultRabbitMQUser     = "guest"
	defaultRabbitMQPassword = "guest"
	defaultRabbitMQVHost    = "/"
	defaultRabbitMQQueue    = "metadata_link_events"
	defaultMinBalance       = "0.01"
)

var clusterEndpoints = map[string][2]string{
	"devnet":       {rpc.DevNet_RPC, rpc.DevNet_WS},
	"testnet":      {rpc.TestNet_RPC, rpc.TestNet_WS},
	"mainnet-beta": {rpc.MainNetBeta_RPC, rpc.MainNetBeta_WS},
	"localnet":     {rpc.LocalNet_RPC, rpc.LocalNet_WS},
}

var supportedCommitments = map[string]struct{}{
	string(rpc.CommitmentProcessed): {},
	string(rpc.CommitmentConfirmed): {},
	string(rpc.CommitmentFinalized): {},
}

var supportedLogFormats = map[string]struct{}{
	"text": {},
	"json": {},
}

// Metaplex limits on the stored strings, in bytes
const (
	maxNameLength   = 32
	maxSymbolLength = 10
	maxURILength    = 200
	maxBasisPoints  = 10000
)

// LoadOptions controls where configuration is read from. Overrides win
// over everything and are keyed like the environment variables without
// the prefix; empty strings are ignored.
type LoadOptions struct {
	ConfigFile string
	DotEnvFile string
	SkipDotEnv bool
	Overrides  map[string]string
}

// LoadConfig reads configuration with this precedence: overrides,
// environment, config file, profile, defaults.
func LoadConfig(opts LoadOptions) (*Config, error) {
	if !opts.SkipDotEnv {
		dotenv := opts.DotEnvFile
		if dotenv == "" {
			dotenv = ".env"
		}
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", dotenv, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := bindFallbackEnv(v); err != nil {
		return nil, err
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("metalink")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	for key, value := range opts.Overrides {
		if value != "" {
			v.Set(key, value)
		}
	}

	v.SetDefault(ProfileKey, defaultProfile)
	v.SetDefault(Cluster, defaultCluster)
	v.SetDefault(Commitment, defaultCommitment)
	v.SetDefault(ConfirmTimeout, defaultConfirmTimeout)
	v.SetDefault(RPCProbeTimeout, defaultRPCProbeTimeout)
	v.SetDefault(MatchNotFoundText, true)
	v.SetDefault(LogLevel, defaultLogLevel)
	v.SetDefault(LogFormat, defaultLogFormat)
	v.SetDefault(WatchSchedule, defaultWatchSchedule)
	v.SetDefault(MinBalance, defaultMinBalance)
	v.SetDefault(RabbitMQPort, defaultRabbitMQPort)
	v.SetDefault(RabbitMQUser, defaultRabbitMQUser)
	v.SetDefault(RabbitMQPassword, defaultRabbitMQPassword)
	v.SetDefault(RabbitMQVHost, defaultRabbitMQVHost)
	v.SetDefault(RabbitMQQueue, defaultRabbitMQQueue)

	profile := strings.ToLower(strings.TrimSpace(v.GetString(ProfileKey)))
	if profile != "" && profile != "none" {
		p, ok := LookupProfile(profile)
		if !ok {
			return nil, fmt.Errorf("unknown profile %q", profile)
		}
		v.SetDefault(Mint, p.Mint)
		v.SetDefault(Name, p.TokenName)
		v.SetDefault(Symbol, p.Symbol)
		v.SetDefault(URI, p.URI)
		v.SetDefault(Keypair, p.KeypairPath)
		v.SetDefault(MinBalance, p.MinBalance)
		v.SetDefault(ExpectedWallet, p.ExpectedWallet)
	}

	cfg := &Config{
		Profile:              profile,
		Mint:                 strings.TrimSpace(v.GetString(Mint)),
		Name:                 v.GetString(Name),
		Symbol:               v.GetString(Symbol),
		URI:                  strings.TrimSpace(v.GetString(URI)),
		KeypairPath:          v.GetString(Keypair),
		MinBalance:           strings.TrimSpace(v.GetString(MinBalance)),
		ExpectedWallet:       strings.TrimSpace(v.GetString(ExpectedWallet)),
		Cluster:              strings.ToLower(strings.TrimSpace(v.GetString(Cluster))),
		RPCURLs:              splitList(v.GetStringSlice(RPCURLs)),
		WSURL:                strings.TrimSpace(v.GetString(WSURL)),
		Commitment:           rpc.CommitmentType(strings.ToLower(v.GetString(Commitment))),
		ConfirmTimeout:       v.GetDuration(ConfirmTimeout),
		RPCProbeTimeout:      v.GetDuration(RPCProbeTimeout),
		MatchNotFoundText:    v.GetBool(MatchNotFoundText),
		LogLevel:             v.GetString(LogLevel),
		LogFormat:            strings.ToLower(v.GetString(LogFormat)),
		WatchSchedule:        v.GetString(WatchSchedule),
		RabbitMQ: RabbitMQConfig{
			Host:     v.GetString(RabbitMQHost),
			Port:     v.GetString(RabbitMQPort),
			User:     v.GetString(RabbitMQUser),
			Password: v.GetString(RabbitMQPassword),
			VHost:    v.GetString(RabbitMQVHost),
			Queue:    v.GetString(RabbitMQQueue),
		},
	}

	basisPoints := v.GetInt(SellerFeeBasisPoints)
	if basisPoints < 0 || basisPoints > maxBasisPoints {
		return nil, fmt.Errorf("%s must be between 0 and %d, got %d", SellerFeeBasisPoints, maxBasisPoints, basisPoints)
	}
	cfg.SellerFeeBasisPoints = uint16(basisPoints)

	if endpoints, ok := clusterEndpoints[cfg.Cluster]; ok {
		if len(cfg.RPCURLs) == 0 {
			cfg.RPCURLs = []string{endpoints[0]}
		}
		if cfg.WSURL == "" {
			cfg.WSURL = endpoints[1]
		}
	}
	// "none" turns websocket confirmation off
	if strings.EqualFold(cfg.WSURL, "none") {
		cfg.WSURL = ""
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"profile": cfg.Profile,
		"mint":    cfg.Mint,
		"cluster": cfg.Cluster,
	}).Debug("Configuration loaded")

	return cfg, nil
}

// bindFallbackEnv lets the unprefixed variables the rest of the tooling
// uses fill in when the METALINK_ one is unset
func bindFallbackEnv(v *viper.Viper) error {
	fallbacks := map[string]string{
		RPCURLs:          "DEFAULT_SOLANA_RPC",
		WSURL:            "DEFAULT_SOLANA_WSS",
		RabbitMQHost:     "RABBITMQ_HOST",
		RabbitMQPort:     "RABBITMQ_PORT",
		RabbitMQUser:     "RABBITMQ_USER",
		RabbitMQPassword: "RABBITMQ_PASSWORD",
	}
	for key, env := range fallbacks {
		if err := v.BindEnv(key, envPrefix+"_"+key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.Mint == "" {
		return fmt.Errorf("%s is required", Mint)
	}
	if _, err := solana.PublicKeyFromBase58(c.Mint); err != nil {
		return fmt.Errorf("invalid %s %q: %w", Mint, c.Mint, err)
	}

	if c.Name == "" {
		return fmt.Errorf("%s is required", Name)
	}
	if len(c.Name) > maxNameLength {
		return fmt.Errorf("%s must be at most %d bytes", Name, maxNameLength)
	}
	if len(c.Symbol) > maxSymbolLength {
		return fmt.Errorf("%s must be at most %d bytes", Symbol, maxSymbolLength)
	}
	if c.URI == "" {
		return fmt.Errorf("%s is required", URI)
	}
	if len(c.URI) > maxURILength {
		return fmt.Errorf("%s must be at most %d bytes", URI, maxURILength)
	}

	if c.KeypairPath == "" {
		return fmt.Errorf("%s is required", Keypair)
	}

	lamports, err := mlsolana.SOLToLamports(c.MinBalance)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", MinBalance, err)
	}
	c.minBalanceLamports = lamports

	if c.ExpectedWallet != "" {
		if err := validateWallet(c.ExpectedWallet); err != nil {
			return fmt.Errorf("invalid %s %q: %w", ExpectedWallet, c.ExpectedWallet, err)
		}
	}

	if _, ok := clusterEndpoints[c.Cluster]; !ok {
		return fmt.Errorf("unknown %s %q", Cluster, c.Cluster)
	}
	if len(c.RPCURLs) == 0 {
		return fmt.Errorf("%s is required", RPCURLs)
	}
	if _, ok := supportedCommitments[string(c.Commitment)]; !ok {
		return fmt.Errorf("unknown %s %q", Commitment, c.Commitment)
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("%s must be positive", ConfirmTimeout)
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid %s: %w", LogLevel, err)
	}
	if _, ok := supportedLogFormats[c.LogFormat]; !ok {
		return fmt.Errorf("unknown %s %q", LogFormat, c.LogFormat)
	}

	return nil
}

// validateWallet rejects addresses that no keypair can own
func validateWallet(address string) error {
	raw, err := base58.Decode(address)
	if err != nil {
		return err
	}
	if len(raw) != 32 {
		return fmt.Errorf("decoded to %d bytes, want 32", len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return errors.New("not an ed25519 public key")
	}
	return nil
}
